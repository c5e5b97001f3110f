package samsticker

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
	"github.com/riskibarqy/volley-ticker/internal/platform/resilience"
	"github.com/riskibarqy/volley-ticker/internal/usecase"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultRetryBackoff = time.Second
	maxOverviewBytes    = 16 << 20
)

var errTickerTransient = errors.New("sams ticker transient failure")

type FetcherConfig struct {
	Client         *fasthttp.Client
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Fetcher performs the one-shot GET of a region overview. Concurrent
// requests for the same URL share one round trip.
type Fetcher struct {
	client     *fasthttp.Client
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	breaker    *resilience.CircuitBreaker
	flight     singleflight.Group
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	client := cfg.Client
	if client == nil {
		client = &fasthttp.Client{
			Name:                "volley-ticker",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxResponseBodySize: maxOverviewBytes,
		}
	}

	return &Fetcher{
		client:     client,
		timeout:    timeout,
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    backoff,
		logger:     logger,
		breaker:    resilience.NewCircuitBreakerFromConfig(cfg.CircuitBreaker),
	}
}

// FetchOverview downloads and decodes the overview at getURL. Transport
// failures and bodies that are not JSON are marked usecase.ErrTransport;
// well-formed payloads that are not an overview carry
// ticker.ErrInvalidDocument. Concurrent callers share one request, which
// runs detached from any single caller's cancellation.
func (f *Fetcher) FetchOverview(ctx context.Context, getURL string) (*ticker.Overview, error) {
	ch := f.flight.DoChan(getURL, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.fetchBudget())
		defer cancel()
		return f.fetch(fetchCtx, getURL)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "wait for overview")
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		f.logger.DebugContext(ctx, "overview fetch shared with a concurrent caller", "url", getURL)
	}

	doc, ok := res.Val.(*ticker.Overview)
	if !ok {
		return nil, errors.Newf("unexpected overview payload type %T", res.Val)
	}
	return doc, nil
}

// fetchBudget bounds one shared fetch: every attempt plus the backoff
// between attempts.
func (f *Fetcher) fetchBudget() time.Duration {
	budget := f.timeout * time.Duration(f.maxRetries+1)
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		budget += time.Duration(attempt) * f.backoff
	}
	return budget
}

func (f *Fetcher) fetch(ctx context.Context, getURL string) (*ticker.Overview, error) {
	var raw []byte
	err := f.breaker.Execute(func() error {
		var reqErr error
		raw, reqErr = f.execute(ctx, getURL)
		return reqErr
	}, func(err error) bool {
		return !errors.Is(err, errTickerTransient)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		f.logger.WarnContext(ctx, "sams ticker circuit breaker rejected request", "url", getURL, "state", string(f.breaker.State()))
		err = errors.Mark(errors.Wrap(err, "sams ticker is temporarily unavailable"), usecase.ErrDependencyUnavailable)
	}
	if err != nil {
		return nil, errors.Mark(err, usecase.ErrTransport)
	}

	doc, err := ticker.DecodeOverview(raw)
	if err != nil {
		err = errors.Mark(errors.Wrapf(err, "decode overview from %s", getURL), usecase.ErrParse)
		if !errors.Is(err, ticker.ErrInvalidDocument) {
			// A truncated or garbled body is a failed transfer.
			err = errors.Mark(err, usecase.ErrTransport)
		}
		return nil, err
	}
	return doc, nil
}

func (f *Fetcher) execute(ctx context.Context, getURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		raw, status, err := f.do(ctx, getURL)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "get overview")
			}
			lastErr = errors.Mark(errors.Wrapf(err, "get %s", getURL), errTickerTransient)
		case status >= 200 && status < 300:
			return raw, nil
		case isRetryableStatus(status):
			lastErr = errors.Mark(errors.Newf("ticker status=%d body=%s", status, abbreviateBody(raw)), errTickerTransient)
		default:
			return nil, errors.Newf("ticker status=%d body=%s", status, abbreviateBody(raw))
		}

		if attempt == f.maxRetries {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * f.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrap(ctx.Err(), "wait for overview retry")
		case <-timer.C:
		}
	}

	f.logger.WarnContext(ctx, "sams ticker request failed", "url", getURL, "attempts", f.maxRetries+1, "error", lastErr)
	return nil, lastErr
}

func (f *Fetcher) do(ctx context.Context, getURL string) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(getURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", browserUserAgent)

	deadline := time.Now().Add(f.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := f.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, 0, err
	}

	// The response body is recycled with resp.
	raw := append([]byte(nil), resp.Body()...)
	return raw, resp.StatusCode(), nil
}

func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

func abbreviateBody(raw []byte) string {
	body := strings.TrimSpace(string(raw))
	if len(body) > 256 {
		return body[:256] + "...(truncated)"
	}
	return body
}
