package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
	"github.com/riskibarqy/volley-ticker/internal/platform/resilience"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
)

type CoordinatorConfig struct {
	Region     string
	Host       string
	GetBaseURL string
	Supervisor SupervisorConfig
	Reconnect  resilience.ReconnectConfig
	Logger     *logging.Logger
	Now        func() time.Time
}

// CoordinatorStatus is a point-in-time view of one region.
type CoordinatorStatus struct {
	Region         string          `json:"region"`
	StreamURL      string          `json:"stream_url"`
	OverviewURL    string          `json:"overview_url"`
	State          ConnectionState `json:"state"`
	Connected      bool            `json:"connected"`
	Available      bool            `json:"available"`
	Interest       string          `json:"interest"`
	Subscribers    int             `json:"subscribers"`
	FetchInterval  string          `json:"fetch_interval"`
	ReceiveTimeout string          `json:"receive_timeout,omitempty"`
	LastFetchAt    *time.Time      `json:"last_fetch_at,omitempty"`
	LastReceiveAt  *time.Time      `json:"last_receive_at,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
}

// Coordinator owns the fetcher, stream and supervisor of one region and
// fans every change out to its subscribers.
//
// Lock order: opMu, then publishMu, then mu. The stream receive loop never
// takes opMu, so closing the stream while holding opMu cannot deadlock.
type Coordinator struct {
	region      string
	streamURL   string
	overviewURL string
	fetcher     OverviewFetcher
	stream      Stream
	supervisor  Supervisor
	limiter     *resilience.ReconnectLimiter
	logger      *logging.Logger
	now         func() time.Time

	opMu      sync.Mutex
	publishMu sync.Mutex

	mu          sync.RWMutex
	data        *ticker.Overview
	available   bool
	lastFetch   time.Time
	lastReceive time.Time
	lastErr     error
	plan        Plan

	subsMu sync.Mutex
	subs   []*Subscription

	runMu  sync.Mutex
	cancel context.CancelFunc
	loops  *conc.WaitGroup
	closed bool
}

func NewCoordinator(cfg CoordinatorConfig, fetcher OverviewFetcher, streams StreamFactory) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	supervisor := NewSupervisor(cfg.Supervisor)

	c := &Coordinator{
		region:      cfg.Region,
		streamURL:   ticker.StreamURL(cfg.Host, cfg.Region),
		overviewURL: ticker.OverviewURL(cfg.GetBaseURL, cfg.Region),
		fetcher:     fetcher,
		supervisor:  supervisor,
		limiter:     resilience.NewReconnectLimiter(cfg.Reconnect),
		logger:      logger.With("region", cfg.Region),
		now:         now,
		lastReceive: now(),
		plan: Plan{
			Interest:      ticker.NoGame,
			Action:        ActionNone,
			State:         ConnectionIdle,
			FetchInterval: supervisor.Config().IdleFetchInterval,
		},
	}
	c.stream = streams.NewStream(c.streamURL, c)
	return c
}

func (c *Coordinator) Region() string {
	return c.region
}

// Start runs the supervisor tick loop until Close. The first tick runs
// immediately.
func (c *Coordinator) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.closed || c.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.loops = conc.NewWaitGroup()
	c.loops.Go(func() {
		c.run(runCtx)
	})
}

func (c *Coordinator) run(ctx context.Context) {
	interval := c.supervisor.Config().TickInterval
	c.Tick(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Tick(ctx)
		}
	}
}

// Tick evaluates the supervisor policy, applies its stream action and
// refreshes the overview when due.
func (c *Coordinator) Tick(ctx context.Context) Plan {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	now := c.now()
	c.mu.RLock()
	lastReceive := c.lastReceive
	previous := c.plan
	c.mu.RUnlock()

	plan := c.supervisor.Evaluate(now, c.maxInterest(now), c.stream.Connected(), lastReceive)
	c.mu.Lock()
	c.plan = plan
	c.mu.Unlock()

	if previous.FetchInterval != plan.FetchInterval {
		c.logger.DebugContext(ctx, "fetch interval changed",
			"from", previous.FetchInterval,
			"to", plan.FetchInterval,
			"interest", plan.Interest.String(),
		)
	}

	switch plan.Action {
	case ActionOpen:
		c.connectLocked(ctx, now)
	case ActionClose:
		c.logger.InfoContext(ctx, "no game nearby, closing stream")
		c.disconnectLocked(ctx)
	case ActionReconnect:
		c.logger.InfoContext(ctx, "stream silent beyond receive timeout, reconnecting",
			"timeout", plan.ReceiveTimeout,
			"last_receive", lastReceive,
		)
		c.disconnectLocked(ctx)
		c.connectLocked(ctx, now)
	}

	_, _ = c.refreshLocked(ctx, false)
	return plan
}

// Refresh fetches the overview when the fetch interval has elapsed or force
// is set. It returns nil, nil when no fetch was due.
func (c *Coordinator) Refresh(ctx context.Context, force bool) (*ticker.Overview, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.refreshLocked(ctx, force)
}

func (c *Coordinator) refreshLocked(ctx context.Context, force bool) (*ticker.Overview, error) {
	now := c.now()
	c.mu.RLock()
	due := force || c.lastFetch.IsZero() || now.Sub(c.lastFetch) >= c.plan.FetchInterval
	c.mu.RUnlock()
	if !due {
		return nil, nil
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.Coordinator.Refresh", attribute.String("region", c.region))
	defer span.End()

	doc, err := c.fetcher.FetchOverview(ctx, c.overviewURL)
	if err == nil && !doc.IsOverview() {
		err = errors.WithStack(ticker.ErrInvalidDocument)
	}
	if err != nil {
		recordSpanError(span, err)
		c.mu.Lock()
		c.lastFetch = now
		c.available = false
		c.lastErr = err
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "refresh overview failed",
			"url", c.overviewURL,
			"transport", errors.Is(err, ErrTransport),
			"error", err,
		)
		return nil, err
	}

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	c.data = doc
	c.available = true
	c.lastFetch = now
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "overview refreshed", "leagues", len(doc.MatchSeries), "match_days", len(doc.MatchDays))
	c.fanOut(ctx, Update{Source: SourceFetch, Overview: doc, ReceivedAt: now})
	return doc, nil
}

// IngestStreamEvent records a stream frame, applies it to the snapshot and
// publishes it. It never fetches.
func (c *Coordinator) IngestStreamEvent(ctx context.Context, event ticker.UpdateEvent) {
	now := c.now()

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	c.lastReceive = now
	update := Update{Source: SourceStream, ReceivedAt: now}
	switch event.Kind {
	case ticker.EventOverview:
		if event.Overview == nil {
			c.mu.Unlock()
			return
		}
		// Availability tracks refresh attempts only.
		c.data = event.Overview
	case ticker.EventMatchUpdate:
		if event.Match == nil {
			c.mu.Unlock()
			return
		}
		if c.data != nil {
			c.data = c.data.WithMatchState(event.Match.MatchUUID, event.Match.MatchState)
		}
		update.Match = event.Match
	default:
		c.mu.Unlock()
		return
	}
	update.Overview = c.data
	c.mu.Unlock()

	c.fanOut(ctx, update)
}

func (c *Coordinator) connectLocked(ctx context.Context, now time.Time) {
	if !c.limiter.AllowAt(now) {
		c.logger.WarnContext(ctx, "stream connect throttled", "url", c.streamURL)
		return
	}

	if err := c.stream.Open(ctx); err != nil {
		c.logger.WarnContext(ctx, "open stream failed",
			"url", c.streamURL,
			"connect", errors.Is(err, ErrConnect),
			"error", err,
		)
	} else {
		c.logger.InfoContext(ctx, "stream opened", "url", c.streamURL)
	}

	c.mu.Lock()
	c.lastReceive = now
	c.mu.Unlock()
}

func (c *Coordinator) disconnectLocked(ctx context.Context) {
	if err := c.stream.Close(); err != nil {
		c.logger.WarnContext(ctx, "close stream failed", "error", err)
	}
}

// Subscribe registers listener behind every current subscriber.
func (c *Coordinator) Subscribe(listener Listener) *Subscription {
	sub := &Subscription{coordinator: c, listener: listener}
	c.subsMu.Lock()
	c.subs = append(c.subs, sub)
	c.subsMu.Unlock()
	return sub
}

func (c *Coordinator) HasSubscribers() bool {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return len(c.subs) > 0
}

func (c *Coordinator) unsubscribe(target *Subscription) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for i, sub := range c.subs {
		if sub == target {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

func (c *Coordinator) subscribers() []*Subscription {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return append([]*Subscription(nil), c.subs...)
}

func (c *Coordinator) fanOut(ctx context.Context, update Update) {
	for _, sub := range c.subscribers() {
		if sub.closed.Load() {
			continue
		}
		c.deliver(ctx, sub, update)
	}
}

func (c *Coordinator) deliver(ctx context.Context, sub *Subscription, update Update) {
	var catcher panics.Catcher
	catcher.Try(func() {
		sub.listener.HandleUpdate(ctx, update)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		c.logger.ErrorContext(ctx, "listener panicked, skipping", "source", string(update.Source), "error", recovered.AsError())
	}
}

func (c *Coordinator) maxInterest(now time.Time) ticker.Interest {
	subs := c.subscribers()
	listeners := make([]Listener, 0, len(subs))
	for _, sub := range subs {
		if !sub.closed.Load() {
			listeners = append(listeners, guardedListener{Listener: sub.listener, logger: c.logger})
		}
	}
	return MaxInterest(listeners, now)
}

// Data returns the latest snapshot. Snapshots are never mutated in place.
func (c *Coordinator) Data() *ticker.Overview {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// LastUpdateSuccess reports whether the last refresh attempt succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

func (c *Coordinator) Status() CoordinatorStatus {
	connected := c.stream.Connected()
	subscribers := len(c.subscribers())

	c.mu.RLock()
	defer c.mu.RUnlock()

	status := CoordinatorStatus{
		Region:        c.region,
		StreamURL:     c.streamURL,
		OverviewURL:   c.overviewURL,
		State:         c.plan.State,
		Connected:     connected,
		Available:     c.available,
		Interest:      c.plan.Interest.String(),
		Subscribers:   subscribers,
		FetchInterval: c.plan.FetchInterval.String(),
	}
	if connected {
		status.State = ConnectionConnected
		if c.plan.State == ConnectionStale {
			status.State = ConnectionStale
		}
	} else {
		status.State = ConnectionIdle
	}
	if c.plan.ReceiveTimeout > 0 {
		status.ReceiveTimeout = c.plan.ReceiveTimeout.String()
	}
	if !c.lastFetch.IsZero() {
		at := c.lastFetch
		status.LastFetchAt = &at
	}
	if !c.lastReceive.IsZero() {
		at := c.lastReceive
		status.LastReceiveAt = &at
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	return status
}

// Close stops the tick loop and the stream. It is safe to call repeatedly.
func (c *Coordinator) Close() error {
	c.runMu.Lock()
	if c.closed {
		c.runMu.Unlock()
		return nil
	}
	c.closed = true
	cancel, loops := c.cancel, c.loops
	c.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if loops != nil {
		if recovered := loops.WaitAndRecover(); recovered != nil {
			c.logger.Error("tick loop panicked", "error", recovered.AsError())
		}
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.stream.Close(); err != nil {
		return errors.Wrapf(err, "close stream for region %s", c.region)
	}
	c.logger.Info("coordinator closed")
	return nil
}

// Subscription is a listener's handle on a coordinator.
type Subscription struct {
	coordinator *Coordinator
	listener    Listener
	closed      atomic.Bool
}

func (s *Subscription) Coordinator() *Coordinator {
	return s.coordinator
}

// Prime hands the current snapshot to this subscriber only. It reports
// false when the coordinator holds no data yet.
func (s *Subscription) Prime(ctx context.Context) bool {
	c := s.coordinator
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	data := c.Data()
	if data == nil || s.closed.Load() {
		return false
	}
	c.deliver(ctx, s, Update{Source: SourceFetch, Overview: data, ReceivedAt: c.now()})
	return true
}

// Close removes the listener; later publications skip it.
func (s *Subscription) Close() {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.coordinator.unsubscribe(s)
}

// guardedListener keeps a panicking interest callback from breaking a tick.
type guardedListener struct {
	Listener
	logger *logging.Logger
}

func (g guardedListener) Interest(now time.Time) (interest ticker.Interest) {
	interest = ticker.NoGame
	var catcher panics.Catcher
	catcher.Try(func() {
		interest = g.Listener.Interest(now)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		g.logger.Error("interest callback panicked", "error", recovered.AsError())
		return ticker.NoGame
	}
	return interest
}
