package samsticker

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
	"github.com/riskibarqy/volley-ticker/internal/usecase"
	"github.com/sourcegraph/conc"
	"github.com/valyala/bytebufferpool"
)

const (
	browserUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	defaultHandshakeTimeout = 15 * time.Second
	defaultReadLimit        = 16 << 20
	closeGrace              = time.Second
)

// DefaultHeader is the browser-like handshake the ticker backend expects.
func DefaultHeader() http.Header {
	header := http.Header{}
	header.Set("Cache-Control", "no-cache")
	header.Set("Pragma", "no-cache")
	header.Set("User-Agent", browserUserAgent)
	header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	header.Set("Accept-Language", "de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7")
	return header
}

type StreamConfig struct {
	Dialer           *websocket.Dialer
	Header           http.Header
	HandshakeTimeout time.Duration
	ReadLimit        int64
	Logger           *logging.Logger
}

// Dialer builds stream clients and satisfies usecase.StreamFactory.
type Dialer struct {
	cfg StreamConfig
}

func NewDialer(cfg StreamConfig) *Dialer {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	if cfg.Header == nil {
		cfg.Header = DefaultHeader()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	}
	return &Dialer{cfg: cfg}
}

func (d *Dialer) NewStream(wsURL string, sink usecase.EventSink) usecase.Stream {
	return NewStreamClient(wsURL, sink, d.cfg)
}

// StreamClient holds at most one websocket connection and forwards every
// decoded frame to its sink from a background receive loop.
type StreamClient struct {
	url       string
	sink      usecase.EventSink
	dialer    *websocket.Dialer
	header    http.Header
	readLimit int64
	logger    *logging.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	loops     *conc.WaitGroup
	connected atomic.Bool
}

func NewStreamClient(wsURL string, sink usecase.EventSink, cfg StreamConfig) *StreamClient {
	dialer := NewDialer(cfg).cfg
	return &StreamClient{
		url:       wsURL,
		sink:      sink,
		dialer:    dialer.Dialer,
		header:    dialer.Header,
		readLimit: dialer.ReadLimit,
		logger:    dialer.Logger.With("stream_url", wsURL),
	}
}

func (c *StreamClient) Connected() bool {
	return c.connected.Load()
}

// Open dials once. The receive loop outlives ctx and stops on Close or when
// the peer goes away.
func (c *StreamClient) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		return nil
	}
	if err := c.closeLocked(); err != nil {
		c.logger.DebugContext(ctx, "discard previous connection", "error", err)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header.Clone())
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return errors.Mark(errors.Wrapf(err, "dial %s status=%d", c.url, status), usecase.ErrConnect)
	}
	conn.SetReadLimit(c.readLimit)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.conn = conn
	c.cancel = cancel
	c.loops = conc.NewWaitGroup()
	c.connected.Store(true)
	c.loops.Go(func() {
		c.receive(loopCtx, conn)
	})
	return nil
}

func (c *StreamClient) receive(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		c.connected.Store(false)
		_ = conn.Close()
	}()

	for {
		messageType, reader, err := conn.NextReader()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.InfoContext(ctx, "stream connection closed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.DebugContext(ctx, "discarding non-text frame", "type", messageType)
			continue
		}

		buf := bytebufferpool.Get()
		_, err = buf.ReadFrom(reader)
		frame := bytes.Clone(buf.Bytes())
		bytebufferpool.Put(buf)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.WarnContext(ctx, "read stream frame failed", "error", err)
			}
			return
		}

		event, err := ticker.DecodeUpdateEvent(frame)
		if err != nil {
			err = errors.Mark(err, usecase.ErrParse)
			if errors.Is(err, ticker.ErrUnknownEvent) {
				c.logger.DebugContext(ctx, "ignoring unknown stream frame", "error", err)
			} else {
				c.logger.WarnContext(ctx, "dropping undecodable stream frame", "bytes", len(frame), "error", err)
			}
			continue
		}
		c.sink.IngestStreamEvent(ctx, event)
	}
}

// Close stops the receive loop and waits for it. It is safe to call on a
// stream that was never opened.
func (c *StreamClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *StreamClient) closeLocked() error {
	c.connected.Store(false)
	if c.cancel != nil {
		c.cancel()
	}

	var closeErr error
	if c.conn != nil {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace),
		)
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			closeErr = errors.Wrap(err, "close websocket")
		}
	}
	if c.loops != nil {
		if recovered := c.loops.WaitAndRecover(); recovered != nil {
			c.logger.Error("stream receive loop panicked", "error", recovered.AsError())
		}
	}

	c.conn, c.cancel, c.loops = nil, nil, nil
	return closeErr
}
