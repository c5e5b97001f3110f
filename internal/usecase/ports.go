package usecase

import (
	"context"
	"time"

	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
)

// OverviewFetcher loads the full overview of a region.
type OverviewFetcher interface {
	FetchOverview(ctx context.Context, getURL string) (*ticker.Overview, error)
}

// EventSink receives decoded stream frames.
type EventSink interface {
	IngestStreamEvent(ctx context.Context, event ticker.UpdateEvent)
}

// Stream is a live connection to one region's ticker socket. Open must not
// retry on its own; Close must be idempotent.
type Stream interface {
	Open(ctx context.Context) error
	Close() error
	Connected() bool
}

// StreamFactory builds a stream bound to wsURL that feeds sink.
type StreamFactory interface {
	NewStream(wsURL string, sink EventSink) Stream
}

// Listener is a coordinator subscriber. HandleUpdate is called in
// registration order; Interest sizes the polling and streaming policy.
type Listener interface {
	HandleUpdate(ctx context.Context, update Update)
	Interest(now time.Time) ticker.Interest
}

// UpdateSource tells listeners why they are notified.
type UpdateSource string

const (
	SourceFetch  UpdateSource = "fetch"
	SourceStream UpdateSource = "stream"
)

// Update is one published change. Overview is the coordinator snapshot after
// the change; Match is set for stream deltas.
type Update struct {
	Source     UpdateSource
	Overview   *ticker.Overview
	Match      *ticker.MatchStateUpdate
	ReceivedAt time.Time
}
