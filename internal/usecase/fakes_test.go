package usecase

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
)

func loadFixture(t *testing.T) *ticker.Overview {
	t.Helper()

	raw, err := os.ReadFile("../domain/ticker/testdata/overview.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	doc, err := ticker.DecodeOverview(raw)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return doc
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeFetcher struct {
	mu    sync.Mutex
	doc   *ticker.Overview
	err   error
	calls int
	urls  []string
}

func (f *fakeFetcher) FetchOverview(_ context.Context, getURL string) (*ticker.Overview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.urls = append(f.urls, getURL)
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *fakeFetcher) set(doc *ticker.Overview, err error) {
	f.mu.Lock()
	f.doc, f.err = doc, err
	f.mu.Unlock()
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStream struct {
	url  string
	sink EventSink

	mu        sync.Mutex
	connected bool
	openErr   error
	opens     int
	closes    int
}

func (s *fakeStream) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.openErr != nil {
		return s.openErr
	}
	s.connected = true
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.connected = false
	return nil
}

func (s *fakeStream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeStream) failOpen(err error) {
	s.mu.Lock()
	s.openErr = err
	s.mu.Unlock()
}

func (s *fakeStream) counts() (opens, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes
}

type fakeStreamFactory struct {
	mu      sync.Mutex
	streams []*fakeStream
}

func (f *fakeStreamFactory) NewStream(wsURL string, sink EventSink) Stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	stream := &fakeStream{url: wsURL, sink: sink}
	f.streams = append(f.streams, stream)
	return stream
}

func (f *fakeStreamFactory) last() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

func (f *fakeStreamFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

// recordingListener logs its name into a shared journal on every update.
type recordingListener struct {
	name    string
	journal *journal

	mu            sync.Mutex
	interest      ticker.Interest
	updates       []Update
	panicOnUpdate bool
	panicOnPoll   bool
}

func (l *recordingListener) HandleUpdate(_ context.Context, update Update) {
	l.mu.Lock()
	shouldPanic := l.panicOnUpdate
	l.mu.Unlock()
	if shouldPanic {
		panic("listener " + l.name + " exploded")
	}

	l.mu.Lock()
	l.updates = append(l.updates, update)
	l.mu.Unlock()
	if l.journal != nil {
		l.journal.add(l.name)
	}
}

func (l *recordingListener) Interest(time.Time) ticker.Interest {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.panicOnPoll {
		panic("interest " + l.name + " exploded")
	}
	return l.interest
}

func (l *recordingListener) setInterest(interest ticker.Interest) {
	l.mu.Lock()
	l.interest = interest
	l.mu.Unlock()
}

func (l *recordingListener) received() []Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Update(nil), l.updates...)
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type coordinatorHarness struct {
	clock       *fakeClock
	fetcher     *fakeFetcher
	streams     *fakeStreamFactory
	coordinator *Coordinator
}

func (h coordinatorHarness) stream() *fakeStream {
	return h.streams.last()
}

func newCoordinatorHarness(t *testing.T, doc *ticker.Overview) coordinatorHarness {
	t.Helper()
	return newCoordinatorHarnessWith(t, doc, CoordinatorConfig{})
}

func newCoordinatorHarnessWith(t *testing.T, doc *ticker.Overview, cfg CoordinatorConfig) coordinatorHarness {
	t.Helper()

	clock := newFakeClock(time.Date(2024, time.October, 19, 13, 0, 0, 0, time.UTC))
	fetcher := &fakeFetcher{doc: doc}
	streams := &fakeStreamFactory{}
	if cfg.Region == "" {
		cfg.Region = "baden"
	}
	if cfg.Host == "" {
		cfg.Host = "wss://ticker.test"
	}
	if cfg.GetBaseURL == "" {
		cfg.GetBaseURL = "https://ticker.test/live/tickers/"
	}
	cfg.Logger = logging.NewNop()
	cfg.Now = clock.Now

	coordinator := NewCoordinator(cfg, fetcher, streams)
	t.Cleanup(func() {
		_ = coordinator.Close()
	})
	return coordinatorHarness{clock: clock, fetcher: fetcher, streams: streams, coordinator: coordinator}
}
