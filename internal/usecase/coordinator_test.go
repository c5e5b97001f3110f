package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
	"github.com/riskibarqy/volley-ticker/internal/platform/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_URLs(t *testing.T) {
	t.Parallel()

	h := newCoordinatorHarnessWith(t, loadFixture(t), CoordinatorConfig{Region: "vlw", Host: "wss://ticker.test/"})
	if got := h.stream().url; got != "wss://ticker.test/vlw" {
		t.Fatalf("unexpected stream url: %s", got)
	}

	if _, err := h.coordinator.Refresh(context.Background(), true); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if got := h.fetcher.urls[0]; got != "https://ticker.test/live/tickers/vlw" {
		t.Fatalf("unexpected overview url: %s", got)
	}
}

func TestCoordinator_TickOpensStreamNearGame(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newCoordinatorHarness(t, loadFixture(t))
	h.coordinator.Subscribe(&recordingListener{interest: ticker.NearGame})

	plan := h.coordinator.Tick(ctx)
	if plan.Action != ActionOpen {
		t.Fatalf("expected open action, got=%s", plan.Action)
	}
	if plan.FetchInterval != 5*time.Minute {
		t.Fatalf("expected game fetch interval, got=%s", plan.FetchInterval)
	}
	if !h.stream().Connected() {
		t.Fatalf("expected stream connected")
	}
	if h.fetcher.Calls() != 1 {
		t.Fatalf("expected initial fetch, calls=%d", h.fetcher.Calls())
	}

	h.clock.Advance(30 * time.Second)
	plan = h.coordinator.Tick(ctx)
	if plan.Action != ActionNone {
		t.Fatalf("expected no action on healthy stream, got=%s", plan.Action)
	}
	opens, _ := h.stream().counts()
	if opens != 1 {
		t.Fatalf("expected a single open, got=%d", opens)
	}
	if h.fetcher.Calls() != 1 {
		t.Fatalf("fetch not due yet, calls=%d", h.fetcher.Calls())
	}
}

func TestCoordinator_StaleStreamReconnectsExactlyOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newCoordinatorHarness(t, loadFixture(t))
	h.coordinator.Subscribe(&recordingListener{interest: ticker.NearGame})

	h.coordinator.Tick(ctx)
	h.clock.Advance(13 * time.Minute)

	plan := h.coordinator.Tick(ctx)
	if plan.Action != ActionReconnect {
		t.Fatalf("expected reconnect, got=%s", plan.Action)
	}
	if plan.State != ConnectionStale {
		t.Fatalf("expected stale state, got=%s", plan.State)
	}
	opens, closes := h.stream().counts()
	if opens != 2 || closes != 1 {
		t.Fatalf("expected 2 opens and 1 close, got opens=%d closes=%d", opens, closes)
	}

	plan = h.coordinator.Tick(ctx)
	if plan.Action != ActionNone {
		t.Fatalf("expected receive clock reset after reconnect, got=%s", plan.Action)
	}
	opens, closes = h.stream().counts()
	if opens != 2 || closes != 1 {
		t.Fatalf("reconnected twice: opens=%d closes=%d", opens, closes)
	}
}

func TestCoordinator_InGameUsesShortTimeout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newCoordinatorHarness(t, loadFixture(t))
	listener := &recordingListener{interest: ticker.NearGame}
	h.coordinator.Subscribe(listener)

	h.coordinator.Tick(ctx)
	h.clock.Advance(6 * time.Minute)
	if plan := h.coordinator.Tick(ctx); plan.Action != ActionNone {
		t.Fatalf("near game tolerates 6m of silence, got=%s", plan.Action)
	}

	listener.setInterest(ticker.InGame)
	h.clock.Advance(6 * time.Minute)
	if plan := h.coordinator.Tick(ctx); plan.Action != ActionReconnect {
		t.Fatalf("in game reconnects after 5m of silence, got=%s", plan.Action)
	}
}

func TestCoordinator_NoGameClosesStreamAndSlowsPolling(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newCoordinatorHarness(t, loadFixture(t))
	first := &recordingListener{interest: ticker.InGame}
	second := &recordingListener{interest: ticker.NoGame}
	h.coordinator.Subscribe(first)
	h.coordinator.Subscribe(second)

	h.coordinator.Tick(ctx)
	require.True(t, h.stream().Connected())

	first.setInterest(ticker.NoGame)
	plan := h.coordinator.Tick(ctx)
	assert.Equal(t, ActionClose, plan.Action)
	assert.Equal(t, 60*time.Minute, plan.FetchInterval)
	assert.False(t, h.stream().Connected())

	plan = h.coordinator.Tick(ctx)
	assert.Equal(t, ActionNone, plan.Action)
	_, closes := h.stream().counts()
	assert.Equal(t, 1, closes)

	// The idle interval applies from here on.
	h.clock.Advance(59 * time.Minute)
	h.coordinator.Tick(ctx)
	assert.Equal(t, 1, h.fetcher.Calls())
	h.clock.Advance(time.Minute)
	h.coordinator.Tick(ctx)
	assert.Equal(t, 2, h.fetcher.Calls())
}

func TestCoordinator_OpenFailureRetriesNextTick(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newCoordinatorHarness(t, loadFixture(t))
	h.coordinator.Subscribe(&recordingListener{interest: ticker.InGame})
	h.stream().failOpen(errors.Mark(errors.New("dial refused"), ErrConnect))

	h.coordinator.Tick(ctx)
	h.clock.Advance(30 * time.Second)
	h.coordinator.Tick(ctx)

	opens, _ := h.stream().counts()
	if opens != 2 {
		t.Fatalf("expected one attempt per tick, got=%d", opens)
	}
	if h.stream().Connected() {
		t.Fatalf("stream must stay disconnected")
	}
}

func TestCoordinator_ReconnectThrottled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newCoordinatorHarnessWith(t, loadFixture(t), CoordinatorConfig{
		Reconnect: resilience.ReconnectConfig{MinGap: time.Minute, Burst: 1},
	})
	h.coordinator.Subscribe(&recordingListener{interest: ticker.InGame})
	h.stream().failOpen(errors.New("dial refused"))

	h.coordinator.Tick(ctx)
	h.clock.Advance(30 * time.Second)
	h.coordinator.Tick(ctx)
	opens, _ := h.stream().counts()
	if opens != 1 {
		t.Fatalf("second attempt should be throttled, opens=%d", opens)
	}

	h.clock.Advance(30 * time.Second)
	h.coordinator.Tick(ctx)
	opens, _ = h.stream().counts()
	if opens != 2 {
		t.Fatalf("expected attempt after the gap, opens=%d", opens)
	}
}

func TestCoordinator_Refresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	doc := loadFixture(t)
	h := newCoordinatorHarness(t, doc)
	listener := &recordingListener{}
	h.coordinator.Subscribe(listener)

	got, err := h.coordinator.Refresh(ctx, false)
	require.NoError(t, err)
	require.Same(t, doc, got)
	assert.True(t, h.coordinator.LastUpdateSuccess())
	assert.Same(t, doc, h.coordinator.Data())

	got, err = h.coordinator.Refresh(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, got, "refresh inside the interval must be skipped")

	got, err = h.coordinator.Refresh(ctx, true)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, 2, h.fetcher.Calls())

	updates := listener.received()
	require.Len(t, updates, 2)
	assert.Equal(t, SourceFetch, updates[0].Source)
	assert.Nil(t, updates[0].Match)
}

func TestCoordinator_RefreshFailureMarksUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	doc := loadFixture(t)
	h := newCoordinatorHarness(t, doc)
	listener := &recordingListener{}
	h.coordinator.Subscribe(listener)

	_, err := h.coordinator.Refresh(ctx, true)
	require.NoError(t, err)

	h.fetcher.set(nil, errors.Mark(errors.New("connection reset"), ErrTransport))
	_, err = h.coordinator.Refresh(ctx, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.False(t, h.coordinator.LastUpdateSuccess())
	assert.Same(t, doc, h.coordinator.Data(), "failed refresh keeps the last snapshot")
	assert.Len(t, listener.received(), 1)

	got, err := h.coordinator.Refresh(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, got, "a failed attempt still counts as the last fetch")

	status := h.coordinator.Status()
	assert.False(t, status.Available)
	assert.Contains(t, status.LastError, "connection reset")

	h.fetcher.set(doc, nil)
	_, err = h.coordinator.Refresh(ctx, true)
	require.NoError(t, err)
	assert.True(t, h.coordinator.LastUpdateSuccess())
}

func TestCoordinator_RefreshRejectsNonOverview(t *testing.T) {
	t.Parallel()

	h := newCoordinatorHarness(t, &ticker.Overview{})
	_, err := h.coordinator.Refresh(context.Background(), true)
	if !errors.Is(err, ticker.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got=%v", err)
	}
	if h.coordinator.Data() != nil {
		t.Fatalf("invalid document must not be stored")
	}
}

func TestCoordinator_StreamDeltaIsCopyOnWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newCoordinatorHarness(t, loadFixture(t))
	listener := &recordingListener{}
	h.coordinator.Subscribe(listener)

	_, err := h.coordinator.Refresh(ctx, true)
	require.NoError(t, err)
	before := h.coordinator.Data()

	h.clock.Advance(time.Minute)
	h.coordinator.IngestStreamEvent(ctx, ticker.UpdateEvent{
		Kind: ticker.EventMatchUpdate,
		Match: &ticker.MatchStateUpdate{
			MatchUUID:  "match-3",
			MatchState: ticker.MatchState{Started: true},
		},
	})

	after := h.coordinator.Data()
	require.NotSame(t, before, after)
	_, found := before.MatchState("match-3")
	assert.False(t, found, "published snapshot was mutated")
	state, found := after.MatchState("match-3")
	require.True(t, found)
	assert.True(t, state.Started)

	updates := listener.received()
	require.Len(t, updates, 2)
	assert.Equal(t, SourceStream, updates[1].Source)
	require.NotNil(t, updates[1].Match)
	assert.Equal(t, "match-3", updates[1].Match.MatchUUID)
	assert.Same(t, after, updates[1].Overview)

	status := h.coordinator.Status()
	require.NotNil(t, status.LastReceiveAt)
	assert.Equal(t, h.clock.Now(), *status.LastReceiveAt)
}

func TestCoordinator_StreamOverviewReplacesSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newCoordinatorHarness(t, loadFixture(t))
	h.fetcher.set(nil, errors.New("boom"))
	_, _ = h.coordinator.Refresh(ctx, true)
	require.False(t, h.coordinator.LastUpdateSuccess())

	doc := loadFixture(t)
	h.coordinator.IngestStreamEvent(ctx, ticker.UpdateEvent{Kind: ticker.EventOverview, Overview: doc})
	assert.Same(t, doc, h.coordinator.Data())
	assert.False(t, h.coordinator.LastUpdateSuccess(), "only a refresh can restore availability")
	assert.False(t, h.coordinator.Status().Available)
	assert.Contains(t, h.coordinator.Status().LastError, "boom")
	assert.Equal(t, 1, h.fetcher.Calls(), "stream frames never trigger a fetch")

	h.fetcher.set(doc, nil)
	_, err := h.coordinator.Refresh(ctx, true)
	require.NoError(t, err)
	assert.True(t, h.coordinator.LastUpdateSuccess())
}

func TestCoordinator_DeltaWithoutSnapshotIsPublished(t *testing.T) {
	t.Parallel()

	h := newCoordinatorHarness(t, loadFixture(t))
	listener := &recordingListener{}
	h.coordinator.Subscribe(listener)

	h.coordinator.IngestStreamEvent(context.Background(), ticker.UpdateEvent{
		Kind:  ticker.EventMatchUpdate,
		Match: &ticker.MatchStateUpdate{MatchUUID: "match-1"},
	})
	assert.Nil(t, h.coordinator.Data())
	assert.Len(t, listener.received(), 1)
}

func TestCoordinator_FanOutOrderSurvivesPanics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newCoordinatorHarness(t, loadFixture(t))
	log := &journal{}
	h.coordinator.Subscribe(&recordingListener{name: "first", journal: log})
	h.coordinator.Subscribe(&recordingListener{name: "broken", journal: log, panicOnUpdate: true, panicOnPoll: true})
	h.coordinator.Subscribe(&recordingListener{name: "third", journal: log, interest: ticker.NearGame})

	plan := h.coordinator.Tick(ctx)
	if plan.Interest != ticker.NearGame {
		t.Fatalf("panicking interest must not hide others, got=%s", plan.Interest)
	}

	h.coordinator.IngestStreamEvent(ctx, ticker.UpdateEvent{
		Kind:  ticker.EventMatchUpdate,
		Match: &ticker.MatchStateUpdate{MatchUUID: "match-3"},
	})

	got := log.list()
	want := []string{"first", "third", "first", "third"}
	if len(got) != len(want) {
		t.Fatalf("unexpected journal: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected journal order: %v", got)
		}
	}
}

func TestCoordinator_SubscriptionLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newCoordinatorHarness(t, loadFixture(t))
	listener := &recordingListener{}
	sub := h.coordinator.Subscribe(listener)
	if sub.Coordinator() != h.coordinator {
		t.Fatalf("subscription bound to wrong coordinator")
	}

	if sub.Prime(ctx) {
		t.Fatalf("prime without data must report false")
	}

	if _, err := h.coordinator.Refresh(ctx, true); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}

	late := &recordingListener{}
	lateSub := h.coordinator.Subscribe(late)
	if !lateSub.Prime(ctx) {
		t.Fatalf("prime with data must report true")
	}
	if len(late.received()) != 1 || len(listener.received()) != 1 {
		t.Fatalf("prime must only reach its own subscriber")
	}

	sub.Close()
	sub.Close()
	if _, err := h.coordinator.Refresh(ctx, true); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if len(listener.received()) != 1 {
		t.Fatalf("closed subscription still notified")
	}
	if !h.coordinator.HasSubscribers() {
		t.Fatalf("late subscriber still registered")
	}

	lateSub.Close()
	if h.coordinator.HasSubscribers() {
		t.Fatalf("expected no subscribers")
	}
	if lateSub.Prime(ctx) {
		t.Fatalf("closed subscription must not be primed")
	}
}

func TestCoordinator_StartAndClose(t *testing.T) {
	t.Parallel()

	h := newCoordinatorHarnessWith(t, loadFixture(t), CoordinatorConfig{
		Supervisor: SupervisorConfig{TickInterval: time.Hour},
	})
	h.coordinator.Subscribe(&recordingListener{interest: ticker.InGame})

	h.coordinator.Start(context.Background())
	require.Eventually(t, func() bool {
		return h.stream().Connected() && h.fetcher.Calls() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.coordinator.Close())
	require.NoError(t, h.coordinator.Close())
	assert.False(t, h.stream().Connected())

	h.coordinator.Start(context.Background())
	assert.Equal(t, 1, h.fetcher.Calls(), "closed coordinator must not restart")
}
