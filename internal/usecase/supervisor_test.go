package usecase

import (
	"testing"
	"time"

	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
)

func TestSupervisorEvaluate(t *testing.T) {
	t.Parallel()

	supervisor := NewSupervisor(SupervisorConfig{})
	now := time.Date(2024, time.October, 19, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		interest    ticker.Interest
		connected   bool
		lastReceive time.Time
		wantAction  SupervisorAction
		wantState   ConnectionState
		wantFetch   time.Duration
		wantTimeout time.Duration
	}{
		{
			name:       "idle and disconnected stays idle",
			interest:   ticker.NoGame,
			wantAction: ActionNone,
			wantState:  ConnectionIdle,
			wantFetch:  60 * time.Minute,
		},
		{
			name:        "no game closes an open stream",
			interest:    ticker.NoGame,
			connected:   true,
			lastReceive: now,
			wantAction:  ActionClose,
			wantState:   ConnectionIdle,
			wantFetch:   60 * time.Minute,
		},
		{
			name:        "near game opens",
			interest:    ticker.NearGame,
			wantAction:  ActionOpen,
			wantState:   ConnectionIdle,
			wantFetch:   5 * time.Minute,
			wantTimeout: 12 * time.Minute,
		},
		{
			name:        "near game within timeout keeps stream",
			interest:    ticker.NearGame,
			connected:   true,
			lastReceive: now.Add(-11 * time.Minute),
			wantAction:  ActionNone,
			wantState:   ConnectionConnected,
			wantFetch:   5 * time.Minute,
			wantTimeout: 12 * time.Minute,
		},
		{
			name:        "near game past timeout reconnects",
			interest:    ticker.NearGame,
			connected:   true,
			lastReceive: now.Add(-13 * time.Minute),
			wantAction:  ActionReconnect,
			wantState:   ConnectionStale,
			wantFetch:   5 * time.Minute,
			wantTimeout: 12 * time.Minute,
		},
		{
			name:        "in game uses the shorter timeout",
			interest:    ticker.InGame,
			connected:   true,
			lastReceive: now.Add(-6 * time.Minute),
			wantAction:  ActionReconnect,
			wantState:   ConnectionStale,
			wantFetch:   5 * time.Minute,
			wantTimeout: 5 * time.Minute,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			plan := supervisor.Evaluate(now, tc.interest, tc.connected, tc.lastReceive)
			if plan.Action != tc.wantAction {
				t.Fatalf("action mismatch want=%s got=%s", tc.wantAction, plan.Action)
			}
			if plan.State != tc.wantState {
				t.Fatalf("state mismatch want=%s got=%s", tc.wantState, plan.State)
			}
			if plan.FetchInterval != tc.wantFetch {
				t.Fatalf("fetch interval mismatch want=%s got=%s", tc.wantFetch, plan.FetchInterval)
			}
			if plan.ReceiveTimeout != tc.wantTimeout {
				t.Fatalf("receive timeout mismatch want=%s got=%s", tc.wantTimeout, plan.ReceiveTimeout)
			}
		})
	}
}

func TestSupervisorConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := NewSupervisor(SupervisorConfig{TickInterval: time.Second}).Config()
	if cfg.TickInterval != time.Second {
		t.Fatalf("tick interval overridden: %s", cfg.TickInterval)
	}
	if cfg != (SupervisorConfig{
		TickInterval:      time.Second,
		GameFetchInterval: 5 * time.Minute,
		IdleFetchInterval: 60 * time.Minute,
		NearGameTimeout:   12 * time.Minute,
		InGameTimeout:     5 * time.Minute,
	}) {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestMaxInterest(t *testing.T) {
	t.Parallel()

	now := time.Now()
	if got := MaxInterest(nil, now); got != ticker.NoGame {
		t.Fatalf("empty listeners want NO_GAME got=%s", got)
	}

	listeners := []Listener{
		&recordingListener{interest: ticker.NearGame},
		&recordingListener{interest: ticker.InGame},
		&recordingListener{interest: ticker.NoGame},
	}
	if got := MaxInterest(listeners, now); got != ticker.InGame {
		t.Fatalf("want IN_GAME got=%s", got)
	}
}
