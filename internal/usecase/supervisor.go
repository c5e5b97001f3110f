package usecase

import (
	"time"

	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
)

// ConnectionState is the supervisor's view of a region stream.
type ConnectionState string

const (
	ConnectionIdle      ConnectionState = "IDLE"
	ConnectionConnected ConnectionState = "CONNECTED"
	ConnectionStale     ConnectionState = "STALE"
)

// SupervisorAction is what a tick asks the coordinator to do with its stream.
type SupervisorAction string

const (
	ActionNone      SupervisorAction = "none"
	ActionOpen      SupervisorAction = "open"
	ActionClose     SupervisorAction = "close"
	ActionReconnect SupervisorAction = "reconnect"
)

type SupervisorConfig struct {
	TickInterval      time.Duration
	GameFetchInterval time.Duration
	IdleFetchInterval time.Duration
	NearGameTimeout   time.Duration
	InGameTimeout     time.Duration
}

func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		TickInterval:      30 * time.Second,
		GameFetchInterval: 5 * time.Minute,
		IdleFetchInterval: 60 * time.Minute,
		NearGameTimeout:   12 * time.Minute,
		InGameTimeout:     5 * time.Minute,
	}
}

func normalizeSupervisorConfig(cfg SupervisorConfig) SupervisorConfig {
	defaults := DefaultSupervisorConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if cfg.GameFetchInterval <= 0 {
		cfg.GameFetchInterval = defaults.GameFetchInterval
	}
	if cfg.IdleFetchInterval <= 0 {
		cfg.IdleFetchInterval = defaults.IdleFetchInterval
	}
	if cfg.NearGameTimeout <= 0 {
		cfg.NearGameTimeout = defaults.NearGameTimeout
	}
	if cfg.InGameTimeout <= 0 {
		cfg.InGameTimeout = defaults.InGameTimeout
	}
	return cfg
}

// Plan is the outcome of one supervisor evaluation.
type Plan struct {
	Interest       ticker.Interest
	Action         SupervisorAction
	State          ConnectionState
	FetchInterval  time.Duration
	ReceiveTimeout time.Duration
}

// Supervisor decides per tick whether a region stream should be open. It
// holds no state; the coordinator feeds it the facts.
type Supervisor struct {
	cfg SupervisorConfig
}

func NewSupervisor(cfg SupervisorConfig) Supervisor {
	return Supervisor{cfg: normalizeSupervisorConfig(cfg)}
}

func (s Supervisor) Config() SupervisorConfig {
	return s.cfg
}

// Evaluate maps the highest subscriber interest and the stream facts to a
// plan. A stream silent for longer than the receive timeout is reconnected.
func (s Supervisor) Evaluate(now time.Time, interest ticker.Interest, connected bool, lastReceive time.Time) Plan {
	if interest <= ticker.NoGame {
		plan := Plan{
			Interest:      ticker.NoGame,
			Action:        ActionNone,
			State:         ConnectionIdle,
			FetchInterval: s.cfg.IdleFetchInterval,
		}
		if connected {
			plan.Action = ActionClose
		}
		return plan
	}

	plan := Plan{
		Interest:       interest,
		Action:         ActionNone,
		State:          ConnectionConnected,
		FetchInterval:  s.cfg.GameFetchInterval,
		ReceiveTimeout: s.cfg.NearGameTimeout,
	}
	if interest >= ticker.InGame {
		plan.ReceiveTimeout = s.cfg.InGameTimeout
	}

	switch {
	case !connected:
		plan.Action = ActionOpen
		plan.State = ConnectionIdle
	case now.Sub(lastReceive) > plan.ReceiveTimeout:
		plan.Action = ActionReconnect
		plan.State = ConnectionStale
	}
	return plan
}

// MaxInterest folds the interest of every listener.
func MaxInterest(listeners []Listener, now time.Time) ticker.Interest {
	out := ticker.NoGame
	for _, listener := range listeners {
		if interest := listener.Interest(now); interest > out {
			out = interest
		}
	}
	return out
}
