package resilience

import (
	"time"

	"golang.org/x/time/rate"
)

// ReconnectLimiter caps how often a stream may be dialled. A zero MinGap
// disables throttling.
type ReconnectLimiter struct {
	limiter *rate.Limiter
}

func NewReconnectLimiter(cfg ReconnectConfig) *ReconnectLimiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.MinGap > 0 {
		limit = rate.Every(cfg.MinGap)
	}
	return &ReconnectLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// AllowAt reports whether a dial may happen at now and consumes a token.
func (l *ReconnectLimiter) AllowAt(now time.Time) bool {
	if l == nil {
		return true
	}
	return l.limiter.AllowN(now, 1)
}
