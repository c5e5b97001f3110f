package ticker

import "time"

// Status is the tracker-facing match classification.
type Status string

const (
	StatusNotFound   Status = "NOT_FOUND"
	StatusPre        Status = "PRE"
	StatusInProgress Status = "IN"
	StatusPost       Status = "POST"
)

// ClassifyState maps {started, finished} to a status. A missing state means
// the match has not been picked up by the ticker yet.
func ClassifyState(state *MatchState) Status {
	switch {
	case state == nil:
		return StatusPre
	case state.Finished:
		return StatusPost
	case state.Started:
		return StatusInProgress
	default:
		return StatusPre
	}
}

// Classify resolves the match state from doc and classifies it.
func Classify(doc *Overview, match Match) Status {
	state, ok := doc.MatchState(match.ID)
	if !ok {
		return ClassifyState(nil)
	}
	return ClassifyState(&state)
}

// Interest sizes how aggressively a region has to be watched.
type Interest int

const (
	NoGame Interest = iota
	NearGame
	InGame
)

func (i Interest) String() string {
	switch i {
	case InGame:
		return "IN_GAME"
	case NearGame:
		return "NEAR_GAME"
	default:
		return "NO_GAME"
	}
}

// GameWindow bounds the span around a kickoff in which a match counts as near.
type GameWindow struct {
	Before time.Duration
	After  time.Duration
}

var DefaultGameWindow = GameWindow{
	Before: 2 * time.Hour,
	After:  4 * time.Hour,
}

func (w GameWindow) withDefaults() GameWindow {
	if w.Before <= 0 {
		w.Before = DefaultGameWindow.Before
	}
	if w.After <= 0 {
		w.After = DefaultGameWindow.After
	}
	return w
}

// InterestFor derives the interest level of a single tracked match.
func InterestFor(status Status, kickoff, now time.Time, window GameWindow) Interest {
	if status == StatusInProgress {
		return InGame
	}
	if status == StatusNotFound || kickoff.IsZero() {
		return NoGame
	}
	window = window.withDefaults()
	if now.After(kickoff.Add(-window.Before)) && now.Before(kickoff.Add(window.After)) {
		return NearGame
	}
	return NoGame
}
