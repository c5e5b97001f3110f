package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
)

const suggestionLimit = 3

// TrackerConfig declares one tracked team. Either TeamID or TeamName plus
// LeagueName identifies the team.
type TrackerConfig struct {
	Name       string `json:"name"`
	Host       string `json:"host,omitempty" validate:"omitempty,url"`
	Region     string `json:"region" validate:"required,sams_region"`
	LeagueID   string `json:"league_id,omitempty"`
	LeagueName string `json:"league_name,omitempty" validate:"required_with=TeamName"`
	Gender     string `json:"gender,omitempty" validate:"omitempty,oneof=female male mixed"`
	TeamName   string `json:"team_name,omitempty" validate:"required_without=TeamID"`
	TeamID     string `json:"team_id,omitempty" validate:"required_without=TeamName"`
}

// TrackerState is what a host reads from a tracker.
type TrackerState struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Region     string            `json:"region"`
	State      ticker.Status     `json:"state"`
	Available  bool              `json:"available"`
	Interest   string            `json:"interest"`
	Attributes ticker.Attributes `json:"attributes"`
}

type availabilitySource interface {
	LastUpdateSuccess() bool
}

// TeamTracker follows one team: it selects the team's current match from
// every overview and keeps its attributes current from stream deltas.
type TeamTracker struct {
	id        string
	cfg       TrackerConfig
	projector ticker.Projector
	window    ticker.GameWindow
	logger    *logging.Logger
	now       func() time.Time

	mu        sync.RWMutex
	source    availabilitySource
	status    ticker.Status
	attrs     ticker.Attributes
	match     ticker.Match
	hasMatch  bool
	kickoff   time.Time
	suggested bool
}

func NewTeamTracker(trackerID string, cfg TrackerConfig, projector ticker.Projector, window ticker.GameWindow, logger *logging.Logger) *TeamTracker {
	if logger == nil {
		logger = logging.Default()
	}
	now := projector.Now
	if now == nil {
		now = time.Now
	}
	return &TeamTracker{
		id:        trackerID,
		cfg:       cfg,
		projector: projector,
		window:    window,
		logger:    logger.With("tracker_id", trackerID, "region", cfg.Region),
		now:       now,
		status:    ticker.StatusNotFound,
		attrs:     ticker.NewAttributes(cfg.Region),
	}
}

func (t *TeamTracker) ID() string {
	return t.id
}

func (t *TeamTracker) Config() TrackerConfig {
	return t.cfg
}

func (t *TeamTracker) bind(source availabilitySource) {
	t.mu.Lock()
	t.source = source
	t.mu.Unlock()
}

// HandleUpdate re-derives the tracker from a fetched or streamed overview,
// or patches its attributes from a delta of its own match.
func (t *TeamTracker) HandleUpdate(ctx context.Context, update Update) {
	if update.Match != nil {
		t.applyDelta(ctx, update.Match)
		return
	}
	if update.Overview != nil {
		t.applyOverview(ctx, update.Overview)
	}
}

func (t *TeamTracker) applyDelta(ctx context.Context, delta *ticker.MatchStateUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasMatch || delta.MatchUUID != t.match.ID {
		return
	}

	attrs, err := t.projector.ApplyIncrementalUpdate(t.attrs, delta.MatchState)
	if err != nil {
		t.logger.WarnContext(ctx, "apply match update failed",
			"match_id", delta.MatchUUID,
			"error", errors.Mark(err, ErrLookup),
		)
		return
	}
	t.attrs = attrs
	t.status = ticker.ClassifyState(&delta.MatchState)
}

func (t *TeamTracker) applyOverview(ctx context.Context, doc *ticker.Overview) {
	team, found := t.resolveTeam(doc)
	if !found {
		t.markNotFound(ctx, doc, ticker.Team{ID: t.cfg.TeamID, Name: t.cfg.TeamName})
		return
	}

	match, ok := ticker.SelectCurrentMatch(doc, ticker.ListMatches(doc, team.ID), t.now())
	if !ok {
		t.markNotFound(ctx, doc, team)
		return
	}

	attrs, err := t.projector.ProjectMatch(ticker.NewAttributes(t.cfg.Region), doc, match, team)
	if err != nil {
		t.logger.WarnContext(ctx, "project match failed",
			"match_id", match.ID,
			"error", errors.Mark(err, ErrLookup),
		)
	}
	status := ticker.Classify(doc, match)

	t.mu.Lock()
	previous := t.match.ID
	t.status = status
	t.attrs = attrs
	t.match = match
	t.hasMatch = true
	t.kickoff = match.Kickoff(time.UTC)
	t.suggested = false
	t.mu.Unlock()

	if previous != match.ID {
		t.logger.InfoContext(ctx, "tracking match",
			"match_id", match.ID,
			"team_id", team.ID,
			"state", string(status),
		)
	}
}

func (t *TeamTracker) markNotFound(ctx context.Context, doc *ticker.Overview, team ticker.Team) {
	attrs := t.projector.ProjectTeam(ticker.NewAttributes(t.cfg.Region), doc, team, ticker.StatusNotFound)

	t.mu.Lock()
	t.status = ticker.StatusNotFound
	t.attrs = attrs
	t.match = ticker.Match{}
	t.hasMatch = false
	t.kickoff = time.Time{}
	warn := !t.suggested
	t.suggested = true
	t.mu.Unlock()

	if !warn {
		return
	}
	t.logger.WarnContext(ctx, "team not found in overview",
		"team_id", t.cfg.TeamID,
		"team_name", t.cfg.TeamName,
		"league_name", t.cfg.LeagueName,
		"suggestions", ticker.SuggestTeamNames(doc, t.cfg.TeamName, t.cfg.LeagueName, suggestionLimit),
	)
}

// resolveTeam prefers the configured id and falls back to the name. When a
// name matches several teams the first one with matches wins. LeagueID and
// Gender, when set, restrict which leagues count.
func (t *TeamTracker) resolveTeam(doc *ticker.Overview) (ticker.Team, bool) {
	if t.cfg.TeamID != "" {
		if team, league, ok := ticker.FindTeam(doc, t.cfg.TeamID); ok && t.leagueAllowed(league) {
			return team, true
		}
	}
	if t.cfg.TeamName == "" {
		return ticker.Team{}, false
	}

	var ids []string
	for _, teamID := range ticker.FindTeamIDs(doc, t.cfg.TeamName, t.cfg.LeagueName) {
		if _, league, ok := ticker.FindTeam(doc, teamID); ok && t.leagueAllowed(league) {
			ids = append(ids, teamID)
		}
	}
	if len(ids) == 0 {
		return ticker.Team{}, false
	}
	pick := ids[0]
	for _, teamID := range ids {
		if len(ticker.ListMatches(doc, teamID)) > 0 {
			pick = teamID
			break
		}
	}
	team, _, ok := ticker.FindTeam(doc, pick)
	return team, ok
}

func (t *TeamTracker) leagueAllowed(league ticker.League) bool {
	if t.cfg.LeagueID != "" && league.ID != t.cfg.LeagueID {
		return false
	}
	return t.cfg.Gender == "" || strings.EqualFold(league.Gender, t.cfg.Gender)
}

// Interest reports how closely the region stream must be watched for this
// tracker's match.
func (t *TeamTracker) Interest(now time.Time) ticker.Interest {
	t.mu.RLock()
	status, kickoff := t.status, t.kickoff
	t.mu.RUnlock()
	return ticker.InterestFor(status, kickoff, now, t.window)
}

// Available mirrors whether the region's last refresh succeeded.
func (t *TeamTracker) Available() bool {
	t.mu.RLock()
	source := t.source
	t.mu.RUnlock()
	return source != nil && source.LastUpdateSuccess()
}

func (t *TeamTracker) State() TrackerState {
	available := t.Available()
	interest := t.Interest(t.now())

	t.mu.RLock()
	defer t.mu.RUnlock()
	return TrackerState{
		ID:         t.id,
		Name:       t.cfg.Name,
		Region:     t.cfg.Region,
		State:      t.status,
		Available:  available,
		Interest:   interest.String(),
		Attributes: t.attrs,
	}
}
