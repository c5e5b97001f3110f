package ticker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	Attribution = "Data provided by sams-ticker"
	Sport       = "volleyball"

	Home = "home"
	Away = "away"
)

var DefaultColors = []string{"#ffffff", "#000000"}

// Attributes is the flattened state a tracker exposes for one match.
// Optional values stay nil when the document does not carry them.
type Attributes struct {
	Attribution     string    `json:"attribution"`
	Sport           string    `json:"sport"`
	AssociationLogo string    `json:"association_logo,omitempty"`
	League          string    `json:"league,omitempty"`
	LastUpdate      time.Time `json:"last_update"`
	MatchID         string    `json:"match_id,omitempty"`

	TeamName   string   `json:"team_name,omitempty"`
	TeamAbbr   string   `json:"team_abbr,omitempty"`
	TeamID     string   `json:"team_id,omitempty"`
	TeamLogo   string   `json:"team_logo,omitempty"`
	TeamColors []string `json:"team_colors,omitempty"`
	TeamRecord *string  `json:"team_record"`
	TeamRank   *int     `json:"team_rank"`

	TeamHomeAway     string `json:"team_homeaway,omitempty"`
	OpponentHomeAway string `json:"opponent_homeaway,omitempty"`
	TeamNum          Side   `json:"team_num,omitempty"`
	OpponentNum      Side   `json:"opponent_num,omitempty"`

	OpponentName   string   `json:"opponent_name,omitempty"`
	OpponentAbbr   string   `json:"opponent_abbr,omitempty"`
	OpponentID     string   `json:"opponent_id,omitempty"`
	OpponentLogo   string   `json:"opponent_logo,omitempty"`
	OpponentColors []string `json:"opponent_colors,omitempty"`
	OpponentRecord *string  `json:"opponent_record"`
	OpponentRank   *int     `json:"opponent_rank"`

	EventName *string    `json:"event_name"`
	Venue     *string    `json:"venue"`
	Location  *string    `json:"location"`
	Quarter   *string    `json:"quarter"`
	Date      *time.Time `json:"date"`
	KickoffIn string     `json:"kickoff_in,omitempty"`

	Clock           string   `json:"clock"`
	LastPlay        string   `json:"last_play,omitempty"`
	TeamScore       *int     `json:"team_score"`
	OpponentScore   *int     `json:"opponent_score"`
	TeamSetsWon     *int     `json:"team_sets_won"`
	OpponentSetsWon *int     `json:"opponent_sets_won"`
	TeamWinner      *bool    `json:"team_winner"`
	OpponentWinner  *bool    `json:"opponent_winner"`
	MatchSetsPoints [][3]int `json:"match_sets_points,omitempty"`
}

// NewAttributes returns the static part every tracker starts from.
func NewAttributes(region string) Attributes {
	return Attributes{
		Attribution:     Attribution,
		Sport:           Sport,
		AssociationLogo: RegionLogo(region),
	}
}

// Projector derives Attributes from overview documents. Now and Location
// are injectable so projections are reproducible in tests.
type Projector struct {
	Locale   string
	Location *time.Location
	Now      func() time.Time
}

func NewProjector(locale string, loc *time.Location) Projector {
	if loc == nil {
		loc = time.Local
	}
	return Projector{Locale: locale, Location: loc, Now: time.Now}
}

func (p Projector) now() time.Time {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return now().In(p.location())
}

func (p Projector) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// ProjectTeam fills the team half of attrs. Team names fall back to the
// full name when the team could not be matched in the document.
func (p Projector) ProjectTeam(attrs Attributes, doc *Overview, team Team, status Status) Attributes {
	attrs.TeamRecord, attrs.TeamRank = nil, nil
	if _, league, ok := FindTeam(doc, team.ID); ok {
		attrs.League = league.Name
		attrs.TeamRecord, attrs.TeamRank = rankingOf(league, team.ID)
	}
	attrs.LastUpdate = p.now()

	attrs.TeamName = team.Name
	if status == StatusNotFound {
		attrs.TeamAbbr = team.Name
	} else {
		attrs.TeamAbbr = team.Abbreviation()
	}
	attrs.TeamID = team.ID
	attrs.TeamLogo = team.LogoImage200
	attrs.TeamColors = append([]string(nil), DefaultColors...)
	return attrs
}

// ProjectMatch derives the full attribute set for match as seen by team.
// On a malformed state the attributes gathered so far are returned along
// with the error.
func (p Projector) ProjectMatch(attrs Attributes, doc *Overview, match Match, team Team) (Attributes, error) {
	status := Classify(doc, match)
	attrs.MatchID = match.ID
	attrs = p.ProjectTeam(attrs, doc, team, status)

	teamSide, ok := match.SideOf(team.ID)
	if !ok {
		return attrs, errors.Newf("team %s does not play match %s", team.ID, match.ID)
	}
	attrs.TeamNum = teamSide
	attrs.OpponentNum = teamSide.Opposite()
	if teamSide == SideTeam1 {
		attrs.TeamHomeAway, attrs.OpponentHomeAway = Home, Away
	} else {
		attrs.TeamHomeAway, attrs.OpponentHomeAway = Away, Home
	}

	attrs.OpponentRecord, attrs.OpponentRank = nil, nil
	opponent, league, found := FindTeam(doc, match.TeamOn(attrs.OpponentNum))
	if found {
		attrs.OpponentRecord, attrs.OpponentRank = rankingOf(league, opponent.ID)
		attrs.OpponentName = opponent.Name
		attrs.OpponentAbbr = opponent.Abbreviation()
		attrs.OpponentID = opponent.ID
		attrs.OpponentLogo = opponent.LogoImage200
	} else {
		attrs.OpponentName, attrs.OpponentAbbr, attrs.OpponentLogo = "", "", ""
		attrs.OpponentID = match.TeamOn(attrs.OpponentNum)
	}
	attrs.OpponentColors = append([]string(nil), DefaultColors...)

	attrs.EventName, attrs.Venue, attrs.Location, attrs.Quarter = nil, nil, nil, nil
	kickoff := match.Kickoff(p.location())
	attrs.Date = &kickoff
	attrs.KickoffIn = HumanizeKickoff(kickoff, p.now(), p.Locale)

	state, ok := doc.MatchState(match.ID)
	if !ok {
		attrs.Clock = ""
		return attrs, nil
	}
	return fillMatchState(attrs, state, status)
}

// ApplyIncrementalUpdate refreshes score, clock and winner fields from a
// single state delta, reusing the side assignment already in attrs.
func (p Projector) ApplyIncrementalUpdate(attrs Attributes, state MatchState) (Attributes, error) {
	attrs, err := fillMatchState(attrs, state, ClassifyState(&state))
	attrs.LastUpdate = p.now()
	return attrs, err
}

func fillMatchState(attrs Attributes, state MatchState, status Status) (Attributes, error) {
	teamSide, opponentSide := attrs.TeamNum, attrs.OpponentNum
	if !teamSide.Valid() || !opponentSide.Valid() {
		return attrs, errors.Newf("invalid side assignment %q/%q", teamSide, opponentSide)
	}

	attrs.TeamWinner, attrs.OpponentWinner = nil, nil
	teamSets, _ := state.SetPoints.Get(teamSide)
	opponentSets, _ := state.SetPoints.Get(opponentSide)
	attrs.TeamSetsWon, attrs.OpponentSetsWon = intPtr(teamSets), intPtr(opponentSets)

	attrs.MatchSetsPoints = make([][3]int, 0, len(state.MatchSets))
	for _, set := range state.MatchSets {
		own, _ := set.SetScore.Get(teamSide)
		other, _ := set.SetScore.Get(opponentSide)
		attrs.MatchSetsPoints = append(attrs.MatchSetsPoints, [3]int{own, set.SetNumber.Int(), other})
	}

	switch status {
	case StatusPost:
		attrs.TeamScore, attrs.OpponentScore = intPtr(teamSets), intPtr(opponentSets)
		attrs.TeamWinner = boolPtr(teamSets > opponentSets)
		attrs.OpponentWinner = boolPtr(opponentSets > teamSets)
		attrs.Clock = setHistory(state.MatchSets, teamSide, opponentSide)
	case StatusInProgress:
		if len(state.MatchSets) == 0 {
			attrs.TeamScore, attrs.OpponentScore = intPtr(0), intPtr(0)
			attrs.Clock = ""
			attrs.LastPlay = ""
			return attrs, nil
		}
		current := state.MatchSets[len(state.MatchSets)-1]
		own, _ := current.SetScore.Get(teamSide)
		other, _ := current.SetScore.Get(opponentSide)
		attrs.TeamScore, attrs.OpponentScore = intPtr(own), intPtr(other)
		attrs.Clock = strconv.Itoa(current.SetNumber.Int())
		attrs.LastPlay = setHistory(state.MatchSets[:len(state.MatchSets)-1], teamSide, opponentSide)
	}
	return attrs, nil
}

// setHistory renders sets as "25 (1) 20 | 22 (2) 25" from the team's view.
func setHistory(sets []MatchSet, teamSide, opponentSide Side) string {
	parts := make([]string, 0, len(sets))
	for _, set := range sets {
		own, _ := set.SetScore.Get(teamSide)
		other, _ := set.SetScore.Get(opponentSide)
		parts = append(parts, fmt.Sprintf("%d (%d) %d", own, set.SetNumber.Int(), other))
	}
	return strings.Join(parts, " | ")
}

func rankingOf(league League, teamID string) (*string, *int) {
	for _, entry := range league.Rankings.FullRankings {
		if entry.Team.ID != teamID {
			continue
		}
		record := fmt.Sprintf("%d - %d", entry.ScoreDetails.MatchesPlayed.Int(), entry.ScoreDetails.WinScore.Int())
		return &record, intPtr(entry.RankingPosition.Int())
	}
	return nil, nil
}

func intPtr(v int) *int {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}
