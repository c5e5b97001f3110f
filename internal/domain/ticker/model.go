package ticker

import (
	"bytes"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	ClassLeague = "League"

	GenderFemale = "FEMALE"
	GenderMale   = "MALE"
	GenderMixed  = "MIXED"
)

// Number accepts JSON numbers as well as numeric strings; the ticker backend
// is not consistent about which one it sends.
type Number int64

func (n *Number) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*n = 0
		return nil
	}
	if raw[0] == '"' {
		unquoted, err := strconv.Unquote(string(raw))
		if err != nil {
			return errors.Wrapf(err, "decode number %s", raw)
		}
		raw = []byte(unquoted)
		if len(bytes.TrimSpace(raw)) == 0 {
			*n = 0
			return nil
		}
	}
	if v, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		*n = Number(v)
		return nil
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return errors.Wrapf(err, "decode number %s", raw)
	}
	*n = Number(math.Round(f))
	return nil
}

func (n Number) Int() int {
	return int(n)
}

// Side names one of the two match participants as used in score maps.
type Side string

const (
	SideTeam1 Side = "team1"
	SideTeam2 Side = "team2"
)

func (s Side) Opposite() Side {
	if s == SideTeam1 {
		return SideTeam2
	}
	return SideTeam1
}

func (s Side) Valid() bool {
	return s == SideTeam1 || s == SideTeam2
}

// SidePair holds one value per match side.
type SidePair struct {
	Team1 Number `json:"team1"`
	Team2 Number `json:"team2"`
}

func (p SidePair) Get(side Side) (int, bool) {
	switch side {
	case SideTeam1:
		return p.Team1.Int(), true
	case SideTeam2:
		return p.Team2.Int(), true
	default:
		return 0, false
	}
}

// Overview is the full per-region snapshot served by the ticker backend.
type Overview struct {
	MatchSeries map[string]League     `json:"matchSeries"`
	MatchDays   []MatchDay            `json:"matchDays"`
	MatchStates map[string]MatchState `json:"matchStates"`
}

// League is one entry of matchSeries. Only class "League" entries are
// selectable competitions.
type League struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Gender   string   `json:"gender"`
	Class    string   `json:"class"`
	Rankings Rankings `json:"rankings"`
	Teams    []Team   `json:"teams"`
}

type Rankings struct {
	FullRankings []RankingEntry `json:"fullRankings"`
}

type RankingEntry struct {
	Team            TeamRef      `json:"team"`
	ScoreDetails    ScoreDetails `json:"scoreDetails"`
	RankingPosition Number       `json:"rankingPosition"`
}

type TeamRef struct {
	ID string `json:"id"`
}

type ScoreDetails struct {
	MatchesPlayed Number `json:"matchesPlayed"`
	WinScore      Number `json:"winScore"`
}

type Team struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ShortName    string `json:"shortName"`
	Letter       string `json:"letter"`
	LogoImage200 string `json:"logoImage200"`
}

// Abbreviation prefers the short name and falls back to the letter code.
func (t Team) Abbreviation() string {
	if len(t.ShortName) > 0 {
		return t.ShortName
	}
	return t.Letter
}

type MatchDay struct {
	Matches []Match `json:"matches"`
}

type Match struct {
	ID    string `json:"id"`
	Team1 string `json:"team1"`
	Team2 string `json:"team2"`
	Date  Number `json:"date"`
}

// Kickoff converts the epoch-millisecond match date into loc.
func (m Match) Kickoff(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(int64(m.Date)).In(loc)
}

// SideOf reports which side teamID plays on.
func (m Match) SideOf(teamID string) (Side, bool) {
	switch teamID {
	case m.Team1:
		return SideTeam1, true
	case m.Team2:
		return SideTeam2, true
	default:
		return "", false
	}
}

func (m Match) TeamOn(side Side) string {
	if side == SideTeam1 {
		return m.Team1
	}
	return m.Team2
}

type MatchState struct {
	Started   bool       `json:"started"`
	Finished  bool       `json:"finished"`
	MatchSets []MatchSet `json:"matchSets"`
	SetPoints SidePair   `json:"setPoints"`
}

type MatchSet struct {
	SetNumber Number   `json:"setNumber"`
	SetScore  SidePair `json:"setScore"`
}

// IsOverview is the structural discriminator for full snapshots.
func (d *Overview) IsOverview() bool {
	return d != nil && d.MatchDays != nil
}

func (d *Overview) MatchState(matchID string) (MatchState, bool) {
	if !d.IsOverview() {
		return MatchState{}, false
	}
	state, ok := d.MatchStates[matchID]
	return state, ok
}

// WithMatchState returns a copy of d where matchID carries state. The
// receiver is left untouched so published snapshots stay immutable.
func (d *Overview) WithMatchState(matchID string, state MatchState) *Overview {
	if d == nil {
		return nil
	}
	out := *d
	out.MatchStates = make(map[string]MatchState, len(d.MatchStates)+1)
	for id, item := range d.MatchStates {
		out.MatchStates[id] = item
	}
	out.MatchStates[matchID] = state
	return &out
}

// leagueIDs returns the matchSeries keys in a stable order.
func (d *Overview) leagueIDs() []string {
	if !d.IsOverview() {
		return nil
	}
	ids := make([]string, 0, len(d.MatchSeries))
	for id := range d.MatchSeries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Overview) normalize() {
	for id, league := range d.MatchSeries {
		if league.ID == "" {
			league.ID = id
			d.MatchSeries[id] = league
		}
	}
}
