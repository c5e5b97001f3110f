package ticker

import (
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const recentlyFinishedWindow = 24 * time.Hour

// LeagueSummary is the selectable view of a league.
type LeagueSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
}

// ListLeagues returns every League-class series, optionally filtered by
// gender (case-insensitive). The result is ordered by name.
func ListLeagues(doc *Overview, gender string) []LeagueSummary {
	out := make([]LeagueSummary, 0)
	for _, id := range doc.leagueIDs() {
		league := doc.MatchSeries[id]
		if league.Class != ClassLeague {
			continue
		}
		if gender != "" && !strings.EqualFold(league.Gender, gender) {
			continue
		}
		out = append(out, LeagueSummary{ID: id, Name: league.Name, Gender: league.Gender})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// League looks up a series by id.
func (d *Overview) League(leagueID string) (League, bool) {
	if !d.IsOverview() {
		return League{}, false
	}
	league, ok := d.MatchSeries[leagueID]
	return league, ok
}

// ListTeams maps team name to team id for one league.
func ListTeams(doc *Overview, leagueID string) (map[string]string, bool) {
	league, ok := doc.League(leagueID)
	if !ok {
		return nil, false
	}
	teams := make(map[string]string, len(league.Teams))
	for _, team := range league.Teams {
		teams[team.Name] = team.ID
	}
	return teams, true
}

// FindTeam returns the team with teamID and the league that owns it.
func FindTeam(doc *Overview, teamID string) (Team, League, bool) {
	for _, id := range doc.leagueIDs() {
		league := doc.MatchSeries[id]
		for _, team := range league.Teams {
			if team.ID == teamID {
				return team, league, true
			}
		}
	}
	return Team{}, League{}, false
}

// FindTeamIDs resolves a team name inside leagues called leagueName. Clubs
// share names across divisions, so every hit is returned.
func FindTeamIDs(doc *Overview, name, leagueName string) []string {
	var ids []string
	for _, id := range doc.leagueIDs() {
		league := doc.MatchSeries[id]
		if league.Name != leagueName {
			continue
		}
		for _, team := range league.Teams {
			if team.Name == name {
				ids = append(ids, team.ID)
			}
		}
	}
	return ids
}

// ListMatches returns all matches the team plays in, in document order.
func ListMatches(doc *Overview, teamID string) []Match {
	if !doc.IsOverview() {
		return nil
	}
	var matches []Match
	for _, day := range doc.MatchDays {
		for _, match := range day.Matches {
			if match.Team1 == teamID || match.Team2 == teamID {
				matches = append(matches, match)
			}
		}
	}
	return matches
}

// SelectCurrentMatch picks the match a tracker cares about right now:
// a running match, then one finished within the last day, then the next
// kickoff, and finally the last match in the list. It only reports false
// for an empty list.
func SelectCurrentMatch(doc *Overview, matches []Match, now time.Time) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	for _, match := range matches {
		if Classify(doc, match) == StatusInProgress {
			return match, true
		}
	}
	for _, match := range matches {
		if Classify(doc, match) != StatusPost {
			continue
		}
		if now.Sub(match.Kickoff(time.UTC)) < recentlyFinishedWindow {
			return match, true
		}
	}

	var (
		next  Match
		found bool
		best  time.Duration
	)
	for _, match := range matches {
		if Classify(doc, match) != StatusPre {
			continue
		}
		untilKickoff := match.Kickoff(time.UTC).Sub(now)
		if untilKickoff < 0 {
			continue
		}
		if !found || untilKickoff < best {
			next, best, found = match, untilKickoff, true
		}
	}
	if found {
		return next, true
	}
	return matches[len(matches)-1], true
}

// SuggestTeamNames ranks the teams of leagueName by fuzzy distance to name.
// An empty leagueName searches every league.
func SuggestTeamNames(doc *Overview, name, leagueName string, limit int) []string {
	var candidates []string
	seen := make(map[string]struct{})
	for _, id := range doc.leagueIDs() {
		league := doc.MatchSeries[id]
		if leagueName != "" && league.Name != leagueName {
			continue
		}
		for _, team := range league.Teams {
			if _, ok := seen[team.Name]; ok {
				continue
			}
			seen[team.Name] = struct{}{}
			candidates = append(candidates, team.Name)
		}
	}
	if len(candidates) == 0 || name == "" {
		return nil
	}

	ranks := fuzzy.RankFindNormalizedFold(name, candidates)
	if len(ranks) == 0 {
		// Fall back to the reverse direction so partial names like
		// "Freiburg" still find "FT 1844 Freiburg 4".
		for _, candidate := range candidates {
			if fuzzy.MatchNormalizedFold(candidate, name) {
				ranks = append(ranks, fuzzy.Rank{Source: candidate, Target: candidate, Distance: len(candidate)})
			}
		}
	}
	sort.Sort(ranks)

	out := make([]string, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, rank.Target)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
