package ticker

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func loadOverview(t *testing.T) *Overview {
	t.Helper()

	raw, err := os.ReadFile(filepath.Join("testdata", "overview.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	doc, err := DecodeOverview(raw)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return doc
}

func matchByID(t *testing.T, doc *Overview, id string) Match {
	t.Helper()

	for _, day := range doc.MatchDays {
		for _, match := range day.Matches {
			if match.ID == id {
				return match
			}
		}
	}
	t.Fatalf("match %s not in fixture", id)
	return Match{}
}

func TestListLeagues(t *testing.T) {
	t.Parallel()

	doc := loadOverview(t)

	all := ListLeagues(doc, "")
	want := []LeagueSummary{
		{ID: "league-ol-m", Name: "Oberliga Herren", Gender: GenderMale},
		{ID: "league-vl-f", Name: "Verbandsliga Frauen", Gender: GenderFemale},
	}
	if !reflect.DeepEqual(all, want) {
		t.Fatalf("unexpected leagues: got=%+v want=%+v", all, want)
	}

	female := ListLeagues(doc, "female")
	if len(female) != 1 || female[0].ID != "league-vl-f" {
		t.Fatalf("unexpected female leagues: %+v", female)
	}

	if got := ListLeagues(&Overview{}, ""); len(got) != 0 {
		t.Fatalf("expected no leagues without matchDays, got=%+v", got)
	}
}

func TestListTeams(t *testing.T) {
	t.Parallel()

	doc := loadOverview(t)

	teams, ok := ListTeams(doc, "league-ol-m")
	if !ok {
		t.Fatalf("expected league to exist")
	}
	want := map[string]string{"TSG Ulm": "team-ulm", "USC Konstanz": "team-konstanz"}
	if !reflect.DeepEqual(teams, want) {
		t.Fatalf("unexpected teams: got=%v want=%v", teams, want)
	}

	if _, ok := ListTeams(doc, "missing"); ok {
		t.Fatalf("expected unknown league to be reported")
	}
}

func TestFindTeamRoundTrip(t *testing.T) {
	t.Parallel()

	doc := loadOverview(t)
	for leagueID, league := range doc.MatchSeries {
		for _, team := range league.Teams {
			gotTeam, gotLeague, ok := FindTeam(doc, team.ID)
			if !ok {
				t.Fatalf("team %s not found", team.ID)
			}
			if gotTeam != team {
				t.Fatalf("unexpected team: got=%+v want=%+v", gotTeam, team)
			}
			if gotLeague.ID != leagueID {
				t.Fatalf("unexpected league for %s: got=%s want=%s", team.ID, gotLeague.ID, leagueID)
			}
		}
	}

	if _, _, ok := FindTeam(doc, "nope"); ok {
		t.Fatalf("expected missing team to be reported")
	}
	if _, _, ok := FindTeam(nil, "team-ulm"); ok {
		t.Fatalf("expected nil document to find nothing")
	}
}

func TestFindTeamIDsScopesByLeagueName(t *testing.T) {
	t.Parallel()

	doc := loadOverview(t)

	got := FindTeamIDs(doc, "FT 1844 Freiburg 4", "Verbandsliga Frauen")
	if !reflect.DeepEqual(got, []string{"team-freiburg"}) {
		t.Fatalf("unexpected ids: %v", got)
	}
	got = FindTeamIDs(doc, "FT 1844 Freiburg 4", "Pokal Baden")
	if !reflect.DeepEqual(got, []string{"team-freiburg-cup"}) {
		t.Fatalf("unexpected cup ids: %v", got)
	}
	if got := FindTeamIDs(doc, "FT 1844 Freiburg 4", "Oberliga Herren"); len(got) != 0 {
		t.Fatalf("expected no ids, got=%v", got)
	}
}

func TestListMatches(t *testing.T) {
	t.Parallel()

	doc := loadOverview(t)
	matches := ListMatches(doc, "team-freiburg")

	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.ID)
	}
	if !reflect.DeepEqual(ids, []string{"match-1", "match-2", "match-3"}) {
		t.Fatalf("unexpected matches: %v", ids)
	}
}

func TestClassifyTruthTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		state *MatchState
		want  Status
	}{
		{name: "missing", state: nil, want: StatusPre},
		{name: "not started", state: &MatchState{}, want: StatusPre},
		{name: "running", state: &MatchState{Started: true}, want: StatusInProgress},
		{name: "finished", state: &MatchState{Started: true, Finished: true}, want: StatusPost},
		{name: "finished without start flag", state: &MatchState{Finished: true}, want: StatusPost},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyState(tc.state); got != tc.want {
				t.Fatalf("unexpected status: got=%s want=%s", got, tc.want)
			}
			if again := ClassifyState(tc.state); again != tc.want {
				t.Fatalf("classification not stable: got=%s", again)
			}
		})
	}

	doc := loadOverview(t)
	for id, want := range map[string]Status{
		"match-1": StatusPost,
		"match-2": StatusInProgress,
		"match-3": StatusPre,
		"match-4": StatusPre,
	} {
		if got := Classify(doc, matchByID(t, doc, id)); got != want {
			t.Fatalf("unexpected status for %s: got=%s want=%s", id, got, want)
		}
	}
}

func TestSelectCurrentMatch(t *testing.T) {
	t.Parallel()

	doc := loadOverview(t)
	matches := ListMatches(doc, "team-freiburg")
	secondFinished := doc.WithMatchState("match-2", MatchState{Started: true, Finished: true})

	t.Run("prefers running match", func(t *testing.T) {
		now := time.Date(2024, time.October, 19, 15, 0, 0, 0, time.UTC)
		got, ok := SelectCurrentMatch(doc, matches, now)
		if !ok || got.ID != "match-2" {
			t.Fatalf("unexpected match: got=%s ok=%v", got.ID, ok)
		}
	})

	t.Run("keeps match finished within a day", func(t *testing.T) {
		now := time.Date(2024, time.October, 19, 20, 0, 0, 0, time.UTC)
		got, _ := SelectCurrentMatch(secondFinished, matches, now)
		if got.ID != "match-2" {
			t.Fatalf("unexpected match: got=%s want=match-2", got.ID)
		}
	})

	t.Run("moves on to next kickoff", func(t *testing.T) {
		now := time.Date(2024, time.October, 21, 9, 0, 0, 0, time.UTC)
		got, _ := SelectCurrentMatch(secondFinished, matches, now)
		if got.ID != "match-3" {
			t.Fatalf("unexpected match: got=%s want=match-3", got.ID)
		}
	})

	t.Run("falls back to last element", func(t *testing.T) {
		now := time.Date(2024, time.November, 30, 9, 0, 0, 0, time.UTC)
		input := []Match{matchByID(t, doc, "match-3"), matchByID(t, doc, "match-1")}
		got, ok := SelectCurrentMatch(secondFinished, input, now)
		if !ok || got.ID != "match-1" {
			t.Fatalf("unexpected match: got=%s ok=%v", got.ID, ok)
		}
		if len(input) != 2 {
			t.Fatalf("input list was modified")
		}
	})

	t.Run("empty list", func(t *testing.T) {
		if _, ok := SelectCurrentMatch(doc, nil, time.Now()); ok {
			t.Fatalf("expected no match for empty list")
		}
	})
}

func TestSelectCurrentMatchAlwaysReturnsAnElement(t *testing.T) {
	t.Parallel()

	doc := loadOverview(t)
	matches := ListMatches(doc, "team-freiburg")
	start := time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)

	for offset := time.Duration(0); offset < 60*24*time.Hour; offset += 7 * time.Hour {
		for n := 1; n <= len(matches); n++ {
			got, ok := SelectCurrentMatch(doc, matches[:n], start.Add(offset))
			if !ok {
				t.Fatalf("no match selected for n=%d", n)
			}
			if !containsMatch(matches[:n], got) {
				t.Fatalf("selected match %s not in input", got.ID)
			}
			if n >= 2 && got.ID != "match-2" {
				t.Fatalf("running match must win: got=%s", got.ID)
			}
		}
	}
}

func containsMatch(matches []Match, match Match) bool {
	for _, item := range matches {
		if item == match {
			return true
		}
	}
	return false
}

func TestNearGameScenario(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.October, 26, 12, 30, 0, 0, time.UTC)
	kickoff := now.Add(90 * time.Minute)
	doc := &Overview{
		MatchSeries: map[string]League{
			"baden": {
				ID: "baden", Name: "Baden", Class: ClassLeague,
				Teams: []Team{
					{ID: "ft", Name: "FT 1844 Freiburg 4"},
					{ID: "opp", Name: "TV Bühl 3"},
				},
			},
		},
		MatchDays: []MatchDay{{Matches: []Match{
			{ID: "next", Team1: "ft", Team2: "opp", Date: Number(kickoff.UnixMilli())},
		}}},
		MatchStates: map[string]MatchState{},
	}

	ids := FindTeamIDs(doc, "FT 1844 Freiburg 4", "Baden")
	if len(ids) != 1 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	match, ok := SelectCurrentMatch(doc, ListMatches(doc, ids[0]), now)
	if !ok || match.ID != "next" {
		t.Fatalf("unexpected match: %+v", match)
	}
	if got := InterestFor(Classify(doc, match), match.Kickoff(time.UTC), now, DefaultGameWindow); got != NearGame {
		t.Fatalf("unexpected interest: got=%s want=NEAR_GAME", got)
	}
}

func TestInterestFor(t *testing.T) {
	t.Parallel()

	kickoff := time.Date(2024, time.October, 26, 14, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		status Status
		now    time.Time
		want   Interest
	}{
		{name: "running", status: StatusInProgress, now: kickoff.Add(-10 * time.Hour), want: InGame},
		{name: "days ahead", status: StatusPre, now: kickoff.Add(-48 * time.Hour), want: NoGame},
		{name: "inside pre window", status: StatusPre, now: kickoff.Add(-time.Hour), want: NearGame},
		{name: "finished recently", status: StatusPost, now: kickoff.Add(3 * time.Hour), want: NearGame},
		{name: "finished long ago", status: StatusPost, now: kickoff.Add(5 * time.Hour), want: NoGame},
		{name: "team unknown", status: StatusNotFound, now: kickoff, want: NoGame},
	}
	for _, tc := range cases {
		if got := InterestFor(tc.status, kickoff, tc.now, GameWindow{}); got != tc.want {
			t.Fatalf("%s: got=%s want=%s", tc.name, got, tc.want)
		}
	}
}

func TestSuggestTeamNames(t *testing.T) {
	t.Parallel()

	doc := loadOverview(t)
	got := SuggestTeamNames(doc, "Freiburg", "Verbandsliga Frauen", 3)
	if len(got) == 0 || got[0] != "FT 1844 Freiburg 4" {
		t.Fatalf("unexpected suggestions: %v", got)
	}
	if got := SuggestTeamNames(doc, "Freiburg", "Unknown", 3); len(got) != 0 {
		t.Fatalf("expected no suggestions, got=%v", got)
	}
}

func TestRegionURLs(t *testing.T) {
	t.Parallel()

	if got := StreamURL("wss://backend.sams-ticker.de/", "Baden"); got != "wss://backend.sams-ticker.de/baden" {
		t.Fatalf("unexpected stream url %q", got)
	}
	if got := OverviewURL("https://backend.sams-ticker.de/live/tickers/", "vbl"); got != "https://backend.sams-ticker.de/live/tickers/vbl" {
		t.Fatalf("unexpected overview url %q", got)
	}
	if !IsKnownRegion("VVRP") || IsKnownRegion("atlantis") {
		t.Fatalf("unexpected region membership")
	}
}
