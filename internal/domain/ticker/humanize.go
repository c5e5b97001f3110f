package ticker

import (
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

type phrases struct {
	now     string
	seconds string
	minute  string
	minutes string
	hour    string
	hours   string
	day     string
	days    string
	week    string
	weeks   string
	month   string
	months  string
	year    string
	years   string
}

func (p phrases) magnitudes() []humanize.RelTimeMagnitude {
	return []humanize.RelTimeMagnitude{
		{D: 10 * time.Second, Format: p.now, DivBy: time.Second},
		{D: 45 * time.Second, Format: p.seconds, DivBy: time.Second},
		{D: 90 * time.Second, Format: p.minute, DivBy: time.Minute},
		{D: 45 * time.Minute, Format: p.minutes, DivBy: time.Minute},
		{D: 2 * time.Hour, Format: p.hour, DivBy: time.Hour},
		{D: day, Format: p.hours, DivBy: time.Hour},
		{D: 2 * day, Format: p.day, DivBy: day},
		{D: week, Format: p.days, DivBy: day},
		{D: 2 * week, Format: p.week, DivBy: week},
		{D: month, Format: p.weeks, DivBy: week},
		{D: 2 * month, Format: p.month, DivBy: month},
		{D: year, Format: p.months, DivBy: month},
		{D: 2 * year, Format: p.year, DivBy: year},
		{D: math.MaxInt64, Format: p.years, DivBy: year},
	}
}

type relativeLocale struct {
	future []humanize.RelTimeMagnitude
	past   []humanize.RelTimeMagnitude
}

var relativeLocales = map[string]relativeLocale{
	"en": {
		future: phrases{
			now: "just now", seconds: "in %d seconds",
			minute: "in a minute", minutes: "in %d minutes",
			hour: "in an hour", hours: "in %d hours",
			day: "in a day", days: "in %d days",
			week: "in a week", weeks: "in %d weeks",
			month: "in a month", months: "in %d months",
			year: "in a year", years: "in %d years",
		}.magnitudes(),
		past: phrases{
			now: "just now", seconds: "%d seconds ago",
			minute: "a minute ago", minutes: "%d minutes ago",
			hour: "an hour ago", hours: "%d hours ago",
			day: "a day ago", days: "%d days ago",
			week: "a week ago", weeks: "%d weeks ago",
			month: "a month ago", months: "%d months ago",
			year: "a year ago", years: "%d years ago",
		}.magnitudes(),
	},
	"de": {
		future: phrases{
			now: "gerade eben", seconds: "in %d Sekunden",
			minute: "in einer Minute", minutes: "in %d Minuten",
			hour: "in einer Stunde", hours: "in %d Stunden",
			day: "in einem Tag", days: "in %d Tagen",
			week: "in einer Woche", weeks: "in %d Wochen",
			month: "in einem Monat", months: "in %d Monaten",
			year: "in einem Jahr", years: "in %d Jahren",
		}.magnitudes(),
		past: phrases{
			now: "gerade eben", seconds: "vor %d Sekunden",
			minute: "vor einer Minute", minutes: "vor %d Minuten",
			hour: "vor einer Stunde", hours: "vor %d Stunden",
			day: "vor einem Tag", days: "vor %d Tagen",
			week: "vor einer Woche", weeks: "vor %d Wochen",
			month: "vor einem Monat", months: "vor %d Monaten",
			year: "vor einem Jahr", years: "vor %d Jahren",
		}.magnitudes(),
	},
}

// normalizeLocale reduces tags like "de-DE" or "de_AT" to a supported
// language, defaulting to English.
func normalizeLocale(locale string) string {
	lang := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	if _, ok := relativeLocales[lang]; ok {
		return lang
	}
	return "en"
}

// HumanizeKickoff renders the distance between now and kickoff, e.g.
// "in 2 hours" or "vor 3 Tagen".
func HumanizeKickoff(kickoff, now time.Time, locale string) string {
	table := relativeLocales[normalizeLocale(locale)]
	magnitudes := table.future
	if kickoff.Before(now) {
		magnitudes = table.past
	}
	return humanize.CustomRelTime(now, kickoff, "", "", magnitudes)
}
