package stats

import (
	"math"
	"sort"
	"time"
)

// Period selects the time window for aggregate statistics.
type Period string

const (
	AllTime     Period = "all-time"
	YearToDate  Period = "year-to-date"
	MonthToDate Period = "month-to-date"
	WeekToDate  Period = "week-to-date"
)

// epsilon absorbs floating-point noise in profit sums, so results like
// "-0" or "0.00000000003" report as exactly zero.
const epsilon = 1e-10

// ParsePeriod maps a wire string to a Period. Unknown values fall back to
// all-time, mirroring the default period of the dashboard.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case YearToDate, MonthToDate, WeekToDate:
		return Period(s)
	default:
		return AllTime
	}
}

// Day is a single journaled trading day, the unit of aggregation.
type Day struct {
	Date   time.Time
	Profit float64
	Trades int
}

// Streak is a maximal run of consecutive profitable trading days.
type Streak struct {
	Days  int       `json:"days"`
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Summary holds aggregate statistics for a filtered set of trading days.
type Summary struct {
	Profit        float64 `json:"profit"`
	Trades        int     `json:"trades"`
	TradingDays   int     `json:"trading_days"`
	WinRate       float64 `json:"win_rate"`
	LongestStreak *Streak `json:"longest_streak,omitempty"`
}

// Calculate reduces an unordered set of trading days into summary statistics
// for the given period, relative to now. It is a pure function: no I/O, no
// mutation of its inputs.
func Calculate(days []Day, period Period, now time.Time) Summary {
	filtered := filterPeriod(days, period, now)
	s := reduce(filtered)
	s.LongestStreak = LongestWinningStreak(filtered)
	return s
}

// CalculateMonth reduces the days falling in the month containing ref.
// Used for the calendar/chart header; no streak is computed.
func CalculateMonth(days []Day, ref time.Time) Summary {
	var filtered []Day
	for _, d := range days {
		if d.Date.Year() == ref.Year() && d.Date.Month() == ref.Month() {
			filtered = append(filtered, d)
		}
	}
	return reduce(filtered)
}

// LongestWinningStreak finds the longest run of consecutive profitable days
// in date order. "Consecutive" means adjacent in the sorted list of recorded
// days: a calendar gap with no record does not break a run, only a recorded
// day with profit <= 0 does. Returns nil when no profitable day exists.
func LongestWinningStreak(days []Day) *Streak {
	if len(days) == 0 {
		return nil
	}

	sorted := make([]Day, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var (
		current, longest int
		currentStart     time.Time
		start, end       time.Time
	)
	for _, d := range sorted {
		if d.Profit > 0 {
			if current == 0 {
				currentStart = d.Date
			}
			current++
			// >= so equal-length runs resolve to the most recent one.
			if current >= longest {
				longest = current
				start = currentStart
				end = d.Date
			}
		} else {
			current = 0
		}
	}

	if longest == 0 {
		return nil
	}
	return &Streak{Days: longest, Start: start, End: end}
}

func reduce(days []Day) Summary {
	var s Summary
	profitable := 0
	for _, d := range days {
		s.Profit += d.Profit
		s.Trades += d.Trades
		if d.Profit > 0 {
			profitable++
		}
	}
	s.TradingDays = len(days)
	if s.TradingDays > 0 {
		s.WinRate = float64(profitable) / float64(s.TradingDays) * 100
	}
	if math.Abs(s.Profit) < epsilon {
		s.Profit = 0
	}
	return s
}

// filterPeriod keeps the days on or after the period's start boundary.
// The boundary day itself counts: same-day OR strictly after.
func filterPeriod(days []Day, period Period, now time.Time) []Day {
	var start time.Time
	switch period {
	case YearToDate:
		start = startOfYear(now)
	case MonthToDate:
		start = startOfMonth(now)
	case WeekToDate:
		start = startOfWeek(now)
	default:
		out := make([]Day, len(days))
		copy(out, days)
		return out
	}

	var out []Day
	for _, d := range days {
		if sameDay(d.Date, start) || d.Date.After(start) {
			out = append(out, d)
		}
	}
	return out
}

func startOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// startOfWeek uses Sunday as the first day of the week.
func startOfWeek(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -int(t.Weekday()))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
