package export

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/anhtuan9622/flippl/internal/stats"
)

// Row is one journaled day in the CSV export.
type Row struct {
	Date   string  `csv:"Date"`
	Profit float64 `csv:"Profit/Loss ($)"`
	Trades int     `csv:"No. of Trades"`
	Result string  `csv:"Win/Loss"`
}

// CSV renders the full record set, one row per day sorted ascending, followed
// by a blank line and a summary line for the selected period. The export has
// no import counterpart.
func CSV(days []stats.Day, period stats.Period, now time.Time) (string, error) {
	sorted := make([]stats.Day, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	rows := make([]Row, len(sorted))
	for i, d := range sorted {
		result := "Loss"
		if d.Profit > 0 {
			result = "Win"
		}
		rows[i] = Row{
			Date:   d.Date.Format("2006-01-02"),
			Profit: d.Profit,
			Trades: d.Trades,
			Result: result,
		}
	}

	body, err := gocsv.MarshalString(&rows)
	if err != nil {
		return "", fmt.Errorf("failed to marshal csv rows: %w", err)
	}

	summary := stats.Calculate(days, period, now)
	return body + "\n" + summaryLine(summary) + "\n", nil
}

// Filename returns the suggested download name for an export generated now.
func Filename(now time.Time) string {
	return "flippl_trades_" + now.Format("2006-01-02") + ".csv"
}

func summaryLine(s stats.Summary) string {
	sign := ""
	if s.Profit < 0 {
		sign = "-"
	}
	amount := strconv.FormatFloat(math.Abs(s.Profit), 'f', -1, 64)
	return fmt.Sprintf(
		"\"Total Profit/Loss: %s$%s, Total Trades: %d, Trading Days: %d, Win Rate: %.0f%%\"",
		sign, amount, s.Trades, s.TradingDays, s.WinRate,
	)
}
