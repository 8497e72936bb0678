package domain

import (
	"sort"
	"time"
)

// TxKind is the type of a ledger mutation.
type TxKind string

const (
	TxLong  TxKind = "LONG"
	TxSell  TxKind = "SELL"
	TxShort TxKind = "SHORT"
	TxCover TxKind = "COVER"
)

// Transaction is one executed ledger mutation, kept in verbose mode.
type Transaction struct {
	ID     string
	At     time.Time
	Ticker int
	Kind   TxKind
	Price  float64
	Qty    int64
	Cash   float64 // balance delta
}

// Mark is a running maximum and when it was reached.
type Mark struct {
	Value float64
	At    time.Time
}

// Result is the end-of-session outcome of one parameter set.
type Result struct {
	Handle        int
	Params        Params
	Balance       float64
	Profit        float64
	RealProfit    float64
	MaxProfit     Mark
	RealMaxProfit Mark
	Halted        bool
	Trades        map[TxKind]int
	Transactions  []Transaction
}

// SortResults orders results by real max profit, best first.
// Ties keep their handle order.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RealMaxProfit.Value > results[j].RealMaxProfit.Value
	})
}

// DayReport is what a run produces for one trading day.
type DayReport struct {
	RunID   string
	Date    time.Time
	Single  bool
	Ticks   int
	Elapsed time.Duration
	Results []Result
}

// SweepRow aggregates one grid tuple across all simulated days.
type SweepRow struct {
	Key             string
	Params          Params
	Days            int
	TotalRealProfit float64
	MeanRealProfit  float64
	BestDay         float64
	WorstDay        float64
	HaltedDays      int
}

// Summarize folds day reports into one row per parameter key,
// ordered by total real profit, best first.
func Summarize(days []DayReport) []SweepRow {
	rows := make(map[string]*SweepRow)
	var order []string
	for _, day := range days {
		for _, r := range day.Results {
			key := r.Params.Key()
			row, ok := rows[key]
			if !ok {
				row = &SweepRow{Key: key, Params: r.Params, BestDay: r.RealProfit, WorstDay: r.RealProfit}
				rows[key] = row
				order = append(order, key)
			}
			row.Days++
			row.TotalRealProfit += r.RealProfit
			row.BestDay = max(row.BestDay, r.RealProfit)
			row.WorstDay = min(row.WorstDay, r.RealProfit)
			if r.Halted {
				row.HaltedDays++
			}
		}
	}

	out := make([]SweepRow, 0, len(order))
	for _, key := range order {
		row := rows[key]
		row.MeanRealProfit = row.TotalRealProfit / float64(row.Days)
		out = append(out, *row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalRealProfit > out[j].TotalRealProfit
	})
	return out
}
