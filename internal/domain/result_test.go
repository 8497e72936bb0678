package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortResults_ByRealMaxProfit(t *testing.T) {
	results := []Result{
		{Handle: 0, RealMaxProfit: Mark{Value: 10}},
		{Handle: 1, RealMaxProfit: Mark{Value: 300}},
		{Handle: 2, RealMaxProfit: Mark{Value: -5}},
		{Handle: 3, RealMaxProfit: Mark{Value: 300}},
	}
	SortResults(results)

	var handles []int
	for _, r := range results {
		handles = append(handles, r.Handle)
	}
	assert.Equal(t, []int{1, 3, 0, 2}, handles)
}

func TestSummarize_AggregatesByKey(t *testing.T) {
	a := Params{Root: 1.1, Take: 5, MinTradeQty: 10}
	b := Params{Root: 1.2, Take: 5, MinTradeQty: 10}

	days := []DayReport{
		{Results: []Result{{Params: a, RealProfit: 100}, {Params: b, RealProfit: -50, Halted: true}}},
		{Results: []Result{{Params: a, RealProfit: -20}, {Params: b, RealProfit: 10}}},
	}

	rows := Summarize(days)
	require.Len(t, rows, 2)

	assert.Equal(t, a.Key(), rows[0].Key)
	assert.Equal(t, 2, rows[0].Days)
	assert.InDelta(t, 80.0, rows[0].TotalRealProfit, 1e-9)
	assert.InDelta(t, 40.0, rows[0].MeanRealProfit, 1e-9)
	assert.InDelta(t, 100.0, rows[0].BestDay, 1e-9)
	assert.InDelta(t, -20.0, rows[0].WorstDay, 1e-9)

	assert.Equal(t, 1, rows[1].HaltedDays)
	assert.InDelta(t, -40.0, rows[1].TotalRealProfit, 1e-9)
}

func TestParams_KeyAndBounds(t *testing.T) {
	p := Params{Root: 1.05, Take: 7, HoldMinutes: 65, LookbackDays: 20, ProfitFloorK: -9000, ProfitCeilingK: 4000}
	assert.Contains(t, p.Key(), "root=1.05")
	assert.Contains(t, p.Key(), "days=20")
	assert.Equal(t, -9_000_000.0, p.ProfitFloor())
	assert.Equal(t, 4_000_000.0, p.ProfitCeiling())
}
