package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testBands = TrendBands{
	MinDiff:      0.0144,
	MaxDiff:      0.0225,
	MinPriceDiff: 0.00016,
	MaxPriceDiff: 0.00049,
}

// primedAskStreak deja el streak de ask en 2 con extremos 1020 / 985 / 9998.
func primedAskStreak(t *testing.T) TrendState {
	t.Helper()
	ts := NewTrendState()
	ts.Observe(testBands, 1000, 1000, 10000, 9990)
	ts.Observe(testBands, 1020, 985, 9998, 9985)
	assert.Equal(t, 2, ts.AskStreak)
	return ts
}

func TestTrendState_FirstObservationStartsBothStreaks(t *testing.T) {
	ts := NewTrendState()
	ts.Observe(testBands, 1000, 1000, 10000, 9990)

	assert.Equal(t, 1, ts.AskStreak)
	assert.Equal(t, 1, ts.BidStreak)
	assert.Equal(t, 1000.0, ts.HighAskQty)
	assert.Equal(t, 10000.0, ts.LowAskPrice)
	assert.Equal(t, 9990.0, ts.HighBidPrice)
}

func TestTrendState_AskPressureExtends(t *testing.T) {
	ts := primedAskStreak(t)
	assert.Equal(t, 1020.0, ts.HighAskQty)
	assert.Equal(t, 985.0, ts.LowBidQty)
	assert.Equal(t, 9998.0, ts.LowAskPrice)
	// bid qty cayó más del delta: el streak de bid se rompe
	assert.Equal(t, 0, ts.BidStreak)
}

func TestTrendState_NeutralTickKeepsStreak(t *testing.T) {
	ts := primedAskStreak(t)
	ts.Observe(testBands, 1021, 985, 9998, 9985)
	assert.Equal(t, 2, ts.AskStreak)
}

func TestTrendState_QuantityOvershootResets(t *testing.T) {
	ts := primedAskStreak(t)
	// precio plano: no extiende; qty supera la banda máxima → reset
	ts.Observe(testBands, 1100, 970, 9998, 9985)
	assert.Equal(t, 0, ts.AskStreak)
	assert.Equal(t, SentinelLow, ts.HighAskQty)
	assert.Equal(t, SentinelHigh, ts.LowAskPrice)
	assert.Equal(t, SentinelHigh, ts.LowBidQty)
}

func TestTrendState_QuantityReversalResets(t *testing.T) {
	ts := primedAskStreak(t)
	ts.Observe(testBands, 990, 985, 9998, 9985)
	assert.Equal(t, 0, ts.AskStreak)
}

func TestTrendState_PriceLeavesBandResets(t *testing.T) {
	ts := primedAskStreak(t)
	ts.Observe(testBands, 1021, 985, 10000, 9985)
	assert.Equal(t, 0, ts.AskStreak)
}

func TestTrendState_PriceDropBeyondMaxBandResets(t *testing.T) {
	ts := primedAskStreak(t)
	// qty no extiende, precio cae más que MaxPriceDiff
	ts.Observe(testBands, 1021, 985, 9980, 9985)
	assert.Equal(t, 0, ts.AskStreak)
}

func TestTrendState_BidPressureMirrors(t *testing.T) {
	ts := NewTrendState()
	ts.Observe(testBands, 1000, 1000, 10010, 10000)
	ts.Observe(testBands, 985, 1020, 10012, 10002)
	ts.Observe(testBands, 970, 1040, 10014, 10004)
	assert.Equal(t, 3, ts.BidStreak)
	assert.Equal(t, 3, ts.Streak(Long))
	// el ask se reseteó en el tick 2 y vuelve a contar desde 1
	assert.Equal(t, 1, ts.Streak(Short))

	// bid cae fuera de la banda → reset
	ts.Observe(testBands, 971, 1041, 10014, 9990)
	assert.Equal(t, 0, ts.BidStreak)
	assert.Equal(t, SentinelLow, ts.HighBidPrice)
	assert.Equal(t, SentinelHigh, ts.LowAskQty)
}

func TestTrendState_StreaksNeverSpanRegimes(t *testing.T) {
	// secuencias sintéticas que cruzan la banda: después del cruce el
	// contador siempre vuelve a cero antes de volver a contar
	inputs := []struct {
		askQty, bidQty, ask float64
	}{
		{1000, 1000, 10000},
		{1020, 985, 9998},
		{1040, 970, 9996},
		{1200, 970, 9996}, // fuera de banda
		{1220, 955, 9994},
	}
	ts := NewTrendState()
	var got []int
	for _, in := range inputs {
		ts.Observe(testBands, in.askQty, in.bidQty, in.ask, in.ask-10)
		got = append(got, ts.AskStreak)
	}
	assert.Equal(t, []int{1, 2, 3, 0, 1}, got)
}

func TestPendingEntry_LongConfirmsAndAbandons(t *testing.T) {
	e := PendingEntry{Direction: Long, Watermark: 100}

	assert.True(t, e.Observe(100.2, 0.001, 2))
	assert.Equal(t, 1, e.Increments)
	assert.Equal(t, 100.2, e.Watermark)

	assert.True(t, e.Observe(100.0, 0.001, 2))
	assert.Equal(t, 1, e.Decrements)
	assert.Equal(t, 100.2, e.Watermark, "adverse moves never move the watermark")
	assert.True(t, e.Confirmed(1, 1))
	assert.False(t, e.Confirmed(2, 1))

	assert.False(t, e.Observe(99.8, 0.001, 2))
}

func TestPendingEntry_ShortFollowsLowerBids(t *testing.T) {
	e := PendingEntry{Direction: Short, Watermark: 100}
	assert.True(t, e.Observe(99.8, 0.001, 3))
	assert.True(t, e.Observe(99.6, 0.001, 3))
	assert.Equal(t, 2, e.Increments)
	assert.Equal(t, 99.6, e.Watermark)

	// dentro del delta: nada cambia
	assert.True(t, e.Observe(99.65, 0.001, 3))
	assert.Equal(t, 0, e.Decrements)
}
