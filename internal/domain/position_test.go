package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLot_ProfitLongCashLot(t *testing.T) {
	lot := Lot{Price: 1000, Qty: 300}
	// 30,000 de ganancia − 20% de impuesto
	assert.InDelta(t, 24000.0, lot.Profit(Long, 1100, 0.2, 0.003), 1e-9)
}

func TestLot_ProfitMarginLotPaysFee(t *testing.T) {
	lot := Lot{Price: 1000, Qty: 300, Margin: true}
	fee := 1100.0 * 300 * 0.003 / 100
	assert.InDelta(t, 24000.0-fee, lot.Profit(Long, 1100, 0.2, 0.003), 1e-9)
}

func TestLot_LossIsNeverTaxed(t *testing.T) {
	lot := Lot{Price: 1000, Qty: 300}
	assert.InDelta(t, -30000.0, lot.Profit(Short, 1100, 0.2, 0), 1e-9)
	assert.InDelta(t, -30000.0, lot.Profit(Long, 900, 0.2, 0), 1e-9)
}

func TestPosition_QuantityAndPrune(t *testing.T) {
	p := NewPosition(7, Long, Lot{Price: 100, Qty: 10}, time.Now())
	p.Lots = append(p.Lots, Lot{Price: 101, Qty: 5}, Lot{Price: 102, Qty: 0})

	assert.Equal(t, int64(15), p.Quantity())
	p.Prune()
	assert.Len(t, p.Lots, 2)
	assert.False(t, p.Empty())

	p.Lots[0].Qty = 0
	p.Lots[1].Qty = 0
	p.Prune()
	assert.True(t, p.Empty())
	assert.Empty(t, p.Lots)
}

func TestNewPosition_InitialMarks(t *testing.T) {
	at := time.Date(2024, 10, 17, 9, 30, 0, 0, time.UTC)
	p := NewPosition(1, Short, Lot{Price: 5000, Qty: 3, Margin: true}, at)

	assert.Equal(t, 5000.0, p.MaxPrice)
	assert.Equal(t, 5000.0, p.MinPrice)
	assert.Equal(t, 5000.0, p.RetreatMark)
	assert.Equal(t, at, p.Since)
	assert.Equal(t, Long, p.Direction.Opposite())
}
