package domain

// Sentinels used when a streak resets, so the next observation always
// qualifies as a new extreme.
const (
	SentinelLow  = -1.0
	SentinelHigh = 1e9
)

// TrendBands are the relative drift bands of the trend detector.
type TrendBands struct {
	MinDiff      float64 // quantity: minimum move to extend a streak
	MaxDiff      float64 // quantity: overshoot that breaks it
	MinPriceDiff float64
	MaxPriceDiff float64
}

// TrendState tracks both pressure streaks of one ticker.
//
// Ask pressure: ask quantity rising, bid quantity falling, ask price falling.
// Bid pressure: bid quantity rising, ask quantity falling, bid price rising.
type TrendState struct {
	HighAskQty  float64
	LowAskPrice float64
	LowBidQty   float64
	AskStreak   int

	HighBidQty   float64
	HighBidPrice float64
	LowAskQty    float64
	BidStreak    int
}

// NewTrendState returns a state with both streaks at their sentinels.
func NewTrendState() TrendState {
	var t TrendState
	t.ResetAsk()
	t.ResetBid()
	return t
}

// ResetAsk clears the ask-pressure streak.
func (t *TrendState) ResetAsk() {
	t.HighAskQty = SentinelLow
	t.LowAskPrice = SentinelHigh
	t.LowBidQty = SentinelHigh
	t.AskStreak = 0
}

// ResetBid clears the bid-pressure streak.
func (t *TrendState) ResetBid() {
	t.HighBidQty = SentinelLow
	t.HighBidPrice = SentinelLow
	t.LowAskQty = SentinelHigh
	t.BidStreak = 0
}

// Streak returns the streak that precedes an entry on the given side:
// bid pressure for longs, ask pressure for shorts.
func (t *TrendState) Streak(dir Direction) int {
	if dir == Long {
		return t.BidStreak
	}
	return t.AskStreak
}

// Observe feeds one tick of aggregates into both streaks.
// An observation that neither extends a streak nor leaves its band
// keeps the streak as is.
func (t *TrendState) Observe(b TrendBands, askQty, bidQty, ask, bid float64) {
	switch {
	case askQty > t.HighAskQty*(1+b.MinDiff) &&
		bidQty < t.LowBidQty*(1-b.MinDiff) &&
		ask < t.LowAskPrice*(1-b.MinPriceDiff):
		t.HighAskQty = askQty
		t.LowAskPrice = ask
		t.LowBidQty = bidQty
		t.AskStreak++
	case askQty < t.HighAskQty*(1-b.MinDiff),
		askQty > t.HighAskQty*(1+b.MaxDiff),
		bidQty > t.LowBidQty*(1+b.MinDiff),
		bidQty < t.LowBidQty*(1-b.MaxDiff),
		ask > t.LowAskPrice*(1+b.MinPriceDiff),
		ask < t.LowAskPrice*(1-b.MaxPriceDiff):
		t.ResetAsk()
	}

	switch {
	case bidQty > t.HighBidQty*(1+b.MinDiff) &&
		askQty < t.LowAskQty*(1-b.MinDiff) &&
		bid > t.HighBidPrice*(1+b.MinPriceDiff):
		t.HighBidQty = bidQty
		t.HighBidPrice = bid
		t.LowAskQty = askQty
		t.BidStreak++
	case bidQty < t.HighBidQty*(1-b.MinDiff),
		bidQty > t.HighBidQty*(1+b.MaxDiff),
		askQty > t.LowAskQty*(1+b.MinDiff),
		askQty < t.LowAskQty*(1-b.MaxDiff),
		bid < t.HighBidPrice*(1-b.MinPriceDiff),
		bid > t.HighBidPrice*(1+b.MaxPriceDiff):
		t.ResetBid()
	}
}

// PendingEntry follows a trend candidate until its price drift confirms it.
type PendingEntry struct {
	Direction  Direction
	Watermark  float64 // best ask so far for longs, lowest bid for shorts
	Increments int
	Decrements int
}

// Observe moves the watermark on a favorable move beyond delta and counts
// adverse moves. price is the ask for longs and the bid for shorts.
// It returns false once decrements reach maxDecrements (candidate abandoned).
func (e *PendingEntry) Observe(price, delta float64, maxDecrements int) bool {
	favorable := price > e.Watermark*(1+delta)
	adverse := price < e.Watermark*(1-delta)
	if e.Direction == Short {
		favorable = price < e.Watermark*(1-delta)
		adverse = price > e.Watermark*(1+delta)
	}

	switch {
	case favorable:
		e.Increments++
		e.Watermark = price
	case adverse:
		e.Decrements++
		if e.Decrements >= maxDecrements {
			return false
		}
	}
	return true
}

// Confirmed reports whether the drift requirements are met.
func (e *PendingEntry) Confirmed(tradeGainLen, minDecrements int) bool {
	return e.Increments >= tradeGainLen && e.Decrements >= minDecrements
}
