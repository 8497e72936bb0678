package engine

import (
	"math"
	"time"

	"github.com/lethanhtung0208/stock/internal/domain"
)

// stepUnitScale turns min_stop_price_diff into the size of one step.
const stepUnitScale = 500

// applyExits evaluates one open position. Any full close ends the
// evaluation for this tick.
func (s *Simulator) applyExits(ps *paramSet, pos *domain.Position) {
	st := s.cfg.Strategy
	p := ps.params
	q := s.quotes.Quote(pos.Ticker)
	price := q.Exit(pos.Direction)
	delta := p.MinStopPriceDiff
	unit := p.MinStopPriceDiff * stepUnitScale
	dir := pos.Direction
	profit := pos.Profit(price, st.TaxRate, st.FeePercentage)

	adverseRef, favorableRef := pos.MinPrice, pos.MaxPrice
	if dir == domain.Short {
		adverseRef, favorableRef = pos.MaxPrice, pos.MinPrice
	}

	switch {
	case against(dir, price, adverseRef, delta):
		pos.DownSteps += steps(adverseRef, price, unit)
		if pos.DownSteps-pos.UpSteps > p.MinUpDownDiff {
			s.closePosition(ps, pos, price, "adverse")
			return
		}
	case against(dir.Opposite(), price, favorableRef, delta):
		pos.UpSteps += steps(favorableRef, price, unit)
		pos.RetreatSteps = 0
		pos.RetreatMark = price
		pos.Since = s.now
		if pos.UpSteps < st.PyramidCap {
			s.pyramid(ps, pos, price)
		}
	}

	if against(dir, price, pos.RetreatMark, delta) {
		pos.RetreatSteps += steps(pos.RetreatMark, price, unit)
		pos.RetreatMark = price
		if retreatExceeded(p.StepThresholds, pos.UpSteps, pos.RetreatSteps) {
			s.closePosition(ps, pos, price, "retreat")
			return
		}
	}

	if s.decayed(ps, pos, q.Volume, profit) {
		s.closePosition(ps, pos, price, "decay")
		return
	}

	pos.MinPrice = min(pos.MinPrice, price)
	pos.MaxPrice = max(pos.MaxPrice, price)

	if s.lotExits(ps, pos, price) {
		return
	}

	if ps.trend(pos.Ticker).Streak(dir.Opposite()) >= st.LossLen {
		s.closePosition(ps, pos, price, "reversal")
	}
}

func (s *Simulator) pyramid(ps *paramSet, pos *domain.Position, price float64) {
	qty := ps.params.MinTradeQty
	if pos.Direction == domain.Long {
		ps.ledger.Buy(s.now, pos.Ticker, qty, price)
		return
	}
	ps.ledger.ShortSell(s.now, pos.Ticker, qty, price)
}

// lotExits closes every lot past the hard take-profit or stop-loss and
// reports whether the position is gone.
func (s *Simulator) lotExits(ps *paramSet, pos *domain.Position, price float64) bool {
	st := s.cfg.Strategy
	for i := len(pos.Lots) - 1; i >= 0; i-- {
		lot := pos.Lots[i]
		gain := lot.PriceDiff(pos.Direction, price) / lot.Price
		if gain > st.TakeProfitPct || gain < -st.StopLossPct {
			ps.ledger.CloseLot(s.now, pos.Ticker, pos.Direction, i, price)
		}
	}
	return ps.ledger.Position(pos.Ticker, pos.Direction) == nil
}

// decayed reports whether the position outlived its allowed holding time:
// (hold − step^root × volume^(1/take)) minutes since the last favorable step.
func (s *Simulator) decayed(ps *paramSet, pos *domain.Position, volume, profit float64) bool {
	p := ps.params
	step := pos.UpSteps
	if profit <= s.cfg.Strategy.DecayProfitGate {
		step = max(pos.RetreatSteps, pos.DownSteps)
		if pos.Direction == domain.Short {
			step = max(step, pos.UpSteps)
		}
	}

	shrink := math.Pow(float64(step), p.Root) * math.Pow(volume, 1/p.Take)
	allowed := (p.HoldMinutes - shrink) * float64(time.Minute)
	return float64(s.now.Sub(pos.Since)) > allowed
}

// against reports a move beyond delta against a position on dir:
// below ref for longs, above ref for shorts.
func against(dir domain.Direction, price, ref, delta float64) bool {
	if dir == domain.Long {
		return price < ref*(1-delta)
	}
	return price > ref*(1+delta)
}

// steps sizes a move as a whole number of units, at least one.
func steps(ref, price, unit float64) int {
	if ref <= 1 {
		return 1
	}
	return max(1, int(math.Abs(ref-price)/ref/unit))
}

// retreatExceeded looks up the first tier whose up floor is reached.
func retreatExceeded(tiers []domain.StepThreshold, up, retreat int) bool {
	for _, tier := range tiers {
		if up >= tier.UpFloor {
			return retreat >= tier.RetreatCeil
		}
	}
	return false
}
