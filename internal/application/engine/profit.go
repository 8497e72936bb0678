package engine

import (
	"fmt"

	"github.com/lethanhtung0208/stock/internal/domain"
)

// estimatedBalance is cash plus what every open lot would return if
// closed now: the estimated profit, plus the cash paid for cash-funded longs.
func (s *Simulator) estimatedBalance(ps *paramSet) float64 {
	st := s.cfg.Strategy
	est := ps.ledger.Balance()
	for _, pos := range ps.ledger.Positions() {
		price := s.quotes.Quote(pos.Ticker).Exit(pos.Direction)
		for _, lot := range pos.Lots {
			est += lot.Profit(pos.Direction, price, st.TaxRate, st.FeePercentage)
			if pos.Direction == domain.Long && !lot.Margin {
				est += lot.Price * float64(lot.Qty)
			}
		}
	}
	return est
}

// reassess updates profit and its running maxima. With enforce, crossing
// the floor or the ceiling retreats and halts the set.
func (s *Simulator) reassess(ps *paramSet, enforce bool) {
	est := s.estimatedBalance(ps)

	ps.profit = est - ps.initialBalance
	if ps.profit > ps.maxProfit.Value {
		ps.maxProfit = domain.Mark{Value: ps.profit, At: s.now}
	}
	ps.realProfit = est - s.cfg.Strategy.StartingCapital
	if ps.realProfit > ps.realMaxProfit.Value {
		ps.realMaxProfit = domain.Mark{Value: ps.realProfit, At: s.now}
	}

	if s.cfg.Verbose {
		s.log.Info("profit",
			"time", s.now.Format("15:04:05"),
			"profit", fmt.Sprintf("%.0f", ps.profit),
			"real_profit", fmt.Sprintf("%.0f", ps.realProfit),
			"balance", fmt.Sprintf("%.0f", ps.ledger.Balance()),
		)
	}

	if !enforce || ps.halted {
		return
	}
	if ps.profit <= ps.params.ProfitFloor() || ps.profit >= ps.params.ProfitCeiling() {
		s.log.Debug("profit bound reached, halting",
			"profit", fmt.Sprintf("%.0f", ps.profit),
			"floor", ps.params.ProfitFloor(),
			"ceiling", ps.params.ProfitCeiling(),
		)
		s.retreat(ps, true)
	}
}
