package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/lethanhtung0208/stock/internal/domain"
)

type entry struct {
	ticker int
	price  float64
}

// rankEntries prices the tickers at their entry side and orders them:
// above PreferredPrice first, each group by price descending.
func (s *Simulator) rankEntries(tickers []int, dir domain.Direction) []entry {
	var preferred, other []entry
	for _, ticker := range tickers {
		e := entry{ticker: ticker, price: s.quotes.Quote(ticker).Entry(dir)}
		if e.price > s.cfg.Strategy.PreferredPrice {
			preferred = append(preferred, e)
		} else {
			other = append(other, e)
		}
	}
	byPrice := func(list []entry) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].price > list[j].price })
	}
	byPrice(preferred)
	byPrice(other)
	return append(preferred, other...)
}

// enter opens the promoted tickers, alternating long and short, each one
// gated by the historical extremes check.
func (s *Simulator) enter(ctx context.Context, ps *paramSet, longs, shorts []int) {
	longEntries := s.rankEntries(longs, domain.Long)
	shortEntries := s.rankEntries(shorts, domain.Short)
	qty := ps.params.MinTradeQty

	for i := 0; i < max(len(longEntries), len(shortEntries)); i++ {
		if i < len(longEntries) {
			e := longEntries[i]
			if s.atExtreme(ctx, ps, domain.Long, e) {
				ps.ledger.Buy(s.now, e.ticker, qty, e.price)
			}
		}
		if i < len(shortEntries) {
			e := shortEntries[i]
			if s.atExtreme(ctx, ps, domain.Short, e) {
				ps.ledger.ShortSell(s.now, e.ticker, qty, e.price)
			}
		}
	}
}

// atExtreme asks the collaborator whether the entry price sits at the
// trailing-window high (longs) or low (shorts). Lookup failures allow
// the trade.
func (s *Simulator) atExtreme(ctx context.Context, ps *paramSet, dir domain.Direction, e entry) bool {
	if s.cfg.Extremes == nil {
		return true
	}
	p := ps.params
	check := s.cfg.Extremes.IsHighest
	if dir == domain.Short {
		check = s.cfg.Extremes.IsLowest
	}
	ok, err := check(ctx, e.ticker, e.price, s.now, p.LookbackDays, p.ExtremeThreshold)
	if err != nil {
		s.cfg.Metrics.ExtremesLookupFailed()
		s.log.Warn("extremes lookup failed, allowing entry",
			"ticker", e.ticker,
			"dir", dir,
			"price", fmt.Sprintf("%.2f", e.price),
			"err", err,
		)
		return true
	}
	return ok
}
