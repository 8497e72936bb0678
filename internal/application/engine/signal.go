package engine

import (
	"sort"

	"github.com/lethanhtung0208/stock/internal/domain"
)

// observeTrends feeds the tick into the trend state of every ticker present
// in the snapshot.
func (s *Simulator) observeTrends(ps *paramSet) {
	for _, ticker := range s.tickers {
		m, _ := s.quotes.Metrics(ticker)
		q := s.quotes.Quote(ticker)
		ps.trend(ticker).Observe(ps.params.Trend, m.AskQtyTotal, m.BidQtyTotal, q.Ask, q.Bid)
	}
}

// candidates returns the tickers whose streak just reached the
// confirmation length. Bid pressure precedes longs, ask pressure shorts.
func (s *Simulator) candidates(ps *paramSet) (longs, shorts []int) {
	st := s.cfg.Strategy
	for _, ticker := range s.tickers {
		if ps.ledger.Holds(ticker) {
			continue
		}
		if _, ok := ps.pending[ticker]; ok {
			continue
		}
		q := s.quotes.Quote(ticker)
		if !q.PriceKnown || q.Price >= st.MaxPrice || q.Volume <= st.MinVolume {
			continue
		}
		t := ps.trend(ticker)
		if t.AskStreak == st.GainLen {
			shorts = append(shorts, ticker)
		}
		if t.BidStreak == st.GainLen {
			longs = append(longs, ticker)
		}
	}
	return longs, shorts
}

// confirm starts tracking new candidates, updates every pending entry and
// returns the tickers promoted on this tick per side.
func (s *Simulator) confirm(ps *paramSet) (longs, shorts []int) {
	trendLongs, trendShorts := s.candidates(ps)
	// a ticker with both streaks at length is tracked as a short
	for _, ticker := range trendShorts {
		s.track(ps, ticker, domain.Short)
	}
	for _, ticker := range trendLongs {
		if _, ok := ps.pending[ticker]; !ok {
			s.track(ps, ticker, domain.Long)
		}
	}

	tickers := make([]int, 0, len(ps.pending))
	for ticker := range ps.pending {
		tickers = append(tickers, ticker)
	}
	sort.Ints(tickers)

	p := ps.params
	st := s.cfg.Strategy
	for _, ticker := range tickers {
		e := ps.pending[ticker]
		q := s.quotes.Quote(ticker)

		if !e.Observe(q.Entry(e.Direction), p.MinTradePriceDiff, p.MaxDecrements) {
			delete(ps.pending, ticker)
			continue
		}
		if !e.Confirmed(p.TradeGainLen, p.MinDecrements) {
			continue
		}
		spread := q.Spread()
		if spread <= st.MinSpread || spread >= st.MaxSpreadFraction*q.Ask {
			continue
		}

		delete(ps.pending, ticker)
		dir := e.Direction
		if dir == domain.Long {
			ps.trend(ticker).ResetBid()
		} else {
			ps.trend(ticker).ResetAsk()
		}
		if st.InvertSignals {
			dir = dir.Opposite()
		}
		if dir == domain.Long {
			longs = append(longs, ticker)
		} else {
			shorts = append(shorts, ticker)
		}
	}
	return longs, shorts
}

func (s *Simulator) track(ps *paramSet, ticker int, dir domain.Direction) {
	ps.pending[ticker] = &domain.PendingEntry{
		Direction: dir,
		Watermark: s.quotes.Quote(ticker).Entry(dir),
	}
}
