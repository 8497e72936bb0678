package engine

import "github.com/lethanhtung0208/stock/internal/domain"

const (
	minValidPrice  = 0.001
	fallbackAsk    = 1e9
	fallbackBid    = -1.0
	fallbackVolume = 1e9
	askFromLast    = 1.001
	bidFromLast    = 0.999
)

// Quote is the resolved market view of one ticker for the current tick.
// PriceKnown is false when neither a current price nor a bid/ask pair
// was ever seen for the ticker.
type Quote struct {
	Price      float64
	Bid        float64
	Ask        float64
	Volume     float64
	PriceKnown bool
}

// Spread is ask minus bid.
func (q Quote) Spread() float64 { return q.Ask - q.Bid }

// Exit is the marketable price to close a position on dir:
// longs sell at the bid, shorts cover at the ask.
func (q Quote) Exit(dir domain.Direction) float64 {
	if dir == domain.Long {
		return q.Bid
	}
	return q.Ask
}

// Entry is the marketable price to open a position on dir.
func (q Quote) Entry(dir domain.Direction) float64 {
	if dir == domain.Long {
		return q.Ask
	}
	return q.Bid
}

// Quotes keeps the current snapshot plus the last valid value of every
// field per ticker, and fills gaps from them.
type Quotes struct {
	current    domain.Snapshot
	resolved   map[int]Quote
	lastPrice  map[int]float64
	lastBid    map[int]float64
	lastAsk    map[int]float64
	lastVolume map[int]float64
}

// NewQuotes returns an empty cache.
func NewQuotes() *Quotes {
	return &Quotes{
		current:    domain.Snapshot{},
		resolved:   make(map[int]Quote),
		lastPrice:  make(map[int]float64),
		lastBid:    make(map[int]float64),
		lastAsk:    make(map[int]float64),
		lastVolume: make(map[int]float64),
	}
}

// Update installs the snapshot of a new tick and resolves every ticker in it,
// which refreshes the last-known values.
func (q *Quotes) Update(snap domain.Snapshot) {
	q.current = snap
	clear(q.resolved)
	for ticker := range snap {
		q.Quote(ticker)
	}
}

// Metrics returns the raw snapshot row of the ticker for this tick.
func (q *Quotes) Metrics(ticker int) (domain.Metrics, bool) {
	m, ok := q.current[ticker]
	return m, ok
}

// MarkPrice is the current price used to value cash holdings.
func (q *Quotes) MarkPrice(ticker int) float64 {
	return q.Quote(ticker).Price
}

// Quote resolves the ticker once per tick. Tickers missing from the
// snapshot resolve from last-known values only.
func (q *Quotes) Quote(ticker int) Quote {
	if quote, ok := q.resolved[ticker]; ok {
		return quote
	}
	m := q.current[ticker]

	var quote Quote
	quote.Price, quote.PriceKnown = q.price(ticker, m.CurrentPrice)
	quote.Bid = q.bid(ticker, m.BidPrice)
	quote.Ask = q.ask(ticker, m.AskPrice)
	quote.Volume = q.volume(ticker, m.Volume)

	q.resolved[ticker] = quote
	return quote
}

func (q *Quotes) price(ticker int, v float64) (float64, bool) {
	if v > minValidPrice {
		q.lastPrice[ticker] = v
		return v, true
	}
	if last, ok := q.lastPrice[ticker]; ok {
		return last, true
	}
	bid, okBid := q.lastBid[ticker]
	ask, okAsk := q.lastAsk[ticker]
	if okBid && okAsk {
		return (bid + ask) / 2, true
	}
	return 0, false
}

func (q *Quotes) bid(ticker int, v float64) float64 {
	if v > minValidPrice {
		q.lastBid[ticker] = v
		return v
	}
	if last, ok := q.lastBid[ticker]; ok {
		return last
	}
	if last, ok := q.lastPrice[ticker]; ok {
		return last * bidFromLast
	}
	return fallbackBid
}

func (q *Quotes) ask(ticker int, v float64) float64 {
	if v > minValidPrice {
		q.lastAsk[ticker] = v
		return v
	}
	if last, ok := q.lastAsk[ticker]; ok {
		return last
	}
	if last, ok := q.lastPrice[ticker]; ok {
		return last * askFromLast
	}
	return fallbackAsk
}

func (q *Quotes) volume(ticker int, v float64) float64 {
	if v > 0 {
		q.lastVolume[ticker] = v
		return v
	}
	if last, ok := q.lastVolume[ticker]; ok {
		return last
	}
	return fallbackVolume
}
