package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lethanhtung0208/stock/internal/domain"
)

const defaultMarginMultiplier = 3

// MarkSource values cash-funded holdings at the current price.
type MarkSource interface {
	MarkPrice(ticker int) float64
}

// LedgerConfig holds the cost model and logging of a ledger.
type LedgerConfig struct {
	FeePercentage    float64
	TaxRate          float64
	MarginMultiplier float64
	Verbose          bool // keep a transaction journal and log every mutation
	Logger           *slog.Logger
	OnTrade          func(domain.TxKind)
}

// Ledger owns the cash and the open positions of one parameter set.
// Rejected trades are no-ops and return false.
type Ledger struct {
	cfg       LedgerConfig
	marks     MarkSource
	balance   float64
	positions []*domain.Position
	journal   []domain.Transaction
	counts    map[domain.TxKind]int
}

// NewLedger creates a ledger with the given starting cash.
func NewLedger(balance float64, marks MarkSource, cfg LedgerConfig) *Ledger {
	if cfg.MarginMultiplier <= 0 {
		cfg.MarginMultiplier = defaultMarginMultiplier
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ledger{
		cfg:     cfg,
		marks:   marks,
		balance: balance,
		counts:  make(map[domain.TxKind]int),
	}
}

// Balance is the cash balance.
func (l *Ledger) Balance() float64 { return l.balance }

// Positions returns the open positions in opening order.
func (l *Ledger) Positions() []*domain.Position {
	out := make([]*domain.Position, len(l.positions))
	copy(out, l.positions)
	return out
}

// Position returns the (ticker, dir) position or nil.
func (l *Ledger) Position(ticker int, dir domain.Direction) *domain.Position {
	for _, p := range l.positions {
		if p.Ticker == ticker && p.Direction == dir {
			return p
		}
	}
	return nil
}

// Holds reports whether any position on the ticker is open.
func (l *Ledger) Holds(ticker int) bool {
	for _, p := range l.positions {
		if p.Ticker == ticker {
			return true
		}
	}
	return false
}

// Transactions returns the journal (verbose mode only).
func (l *Ledger) Transactions() []domain.Transaction {
	out := make([]domain.Transaction, len(l.journal))
	copy(out, l.journal)
	return out
}

// Counts returns executed trades per kind.
func (l *Ledger) Counts() map[domain.TxKind]int {
	out := make(map[domain.TxKind]int, len(l.counts))
	for k, v := range l.counts {
		out[k] = v
	}
	return out
}

// HoldingsValue marks cash-funded lots at the current price.
func (l *Ledger) HoldingsValue() float64 {
	var total float64
	for _, p := range l.positions {
		for _, lot := range p.Lots {
			if !lot.Margin {
				total += float64(lot.Qty) * l.marks.MarkPrice(p.Ticker)
			}
		}
	}
	return total
}

// MarginDrawn is the entry notional of every margin lot.
func (l *Ledger) MarginDrawn() float64 {
	var total float64
	for _, p := range l.positions {
		for _, lot := range p.Lots {
			if lot.Margin {
				total += float64(lot.Qty) * lot.Price
			}
		}
	}
	return total
}

// MarginCapacity is the remaining borrowing headroom, never negative.
func (l *Ledger) MarginCapacity() float64 {
	capacity := l.cfg.MarginMultiplier*(l.balance+l.HoldingsValue()) - l.MarginDrawn()
	return max(capacity, 0)
}

// Buy opens or adds to a long position. Cash pays cost plus fee when it
// can; otherwise the lot is margin-funded if capacity covers it.
func (l *Ledger) Buy(at time.Time, ticker int, qty int64, price float64) bool {
	cost := price * float64(qty)
	total := cost + l.fee(cost)

	if l.balance < total && l.MarginCapacity() < total {
		return false
	}

	lot := domain.Lot{Price: price, Qty: qty}
	cash := 0.0
	if l.balance >= total {
		l.balance -= total
		cash = -total
	} else {
		lot.Margin = true
	}

	l.add(at, ticker, domain.Long, lot)
	l.record(at, ticker, domain.TxLong, price, qty, cash)
	return true
}

// ShortSell opens or adds to a short position, always margin-funded.
func (l *Ledger) ShortSell(at time.Time, ticker int, qty int64, price float64) bool {
	if price*float64(qty) > l.MarginCapacity() {
		return false
	}
	l.add(at, ticker, domain.Short, domain.Lot{Price: price, Qty: qty, Margin: true})
	l.record(at, ticker, domain.TxShort, price, qty, 0)
	return true
}

// Sell closes long lots FIFO. qty <= 0 closes the whole position.
func (l *Ledger) Sell(at time.Time, ticker int, qty int64, price float64) bool {
	return l.close(at, ticker, domain.Long, qty, price, -1)
}

// Cover closes short lots FIFO. qty <= 0 closes the whole position.
func (l *Ledger) Cover(at time.Time, ticker int, qty int64, price float64) bool {
	return l.close(at, ticker, domain.Short, qty, price, -1)
}

// CloseLot closes exactly one lot (by index) of the (ticker, dir) position.
func (l *Ledger) CloseLot(at time.Time, ticker int, dir domain.Direction, idx int, price float64) bool {
	pos := l.Position(ticker, dir)
	if pos == nil || idx < 0 || idx >= len(pos.Lots) {
		return false
	}
	return l.close(at, ticker, dir, pos.Lots[idx].Qty, price, idx)
}

// Close closes the whole (ticker, dir) position at price.
func (l *Ledger) Close(at time.Time, ticker int, dir domain.Direction, price float64) bool {
	return l.close(at, ticker, dir, 0, price, -1)
}

func (l *Ledger) fee(notional float64) float64 {
	return notional * (l.cfg.FeePercentage / 100)
}

func (l *Ledger) add(at time.Time, ticker int, dir domain.Direction, lot domain.Lot) {
	if pos := l.Position(ticker, dir); pos != nil {
		pos.Lots = append(pos.Lots, lot)
		return
	}
	l.positions = append(l.positions, domain.NewPosition(ticker, dir, lot, at))
}

// close consumes lots FIFO, or only lot idx when idx >= 0.
//
// Long: cash += proceeds − tax − entry cost of margin lots − fee on margin lots.
// Short: cash += entry − exit per share − tax − fee on the cover notional.
func (l *Ledger) close(at time.Time, ticker int, dir domain.Direction, qty int64, price float64, idx int) bool {
	pos := l.Position(ticker, dir)
	if pos == nil {
		return false
	}
	if qty <= 0 {
		qty = pos.Quantity()
	}

	lots := pos.Lots
	if idx >= 0 {
		lots = pos.Lots[idx : idx+1]
	}

	var gross, tax, marginCost, fee, closed float64
	remaining := qty
	for i := range lots {
		if remaining <= 0 {
			break
		}
		lot := &lots[i]
		n := min(remaining, lot.Qty)
		shares := float64(n)
		diff := lot.PriceDiff(dir, price)

		tax += max(diff*shares*l.cfg.TaxRate, 0)
		if dir == domain.Long {
			gross += shares * price
			if lot.Margin {
				marginCost += shares * lot.Price
				fee += l.fee(shares * price)
			}
		} else {
			gross += shares * diff
			closed += shares * price
		}

		lot.Qty -= n
		remaining -= n
	}
	if dir == domain.Short {
		fee = l.fee(closed)
	}

	cash := gross - tax - marginCost - fee
	l.balance += cash

	pos.Prune()
	if pos.Empty() {
		l.remove(pos)
	}

	kind := domain.TxSell
	if dir == domain.Short {
		kind = domain.TxCover
	}
	l.record(at, ticker, kind, price, qty-remaining, cash)
	return true
}

func (l *Ledger) remove(pos *domain.Position) {
	for i, p := range l.positions {
		if p == pos {
			l.positions = append(l.positions[:i], l.positions[i+1:]...)
			return
		}
	}
}

func (l *Ledger) record(at time.Time, ticker int, kind domain.TxKind, price float64, qty int64, cash float64) {
	l.counts[kind]++
	if l.cfg.OnTrade != nil {
		l.cfg.OnTrade(kind)
	}
	if !l.cfg.Verbose {
		return
	}
	tx := domain.Transaction{
		ID:     uuid.New().String(),
		At:     at,
		Ticker: ticker,
		Kind:   kind,
		Price:  price,
		Qty:    qty,
		Cash:   cash,
	}
	l.journal = append(l.journal, tx)
	l.cfg.Logger.Info("trade",
		"kind", kind,
		"ticker", ticker,
		"qty", qty,
		"price", fmt.Sprintf("%.2f", price),
		"cash", fmt.Sprintf("%.0f", cash),
		"balance", fmt.Sprintf("%.0f", l.balance),
	)
}
