package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lethanhtung0208/stock/internal/domain"
	"github.com/lethanhtung0208/stock/internal/ports"
)

// initialMark is the starting value of the running profit maxima.
const initialMark = -10_000_000

// Handle addresses one parameter set inside a Simulator.
type Handle int

// Config holds what a Simulator shares across its parameter sets.
type Config struct {
	Strategy    domain.Strategy
	Universe    []int
	FirstHandle int // global index of the first parameter set
	Verbose     bool
	Logger      *slog.Logger
	Extremes    ports.ExtremesChecker
	Metrics     ports.Metrics
}

// paramSet is the runtime state of one parameter set. Only the Simulator
// that owns it ever touches it.
type paramSet struct {
	params  domain.Params
	ledger  *Ledger
	trends  map[int]*domain.TrendState
	pending map[int]*domain.PendingEntry

	initialBalance float64
	profit         float64
	realProfit     float64
	maxProfit      domain.Mark
	realMaxProfit  domain.Mark
	halted         bool
}

func (ps *paramSet) trend(ticker int) *domain.TrendState {
	t, ok := ps.trends[ticker]
	if !ok {
		fresh := domain.NewTrendState()
		t = &fresh
		ps.trends[ticker] = t
	}
	return t
}

// Simulator advances many parameter sets over the same market timeline.
// It is not safe for concurrent use; the runner gives each simulator to
// one goroutine per tick.
type Simulator struct {
	cfg         Config
	log         *slog.Logger
	quotes      *Quotes
	sets        []*paramSet
	tickers     []int
	now         time.Time
	initialized bool
}

// New builds one parameter set per params entry, in order.
func New(cfg Config, params []domain.Params) *Simulator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	s := &Simulator{
		cfg:    cfg,
		log:    cfg.Logger,
		quotes: NewQuotes(),
		sets:   make([]*paramSet, 0, len(params)),
	}
	for i, p := range params {
		ledgerCfg := LedgerConfig{
			FeePercentage:    cfg.Strategy.FeePercentage,
			TaxRate:          cfg.Strategy.TaxRate,
			MarginMultiplier: cfg.Strategy.MarginMultiplier,
			Verbose:          cfg.Verbose,
			Logger:           cfg.Logger.With("set", cfg.FirstHandle+i),
			OnTrade:          cfg.Metrics.TradeExecuted,
		}
		s.sets = append(s.sets, &paramSet{
			params:         p,
			ledger:         NewLedger(p.InitialBalance, s.quotes, ledgerCfg),
			trends:         make(map[int]*domain.TrendState),
			pending:        make(map[int]*domain.PendingEntry),
			initialBalance: p.InitialBalance,
			maxProfit:      domain.Mark{Value: initialMark},
			realMaxProfit:  domain.Mark{Value: initialMark},
		})
	}
	return s
}

// Len is the number of parameter sets.
func (s *Simulator) Len() int { return len(s.sets) }

// Ledger exposes the ledger of a parameter set.
func (s *Simulator) Ledger(h Handle) *Ledger { return s.sets[h].ledger }

// Halted reports whether the parameter set stopped trading.
func (s *Simulator) Halted(h Handle) bool { return s.sets[h].halted }

// Profit returns the last reassessed profit and real profit.
func (s *Simulator) Profit(h Handle) (profit, real float64) {
	ps := s.sets[h]
	return ps.profit, ps.realProfit
}

// Pending reports whether the ticker is waiting for drift confirmation.
func (s *Simulator) Pending(h Handle, ticker int) (domain.PendingEntry, bool) {
	e, ok := s.sets[h].pending[ticker]
	if !ok {
		return domain.PendingEntry{}, false
	}
	return *e, true
}

// Trend returns a copy of the trend state of the ticker.
func (s *Simulator) Trend(h Handle, ticker int) domain.TrendState {
	return *s.sets[h].trend(ticker)
}

// Tick runs one market tick: trends, exits, candidates and, when entries
// is true, new positions; then every set is reassessed against its bounds.
func (s *Simulator) Tick(ctx context.Context, at time.Time, snap domain.Snapshot, entries bool) error {
	s.now = at
	s.quotes.Update(snap)
	s.tickers = snap.Tickers()
	sort.Ints(s.tickers)

	if !s.initialized {
		for _, ps := range s.sets {
			for _, ticker := range s.cfg.Universe {
				ps.trend(ticker)
			}
		}
		s.initialized = true
	}

	for _, ps := range s.sets {
		if ps.halted {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("engine.Tick: %w", err)
		}

		s.observeTrends(ps)
		for _, pos := range ps.ledger.Positions() {
			if ps.ledger.Position(pos.Ticker, pos.Direction) != pos {
				continue
			}
			s.applyExits(ps, pos)
		}

		longs, shorts := s.confirm(ps)
		if entries {
			s.enter(ctx, ps, longs, shorts)
		}
	}

	if s.cfg.Verbose {
		s.logPositions()
	}
	for _, ps := range s.sets {
		s.reassess(ps, true)
	}
	return nil
}

// Idle advances the clock without market data. Only the time-decay exit
// runs, priced from last-known quotes.
func (s *Simulator) Idle(at time.Time) {
	s.now = at
	s.quotes.Update(nil)
	for _, ps := range s.sets {
		if ps.halted {
			continue
		}
		for _, pos := range ps.ledger.Positions() {
			q := s.quotes.Quote(pos.Ticker)
			price := q.Exit(pos.Direction)
			if s.decayed(ps, pos, q.Volume, pos.Profit(price, s.cfg.Strategy.TaxRate, s.cfg.Strategy.FeePercentage)) {
				s.closePosition(ps, pos, price, "decay")
			}
		}
	}
}

// Liquidate closes every position of the sets still trading, without
// halting them.
func (s *Simulator) Liquidate(at time.Time) {
	s.now = at
	s.quotes.Update(nil)
	for _, ps := range s.sets {
		if !ps.halted {
			s.retreat(ps, false)
		}
	}
}

// Finish liquidates everything at session close and returns the results.
func (s *Simulator) Finish(at time.Time) []domain.Result {
	s.now = at
	s.quotes.Update(nil)
	for _, ps := range s.sets {
		s.retreat(ps, ps.halted)
		s.reassess(ps, false)
	}
	return s.Results()
}

// Results snapshots every parameter set, in handle order.
func (s *Simulator) Results() []domain.Result {
	out := make([]domain.Result, 0, len(s.sets))
	for i, ps := range s.sets {
		out = append(out, domain.Result{
			Handle:        s.cfg.FirstHandle + i,
			Params:        ps.params,
			Balance:       ps.ledger.Balance(),
			Profit:        ps.profit,
			RealProfit:    ps.realProfit,
			MaxProfit:     ps.maxProfit,
			RealMaxProfit: ps.realMaxProfit,
			Halted:        ps.halted,
			Trades:        ps.ledger.Counts(),
			Transactions:  ps.ledger.Transactions(),
		})
	}
	return out
}

// retreat closes all longs then all shorts at marketable prices.
func (s *Simulator) retreat(ps *paramSet, halt bool) {
	for _, dir := range []domain.Direction{domain.Long, domain.Short} {
		for _, pos := range ps.ledger.Positions() {
			if pos.Direction != dir {
				continue
			}
			ps.ledger.Close(s.now, pos.Ticker, dir, s.quotes.Quote(pos.Ticker).Exit(dir))
		}
	}
	if halt && !ps.halted {
		s.cfg.Metrics.ParamSetHalted()
	}
	ps.halted = halt
}

func (s *Simulator) closePosition(ps *paramSet, pos *domain.Position, price float64, reason string) {
	if s.cfg.Verbose {
		s.log.Info("exit",
			"reason", reason,
			"ticker", pos.Ticker,
			"dir", pos.Direction,
			"qty", pos.Quantity(),
			"price", fmt.Sprintf("%.2f", price),
		)
	}
	ps.ledger.Close(s.now, pos.Ticker, pos.Direction, price)
}

func (s *Simulator) logPositions() {
	for i, ps := range s.sets {
		for _, pos := range ps.ledger.Positions() {
			price := s.quotes.Quote(pos.Ticker).Exit(pos.Direction)
			s.log.Info("position",
				"set", s.cfg.FirstHandle+i,
				"time", s.now.Format("15:04:05"),
				"ticker", pos.Ticker,
				"dir", pos.Direction,
				"lots", len(pos.Lots),
				"qty", pos.Quantity(),
				"price", fmt.Sprintf("%.2f", price),
				"pnl", fmt.Sprintf("%.0f", pos.Profit(price, s.cfg.Strategy.TaxRate, s.cfg.Strategy.FeePercentage)),
				"up", pos.UpSteps,
				"down", pos.DownSteps,
				"retreat", pos.RetreatSteps,
			)
		}
	}
}

type nopMetrics struct{}

func (nopMetrics) TickProcessed(bool)           {}
func (nopMetrics) TradeExecuted(domain.TxKind) {}
func (nopMetrics) ParamSetHalted()             {}
func (nopMetrics) ExtremesLookupFailed()       {}
