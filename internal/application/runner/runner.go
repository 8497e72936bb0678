package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lethanhtung0208/stock/internal/application/engine"
	"github.com/lethanhtung0208/stock/internal/domain"
	"github.com/lethanhtung0208/stock/internal/ports"
	"golang.org/x/sync/errgroup"
)

const defaultProgressEvery = 450 // ~1h de sesión con step de 8s

// RunContext es el estado de una ejecución compartido por todos los
// componentes: se crea una vez en main y se pasa explícitamente.
type RunContext struct {
	RunID  string
	Logger *slog.Logger
	Single bool // una fecha × una combinación: logging detallado
}

// NewRunContext crea el contexto con un run id nuevo.
func NewRunContext(logger *slog.Logger, single bool) *RunContext {
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.New().String()
	return &RunContext{
		RunID:  runID,
		Logger: logger.With("run", runID[:8]),
		Single: single,
	}
}

// Config controla el reparto de trabajo y el reloj.
type Config struct {
	Session       Session
	Strategy      domain.Strategy
	Parallel      bool
	Workers       int   // <= 0 usa runtime.NumCPU()
	Tickers       []int // whitelist opcional sobre el universo
	ProgressEvery int   // ticks entre logs de progreso
}

// Deps agrupa los colaboradores. Results, Reporter y Metrics son opcionales.
type Deps struct {
	Snapshots ports.SnapshotProvider
	Universe  ports.TickerUniverse
	Extremes  ports.ExtremesChecker
	Results   ports.ResultStorage
	Reporter  ports.Reporter
	Metrics   ports.Metrics
}

// Runner simula días completos para todas las combinaciones del grid.
type Runner struct {
	rc   *RunContext
	cfg  Config
	deps Deps
}

// New crea un runner. Aplica defaults de workers y progreso.
func New(rc *RunContext, cfg Config, deps Deps) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressEvery
	}
	return &Runner{rc: rc, cfg: cfg, deps: deps}
}

// Run simula cada fecha de forma independiente (estado nuevo por día),
// reporta cada día y al final el agregado por combinación.
func (r *Runner) Run(ctx context.Context, dates []time.Time, params []domain.Params) ([]domain.DayReport, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("runner.Run: no dates")
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("runner.Run: empty parameter grid")
	}
	if err := r.cfg.Session.Validate(); err != nil {
		return nil, fmt.Errorf("runner.Run: %w", err)
	}

	universe, err := r.deps.Universe.FetchTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("runner.Run: fetch tickers: %w", err)
	}
	tickers, err := selectTickers(universe, r.cfg.Tickers)
	if err != nil {
		return nil, fmt.Errorf("runner.Run: %w", err)
	}

	if r.deps.Results != nil {
		if err := r.deps.Results.SaveRun(ctx, r.rc.RunID, len(dates), len(params)); err != nil {
			return nil, fmt.Errorf("runner.Run: save run: %w", err)
		}
	}

	r.rc.Logger.Info("run starting",
		"dates", len(dates),
		"combinations", len(params),
		"tickers", len(tickers),
		"parallel", r.cfg.Parallel,
		"workers", r.cfg.Workers,
		"single", r.rc.Single,
	)

	reports := make([]domain.DayReport, 0, len(dates))
	for _, day := range dates {
		report, err := r.RunDay(ctx, day, tickers, params)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)

		if r.deps.Results != nil {
			if err := r.deps.Results.SaveDayResults(ctx, report); err != nil {
				r.rc.Logger.Warn("failed to save day results", "date", day.Format(time.DateOnly), "err", err)
			}
		}
		if r.deps.Reporter != nil {
			if err := r.deps.Reporter.ReportDay(ctx, report); err != nil {
				r.rc.Logger.Warn("reporter error", "err", err)
			}
		}
	}

	if r.deps.Reporter != nil && len(reports) > 1 {
		if err := r.deps.Reporter.ReportSweep(ctx, domain.Summarize(reports)); err != nil {
			r.rc.Logger.Warn("reporter error", "err", err)
		}
	}
	return reports, nil
}

// RunDay reproduce una sesión completa y devuelve el ranking del día.
func (r *Runner) RunDay(ctx context.Context, day time.Time, tickers []int, params []domain.Params) (domain.DayReport, error) {
	started := time.Now()
	session := r.cfg.Session
	sims := r.buildSimulators(tickers, params)

	log := r.rc.Logger.With("date", day.Format(time.DateOnly))
	log.Info("day starting", "simulators", len(sims), "ticks", session.Ticks())

	ticks := 0
	end := session.End(day)
	for at := session.Start(day); !at.After(end); at = at.Add(session.Step) {
		if session.InBlackout(at) {
			err := r.dispatch(ctx, sims, func(_ context.Context, sim *engine.Simulator) error {
				if session.BlackoutMode == BlackoutLiquidate {
					sim.Liquidate(at)
				} else {
					sim.Idle(at)
				}
				return nil
			})
			if err != nil {
				return domain.DayReport{}, fmt.Errorf("runner.RunDay: blackout %s: %w", at.Format(time.TimeOnly), err)
			}
			r.tickProcessed(true)
			continue
		}

		snap, err := r.deps.Snapshots.FetchSnapshot(ctx, tickers, at)
		if err != nil {
			return domain.DayReport{}, fmt.Errorf("runner.RunDay: fetch snapshot %s: %w", at.Format(time.DateTime), err)
		}

		entries := session.EntriesAllowed(at)
		err = r.dispatch(ctx, sims, func(ctx context.Context, sim *engine.Simulator) error {
			return sim.Tick(ctx, at, snap, entries)
		})
		if err != nil {
			return domain.DayReport{}, fmt.Errorf("runner.RunDay: tick %s: %w", at.Format(time.TimeOnly), err)
		}
		r.tickProcessed(false)

		ticks++
		if ticks%r.cfg.ProgressEvery == 0 {
			log.Info("progress", "time", at.Format(time.TimeOnly), "ticks", ticks, "elapsed", time.Since(started).Round(time.Millisecond))
		}
	}

	var results []domain.Result
	for _, sim := range sims {
		results = append(results, sim.Finish(end)...)
	}
	domain.SortResults(results)

	log.Info("day complete", "ticks", ticks, "elapsed", time.Since(started).Round(time.Millisecond))
	return domain.DayReport{
		RunID:   r.rc.RunID,
		Date:    day,
		Single:  r.rc.Single,
		Ticks:   ticks,
		Elapsed: time.Since(started),
		Results: results,
	}, nil
}

func (r *Runner) buildSimulators(universe []int, params []domain.Params) []*engine.Simulator {
	chunks := Chunk(params, r.cfg.Workers)
	sims := make([]*engine.Simulator, 0, len(chunks))
	first := 0
	for i, chunk := range chunks {
		sims = append(sims, engine.New(engine.Config{
			Strategy:    r.cfg.Strategy,
			Universe:    universe,
			FirstHandle: first,
			Verbose:     r.rc.Single,
			Logger:      r.rc.Logger.With("sim", i),
			Extremes:    r.deps.Extremes,
			Metrics:     r.deps.Metrics,
		}, chunk))
		first += len(chunk)
	}
	return sims
}

// dispatch aplica fn a cada simulador y espera a todos antes de volver.
// En modo paralelo cada simulador corre en su propia goroutine; el
// primer error (o panic) cancela el resto y se devuelve.
func (r *Runner) dispatch(ctx context.Context, sims []*engine.Simulator, fn func(context.Context, *engine.Simulator) error) error {
	if !r.cfg.Parallel || len(sims) == 1 {
		for i, sim := range sims {
			if err := guarded(ctx, i, sim, fn); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, sim := range sims {
		g.Go(func() error {
			return guarded(gctx, i, sim, fn)
		})
	}
	return g.Wait()
}

// guarded convierte un panic del simulador en error.
func guarded(ctx context.Context, i int, sim *engine.Simulator, fn func(context.Context, *engine.Simulator) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("simulator %d panicked: %v", i, p)
		}
	}()
	if err := fn(ctx, sim); err != nil {
		return fmt.Errorf("simulator %d: %w", i, err)
	}
	return nil
}

func (r *Runner) tickProcessed(blackout bool) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.TickProcessed(blackout)
	}
}

// selectTickers aplica la whitelist; un ticker fuera del universo es un
// error de configuración.
func selectTickers(universe, whitelist []int) ([]int, error) {
	if len(whitelist) == 0 {
		out := slices.Clone(universe)
		slices.Sort(out)
		return out, nil
	}
	known := make(map[int]bool, len(universe))
	for _, t := range universe {
		known[t] = true
	}
	out := make([]int, 0, len(whitelist))
	for _, t := range whitelist {
		if !known[t] {
			return nil, fmt.Errorf("ticker %d is not in the universe", t)
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
