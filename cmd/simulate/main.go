package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lethanhtung0208/stock/config"
	"github.com/lethanhtung0208/stock/internal/adapters/metrics"
	"github.com/lethanhtung0208/stock/internal/adapters/notify"
	"github.com/lethanhtung0208/stock/internal/adapters/storage"
	"github.com/lethanhtung0208/stock/internal/application/runner"
	"github.com/lethanhtung0208/stock/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// dateList acepta -date varias veces.
type dateList []string

func (d *dateList) String() string { return strings.Join(*d, ",") }

func (d *dateList) Set(v string) error {
	*d = append(*d, v)
	return nil
}

func main() {
	var dates dateList
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Var(&dates, "date", "date to simulate, YYYY-MM-DD (repeatable, overrides config)")
	single := flag.Bool("single", false, "require exactly one date and one combination, with trade logging")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	report := flag.String("report", "", "report format: table|compact (overrides config)")
	sequential := flag.Bool("sequential", false, "run simulators one after another")
	workers := flag.Int("workers", 0, "number of simulators (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if err := applyFlags(cfg, dates, *verbose, *logFormat, *report, *sequential, *workers); err != nil {
		slog.Error("invalid flags", "err", err)
		os.Exit(1)
	}

	logger, logCloser := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, os.Stdout)
	slog.SetDefault(logger)

	code := run(cfg, logger, *configPath, *single)
	logCloser.Close()
	os.Exit(code)
}

func applyFlags(cfg *config.Config, dates []string, verbose bool, logFormat, report string, sequential bool, workers int) error {
	if len(dates) > 0 {
		cfg.Simulation.Dates = dates
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if report != "" {
		cfg.Report.Format = report
	}
	if sequential {
		cfg.Simulation.Sequential = true
	}
	if workers > 0 {
		cfg.Simulation.Workers = workers
	}
	return cfg.Validate()
}

func run(cfg *config.Config, logger *slog.Logger, configPath string, requireSingle bool) int {
	dates, err := cfg.Dates()
	if err != nil {
		slog.Error("invalid dates", "err", err)
		return 1
	}
	session, err := cfg.Session()
	if err != nil {
		slog.Error("invalid session", "err", err)
		return 1
	}
	params := cfg.Grid.Build().Expand(cfg.BaseParams())

	isSingle := len(dates) == 1 && len(params) == 1
	if requireSingle && !isSingle {
		slog.Error("single mode needs exactly one date and one combination",
			"dates", len(dates), "combinations", len(params))
		return 1
	}

	rc := runner.NewRunContext(logger, isSingle)
	rc.Logger.Info("stock backtest starting",
		"config", configPath,
		"dates", len(dates),
		"combinations", len(params),
		"single", isSingle,
		"dsn", cfg.Storage.DSN,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		return 1
	}
	defer store.Close()
	store.LimitExtremes(cfg.Storage.ExtremesQPS)

	counters := metrics.NewPrometheus(prometheus.Labels{"run_id": rc.RunID})
	reporter := notify.NewConsole(notify.Filter{
		MinMaxProfit: cfg.Report.MinMaxProfit,
		MinProfit:    cfg.Report.MinProfit,
		Top:          cfg.Report.Top,
	}, cfg.Report.Format == "compact")

	deps := runner.Deps{
		Snapshots: store,
		Universe:  store,
		Extremes:  store,
		Reporter:  reporter,
		Metrics:   counters,
	}
	if cfg.Storage.SaveResults {
		deps.Results = store
	}

	r := runner.New(rc, runner.Config{
		Session:       session,
		Strategy:      cfg.StrategyParams(),
		Parallel:      !cfg.Simulation.Sequential,
		Workers:       cfg.Simulation.Workers,
		Tickers:       cfg.Simulation.Tickers,
		ProgressEvery: cfg.Simulation.ProgressEvery,
	}, deps)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reports, runErr := r.Run(ctx, dates, params)

	if path := cfg.Metrics.Textfile; path != "" {
		if err := counters.WriteTextfile(path); err != nil {
			slog.Warn("failed to write metrics", "err", err, "path", path)
		}
	}

	if runErr != nil {
		slog.Error("simulation failed", "err", runErr, "completed_days", len(reports))
		return 1
	}

	rc.Logger.Info("stock backtest finished", "days", len(reports), "run_id", rc.RunID)
	return 0
}
