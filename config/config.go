package config

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lethanhtung0208/stock/internal/application/runner"
	"github.com/lethanhtung0208/stock/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del backtester.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Params     ParamsConfig     `yaml:"params"`
	Grid       GridConfig       `yaml:"grid"`
	Report     ReportConfig     `yaml:"report"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// SimulationConfig controla el reloj, las fechas y el reparto de trabajo.
type SimulationConfig struct {
	Dates         []string `yaml:"dates"`      // YYYY-MM-DD
	DatesFile     string   `yaml:"dates_file"` // "date_combinations: (2024, 10, 17), (2024, 10, 18)"
	Sequential    bool     `yaml:"sequential"`
	Workers       int      `yaml:"workers"` // 0 = NumCPU
	ProgressEvery int      `yaml:"progress_every"`
	Tickers       []int    `yaml:"tickers"` // whitelist; vacío = universo completo

	Open          string `yaml:"open"` // HH:MM:SS
	Close         string `yaml:"close"`
	Step          string `yaml:"step"` // duración Go: "8s"
	BlackoutStart string `yaml:"blackout_start"`
	BlackoutEnd   string `yaml:"blackout_end"`
	BlackoutMode  string `yaml:"blackout_mode"` // decay | liquidate
	EntryCutoff   string `yaml:"entry_cutoff"`
}

// StrategyConfig son las constantes compartidas por todos los sets.
type StrategyConfig struct {
	FeePercentage     float64  `yaml:"fee_percentage"`
	TaxRate           float64  `yaml:"tax_rate"`
	MarginMultiplier  float64  `yaml:"margin_multiplier"`
	MaxSpreadFraction float64  `yaml:"max_spread_fraction"`
	MinSpread         float64  `yaml:"min_spread"`
	MaxPrice          float64  `yaml:"max_price"`
	MinVolume         float64  `yaml:"min_volume"`
	PreferredPrice    float64  `yaml:"preferred_price"`
	GainLen           int      `yaml:"gain_len"`
	LossLen           int      `yaml:"loss_len"`
	StopLossPct       float64  `yaml:"stop_loss_pct"`
	TakeProfitPct     float64  `yaml:"take_profit_pct"`
	PyramidCap        int      `yaml:"pyramid_cap"`
	StartingCapital   float64  `yaml:"starting_capital"`
	InvertSignals     bool     `yaml:"invert_signals"`
	DecayProfitGate   float64  `yaml:"decay_profit_gate"`
}

// ParamsConfig son los valores fijos de cada set que no barre el grid.
type ParamsConfig struct {
	InitialBalance    float64                `yaml:"initial_balance"` // 0 = starting_capital
	MinDiff           float64                `yaml:"min_diff"`
	MaxDiff           float64                `yaml:"max_diff"`
	MinPriceDiff      float64                `yaml:"min_price_diff"`
	MaxPriceDiff      float64                `yaml:"max_price_diff"`
	MinTradePriceDiff float64                `yaml:"min_trade_price_diff"`
	MinStopPriceDiff  float64                `yaml:"min_stop_price_diff"`
	ProfitFloorK      float64                `yaml:"profit_floor_k"`
	ProfitCeilingK    float64                `yaml:"profit_ceiling_k"`
	StepThresholds    []domain.StepThreshold `yaml:"step_thresholds"`
}

// Range es una dimensión del grid: una lista explícita o from..to (inclusive) con step.
type Range struct {
	Values []float64 `yaml:"values"`
	From   float64   `yaml:"from"`
	To     float64   `yaml:"to"`
	Step   float64   `yaml:"step"`
}

// GridConfig tiene un Range por dimensión barrida.
type GridConfig struct {
	Root             Range `yaml:"root"`
	Take             Range `yaml:"take"`
	HoldMinutes      Range `yaml:"hold_minutes"`
	LookbackDays     Range `yaml:"lookback_days"`
	ExtremeThreshold Range `yaml:"extreme_threshold"`
	MinTradeQty      Range `yaml:"min_trade_qty"`
	MinDecrements    Range `yaml:"min_decrements"`
	ExtraDecrements  Range `yaml:"extra_decrements"`
	TradeGainLen     Range `yaml:"trade_gain_len"`
	MinUpDownDiff    Range `yaml:"min_up_down_diff"`
}

// ReportConfig filtra lo que se imprime fuera del modo single.
type ReportConfig struct {
	MinMaxProfit float64 `yaml:"min_max_profit"`
	MinProfit    float64 `yaml:"min_profit"`
	Top          int     `yaml:"top"` // 0 = todos
	Format       string  `yaml:"format"` // table | compact
}

// StorageConfig controla de dónde se leen los datos de mercado.
type StorageConfig struct {
	DSN         string  `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
	ExtremesQPS float64 `yaml:"extremes_qps"` // 0 = sin límite
	SaveResults bool    `yaml:"save_results"`
}

// MetricsConfig controla el volcado de contadores en formato Prometheus.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // vacío = desactivado
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug | info | warn | error
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`   // vacío = solo stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	if cfg.Simulation.DatesFile != "" {
		dates, err := readDatesFile(cfg.Simulation.DatesFile)
		if err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
		cfg.Simulation.Dates = append(cfg.Simulation.Dates, dates...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STOCK_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("STOCK_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STOCK_WORKERS=%q: %w", v, err)
		}
		cfg.Simulation.Workers = n
	}
	return nil
}

// defaults devuelve las constantes originales de la estrategia, los params y
// el filtro del reporte. yaml.Unmarshal solo pisa las keys presentes, así que
// un 0 explícito en el YAML se respeta.
func defaults() Config {
	return Config{
		Strategy: StrategyConfig{
			FeePercentage:     0.003,
			TaxRate:           0.2,
			MarginMultiplier:  3,
			MaxSpreadFraction: 0.00036,
			MinSpread:         0.001,
			MaxPrice:          15000,
			MinVolume:         64000,
			PreferredPrice:    300,
			GainLen:           3,
			LossLen:           7,
			StopLossPct:       0.04,
			TakeProfitPct:     0.09,
			PyramidCap:        6,
			StartingCapital:   3_500_000,
			DecayProfitGate:   -1e11,
		},
		Params: ParamsConfig{
			MinDiff:           0.0144,
			MaxDiff:           0.0225,
			MinPriceDiff:      0.00016,
			MaxPriceDiff:      0.00049,
			MinTradePriceDiff: 0.00009,
			MinStopPriceDiff:  0.00009,
			ProfitFloorK:      -9000,
			ProfitCeilingK:    4000,
		},
		Report: ReportConfig{
			MinMaxProfit: -2_000_000,
			MinProfit:    -20_000_000,
		},
	}
}

// setDefaults completa lo que un cero no puede significar: horarios, grid,
// balance inicial y logging.
func setDefaults(cfg *Config) {
	sim := &cfg.Simulation
	defStr(&sim.Open, "09:00:04")
	defStr(&sim.Close, "14:54:04")
	defStr(&sim.Step, "8s")
	defStr(&sim.BlackoutStart, "11:30:00")
	defStr(&sim.BlackoutEnd, "12:31:00")
	defStr(&sim.BlackoutMode, string(runner.BlackoutDecay))
	defStr(&sim.EntryCutoff, "10:00:00")
	if sim.ProgressEvery <= 0 {
		sim.ProgressEvery = 450
	}

	p := &cfg.Params
	defFloat(&p.InitialBalance, cfg.Strategy.StartingCapital)
	if len(p.StepThresholds) == 0 {
		p.StepThresholds = []domain.StepThreshold{{UpFloor: 0, RetreatCeil: 130}}
	}

	g := &cfg.Grid
	defRange(&g.Root, Range{From: 1.0, To: 1.95, Step: 0.05})
	defRange(&g.Take, Range{From: 5, To: 13, Step: 2})
	defRange(&g.HoldMinutes, Range{Values: []float64{65}})
	defRange(&g.LookbackDays, Range{Values: []float64{78}})
	defRange(&g.ExtremeThreshold, Range{Values: []float64{0.007}})
	defRange(&g.MinTradeQty, Range{Values: []float64{300}})
	defRange(&g.MinDecrements, Range{Values: []float64{2}})
	defRange(&g.ExtraDecrements, Range{Values: []float64{3}})
	defRange(&g.TradeGainLen, Range{Values: []float64{5}})
	defRange(&g.MinUpDownDiff, Range{Values: []float64{2002}})

	defStr(&cfg.Report.Format, "table")

	defStr(&cfg.Storage.DSN, "stock.db")

	defStr(&cfg.Log.Level, "info")
	defStr(&cfg.Log.Format, "text")
	defInt(&cfg.Log.MaxSizeMB, 100)
	defInt(&cfg.Log.MaxBackups, 5)
	defInt(&cfg.Log.MaxAgeDays, 30)
}

// Validate rechaza configuraciones que no pueden producir una simulación.
func (c *Config) Validate() error {
	if len(c.Simulation.Dates) == 0 {
		return fmt.Errorf("no simulation dates")
	}
	if _, err := c.Dates(); err != nil {
		return err
	}
	session, err := c.Session()
	if err != nil {
		return err
	}
	if err := session.Validate(); err != nil {
		return err
	}
	if c.Strategy.MarginMultiplier <= 0 {
		return fmt.Errorf("strategy.margin_multiplier must be positive, got %g", c.Strategy.MarginMultiplier)
	}
	grid := c.Grid.Build()
	if grid.Size() == 0 {
		return fmt.Errorf("empty parameter grid")
	}
	for _, take := range grid.Take {
		if take <= 0 {
			return fmt.Errorf("grid.take must be positive, got %g", take)
		}
	}
	switch c.Report.Format {
	case "table", "compact":
	default:
		return fmt.Errorf("unknown report format %q", c.Report.Format)
	}
	return nil
}

// Dates devuelve las fechas a simular, en el orden configurado.
func (c *Config) Dates() ([]time.Time, error) {
	out := make([]time.Time, 0, len(c.Simulation.Dates))
	for _, s := range c.Simulation.Dates {
		d, err := time.ParseInLocation(time.DateOnly, s, time.Local)
		if err != nil {
			return nil, fmt.Errorf("date %q: %w", s, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Session convierte los horarios HH:MM:SS en offsets desde medianoche.
func (c *Config) Session() (runner.Session, error) {
	sim := c.Simulation
	var s runner.Session
	var err error
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"open", sim.Open, &s.Open},
		{"close", sim.Close, &s.Close},
		{"blackout_start", sim.BlackoutStart, &s.BlackoutStart},
		{"blackout_end", sim.BlackoutEnd, &s.BlackoutEnd},
		{"entry_cutoff", sim.EntryCutoff, &s.EntryCutoff},
	}
	for _, f := range fields {
		if *f.dst, err = clock(f.raw); err != nil {
			return runner.Session{}, fmt.Errorf("simulation.%s: %w", f.name, err)
		}
	}
	if s.Step, err = time.ParseDuration(sim.Step); err != nil {
		return runner.Session{}, fmt.Errorf("simulation.step: %w", err)
	}
	s.BlackoutMode = runner.BlackoutMode(sim.BlackoutMode)
	return s, nil
}

// StrategyParams construye las constantes del motor.
func (c *Config) StrategyParams() domain.Strategy {
	st := c.Strategy
	return domain.Strategy{
		FeePercentage:     st.FeePercentage,
		TaxRate:           st.TaxRate,
		MarginMultiplier:  st.MarginMultiplier,
		MaxSpreadFraction: st.MaxSpreadFraction,
		MinSpread:         st.MinSpread,
		MaxPrice:          st.MaxPrice,
		MinVolume:         st.MinVolume,
		PreferredPrice:    st.PreferredPrice,
		GainLen:           st.GainLen,
		LossLen:           st.LossLen,
		StopLossPct:       st.StopLossPct,
		TakeProfitPct:     st.TakeProfitPct,
		PyramidCap:        st.PyramidCap,
		StartingCapital:   st.StartingCapital,
		InvertSignals:     st.InvertSignals,
		DecayProfitGate:   st.DecayProfitGate,
	}
}

// BaseParams son los valores no barridos sobre los que se expande el grid.
func (c *Config) BaseParams() domain.Params {
	p := c.Params
	return domain.Params{
		InitialBalance: p.InitialBalance,
		Trend: domain.TrendBands{
			MinDiff:      p.MinDiff,
			MaxDiff:      p.MaxDiff,
			MinPriceDiff: p.MinPriceDiff,
			MaxPriceDiff: p.MaxPriceDiff,
		},
		MinTradePriceDiff: p.MinTradePriceDiff,
		MinStopPriceDiff:  p.MinStopPriceDiff,
		ProfitFloorK:      p.ProfitFloorK,
		ProfitCeilingK:    p.ProfitCeilingK,
		StepThresholds:    p.StepThresholds,
	}
}

// Build expande cada Range a su lista de valores.
func (g GridConfig) Build() runner.Grid {
	return runner.Grid{
		Root:             g.Root.Expand(),
		Take:             g.Take.Expand(),
		HoldMinutes:      g.HoldMinutes.Expand(),
		LookbackDays:     ints[int](g.LookbackDays.Expand()),
		ExtremeThreshold: g.ExtremeThreshold.Expand(),
		MinTradeQty:      ints[int64](g.MinTradeQty.Expand()),
		MinDecrements:    ints[int](g.MinDecrements.Expand()),
		ExtraDecrements:  ints[int](g.ExtraDecrements.Expand()),
		TradeGainLen:     ints[int](g.TradeGainLen.Expand()),
		MinUpDownDiff:    ints[int](g.MinUpDownDiff.Expand()),
	}
}

// Expand devuelve Values si hay, si no from, from+step, ... hasta to inclusive.
func (r Range) Expand() []float64 {
	if len(r.Values) > 0 {
		return append([]float64(nil), r.Values...)
	}
	if r.Step <= 0 {
		if r.From == r.To && r.From != 0 {
			return []float64{r.From}
		}
		return nil
	}
	n := int(math.Floor((r.To-r.From)/r.Step+1e-9)) + 1
	out := make([]float64, 0, max(n, 0))
	for i := range n {
		v := r.From + float64(i)*r.Step
		out = append(out, math.Round(v*1e9)/1e9)
	}
	return out
}

func (r Range) empty() bool { return len(r.Values) == 0 && r.Step == 0 && r.From == 0 && r.To == 0 }

func ints[T int | int64](vs []float64) []T {
	out := make([]T, len(vs))
	for i, v := range vs {
		out[i] = T(math.Round(v))
	}
	return out
}

// clock parsea "HH:MM:SS" (o "HH:MM") como offset desde medianoche.
func clock(s string) (time.Duration, error) {
	layout := time.TimeOnly
	if strings.Count(s, ":") == 1 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

var tupleRe = regexp.MustCompile(`\((\d{4}),\s*(\d{1,2}),\s*(\d{1,2})\)`)

// readDatesFile lee el formato "date_combinations: (2024, 10, 17), (2024, 10, 18)".
// Las líneas con otras keys se ignoran.
func readDatesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read dates file %q: %w", path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok || strings.TrimSpace(key) != "date_combinations" {
			continue
		}
		for _, m := range tupleRe.FindAllStringSubmatch(value, -1) {
			y, _ := strconv.Atoi(m[1])
			mo, _ := strconv.Atoi(m[2])
			d, _ := strconv.Atoi(m[3])
			out = append(out, fmt.Sprintf("%04d-%02d-%02d", y, mo, d))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dates file %q: %w", path, err)
	}
	return out, nil
}

func defStr(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func defFloat(dst *float64, v float64) {
	if *dst == 0 {
		*dst = v
	}
}

func defInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func defRange(dst *Range, v Range) {
	if dst.empty() {
		*dst = v
	}
}
