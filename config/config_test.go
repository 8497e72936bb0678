package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lethanhtung0208/stock/config"
	"github.com/lethanhtung0208/stock/internal/application/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsFromMinimalFile(t *testing.T) {
	path := writeFile(t, "c.yaml", "simulation:\n  dates: [\"2024-10-17\"]\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	st := cfg.StrategyParams()
	assert.Equal(t, 0.003, st.FeePercentage)
	assert.Equal(t, 3_500_000.0, st.StartingCapital)
	assert.Equal(t, -1e11, st.DecayProfitGate)
	assert.False(t, st.InvertSignals)

	base := cfg.BaseParams()
	assert.Equal(t, 3_500_000.0, base.InitialBalance)
	assert.Equal(t, 0.0144, base.Trend.MinDiff)
	assert.Equal(t, -9_000_000.0, base.ProfitFloor())

	grid := cfg.Grid.Build()
	assert.Len(t, grid.Root, 20)
	assert.Equal(t, 1.95, grid.Root[19])
	assert.Equal(t, []float64{5, 7, 9, 11, 13}, grid.Take)
	assert.Equal(t, 100, grid.Size())

	session, err := cfg.Session()
	require.NoError(t, err)
	assert.Equal(t, runner.DefaultSession(), session)
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := config.Load("config.yaml")
	require.NoError(t, err)

	dates, err := cfg.Dates()
	require.NoError(t, err)
	assert.Len(t, dates, 2)
	assert.Equal(t, time.October, dates[0].Month())
	assert.Equal(t, 20, cfg.Report.Top)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOCK_DSN", "/tmp/market.db")
	t.Setenv("STOCK_WORKERS", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load(writeFile(t, "c.yaml", "simulation:\n  dates: [\"2024-10-17\"]\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/market.db", cfg.Storage.DSN)
	assert.Equal(t, 3, cfg.Simulation.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)

	t.Setenv("STOCK_WORKERS", "many")
	_, err = config.Load(writeFile(t, "c.yaml", "simulation:\n  dates: [\"2024-10-17\"]\n"))
	assert.Error(t, err)
}

func TestLoad_ExplicitZeroGateIsKept(t *testing.T) {
	cfg, err := config.Load(writeFile(t, "c.yaml", `
simulation:
  dates: ["2024-10-17"]
strategy:
  decay_profit_gate: 0
`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.StrategyParams().DecayProfitGate)
}

func TestLoad_ExplicitZerosAreKept(t *testing.T) {
	cfg, err := config.Load(writeFile(t, "c.yaml", `
simulation:
  dates: ["2024-10-17"]
strategy:
  fee_percentage: 0
  tax_rate: 0
  min_spread: 0
  min_volume: 0
  preferred_price: 0
  pyramid_cap: 0
params:
  profit_ceiling_k: 0
report:
  min_profit: 0
`))
	require.NoError(t, err)

	st := cfg.StrategyParams()
	assert.Equal(t, 0.0, st.FeePercentage)
	assert.Equal(t, 0.0, st.TaxRate)
	assert.Equal(t, 0.0, st.MinSpread)
	assert.Equal(t, 0.0, st.MinVolume)
	assert.Equal(t, 0.0, st.PreferredPrice)
	assert.Equal(t, 0, st.PyramidCap)
	assert.Equal(t, 0.0, cfg.BaseParams().ProfitCeiling())
	assert.Equal(t, 0.0, cfg.Report.MinProfit)

	// las keys ausentes conservan su default
	assert.Equal(t, 3.0, st.MarginMultiplier)
	assert.Equal(t, 7, st.LossLen)
	assert.Equal(t, -9_000_000.0, cfg.BaseParams().ProfitFloor())
	assert.Equal(t, -2_000_000.0, cfg.Report.MinMaxProfit)
}

func TestLoad_DatesFile(t *testing.T) {
	dates := writeFile(t, "sim_set.txt", "date_combinations: (2024, 10, 17), (2024, 10, 18), (2024, 9, 3)\n")
	cfg, err := config.Load(writeFile(t, "c.yaml", "simulation:\n  dates_file: "+dates+"\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-10-17", "2024-10-18", "2024-09-03"}, cfg.Simulation.Dates)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"no dates":      "simulation:\n  workers: 2\n",
		"bad date":      "simulation:\n  dates: [\"17/10/2024\"]\n",
		"bad clock":     "simulation:\n  dates: [\"2024-10-17\"]\n  open: \"9h\"\n",
		"bad mode":      "simulation:\n  dates: [\"2024-10-17\"]\n  blackout_mode: pause\n",
		"zero take":     "simulation:\n  dates: [\"2024-10-17\"]\ngrid:\n  take: { values: [0] }\n",
		"bad format":    "simulation:\n  dates: [\"2024-10-17\"]\nreport:\n  format: html\n",
		"zero margin":   "simulation:\n  dates: [\"2024-10-17\"]\nstrategy:\n  margin_multiplier: 0\n",
		"inverted grid": "simulation:\n  dates: [\"2024-10-17\"]\ngrid:\n  root: { from: 2, to: 1, step: 0.5 }\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, "c.yaml", content))
			assert.Error(t, err)
		})
	}
}

func TestRange_Expand(t *testing.T) {
	assert.Equal(t, []float64{1, 2}, config.Range{Values: []float64{1, 2}}.Expand())
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, config.Range{From: 0.1, To: 0.3, Step: 0.1}.Expand())
	assert.Equal(t, []float64{4}, config.Range{From: 4, To: 4}.Expand())
	assert.Empty(t, config.Range{From: 3, To: 1, Step: 1}.Expand())
}

func TestMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
