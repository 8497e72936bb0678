package notify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lethanhtung0208/stock/internal/adapters/notify"
	"github.com/lethanhtung0208/stock/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC)

func defaultFilter() notify.Filter {
	return notify.Filter{MinMaxProfit: -2_000_000, MinProfit: -20_000_000}
}

func makeResult(handle int, root, profit, maxProfit float64) domain.Result {
	return domain.Result{
		Handle:        handle,
		Params:        domain.Params{Root: root, Take: 5, HoldMinutes: 65, MinTradeQty: 300, MinDecrements: 2, MaxDecrements: 5, TradeGainLen: 5},
		RealProfit:    profit,
		RealMaxProfit: domain.Mark{Value: maxProfit, At: day.Add(10*time.Hour + 8*time.Second)},
		Trades:        map[domain.TxKind]int{domain.TxLong: 3, domain.TxSell: 3},
	}
}

func report(single bool, results ...domain.Result) domain.DayReport {
	return domain.DayReport{RunID: "r", Date: day, Single: single, Ticks: 2200, Elapsed: 1500 * time.Millisecond, Results: results}
}

func TestConsole_ReportDay_Table(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, defaultFilter(), false)

	err := c.ReportDay(context.Background(), report(false,
		makeResult(0, 1.35, 1_234_567.6, 2_000_000),
		makeResult(1, 1.4, -150_000, 10_000),
	))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[2024-10-17] 2 sets")
	assert.Contains(t, out, "1,234,568")
	assert.Contains(t, out, "-150,000")
	assert.Contains(t, out, "10:00:08")
	assert.Contains(t, out, "1.35")
}

func TestConsole_ReportDay_FilterDropsLosers(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, defaultFilter(), true)

	err := c.ReportDay(context.Background(), report(false,
		makeResult(0, 1.1, 5_000, 8_000),
		makeResult(1, 1.2, -1_000, -2_500_000),  // max profit bajo el filtro
		makeResult(2, 1.3, -25_000_000, 50_000), // profit bajo el filtro
	))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "shown 1")
	assert.Contains(t, out, "root: 1.1,")
	assert.NotContains(t, out, "root: 1.2,")
	assert.NotContains(t, out, "root: 1.3,")
}

func TestConsole_ReportDay_Top(t *testing.T) {
	var buf bytes.Buffer
	f := defaultFilter()
	f.Top = 2
	c := notify.NewConsoleWriter(&buf, f, true)

	err := c.ReportDay(context.Background(), report(false,
		makeResult(0, 1.1, 3, 3), makeResult(1, 1.2, 2, 2), makeResult(2, 1.3, 1, 1),
	))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(buf.String(), "root:"))
}

func TestConsole_ReportDay_SingleShowsEverythingAndTrades(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, defaultFilter(), true)

	err := c.ReportDay(context.Background(), report(true, makeResult(7, 1.5, -30_000_000, -3_000_000)))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "root: 1.5,")
	assert.Contains(t, out, "set 7 trades: LONG: 3 SELL: 3")
}

func TestConsole_ReportDay_NothingToShow(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, defaultFilter(), false)

	require.NoError(t, c.ReportDay(context.Background(), report(false, makeResult(0, 1, -1, -3_000_000))))
	assert.Contains(t, buf.String(), "no results above the report filter")
}

func TestConsole_ReportSweep(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, defaultFilter(), false)

	rows := domain.Summarize([]domain.DayReport{
		report(false, makeResult(0, 1.1, 1_000, 1_000), makeResult(1, 1.2, -500, 0)),
		report(false, makeResult(0, 1.1, 3_000, 3_000), makeResult(1, 1.2, -700, 0)),
	})
	require.NoError(t, c.ReportSweep(context.Background(), rows))

	out := buf.String()
	assert.Contains(t, out, "SWEEP")
	assert.Contains(t, out, "4,000")
	assert.Contains(t, out, "-1,200")
	assert.Less(t, strings.Index(out, "4,000"), strings.Index(out, "-1,200"), "best total first")
}

func TestConsole_ReportSweep_Empty(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, defaultFilter(), false)
	require.NoError(t, c.ReportSweep(context.Background(), nil))
	assert.Empty(t, buf.String())
}
