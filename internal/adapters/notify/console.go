package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lethanhtung0208/stock/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Filter decide qué resultados se imprimen fuera del modo single.
type Filter struct {
	MinMaxProfit float64 // real max profit estrictamente mayor
	MinProfit    float64 // real profit estrictamente mayor
	Top          int     // 0 = sin límite
}

// Console implementa ports.Reporter.
type Console struct {
	out     io.Writer
	filter  Filter
	compact bool
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(filter Filter, compact bool) *Console {
	return &Console{out: os.Stdout, filter: filter, compact: compact}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, filter Filter, compact bool) *Console {
	return &Console{out: w, filter: filter, compact: compact}
}

// ReportDay imprime el ranking del día. En modo single no se filtra nada y
// se añade el resumen de operaciones por tipo.
func (c *Console) ReportDay(_ context.Context, report domain.DayReport) error {
	date := report.Date.Format(time.DateOnly)
	shown := c.visible(report)

	fmt.Fprintf(c.out, "\n[%s] %d sets · %d ticks · %s · shown %d\n",
		date, len(report.Results), report.Ticks, report.Elapsed.Round(time.Millisecond), len(shown))

	if len(shown) == 0 {
		fmt.Fprintln(c.out, "  no results above the report filter")
		return nil
	}

	if c.compact {
		c.printCompact(date, shown)
	} else {
		c.printTable(date, shown)
	}

	if report.Single {
		for _, r := range shown {
			c.printTradeCounts(r)
		}
	}
	return nil
}

// ReportSweep imprime el agregado de todas las fechas por combinación.
func (c *Console) ReportSweep(_ context.Context, rows []domain.SweepRow) error {
	if len(rows) == 0 {
		return nil
	}
	if c.filter.Top > 0 && len(rows) > c.filter.Top {
		rows = rows[:c.filter.Top]
	}

	fmt.Fprintf(c.out, "\n╔══════════════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(c.out, "║  SWEEP — real profit per combination across all dates           ║\n")
	fmt.Fprintf(c.out, "╚══════════════════════════════════════════════════════════════════╝\n\n")

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Params", "Days", "Total", "Mean", "Best", "Worst", "Halted")
	for i, r := range rows {
		table.Append(
			fmt.Sprintf("%d", i+1),
			r.Key,
			fmt.Sprintf("%d", r.Days),
			money(r.TotalRealProfit),
			money(r.MeanRealProfit),
			money(r.BestDay),
			money(r.WorstDay),
			fmt.Sprintf("%d", r.HaltedDays),
		)
	}
	table.Render()
	return nil
}

// visible aplica el filtro y el top N; el orden de entrada se conserva.
func (c *Console) visible(report domain.DayReport) []domain.Result {
	if report.Single {
		return report.Results
	}
	var out []domain.Result
	for _, r := range report.Results {
		if r.RealMaxProfit.Value > c.filter.MinMaxProfit && r.RealProfit > c.filter.MinProfit {
			out = append(out, r)
		}
		if c.filter.Top > 0 && len(out) == c.filter.Top {
			break
		}
	}
	return out
}

func (c *Console) printTable(date string, results []domain.Result) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Root", "Take", "Qty", "Dec", "TGL", "Hold", "Date", "Profit", "Max profit", "At", "")
	for i, r := range results {
		p := r.Params
		status := ""
		if r.Halted {
			status = "halted"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%g", p.Root),
			fmt.Sprintf("%g", p.Take),
			fmt.Sprintf("%d", p.MinTradeQty),
			fmt.Sprintf("%d/%d", p.MinDecrements, p.MaxDecrements),
			fmt.Sprintf("%d", p.TradeGainLen),
			fmt.Sprintf("%g", p.HoldMinutes),
			date,
			money(r.RealProfit),
			money(r.RealMaxProfit.Value),
			markTime(r.RealMaxProfit),
			status,
		)
	}
	table.Render()
}

// printCompact imprime una línea por resultado.
func (c *Console) printCompact(date string, results []domain.Result) {
	for _, r := range results {
		p := r.Params
		fmt.Fprintf(c.out, "root: %g, take: %g, min_trade_qty: %d, min_decrements: %d, max_decrements: %d, trade_gain_len: %d, time: %g, date: %s, profit: %s, max_profit: %s\n",
			p.Root, p.Take, p.MinTradeQty, p.MinDecrements, p.MaxDecrements, p.TradeGainLen, p.HoldMinutes,
			date, money(r.RealProfit), money(r.RealMaxProfit.Value))
	}
}

func (c *Console) printTradeCounts(r domain.Result) {
	kinds := make([]string, 0, len(r.Trades))
	for k := range r.Trades {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	var sb strings.Builder
	fmt.Fprintf(&sb, "  set %d trades:", r.Handle)
	for _, k := range kinds {
		fmt.Fprintf(&sb, " %s: %d", k, r.Trades[domain.TxKind(k)])
	}
	fmt.Fprintln(c.out, sb.String())
}

// --- helpers ---

// money formatea con separador de miles y sin decimales: -1,234,568.
func money(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := fmt.Sprintf("%.0f", v)

	var sb strings.Builder
	if neg && digits != "0" {
		sb.WriteByte('-')
	}
	for i, ch := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

func markTime(m domain.Mark) string {
	if m.At.IsZero() {
		return "-"
	}
	return m.At.Format("15:04:05")
}
