package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/quantfork/optsim/internal/domain"
)

// Console implements ports.ExecutionSink by printing one status line per
// cycle. It also renders the full run report for the report command.
type Console struct {
	out io.Writer
}

// NewConsole creates a sink that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a sink for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// RecordExecution prints a compact summary of the settled cycle.
func (c *Console) RecordExecution(_ context.Context, res domain.ExecutionResult) error {
	day := res.Date.Format("2006-01-02")

	if res.Failed() {
		fmt.Fprintf(c.out, "[%s] %s: %s\n", day, strings.ToLower(string(res.State)), res.Err)
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] exits:%d hedges:+%d/-%d probes:%d cores:%d",
		day, res.ExitsDone, res.HedgeAdds, res.HedgeCloses,
		res.ProbesOpened, res.CoresOpened)
	fmt.Fprintf(&sb, " | pnl $%.2f | cap $%.0f avail $%.0f",
		res.RealizedPnL, res.CapitalAfter, res.CapitalAvailable)
	if res.Compliance.Orders > 0 {
		fmt.Fprintf(&sb, " | nbbo %.0f%%", res.Compliance.NbboRate()*100)
	}
	if res.FailedOrders > 0 {
		fmt.Fprintf(&sb, " | failed:%d", res.FailedOrders)
	}

	if res.FreezeReason != "" {
		fmt.Fprintf(&sb, "\n  !! frozen: %s", res.FreezeReason)
	}
	for i, skip := range res.SkipReasons {
		if i >= 2 {
			fmt.Fprintf(&sb, "\n  >> (+%d more skips)", len(res.SkipReasons)-i)
			break
		}
		fmt.Fprintf(&sb, "\n  >> %s", skip)
	}

	fmt.Fprintln(c.out, sb.String())
	return nil
}

// PrintReport renders the per-day rollup table and the aggregate summary.
func (c *Console) PrintReport(stats domain.RunStats) {
	if stats.Cycles == 0 {
		fmt.Fprintln(c.out, "\n  No execution data yet. Run a simulation first.")
		return
	}

	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  EXECUTION QUALITY REPORT\n")
	fmt.Fprintf(c.out, "  %d cycles over %d trading days\n", stats.Cycles, len(stats.Days))
	fmt.Fprintf(c.out, "========================================================\n\n")

	if len(stats.Days) > 0 {
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Date", "Cycles", "Fills", "Fail", "NBBO%", "Mid%", "Slip$", "PnL$")

		for _, d := range stats.Days {
			tbl.Append(
				d.Day,
				fmt.Sprintf("%d", d.Cycles),
				fmt.Sprintf("%d", d.Filled),
				fmt.Sprintf("%d", d.Failed),
				fmt.Sprintf("%.1f", d.NbboRate*100),
				fmt.Sprintf("%.1f", d.MidOrBetterRate*100),
				fmt.Sprintf("$%.2f", d.AvgSlippage),
				fmt.Sprintf("$%.2f", d.RealizedPnL),
			)
		}
		tbl.Render()
	}

	fmt.Fprintf(c.out, "\n  Orders filled: %d (%d failed)\n", stats.Filled, stats.Failed)
	fmt.Fprintf(c.out, "  NBBO compliance: %.1f%% | mid-or-better: %.1f%%\n",
		stats.NbboRate*100, stats.MidOrBetterRate*100)
	fmt.Fprintf(c.out, "  Slippage: $%.2f/order avg, $%.2f total\n",
		stats.AvgSlippage, stats.TotalSlippage)
	fmt.Fprintf(c.out, "  Realized P&L: $%.2f\n", stats.RealizedPnL)
	if stats.Freezes > 0 {
		fmt.Fprintf(c.out, "  Risk freezes: %d\n", stats.Freezes)
	}
	fmt.Fprintf(c.out, "\n")
}
