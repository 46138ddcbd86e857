// Package notify presents backtest results on the console.
package notify

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/dmarzal/predictlab/internal/domain"
)

const maxTradesShown = 25

// Console implements ports.Notifier with formatted tables.
type Console struct {
	out    io.Writer
	ledger bool // print the full trade ledger table
}

// NewConsole creates a console notifier. When ledger is true the trade
// table is printed in addition to the run summary.
func NewConsole(ledger bool) *Console {
	return NewConsoleWriter(os.Stdout, ledger)
}

// NewConsoleWriter creates a Console writing to w. Used in tests.
func NewConsoleWriter(w io.Writer, ledger bool) *Console {
	return &Console{out: w, ledger: ledger}
}

// PrintRun prints the run summary and, optionally, its trade ledger.
func (c *Console) PrintRun(r domain.RunResult) {
	fmt.Fprintf(c.out, "\n=== RUN %s ===\n", r.RunID)
	fmt.Fprintf(c.out, "  capital   $%.2f → $%.2f (%+.2f%%)\n", r.InitialCapital, r.FinalValue, r.ReturnPct)
	fmt.Fprintf(c.out, "  realized  $%.4f | fees $%.4f | max drawdown %.2f%%\n",
		r.RealizedPnl, r.TotalFees, r.MaxDrawdown*100)
	fmt.Fprintf(c.out, "  events %d | orders %d | trades %d | win rate %.0f%%\n",
		r.EventsSeen, r.OrdersPlaced, len(r.Trades), r.WinRate()*100)

	if !c.ledger || len(r.Trades) == 0 {
		return
	}
	c.printLedger(r.Trades)
}

func (c *Console) printLedger(trades []domain.TradeRecord) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Key", "Side", "Size", "Entry", "Exit", "PnL", "PnL %", "Held", "Res")

	shown := trades
	if len(shown) > maxTradesShown {
		shown = shown[len(shown)-maxTradesShown:]
	}
	for i, t := range shown {
		pct := "n/a"
		if t.PnlPctValid {
			pct = fmt.Sprintf("%+.2f%%", t.PnlPct)
		}
		res := ""
		if t.MarketResolved {
			res = "R"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			t.Key.String(),
			string(t.Side),
			fmt.Sprintf("%.2f", t.Size),
			fmt.Sprintf("%.4f", t.EntryPrice),
			fmt.Sprintf("%.4f", t.ExitPrice),
			fmt.Sprintf("%+.4f", t.Pnl),
			pct,
			shortDuration(t.HoldingTime),
			res,
		)
	}
	table.Render()

	if len(trades) > maxTradesShown {
		fmt.Fprintf(c.out, "  (last %d of %d trades)\n", maxTradesShown, len(trades))
	}
}

// PrintRuns prints the persisted-runs listing.
func (c *Console) PrintRuns(runs []domain.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "no runs recorded yet")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Run", "Started", "Capital", "Final", "Return", "Max DD", "Trades")
	for _, r := range runs {
		table.Append(
			shortID(r.RunID),
			r.StartedAt.Format("2006-01-02 15:04"),
			fmt.Sprintf("$%.0f", r.InitialCapital),
			fmt.Sprintf("$%.2f", r.FinalValue),
			fmt.Sprintf("%+.2f%%", r.ReturnPct),
			fmt.Sprintf("%.2f%%", r.MaxDrawdown*100),
			fmt.Sprintf("%d", r.TradeCount),
		)
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func shortDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	case d >= time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}
