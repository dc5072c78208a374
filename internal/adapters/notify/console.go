package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/roundwatch/internal/domain"
)

// Console implements ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
	top   int
}

// NewConsole creates a notifier that writes to stdout.
// table=false prints one compact line per pass.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, top: 3}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, top: 3}
}

// Notify prints the snapshot in the configured mode.
func (c *Console) Notify(_ context.Context, snap domain.Snapshot) error {
	if snap.Phase == domain.PhaseNoRound {
		fmt.Fprintf(c.out, "[%s] no round yet\n", clock(snap.TakenAt))
		return nil
	}

	if c.table {
		c.printFull(snap)
	} else {
		c.printCompact(snap)
	}
	return nil
}

// printCompact prints the round header and the top agents on one line.
func (c *Console) printCompact(snap domain.Snapshot) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s → %d preds ref %s",
		clock(snap.TakenAt), roundLabel(snap), len(snap.Predictions), refLabel(snap))

	for i, p := range snap.Predictions {
		if i >= c.top {
			break
		}
		fmt.Fprintf(&sb, " | #%d %s %s", i+1, shortAddr(p.Agent), accuracyLabel(snap, p))
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull prints the header and the ranking table.
func (c *Console) printFull(snap domain.Snapshot) {
	fmt.Fprintf(c.out, "\n[%s] %s | ref %s | %d predictions\n",
		clock(snap.TakenAt), roundLabel(snap), refLabel(snap), len(snap.Predictions))

	if snap.Phase == domain.PhaseFinalized && snap.Round.WinnerAgent != "" {
		fmt.Fprintf(c.out, "  winner %s at $%s\n", snap.Round.WinnerAgent, snap.Round.ActualPrice)
	}

	if len(snap.Predictions) == 0 {
		fmt.Fprintln(c.out, "  no predictions submitted")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Agent", "Predicted", "Accuracy", "Band", "Wins", "Win rate", "Submitted")

	for i, p := range snap.Predictions {
		table.Append(
			fmt.Sprintf("%d", i+1),
			agentLabel(p),
			"$"+p.PredictedPrice.String(),
			accuracyLabel(snap, p),
			bandLabel(snap, p),
			fmt.Sprintf("%d/%d", p.BestGuesses, p.TotalGuesses),
			fmt.Sprintf("%.1f%%", p.WinRate),
			clock(p.Timestamp),
		)
	}

	table.Render()
}

// --- helpers ---

func roundLabel(snap domain.Snapshot) string {
	label := fmt.Sprintf("round %d %s", snap.Round.ID, strings.ToUpper(string(snap.Phase)))
	if snap.Phase == domain.PhaseActive {
		label += " " + remainingLabel(snap.TimeRemaining)
	}
	return label
}

func remainingLabel(d time.Duration) string {
	d = d.Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm left", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm%02ds left", int(d.Minutes()), int(d.Seconds())%60)
}

func refLabel(snap domain.Snapshot) string {
	if !snap.PriceKnown {
		return "n/a"
	}
	return fmt.Sprintf("$%.2f", snap.ReferencePrice)
}

func accuracyLabel(snap domain.Snapshot, p domain.LivePrediction) string {
	if !snap.PriceKnown {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", domain.DisplayAccuracy(p.Accuracy))
}

func bandLabel(snap domain.Snapshot, p domain.LivePrediction) string {
	if !snap.PriceKnown {
		return "-"
	}
	band := string(domain.Band(p.Accuracy))
	if p.Winner {
		band += " *"
	}
	return band
}

func agentLabel(p domain.LivePrediction) string {
	if p.AgentWallet == "" || p.AgentWallet == p.Agent {
		return shortAddr(p.Agent)
	}
	return shortAddr(p.Agent) + " (" + shortAddr(p.AgentWallet) + ")"
}

func shortAddr(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.Local().Format("15:04:05")
}
