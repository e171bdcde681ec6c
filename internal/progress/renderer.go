// Package progress renders run progress and the final summary to the
// terminal.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/solfleet/solfleet/internal/swap"
)

// Renderer prints one line per wallet outcome as the run progresses and a
// boxed summary at the end. It is line-oriented on purpose: output stays
// readable when piped or captured alongside the structured log.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer

	styleSuccess lipgloss.Style
	styleFailed  lipgloss.Style
	styleSkipped lipgloss.Style
	styleRetry   lipgloss.Style
	styleBox     lipgloss.Style
	styleTitle   lipgloss.Style
}

// NewRenderer writes to out, usually os.Stdout.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{
		out:          out,
		styleSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		styleFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		styleSkipped: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		styleRetry:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		styleBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2),
		styleTitle: lipgloss.NewStyle().Bold(true),
	}
}

// Observe renders one lifecycle event. Safe for concurrent use, though the
// orchestrator calls it from a single goroutine.
func (r *Renderer) Observe(ev swap.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case swap.EventRetryScheduled:
		fmt.Fprintln(r.out, r.styleRetry.Render(
			fmt.Sprintf("wallet %d: retry %d in %s (%s)", ev.WalletIndex, ev.Attempt, ev.Delay.Round(time.Millisecond), ev.Reason)))
	case swap.EventVerified:
		rc := ev.Receipt
		line := fmt.Sprintf("wallet %d: ✓ swapped %d -> %d  tx %s  (%d attempt(s))",
			ev.WalletIndex, rc.InputAmount, deref(rc.OutputAmount), short(rc.TxID), rc.Attempts)
		fmt.Fprintln(r.out, r.styleSuccess.Render(line))
	case swap.EventFailed:
		rc := ev.Receipt
		line := fmt.Sprintf("wallet %d: ✗ %s: %s", ev.WalletIndex, rc.ErrorKind, rc.ErrorDetail)
		fmt.Fprintln(r.out, r.styleFailed.Render(line))
	case swap.EventSkipped:
		rc := ev.Receipt
		line := fmt.Sprintf("wallet %d: - skipped (%s)", ev.WalletIndex, rc.ErrorDetail)
		fmt.Fprintln(r.out, r.styleSkipped.Render(line))
	}
}

// Summary renders the final boxed report overview.
func (r *Renderer) Summary(report *swap.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exec := report.ExecutionSummary
	vol := report.VolumeSummary

	lines := []string{
		r.styleTitle.Render(fmt.Sprintf("Run %s — %s", short(report.Metadata.RunID), report.Metadata.Status)),
		fmt.Sprintf("wallets: %d planned, %d admitted", exec.WalletsPlanned, exec.WalletsAdmitted),
		fmt.Sprintf("outcomes: %s  %s  %s",
			r.styleSuccess.Render(fmt.Sprintf("%d ok", exec.Succeeded)),
			r.styleFailed.Render(fmt.Sprintf("%d failed", exec.Failed)),
			r.styleSkipped.Render(fmt.Sprintf("%d skipped", exec.Skipped))),
		fmt.Sprintf("volume: in %d, out %d, fees %d", vol.TotalInput, vol.TotalOutput, vol.TotalFees),
	}
	if vol.AvgPriceImpactBps != nil {
		lines = append(lines, fmt.Sprintf("avg price impact: %.1f bps", *vol.AvgPriceImpactBps))
	}
	lines = append(lines, fmt.Sprintf("duration: %dms, attempts: %d, retries: %d",
		report.Metadata.DurationMS, exec.TotalAttempts, exec.RetriesScheduled))

	fmt.Fprintln(r.out, r.styleBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func short(s string) string {
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return s
}

func deref(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}
