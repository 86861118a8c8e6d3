// Package console renders extraction progress and the final summary for the CLI.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/markdave123-py/pagetext/internal/core"
	"github.com/markdave123-py/pagetext/internal/core/ingestion_engine"
)

type styles struct {
	muted   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	title   lipgloss.Style
	label   lipgloss.Style
	percent lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		title:   r.NewStyle().Bold(true).Underline(true),
		label:   r.NewStyle().Width(12),
		percent: r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
	}
}

// Progress prints one line per orchestrator event. Workers call it
// concurrently; writes are serialized so lines never interleave.
type Progress struct {
	mu    sync.Mutex
	w     io.Writer
	st    styles
	quiet bool
}

var _ core.ProgressSink = (*Progress)(nil)

// NewProgress writes to w. quiet keeps only failures and the summary.
func NewProgress(w io.Writer, quiet bool) *Progress {
	return &Progress{w: w, st: newStyles(lipgloss.NewRenderer(w)), quiet: quiet}
}

func (p *Progress) OnEvent(ev core.Event) {
	line := p.format(ev)
	if line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

func (p *Progress) format(ev core.Event) string {
	rng := fmt.Sprintf("pages %d-%d", ev.Start, ev.End)

	switch ev.Kind {
	case core.EventFailed:
		return p.st.fail.Render(fmt.Sprintf("✗ %s failed after %d attempt(s): %s", rng, ev.Attempt, ev.Message))
	case core.EventStarted:
		if p.quiet {
			return ""
		}
		return p.st.muted.Render("▸ " + rng + " started")
	case core.EventRateLimited:
		if p.quiet {
			return ""
		}
		return p.st.warn.Render(fmt.Sprintf("⏳ %s ▸ rate limited, retrying in %s (attempt %d)",
			rng, formatWait(ev.Wait), ev.Attempt))
	case core.EventCompleted:
		if p.quiet {
			return ""
		}
		return p.st.ok.Render(fmt.Sprintf("✓ %s extracted (%d chars)", rng, ev.Chars))
	case core.EventProgress:
		if p.quiet {
			return ""
		}
		return p.st.percent.Render(fmt.Sprintf("[%3d%%]", ev.Percent)) + " " + p.st.muted.Render(rng+" done")
	}
	return ""
}

// formatWait renders a wait given in seconds.
func formatWait(secs float64) string {
	d := time.Duration(secs * float64(time.Second))
	if d >= time.Second {
		return d.Round(time.Second).String()
	}
	return d.Round(time.Millisecond).String()
}

// PrintSummary writes the run totals after the orchestrator returns.
func (p *Progress) PrintSummary(rep *ingestion_engine.Report, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	row := func(label, value string) {
		b.WriteString("  " + p.st.label.Render(label) + value + "\n")
	}

	b.WriteString("\n" + p.st.title.Render("Extraction summary") + "\n")
	row("chunks", fmt.Sprintf("%d", rep.Chunks))
	row("succeeded", p.st.ok.Render(fmt.Sprintf("%d", rep.SuccessCount)))
	if n := rep.FailedCount(); n > 0 {
		spans := make([]string, n)
		for i, s := range rep.FailedRanges {
			spans[i] = fmt.Sprintf("%d-%d", s.Start, s.End)
		}
		row("failed", p.st.fail.Render(fmt.Sprintf("%d (pages %s)", n, strings.Join(spans, ", "))))
	} else {
		row("failed", "0")
	}
	row("characters", fmt.Sprintf("%d", rep.TotalChars))
	row("elapsed", elapsed.Round(10*time.Millisecond).String())
	if rep.Cancelled {
		row("status", p.st.warn.Render(fmt.Sprintf("cancelled (%d of %d ranges completed)", len(rep.Results), rep.Chunks)))
	}

	fmt.Fprint(p.w, b.String())
}
