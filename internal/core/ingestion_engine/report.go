package ingestion_engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/pagetext/internal/core"
)

// ChunkResult is the terminal outcome of one page range. Err == nil means success.
type ChunkResult struct {
	Index    int    `json:"index"`
	Start    int    `json:"start_page"`
	End      int    `json:"end_page"`
	Text     string `json:"text,omitempty"`
	Err      error  `json:"-"`
	Attempts int    `json:"attempts"`
}

// OK reports whether the range was extracted.
func (r ChunkResult) OK() bool { return r.Err == nil }

// Blank reports whether the range was extracted but holds no text.
func (r ChunkResult) Blank() bool { return r.Err == nil && strings.TrimSpace(r.Text) == "" }

// Report is the aggregate of a run, in page order.
//
// Texts:        per-range text, truncated after the last non-blank success; blank ranges are ""
//               and failed ranges hold FailedMarker.
// FailedRanges: every failed range, in page order, truncated or not.
// Results:      the completed results, in page order (all of them unless Cancelled).
// Text:         the final document.
type Report struct {
	Chunks       int             `json:"chunks"`
	Texts        []string        `json:"-"`
	FailedRanges []core.PageSpan `json:"failed_ranges"`
	SuccessCount int             `json:"success_count"`
	TotalChars   int             `json:"total_chars"`
	Results      []ChunkResult   `json:"-"`
	Text         string          `json:"-"`
	Cancelled    bool            `json:"cancelled"`
}

// FailedCount is the number of ranges that exhausted their attempts.
func (r *Report) FailedCount() int { return len(r.FailedRanges) }

// FailedMarker is the placeholder kept in Texts for a failed range.
func FailedMarker(s core.PageSpan) string {
	return fmt.Sprintf("[Pages %d-%d failed to process]", s.Start, s.End)
}

// reduce folds index-addressed results into a Report. A nil slot means the range never
// reached a terminal outcome (the run was cancelled).
func reduce(results []*ChunkResult, set Settings) *Report {
	rep := &Report{Chunks: len(results), FailedRanges: []core.PageSpan{}}

	texts := make([]string, len(results))
	failed := make([]bool, len(results))
	last := -1

	for i, res := range results {
		if res == nil {
			rep.Cancelled = true
			continue
		}
		rep.Results = append(rep.Results, *res)

		if !res.OK() {
			span := core.PageSpan{Start: res.Start, End: res.End}
			rep.FailedRanges = append(rep.FailedRanges, span)
			texts[i] = FailedMarker(span)
			failed[i] = true
			continue
		}
		if res.Blank() {
			continue
		}
		texts[i] = res.Text
		last = i
	}

	// Trailing truncation: ranges after the last non-blank success are taken as past the end of the document.
	texts, failed = texts[:last+1], failed[:last+1]

	parts := make([]string, 0, len(texts))
	for i, t := range texts {
		if failed[i] {
			continue
		}
		if t == "" {
			if !set.DropBlankPages {
				parts = append(parts, "")
			}
			continue
		}
		rep.SuccessCount++
		rep.TotalChars += utf8.RuneCountInString(t)
		parts = append(parts, t)
	}

	rep.Texts = texts
	rep.Text = strings.Join(parts, set.Separator)
	return rep
}
