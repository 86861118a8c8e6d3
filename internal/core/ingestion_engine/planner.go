package ingestion_engine

import (
	"fmt"

	"github.com/markdave123-py/pagetext/internal/core"
)

// PlanPageRanges splits pages 1..totalPages into consecutive ranges of pagesPerChunk pages.
// The last range may be shorter. totalPages == 0 yields an empty plan.
//
// Example: PlanPageRanges(12, 5) -> [1-5] [6-10] [11-12].
func PlanPageRanges(totalPages, pagesPerChunk int) ([]core.PageRange, error) {
	if pagesPerChunk <= 0 {
		return nil, fmt.Errorf("%w: pages per chunk must be >= 1, got %d", core.ErrInvalidConfig, pagesPerChunk)
	}
	if totalPages < 0 {
		return nil, fmt.Errorf("%w: total pages must be >= 0, got %d", core.ErrInvalidConfig, totalPages)
	}

	n := (totalPages + pagesPerChunk - 1) / pagesPerChunk
	out := make([]core.PageRange, n)
	for i := range out {
		out[i] = core.PageRange{
			Index: i,
			Start: i*pagesPerChunk + 1,
			End:   min((i+1)*pagesPerChunk, totalPages),
		}
	}
	return out, nil
}

// validatePlan checks that items carry the indices 0..n-1 exactly once with sane bounds.
func validatePlan(items []core.PageRange) error {
	seen := make([]bool, len(items))
	for _, it := range items {
		if it.Index < 0 || it.Index >= len(items) {
			return fmt.Errorf("%w: range index %d out of [0,%d)", core.ErrInvalidConfig, it.Index, len(items))
		}
		if seen[it.Index] {
			return fmt.Errorf("%w: duplicate range index %d", core.ErrInvalidConfig, it.Index)
		}
		seen[it.Index] = true
		if it.Start < 1 || it.End < it.Start {
			return fmt.Errorf("%w: invalid %s", core.ErrInvalidConfig, it)
		}
	}
	return nil
}
