package ingestion_engine

import (
	"errors"
	"testing"

	"github.com/markdave123-py/pagetext/internal/core"
)

func TestPlanPageRanges_Example(t *testing.T) {
	got, err := PlanPageRanges(12, 5)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := []core.PageRange{
		{Index: 0, Start: 1, End: 5},
		{Index: 1, Start: 6, End: 10},
		{Index: 2, Start: 11, End: 12},
	}
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d = %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestPlanPageRanges_TilesWithoutGapOrOverlap(t *testing.T) {
	for total := 0; total <= 40; total++ {
		for per := 1; per <= 12; per++ {
			items, err := PlanPageRanges(total, per)
			if err != nil {
				t.Fatalf("plan(%d,%d): %v", total, per, err)
			}
			if want := (total + per - 1) / per; len(items) != want {
				t.Fatalf("plan(%d,%d) len=%d want %d", total, per, len(items), want)
			}
			next := 1
			for i, it := range items {
				if it.Index != i {
					t.Fatalf("plan(%d,%d) item %d has index %d", total, per, i, it.Index)
				}
				if it.Start != next {
					t.Fatalf("plan(%d,%d) item %d starts at %d want %d", total, per, i, it.Start, next)
				}
				if it.End < it.Start || it.End-it.Start+1 > per {
					t.Fatalf("plan(%d,%d) item %d bad bounds %+v", total, per, i, it)
				}
				next = it.End + 1
			}
			if next != total+1 {
				t.Fatalf("plan(%d,%d) covers 1..%d want 1..%d", total, per, next-1, total)
			}
		}
	}
}

func TestPlanPageRanges_Idempotent(t *testing.T) {
	a, _ := PlanPageRanges(33, 4)
	b, _ := PlanPageRanges(33, 4)
	if len(a) != len(b) {
		t.Fatalf("len differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("item %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestPlanPageRanges_InvalidConfig(t *testing.T) {
	cases := []struct {
		name       string
		total, per int
	}{
		{"zero chunk", 10, 0},
		{"negative chunk", 10, -3},
		{"negative total", -1, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := PlanPageRanges(tc.total, tc.per)
			if !errors.Is(err, core.ErrInvalidConfig) {
				t.Fatalf("err=%v want ErrInvalidConfig", err)
			}
			if items != nil {
				t.Fatalf("expected no items, got %d", len(items))
			}
		})
	}
}

func TestValidatePlan(t *testing.T) {
	ok := []core.PageRange{{Index: 1, Start: 6, End: 10}, {Index: 0, Start: 1, End: 5}}
	if err := validatePlan(ok); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	bad := [][]core.PageRange{
		{{Index: 0, Start: 1, End: 5}, {Index: 0, Start: 6, End: 10}},
		{{Index: 2, Start: 1, End: 5}},
		{{Index: 0, Start: 0, End: 5}},
		{{Index: 0, Start: 5, End: 4}},
	}
	for i, items := range bad {
		if err := validatePlan(items); !errors.Is(err, core.ErrInvalidConfig) {
			t.Fatalf("case %d: err=%v want ErrInvalidConfig", i, err)
		}
	}
}
