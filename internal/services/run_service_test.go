package services

import (
	"errors"
	"testing"

	"github.com/markdave123-py/pagetext/internal/core"
)

func TestObjectKey(t *testing.T) {
	cases := []struct{ file, want string }{
		{"scan.pdf", "users/u1/runs/r1/scan.pdf"},
		{"my scan.pdf", "users/u1/runs/r1/my_scan.pdf"},
		{"../../etc/passwd", "users/u1/runs/r1/passwd"},
		{" spaced.pdf ", "users/u1/runs/r1/spaced.pdf"},
	}
	for _, tc := range cases {
		if got := objectKey("u1", "r1", tc.file); got != tc.want {
			t.Errorf("objectKey(%q)=%q want %q", tc.file, got, tc.want)
		}
	}
}

func TestRunService_Tuning(t *testing.T) {
	s := &RunService{defaults: RunDefaults{PagesPerChunk: 5, Concurrency: 2, MaxConcurrency: 4}}

	cases := []struct {
		name              string
		perChunk, conc    int
		wantPer, wantConc int
		wantErr           bool
	}{
		{"defaults", 0, 0, 5, 2, false},
		{"overrides", 3, 4, 3, 4, false},
		{"negative", -1, 0, 0, 0, true},
		{"above max", 0, 5, 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			per, conc, err := s.tuning(tc.perChunk, tc.conc)
			if tc.wantErr {
				if !errors.Is(err, core.ErrInvalidConfig) {
					t.Fatalf("err=%v want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil || per != tc.wantPer || conc != tc.wantConc {
				t.Fatalf("got (%d,%d,%v) want (%d,%d)", per, conc, err, tc.wantPer, tc.wantConc)
			}
		})
	}
}
