package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/markdave123-py/pagetext/internal/core"
)

// Extract plans pages 1..totalPages into ranges of pagesPerChunk and runs them through ext.
// Configuration errors are returned before any extraction call is made.
func Extract(
	ctx context.Context,
	totalPages int,
	pagesPerChunk int,
	ext core.PageExtractor,
	set Settings,
	sink core.ProgressSink,
) (*Report, error) {
	items, err := PlanPageRanges(totalPages, pagesPerChunk)
	if err != nil {
		return nil, err
	}
	return Run(ctx, items, ext, set, sink)
}

// Run extracts every range through ext with at most set.Concurrency calls in flight.
//
//   - Each range owns result slot items[i].Index; slots are written once and read only after all workers joined.
//   - Per-range failures are recorded in the report, never returned.
//   - Cancelling ctx stops new calls and unblocks waits; the partial report comes back with Cancelled set.
//   - A worker panic aborts the run with an error wrapping core.ErrRunAborted.
func Run(
	ctx context.Context,
	items []core.PageRange,
	ext core.PageExtractor,
	set Settings,
	sink core.ProgressSink,
) (*Report, error) {
	set, err := set.withDefaults()
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, fmt.Errorf("%w: nil page extractor", core.ErrInvalidConfig)
	}
	if err := validatePlan(items); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = core.NopSink{}
	}

	w := &worker{
		ext:   ext,
		set:   set,
		sink:  guardedSink{sink: sink, log: set.Logger},
		log:   set.Logger.With("component", "orchestrator"),
		total: len(items),
	}
	results := make([]*ChunkResult, len(items))

	w.log.Info("run started", "chunks", len(items), "concurrency", set.Concurrency, "pacing", set.Pacing)
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(set.Concurrency))

	for _, it := range items {
		// Admission: blocks while Concurrency calls are in flight.
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() (err error) {
			defer sem.Release(1)
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("%w: worker for %s panicked: %v", core.ErrRunAborted, it, p)
				}
			}()

			if res, ok := w.process(gctx, it); ok {
				results[it.Index] = res
				w.finished(it)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		w.log.Error("run aborted", "err", err)
		if !errors.Is(err, core.ErrRunAborted) {
			err = fmt.Errorf("%w: %v", core.ErrRunAborted, err)
		}
		return nil, err
	}

	rep := reduce(results, set)
	w.log.Info("run finished",
		"chunks", rep.Chunks,
		"completed", len(rep.Results),
		"success", rep.SuccessCount,
		"failed", len(rep.FailedRanges),
		"chars", rep.TotalChars,
		"cancelled", rep.Cancelled,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return rep, nil
}

type worker struct {
	ext   core.PageExtractor
	set   Settings
	sink  core.ProgressSink
	log   *slog.Logger
	total int
	done  atomic.Int64
}

// process drives one range to a terminal outcome. ok is false when the run was
// cancelled before the range reached one.
func (w *worker) process(ctx context.Context, it core.PageRange) (res *ChunkResult, ok bool) {
	w.emit(it, core.Event{Kind: core.EventStarted})

	if it.Index > 0 && w.set.Pacing > 0 {
		if err := sleepWithCtx(ctx, w.set.Pacing); err != nil {
			return nil, false
		}
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return nil, false
		}

		text, err := w.ext.ExtractPages(ctx, it)
		if err == nil {
			chars := utf8.RuneCountInString(text)
			w.emit(it, core.Event{Kind: core.EventCompleted, Attempt: attempt, Chars: chars})
			w.log.Debug("range extracted", "range", it.String(), "attempt", attempt, "chars", chars)
			return &ChunkResult{Index: it.Index, Start: it.Start, End: it.End, Text: text, Attempts: attempt}, true
		}
		stopping := ctx.Err() != nil
		if stopping && causedByCancel(err) {
			return nil, false
		}

		// A call that failed on its own while the run was stopping is recorded, not retried.
		dec := RetryDecision{}
		if !stopping {
			dec = w.set.Retry.ShouldRetry(err, attempt)
		}
		if !dec.Retry {
			w.emit(it, core.Event{Kind: core.EventFailed, Attempt: attempt, Message: err.Error()})
			w.log.Warn("range failed", "range", it.String(), "attempts", attempt, "kind", core.KindOf(err).String(), "err", err)
			return &ChunkResult{Index: it.Index, Start: it.Start, End: it.End, Err: err, Attempts: attempt}, true
		}

		w.emit(it, core.Event{Kind: core.EventRateLimited, Attempt: attempt, Wait: dec.Wait.Seconds(), Message: err.Error()})
		w.log.Info("range backing off", "range", it.String(), "attempt", attempt, "kind", core.KindOf(err).String(), "wait", dec.Wait)
		if err := sleepWithCtx(ctx, dec.Wait); err != nil {
			return nil, false
		}
	}
}

func causedByCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || core.KindOf(err) == core.KindCanceled
}

func (w *worker) finished(it core.PageRange) {
	n := w.done.Add(1)
	w.emit(it, core.Event{Kind: core.EventProgress, Percent: int(n * 100 / int64(w.total))})
}

func (w *worker) emit(it core.PageRange, ev core.Event) {
	ev.Index, ev.Start, ev.End = it.Index, it.Start, it.End
	w.sink.OnEvent(ev)
}

// guardedSink keeps a misbehaving sink from taking a worker down.
type guardedSink struct {
	sink core.ProgressSink
	log  *slog.Logger
}

func (g guardedSink) OnEvent(ev core.Event) {
	defer func() {
		if p := recover(); p != nil {
			g.log.Warn("progress sink panicked", "event", ev.Kind.String(), "index", ev.Index, "panic", p)
		}
	}()
	g.sink.OnEvent(ev)
}

// sleepWithCtx waits for d or until ctx is done.
func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
