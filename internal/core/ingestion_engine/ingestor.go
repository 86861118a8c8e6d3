package ingestion_engine

import "context"

// Ingestor runs extraction jobs in the background.
type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(ctx context.Context, runID string) error
	Cancel(runID string) bool
	ProcessOne(ctx context.Context, runID string) error
}
