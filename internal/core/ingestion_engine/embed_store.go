package ingestion_engine

import (
	"context"
	"fmt"

	"github.com/markdave123-py/pagetext/internal/models"
)

// embedAndPersist embeds passages in batches and writes them to the DB.
//
// runID:      current run ID.
// items:      passages from splitPassages.
// batchSize:  number of passages to embed/write per batch (limits request size).
func (i *DocumentIngestor) embedAndPersist(ctx context.Context, runID string, items []passage, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 32
	}

	for lo := 0; lo < len(items); lo += batchSize {
		hi := min(lo+batchSize, len(items))
		batch := items[lo:hi]

		texts := make([]string, len(batch))
		for k := range batch {
			texts[k] = batch[k].Text
		}

		vecs, err := i.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(batch))
		}

		rows := make([]models.RunPassage, len(batch))
		for k := range batch {
			rows[k] = models.RunPassage{
				RunID:      runID,
				Position:   batch[k].Pos,
				StartPage:  batch[k].StartPage,
				EndPage:    batch[k].EndPage,
				Text:       batch[k].Text,
				Embedding:  vecs[k],
				TokenCount: batch[k].TokenCnt,
			}
		}
		if err := i.db.InsertRunPassages(ctx, rows); err != nil {
			return fmt.Errorf("insert passages: %w", err)
		}
	}
	return nil
}
