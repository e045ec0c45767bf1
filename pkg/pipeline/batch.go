package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/factgraph/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// BatchDocument is one input to ProcessBatch.
type BatchDocument struct {
	Stream   io.ReadSeeker
	FileName string
	MimeType string
}

// ProcessBatch runs every document through its own pipeline. Under
// parallel mode the in-flight documents are bounded by MaxParallelism
// (default 4); sequential mode processes them in input order. Either way
// the aggregated Results keep input order and contain one entry per
// document; failed documents appear with CompletedStage == StageFailed and
// are counted in FailedDocuments. A batch never aborts because of one
// document's failure.
func (p *Pipeline) ProcessBatch(
	ctx context.Context,
	documents []BatchDocument,
	dataRoomID string,
	correlationID string,
	opts Options,
) BatchResult {
	start := time.Now()
	results := make([]Result, len(documents))

	if opts.EnableParallelProcessing {
		parallelism := opts.MaxParallelism
		if parallelism <= 0 {
			parallelism = DefaultMaxParallelism
		}
		logger.Info("[Pipeline] Processing batch",
			"documents", len(documents),
			"parallelism", parallelism,
		)

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(parallelism)
		for i, doc := range documents {
			g.Go(func() error {
				results[i] = p.ProcessDocument(
					gCtx, doc.Stream, doc.FileName, doc.MimeType,
					dataRoomID, correlationID, opts,
				)
				return nil
			})
		}
		// Workers never return errors; failures live in their Result.
		_ = g.Wait()
	} else {
		logger.Info("[Pipeline] Processing batch sequentially", "documents", len(documents))
		for i, doc := range documents {
			results[i] = p.ProcessDocument(
				ctx, doc.Stream, doc.FileName, doc.MimeType,
				dataRoomID, correlationID, opts,
			)
		}
	}

	batch := BatchResult{
		Results:        results,
		TotalDocuments: len(documents),
		Duration:       time.Since(start),
	}
	for _, res := range results {
		if res.Succeeded() {
			batch.SuccessfulDocuments++
		} else {
			batch.FailedDocuments++
		}
	}

	logger.Info("[Pipeline] Batch completed",
		"total", batch.TotalDocuments,
		"successful", batch.SuccessfulDocuments,
		"failed", batch.FailedDocuments,
		"duration", batch.Duration,
	)
	return batch
}
