package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/consultation-extract/constants"
	"github.com/joseph-ayodele/consultation-extract/internal/common"
	"github.com/joseph-ayodele/consultation-extract/internal/entity"
	"github.com/joseph-ayodele/consultation-extract/internal/ingest"
	"github.com/joseph-ayodele/consultation-extract/internal/repository"
	"github.com/joseph-ayodele/consultation-extract/internal/validate"
)

// Batch runs every discovered document of a directory through a Processor.
type Batch struct {
	discoverer ingest.Discoverer
	proc       *Processor
	runs       repository.RunRepository
	workers    int
	logger     *slog.Logger
}

type Option func(*Batch)

// WithWorkers bounds how many documents are processed at once.
func WithWorkers(n int) Option {
	return func(b *Batch) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithRuns records each batch as an extract_run.
func WithRuns(runs repository.RunRepository) Option {
	return func(b *Batch) { b.runs = runs }
}

func NewBatch(d ingest.Discoverer, proc *Processor, logger *slog.Logger, opts ...Option) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Batch{discoverer: d, proc: proc, workers: 1, logger: logger}
	for _, o := range opts {
		o(b)
	}
	return b
}

// ProcessBatch produces one record per discovered document, in discovery order.
// Per-document failures are absorbed into default records; the only error is an
// unreadable or missing input directory (or ctx ending during discovery).
func (b *Batch) ProcessBatch(ctx context.Context, dir string) (entity.BatchResult, error) {
	result := entity.BatchResult{InputDir: dir, StartedAt: time.Now().UTC()}

	ctx, span := tracer.Start(ctx, "pipeline.batch")
	defer span.End()

	docs, dirStats, err := b.discoverer.Discover(ctx, dir)
	if err != nil {
		b.logger.Error("pipeline.batch.discover_failed", "dir", dir, "error", err)
		span.RecordError(err)
		return result, err
	}
	result.Stats.Scanned = dirStats.Scanned
	result.Stats.Matched = uint32(len(docs))
	span.SetAttributes(attribute.Int("batch.documents", len(docs)))

	runID := b.startRun(ctx, dir)
	if runID != uuid.Nil {
		result.RunID = runID.String()
		ctx = common.WithRunID(ctx, result.RunID)
	}
	b.logger.Info("pipeline.batch.start",
		"dir", dir,
		"documents", len(docs),
		"workers", b.workers,
		"run_id", result.RunID,
	)

	records := make([]entity.Record, len(docs))
	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, doc := range docs {
		g.Go(func() error {
			defer func() {
				if v := recover(); v != nil {
					err := common.ExtractionServiceError("process "+doc.Name, fmt.Errorf("panic: %v", v))
					b.logger.Error("pipeline.document.panic", "file", doc.Name, "error", err)
					rec := validate.Defaults(b.proc.Schema, doc.Path)
					rec.Err = err.Error()
					records[i] = rec
				}
			}()
			b.logger.Info("pipeline.document.start", "index", i+1, "total", len(docs), "file", doc.Name)
			records[i] = b.proc.ProcessDocument(ctx, runID, doc)
			return nil
		})
	}
	_ = g.Wait()

	result.Records = records
	for _, rec := range records {
		switch rec.Status {
		case constants.JobStatusOK:
			result.Stats.Succeeded++
		case constants.JobStatusReused:
			result.Stats.Reused++
		default:
			result.Stats.Failed++
		}
		result.Stats.Fallbacks += uint32(len(rec.Fallbacks))
	}
	result.FinishedAt = time.Now().UTC()

	b.logger.Info("pipeline.batch.done",
		"documents", len(records),
		"succeeded", result.Stats.Succeeded,
		"reused", result.Stats.Reused,
		"failed", result.Stats.Failed,
		"fallbacks", result.Stats.Fallbacks,
		"elapsed_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	)
	return result, nil
}

func (b *Batch) startRun(ctx context.Context, dir string) uuid.UUID {
	if b.runs == nil {
		return uuid.Nil
	}
	run, err := b.runs.Start(ctx, dir, b.proc.Schema.Name)
	if err != nil {
		b.logger.Warn("pipeline.ledger.run_start_failed", "error", err)
		return uuid.Nil
	}
	return run.ID
}

// FinishRun closes the ledger run for result. A non-nil writeErr marks the run
// FAILED with no output path.
func (b *Batch) FinishRun(ctx context.Context, result entity.BatchResult, outputPath string, writeErr error) {
	if b.runs == nil || result.RunID == "" {
		return
	}
	id, err := uuid.Parse(result.RunID)
	if err != nil {
		return
	}
	status := constants.JobStatusRunDone
	if writeErr != nil {
		status = constants.JobStatusFailed
		outputPath = ""
	}
	if err := b.runs.Finish(ctx, id, status, outputPath, result.Stats); err != nil {
		b.logger.Warn("pipeline.ledger.run_finish_failed", "run_id", result.RunID, "error", err)
	}
}
