package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/consultation-extract/internal/common"
	"github.com/joseph-ayodele/consultation-extract/internal/entity"
	"github.com/joseph-ayodele/consultation-extract/internal/export"
	"github.com/joseph-ayodele/consultation-extract/internal/ingest"
	"github.com/joseph-ayodele/consultation-extract/internal/metrics"
	"github.com/joseph-ayodele/consultation-extract/internal/storage"
)

// Runner is one end-to-end pass: batch, workbook, ledger, archive, metrics push.
type Runner struct {
	Batch   *Batch
	Writer  *export.Writer
	Output  string
	Archive storage.Storage  // optional
	Metrics *metrics.Metrics // optional
	PushURL string
	PushJob string
	Console io.Writer // summary table; nil prints nothing
	Verbose bool      // also print every record
	Logger  *slog.Logger
}

// Run processes dir and writes the workbook. It fails only with a
// CONFIG_ERROR (input directory) or an OUTPUT_WRITE_ERROR.
func (r *Runner) Run(ctx context.Context, dir string) (entity.BatchResult, error) {
	logger := r.logger()
	s := r.Batch.proc.Schema

	result, err := r.Batch.ProcessBatch(ctx, dir)
	if err != nil {
		return result, err
	}

	if r.Console != nil {
		if r.Verbose {
			for _, rec := range result.Records {
				export.PrintRecord(r.Console, rec, s)
			}
		}
		export.PrintSummary(r.Console, result, s)
	}

	w := r.Writer
	if w == nil {
		w = export.NewWriter(logger)
	}
	if err := w.Write(result, s, r.Output); err != nil {
		logger.Error("pipeline.output.failed", "path", r.Output, "error", err)
		r.Batch.FinishRun(ctx, result, r.Output, err)
		return result, err
	}
	r.Batch.FinishRun(ctx, result, r.Output, nil)

	runKey := result.RunID
	if runKey == "" {
		runKey = uuid.New().String()
	}
	if r.Archive != nil {
		if info, err := storage.ArchiveReport(ctx, r.Archive, runKey, r.Output); err != nil {
			logger.Warn("pipeline.archive.failed", "error", err)
		} else {
			logger.Info("pipeline.archive.ok", "key", info.Key, "size", info.Size)
		}
	}
	if r.PushURL != "" {
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := r.Metrics.Push(pctx, r.PushURL, r.PushJob, runKey); err != nil {
			logger.Warn("pipeline.metrics.push_failed", "error", err)
		}
		cancel()
	}
	return result, nil
}

// Watch runs once, then again after every debounced change to dir, until ctx ends.
// Only fatal errors stop it.
func (r *Runner) Watch(ctx context.Context, dir string, opts ingest.Options, debounce time.Duration) error {
	logger := r.logger()
	if _, err := r.Run(ctx, dir); err != nil && common.IsFatal(err) {
		return err
	}

	events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{Root: dir, Options: opts, Debounce: debounce}, logger)
	if err != nil {
		return common.ConfigurationError("watch "+dir, err)
	}
	logger.Info("pipeline.watch.start", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case changed, ok := <-events:
			if !ok {
				return nil
			}
			logger.Info("pipeline.watch.rerun", "changed", changed)
			if _, err := r.Run(ctx, dir); err != nil && common.IsFatal(err) {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("pipeline.watch.error", "error", err)
		}
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
