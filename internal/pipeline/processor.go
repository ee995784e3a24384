package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joseph-ayodele/consultation-extract/constants"
	"github.com/joseph-ayodele/consultation-extract/internal/common"
	"github.com/joseph-ayodele/consultation-extract/internal/entity"
	"github.com/joseph-ayodele/consultation-extract/internal/extract"
	"github.com/joseph-ayodele/consultation-extract/internal/metrics"
	"github.com/joseph-ayodele/consultation-extract/internal/repository"
	"github.com/joseph-ayodele/consultation-extract/internal/schema"
	"github.com/joseph-ayodele/consultation-extract/internal/tracing"
	"github.com/joseph-ayodele/consultation-extract/internal/validate"
)

const defaultDocumentTimeout = 3 * time.Minute

var tracer = tracing.Tracer("pipeline")

// Processor turns one document into exactly one record: extract, then clean.
// It never fails; extraction errors yield the all-default record.
type Processor struct {
	Extractor extract.Extractor
	Schema    *schema.Schema
	Jobs      repository.ExtractJobRepository // optional ledger
	Metrics   *metrics.Metrics                // optional
	Timeout   time.Duration                   // per document
	Reuse     bool                            // take cleaned values from an earlier successful job with the same content
	Logger    *slog.Logger
}

func NewProcessor(ext extract.Extractor, s *schema.Schema, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Extractor: ext, Schema: s, Timeout: defaultDocumentTimeout, Logger: logger}
}

// ProcessDocument extracts and cleans doc. runID may be uuid.Nil when the ledger is off.
func (p *Processor) ProcessDocument(ctx context.Context, runID uuid.UUID, doc entity.Document) entity.Record {
	start := time.Now()
	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)
	log := p.Logger.With("req_id", rid, "file", doc.Name)

	ctx, span := tracer.Start(ctx, "pipeline.document")
	defer span.End()
	span.SetAttributes(attribute.String("document.name", doc.Name))

	job := p.startJob(ctx, runID, doc, log)

	if p.Reuse {
		if rec, ok := p.reuse(ctx, doc, log); ok {
			p.finishSuccess(ctx, job, repository.JobOutcome{Status: constants.JobStatusReused}, rec, log)
			p.Metrics.ObserveRecord(rec, p.known, 0)
			span.SetAttributes(attribute.String("document.status", string(rec.Status)))
			log.Info("pipeline.document.reused", "elapsed_ms", time.Since(start).Milliseconds())
			return rec
		}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultDocumentTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	raw, err := p.callExtractor(dctx, doc)
	cancel()

	if err != nil {
		if !errors.Is(err, common.ErrExtractionService) {
			err = common.ExtractionServiceError("extract "+doc.Name, err)
		}
		rec := validate.Defaults(p.Schema, doc.Path)
		rec.Err = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		log.Error("pipeline.document.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		if job != nil {
			if ferr := p.Jobs.FinishFailure(ctx, job.ID, err.Error()); ferr != nil {
				log.Warn("pipeline.ledger.finish_failed", "error", ferr)
			}
		}
		p.Metrics.ObserveRecord(rec, p.known, time.Since(start))
		return rec
	}

	rec := validate.Clean(raw.Data, p.Schema, doc.Path)
	if err := validate.Conforms(p.Schema, rec.Values); err != nil {
		log.Error("pipeline.document.nonconforming", "error", err)
	}
	p.finishSuccess(ctx, job, repository.JobOutcome{
		Status:        constants.JobStatusOK,
		RemoteJobID:   raw.RemoteJobID,
		ExtractedJSON: raw.RawJSON,
	}, rec, log)
	p.Metrics.ObserveRecord(rec, p.known, time.Since(start))

	span.SetAttributes(
		attribute.String("document.status", string(rec.Status)),
		attribute.Int("document.fallbacks", len(rec.Fallbacks)),
	)
	log.Info("pipeline.document.ok",
		"remote_job_id", raw.RemoteJobID,
		"fallbacks", len(rec.Fallbacks),
		"schema_mismatch", raw.SchemaErr != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	for _, fb := range rec.Fallbacks {
		log.Debug("pipeline.document.fallback",
			"field", fb.Field,
			"reason", fb.Reason,
			"original", fb.Original,
			"value", fb.Value,
		)
	}
	return rec
}

// callExtractor runs the extractor and turns a panic into an extraction error.
func (p *Processor) callExtractor(ctx context.Context, doc entity.Document) (raw extract.RawResult, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = common.ExtractionServiceError("extract "+doc.Name, fmt.Errorf("extractor panic: %v", v))
		}
	}()
	return p.Extractor.Extract(ctx, doc, p.Schema)
}

func (p *Processor) known(field string) bool {
	_, ok := p.Schema.Field(field)
	return ok
}

func (p *Processor) startJob(ctx context.Context, runID uuid.UUID, doc entity.Document, log *slog.Logger) *entity.ExtractJob {
	if p.Jobs == nil || runID == uuid.Nil {
		return nil
	}
	job, err := p.Jobs.Start(ctx, runID, doc, p.Schema.Name)
	if err != nil {
		log.Warn("pipeline.ledger.start_failed", "error", err)
		return nil
	}
	return job
}

func (p *Processor) finishSuccess(ctx context.Context, job *entity.ExtractJob, out repository.JobOutcome, rec entity.Record, log *slog.Logger) {
	if job == nil {
		return
	}
	cleaned, err := json.Marshal(rec.Values)
	if err != nil {
		log.Warn("pipeline.ledger.encode_failed", "error", err)
		return
	}
	out.CleanedJSON = cleaned
	out.Fallbacks = len(rec.Fallbacks)
	if err := p.Jobs.FinishSuccess(ctx, job.ID, out); err != nil {
		log.Warn("pipeline.ledger.finish_failed", "error", err)
	}
}

// reuse rebuilds a record from the newest successful job for the same content.
// The stored values are cleaned again so schema changes since then still apply.
func (p *Processor) reuse(ctx context.Context, doc entity.Document, log *slog.Logger) (entity.Record, bool) {
	if p.Jobs == nil || doc.ContentHash == "" {
		return entity.Record{}, false
	}
	prev, err := p.Jobs.LatestSuccessByHash(ctx, doc.ContentHash, p.Schema.Name)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			log.Warn("pipeline.ledger.lookup_failed", "error", err)
		}
		return entity.Record{}, false
	}
	var values map[string]any
	if err := json.Unmarshal(prev.CleanedJSON, &values); err != nil {
		log.Warn("pipeline.ledger.decode_failed", "job_id", prev.ID, "error", err)
		return entity.Record{}, false
	}
	rec := validate.Clean(values, p.Schema, doc.Path)
	rec.Status = constants.JobStatusReused
	return rec, true
}
