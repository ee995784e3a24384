package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/consultation-extract/constants"
	"github.com/joseph-ayodele/consultation-extract/internal/common"
	"github.com/joseph-ayodele/consultation-extract/internal/entity"
)

// JobOutcome is what a successful job stores.
type JobOutcome struct {
	Status        constants.JobStatus // OK or REUSED
	RemoteJobID   string
	ExtractedJSON json.RawMessage
	CleanedJSON   json.RawMessage
	Fallbacks     int
}

type ExtractJobRepository interface {
	Start(ctx context.Context, runID uuid.UUID, doc entity.Document, schemaName string) (*entity.ExtractJob, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, out JobOutcome) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	// LatestSuccessByHash returns the newest job that extracted this content, or common.ErrNotFound.
	LatestSuccessByHash(ctx context.Context, contentHash, schemaName string) (*entity.ExtractJob, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log, now: utcNow}
}

const jobColumns = `id, run_id, source_path, content_hash, schema_name, started_at, finished_at, status,
		error_message, remote_job_id, extracted_json, cleaned_json, fallbacks`

func (r *extractJobRepo) Start(ctx context.Context, runID uuid.UUID, doc entity.Document, schemaName string) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		ID:          uuid.New(),
		RunID:       runID,
		SourcePath:  doc.Path,
		ContentHash: doc.ContentHash,
		SchemaName:  schemaName,
		StartedAt:   r.now(),
		Status:      string(constants.JobStatusRunning),
	}
	const q = `INSERT INTO extract_job (id, run_id, source_path, content_hash, schema_name, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.db.rebind(q),
		job.ID.String(),
		job.RunID.String(),
		job.SourcePath,
		job.ContentHash,
		job.SchemaName,
		job.StartedAt,
		job.Status,
	)
	if err != nil {
		r.log.Error("extract_job start failed", "source", doc.Path, "err", err)
		return nil, err
	}
	r.log.Debug("extract_job started", "job_id", job.ID, "source", doc.Path)
	return job, nil
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, out JobOutcome) error {
	if out.Status == "" {
		out.Status = constants.JobStatusOK
	}
	const q = `UPDATE extract_job SET finished_at = ?, status = ?, remote_job_id = ?, extracted_json = ?, cleaned_json = ?, fallbacks = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, r.db.rebind(q),
		r.now(),
		string(out.Status),
		nullString(out.RemoteJobID),
		nullJSON(out.ExtractedJSON),
		nullJSON(out.CleanedJSON),
		out.Fallbacks,
		jobID.String(),
	)
	if err != nil {
		r.log.Error("extract_job finish(OK) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Debug("extract_job finished", "job_id", jobID, "status", out.Status)
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	const q = `UPDATE extract_job SET finished_at = ?, status = ?, error_message = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, r.db.rebind(q), r.now(), string(constants.JobStatusFailed), message, jobID.String())
	if err != nil {
		r.log.Error("extract_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("extract_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

func (r *extractJobRepo) LatestSuccessByHash(ctx context.Context, contentHash, schemaName string) (*entity.ExtractJob, error) {
	if contentHash == "" {
		return nil, common.ErrNotFound
	}
	q := `SELECT ` + jobColumns + `
		FROM extract_job
		WHERE content_hash = ? AND schema_name = ? AND status = ? AND cleaned_json IS NOT NULL
		ORDER BY finished_at DESC
		LIMIT 1`
	row := r.db.QueryRowContext(ctx, r.db.rebind(q), contentHash, schemaName, string(constants.JobStatusOK))
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *extractJobRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]entity.ExtractJob, error) {
	q := `SELECT ` + jobColumns + ` FROM extract_job WHERE run_id = ? ORDER BY source_path`
	rows, err := r.db.QueryContext(ctx, r.db.rebind(q), runID.String())
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Warn("extract_job rows close error", "err", err)
		}
	}(rows)

	var out []entity.ExtractJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*entity.ExtractJob, error) {
	var (
		job                entity.ExtractJob
		id, runID          string
		finished           sql.NullTime
		errMsg, remote     sql.NullString
		extracted, cleaned sql.NullString
	)
	if err := s.Scan(
		&id,
		&runID,
		&job.SourcePath,
		&job.ContentHash,
		&job.SchemaName,
		&job.StartedAt,
		&finished,
		&job.Status,
		&errMsg,
		&remote,
		&extracted,
		&cleaned,
		&job.Fallbacks,
	); err != nil {
		return nil, err
	}
	var err error
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("extract_job id %q: %w", id, err)
	}
	if job.RunID, err = uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("extract_job run_id %q: %w", runID, err)
	}
	if finished.Valid {
		t := finished.Time
		job.FinishedAt = &t
	}
	if errMsg.Valid {
		job.ErrorMessage = &errMsg.String
	}
	if remote.Valid {
		job.RemoteJobID = &remote.String
	}
	if extracted.Valid {
		job.ExtractedJSON = json.RawMessage(extracted.String)
	}
	if cleaned.Valid {
		job.CleanedJSON = json.RawMessage(cleaned.String)
	}
	return &job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(b json.RawMessage) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}
