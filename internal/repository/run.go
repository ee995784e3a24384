package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/consultation-extract/constants"
	"github.com/joseph-ayodele/consultation-extract/internal/common"
	"github.com/joseph-ayodele/consultation-extract/internal/entity"
)

type RunRepository interface {
	Start(ctx context.Context, inputDir, schemaName string) (*entity.ExtractRun, error)
	Finish(ctx context.Context, runID uuid.UUID, status constants.JobStatus, outputPath string, stats entity.BatchStats) error
	Get(ctx context.Context, runID uuid.UUID) (*entity.ExtractRun, error)
	ListRecent(ctx context.Context, limit int) ([]entity.ExtractRun, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

func (r *runRepo) Start(ctx context.Context, inputDir, schemaName string) (*entity.ExtractRun, error) {
	run := &entity.ExtractRun{
		ID:         uuid.New(),
		InputDir:   inputDir,
		SchemaName: schemaName,
		StartedAt:  r.now(),
		Status:     string(constants.JobStatusRunning),
	}
	const q = `INSERT INTO extract_run (id, input_dir, schema_name, started_at, status) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, r.db.rebind(q), run.ID.String(), run.InputDir, run.SchemaName, run.StartedAt, run.Status); err != nil {
		r.log.Error("extract_run start failed", "input_dir", inputDir, "err", err)
		return nil, err
	}
	r.log.Info("extract_run started", "run_id", run.ID, "input_dir", inputDir)
	return run, nil
}

// Finish closes a run with status DONE, or FAILED when no report was written.
func (r *runRepo) Finish(ctx context.Context, runID uuid.UUID, status constants.JobStatus, outputPath string, stats entity.BatchStats) error {
	const q = `UPDATE extract_run SET finished_at = ?, output_path = ?, status = ?, documents = ?, failures = ?, fallbacks = ? WHERE id = ?`
	var out sql.NullString
	if outputPath != "" {
		out = sql.NullString{String: outputPath, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, r.db.rebind(q),
		r.now(),
		out,
		string(status),
		int64(stats.Matched),
		int64(stats.Failed),
		int64(stats.Fallbacks),
		runID.String(),
	)
	if err != nil {
		r.log.Error("extract_run finish failed", "run_id", runID, "err", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("extract_run %s: %w", runID, common.ErrNotFound)
	}
	r.log.Info("extract_run finished", "run_id", runID, "status", status, "documents", stats.Matched, "failures", stats.Failed)
	return nil
}

const runColumns = `id, input_dir, schema_name, started_at, finished_at, output_path, status, documents, failures, fallbacks`

func (r *runRepo) Get(ctx context.Context, runID uuid.UUID) (*entity.ExtractRun, error) {
	q := `SELECT ` + runColumns + ` FROM extract_run WHERE id = ?`
	run, err := scanRun(r.db.QueryRowContext(ctx, r.db.rebind(q), runID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("extract_run %s: %w", runID, common.ErrNotFound)
		}
		return nil, err
	}
	return run, nil
}

func (r *runRepo) ListRecent(ctx context.Context, limit int) ([]entity.ExtractRun, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT ` + runColumns + ` FROM extract_run ORDER BY started_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, r.db.rebind(q), limit)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var out []entity.ExtractRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func scanRun(row scanner) (*entity.ExtractRun, error) {
	var (
		id       string
		run      entity.ExtractRun
		finished sql.NullTime
		out      sql.NullString
	)
	err := row.Scan(
		&id,
		&run.InputDir,
		&run.SchemaName,
		&run.StartedAt,
		&finished,
		&out,
		&run.Status,
		&run.Documents,
		&run.Failures,
		&run.Fallbacks,
	)
	if err != nil {
		return nil, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("extract_run id %q: %w", id, err)
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if out.Valid {
		run.OutputPath = &out.String
	}
	return &run, nil
}
