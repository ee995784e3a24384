package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type migrationStep struct {
	Name string
	SQL  string
}

// steps use {{ts}} and {{json}} for the dialect's timestamp and JSON column types.
var steps = []migrationStep{
	{
		Name: "create_table_extract_run",
		SQL: `CREATE TABLE IF NOT EXISTS extract_run (
  id          TEXT    PRIMARY KEY,
  input_dir   TEXT    NOT NULL,
  schema_name TEXT    NOT NULL,
  started_at  {{ts}}  NOT NULL,
  finished_at {{ts}},
  output_path TEXT,
  status      TEXT    NOT NULL,
  documents   INTEGER NOT NULL DEFAULT 0,
  failures    INTEGER NOT NULL DEFAULT 0,
  fallbacks   INTEGER NOT NULL DEFAULT 0
)`,
	},
	{
		Name: "create_table_extract_job",
		SQL: `CREATE TABLE IF NOT EXISTS extract_job (
  id             TEXT    PRIMARY KEY,
  run_id         TEXT    NOT NULL REFERENCES extract_run (id) ON DELETE CASCADE,
  source_path    TEXT    NOT NULL,
  content_hash   TEXT    NOT NULL,
  schema_name    TEXT    NOT NULL,
  started_at     {{ts}}  NOT NULL,
  finished_at    {{ts}},
  status         TEXT    NOT NULL,
  error_message  TEXT,
  remote_job_id  TEXT,
  extracted_json {{json}},
  cleaned_json   {{json}},
  fallbacks      INTEGER NOT NULL DEFAULT 0
)`,
	},
	{
		Name: "create_index_extract_job_run",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_extract_job_run ON extract_job (run_id)`,
	},
	{
		Name: "create_index_extract_job_hash",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_extract_job_hash ON extract_job (content_hash, schema_name, status)`,
	},
}

func (d *DB) ddl(sql string) string {
	ts, js := "TIMESTAMP", "TEXT"
	if d.Dialect == DialectPostgres {
		ts, js = "TIMESTAMPTZ", "JSONB"
	}
	return strings.NewReplacer("{{ts}}", ts, "{{json}}", js).Replace(sql)
}

// Migrate creates the ledger tables when they are missing.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, s := range steps {
		if _, err := db.ExecContext(ctx, db.ddl(s.SQL)); err != nil {
			logger.Error("ledger migration failed", "step", s.Name, "error", err)
			return fmt.Errorf("migration %s: %w", s.Name, err)
		}
	}
	logger.Debug("ledger migrations applied", "steps", len(steps))
	return nil
}
