package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtractRun is one invocation of the batch over an input directory.
type ExtractRun struct {
	ID         uuid.UUID  `json:"id"`
	InputDir   string     `json:"input_dir"`
	SchemaName string     `json:"schema_name"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	OutputPath *string    `json:"output_path,omitempty"`
	Status     string     `json:"status"`
	Documents  int        `json:"documents"`
	Failures   int        `json:"failures"`
	Fallbacks  int        `json:"fallbacks"`
}

// ExtractJob represents one document's extraction inside a run.
type ExtractJob struct {
	ID            uuid.UUID       `json:"id"`
	RunID         uuid.UUID       `json:"run_id"`
	SourcePath    string          `json:"source_path"`
	ContentHash   string          `json:"content_hash"`
	SchemaName    string          `json:"schema_name"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Status        string          `json:"status"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	RemoteJobID   *string         `json:"remote_job_id,omitempty"`
	ExtractedJSON json.RawMessage `json:"extracted_json,omitempty"`
	CleanedJSON   json.RawMessage `json:"cleaned_json,omitempty"`
	Fallbacks     int             `json:"fallbacks"`
}
