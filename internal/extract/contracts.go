package extract

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/consultation-extract/internal/entity"
	"github.com/joseph-ayodele/consultation-extract/internal/schema"
)

// Extractor turns one document into a raw field map shaped (loosely) by the schema.
type Extractor interface {
	Extract(ctx context.Context, doc entity.Document, s *schema.Schema) (RawResult, error)
}

// RawResult is what the service returned, before cleaning.
type RawResult struct {
	Data        map[string]any
	RawJSON     json.RawMessage
	RemoteJobID string
	Status      string // terminal remote status, e.g. SUCCESS or PARTIAL_SUCCESS
	Elapsed     time.Duration
	SchemaErr   error // strict check against the submitted data schema; nil when it matched
}

// Func adapts a plain function to Extractor.
type Func func(ctx context.Context, doc entity.Document, s *schema.Schema) (RawResult, error)

func (f Func) Extract(ctx context.Context, doc entity.Document, s *schema.Schema) (RawResult, error) {
	return f(ctx, doc, s)
}
