package entity

import (
	"time"

	"github.com/joseph-ayodele/consultation-extract/constants"
)

// Fallback notes a field whose extracted value was replaced during cleaning.
type Fallback struct {
	Field    string `json:"field"`
	Original string `json:"original"`
	Value    string `json:"value"`
	Reason   string `json:"reason"`
}

// Record is the cleaned result for one input document.
// Values always holds exactly the schema's field set.
type Record struct {
	Source    string              `json:"source"`
	Values    map[string]string   `json:"values"`
	Fallbacks []Fallback          `json:"fallbacks,omitempty"`
	Status    constants.JobStatus `json:"status"`
	Err       string              `json:"error,omitempty"`
}

// Get returns a field value, empty when the field is unknown.
func (r Record) Get(field string) string {
	return r.Values[field]
}

// Raw re-expresses the values as a decoded-JSON map so a record can be cleaned again.
func (r Record) Raw() map[string]any {
	out := make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		out[k] = v
	}
	return out
}

// Failed reports whether extraction failed and the record holds defaults.
func (r Record) Failed() bool {
	return r.Status == constants.JobStatusFailed
}

// BatchStats summarizes a batch.
type BatchStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Reused    uint32
	Failed    uint32
	Fallbacks uint32
}

// BatchResult is the ordered outcome of one batch: one record per discovered document.
type BatchResult struct {
	RunID      string // ledger run id; empty when the ledger is off
	InputDir   string
	Records    []Record
	Stats      BatchStats
	StartedAt  time.Time
	FinishedAt time.Time
}

// Len is the number of records.
func (b BatchResult) Len() int {
	return len(b.Records)
}
