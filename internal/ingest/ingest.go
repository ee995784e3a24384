package ingest

import (
	"context"

	"github.com/joseph-ayodele/consultation-extract/internal/entity"
)

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32 // entries visited
	Matched uint32 // entries with an allowed extension
	Skipped uint32 // hidden, lock or unreadable entries
}

// Options controls discovery.
type Options struct {
	Extensions []string // lowercased sans '.'; empty -> constants.AllowedExtensions
	Recursive  bool
	SkipHidden bool
}

// DefaultOptions discovers top-level .docx files and skips hidden ones.
func DefaultOptions() Options {
	return Options{SkipHidden: true}
}

// Discoverer is the behavior the batch depends on.
type Discoverer interface {
	Discover(ctx context.Context, root string) ([]entity.Document, DirStats, error)
}
