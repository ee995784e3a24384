package entity

import "time"

// Document is a discovered input file.
type Document struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Ext         string    `json:"ext"`
	Size        int64     `json:"size"`
	ContentHash string    `json:"content_hash"` // sha256 hex
	ModifiedAt  time.Time `json:"modified_at"`
}
