// Package models defines the types shared across the publishing components.
package models

import "time"

// PostMetadata is a lightweight listing entry for a published post.
type PostMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MigratedAsset records one image copied (or reused) in the asset store.
type MigratedAsset struct {
	Reference   string `json:"reference"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	URL         string `json:"url"`
	Copied      bool   `json:"copied"`
	Renamed     bool   `json:"renamed"`
}

// Warning is a non-fatal problem surfaced to the caller of a publish run.
type Warning struct {
	Stage     string `json:"stage"`               // "migrate", "header", "taxonomy"
	Reference string `json:"reference,omitempty"` // offending reference or field
	Message   string `json:"message"`
}
