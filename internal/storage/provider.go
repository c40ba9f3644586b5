// Package storage defines the site content-store abstraction.
package storage

import (
	"io/fs"

	"github.com/starford/notepress/internal/models"
)

// Provider is the interface for content-store file operations. Every path is
// relative to the store root.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.PostMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Stat describes the file at path.
	Stat(path string) (fs.FileInfo, error)
	// Import atomically copies the external file src into path.
	Import(src, path string) error
}
