// Package source reads the note to publish and derives its post filename.
package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/starford/notepress/internal/apperr"
)

// DefaultExtensions are the note extensions accepted for publishing.
var DefaultExtensions = []string{".md", ".markdown"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Document is a note read from disk.
type Document struct {
	Path     string
	Text     string
	Encoding string
}

// Read loads the note at path. The file must exist, be a regular file and
// carry one of exts. Text is decoded as UTF-8; when that fails each fallback
// encoding (htmlindex names such as "gbk") is tried in turn.
func Read(path string, exts, fallbacks []string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w: %v", apperr.ErrInvalidInput, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source: %w: %v", apperr.ErrInvalidInput, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("source: %w: not a regular file: %s", apperr.ErrInvalidInput, path)
	}
	if !HasExtension(abs, exts) {
		return nil, fmt.Errorf("source: %w: unsupported extension %q", apperr.ErrInvalidInput, filepath.Ext(abs))
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("source: read: %w", err)
	}
	text, enc, err := Decode(data, fallbacks)
	if err != nil {
		return nil, fmt.Errorf("source: %s: %w", path, err)
	}
	return &Document{Path: abs, Text: text, Encoding: enc}, nil
}

// Decode returns data as text and the name of the encoding that produced it.
func Decode(data []byte, fallbacks []string) (string, string, error) {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM)), "utf-8", nil
	}
	for _, name := range fallbacks {
		enc, err := lookup(name)
		if err != nil {
			continue
		}
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
			continue
		}
		return string(out), name, nil
	}
	return "", "", apperr.ErrEncoding
}

// ValidateEncodings reports the first name htmlindex does not know.
func ValidateEncodings(names []string) error {
	for _, n := range names {
		if _, err := lookup(n); err != nil {
			return err
		}
	}
	return nil
}

func lookup(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
	return enc, nil
}

// HasExtension reports whether path ends in one of exts, ignoring case.
func HasExtension(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Title is the default post title: the file name without extension.
func Title(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DestinationName is the post filename for a note: the stem with spaces
// replaced by hyphens, always with a .md extension.
func DestinationName(path string) string {
	return strings.ReplaceAll(Title(path), " ", "-") + ".md"
}
