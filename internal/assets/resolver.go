// Package assets locates image files referenced from a note inside the vault
// that holds it.
package assets

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DefaultAttachmentDirs are the attachment folder names Obsidian vaults
// commonly use.
var DefaultAttachmentDirs = []string{"attachments", "assets", "images", "附件", "Attachments"}

// DefaultAncestorDepth is how many directories above the note are searched for
// attachment folders.
const DefaultAncestorDepth = 3

// Resolver finds the file behind an image reference. It only reads the file
// system and holds no mutable state, so one Resolver may serve concurrent runs.
type Resolver struct {
	dirs  []string
	depth int
}

// NewResolver returns a Resolver searching the given attachment folder names
// (in order) up to depth ancestor directories above the note.
func NewResolver(attachmentDirs []string, depth int) *Resolver {
	if depth < 0 {
		depth = 0
	}
	return &Resolver{
		dirs:  append([]string(nil), attachmentDirs...),
		depth: depth,
	}
}

// Resolve returns the path of the first existing regular file for reference,
// searching in order:
//
//  1. reference relative to the note's directory
//  2. the reference's base name in the note's directory
//  3. the base name inside each attachment folder of the note's directory
//  4. the same attachment folders in each ancestor, nearest first
//
// A percent-encoded reference (Obsidian writes "Pasted%20image.png") is also
// tried decoded.
func (r *Resolver) Resolve(reference, documentPath string) (string, bool) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return "", false
	}
	variants := []string{ref}
	if dec, err := url.PathUnescape(ref); err == nil && dec != ref {
		variants = append(variants, dec)
	}

	for _, v := range variants {
		if p, ok := r.search(v, filepath.Dir(documentPath)); ok {
			return p, true
		}
	}
	return "", false
}

func (r *Resolver) search(ref, noteDir string) (string, bool) {
	seen := make(map[string]bool)
	try := func(p string) bool {
		p = filepath.Clean(p)
		if seen[p] {
			return false
		}
		seen[p] = true
		return isFile(p)
	}

	ref = filepath.FromSlash(ref)
	direct := ref
	if !filepath.IsAbs(ref) {
		direct = filepath.Join(noteDir, ref)
	}
	if try(direct) {
		return filepath.Clean(direct), true
	}

	name := filepath.Base(ref)
	if name == "." || name == string(filepath.Separator) {
		return "", false
	}
	if p := filepath.Join(noteDir, name); try(p) {
		return p, true
	}

	dir := noteDir
	for level := 0; level <= r.depth; level++ {
		for _, sub := range r.dirs {
			if p := filepath.Join(dir, sub, name); try(p) {
				return p, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
