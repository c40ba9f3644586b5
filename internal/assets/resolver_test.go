package assets

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolve_SearchOrder(t *testing.T) {
	vault := t.TempDir()
	note := filepath.Join(vault, "a", "b", "c", "note.md")
	writeFile(t, note, "# note")

	r := NewResolver(DefaultAttachmentDirs, DefaultAncestorDepth)

	cases := []struct {
		name string
		file string
	}{
		{"ancestor three up", filepath.Join(vault, "attachments", "pic.png")},
		{"ancestor two up", filepath.Join(vault, "a", "附件", "pic.png")},
		{"parent", filepath.Join(vault, "a", "b", "images", "pic.png")},
		{"sibling attachments", filepath.Join(vault, "a", "b", "c", "assets", "pic.png")},
		{"same dir", filepath.Join(vault, "a", "b", "c", "pic.png")},
	}
	// Each case adds a nearer candidate that must win over the previous ones.
	for _, tc := range cases {
		writeFile(t, tc.file, tc.name)
		got, ok := r.Resolve("pic.png", note)
		if !ok {
			t.Fatalf("%s: not resolved", tc.name)
		}
		if got != tc.file {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.file)
		}
	}
}

func TestResolve_RelativePathWins(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.md")
	rel := filepath.Join(dir, "img", "shot.png")
	writeFile(t, rel, "rel")
	writeFile(t, filepath.Join(dir, "shot.png"), "flat")

	got, ok := NewResolver(DefaultAttachmentDirs, 3).Resolve("img/shot.png", note)
	if !ok || got != rel {
		t.Errorf("got %q, %v; want %q", got, ok, rel)
	}
}

func TestResolve_BaseNameFallback(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.md")
	want := filepath.Join(dir, "attachments", "shot.png")
	writeFile(t, want, "x")

	got, ok := NewResolver(DefaultAttachmentDirs, 3).Resolve("../elsewhere/shot.png", note)
	if !ok || got != want {
		t.Errorf("got %q, %v; want %q", got, ok, want)
	}
}

func TestResolve_DepthLimit(t *testing.T) {
	vault := t.TempDir()
	note := filepath.Join(vault, "1", "2", "3", "4", "note.md")
	writeFile(t, filepath.Join(vault, "attachments", "deep.png"), "x")

	if _, ok := NewResolver(DefaultAttachmentDirs, 3).Resolve("deep.png", note); ok {
		t.Error("file four levels up should be out of reach")
	}
	if _, ok := NewResolver(DefaultAttachmentDirs, 4).Resolve("deep.png", note); !ok {
		t.Error("depth 4 should reach it")
	}
}

func TestResolve_PercentEncoded(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.md")
	want := filepath.Join(dir, "attachments", "Pasted image.png")
	writeFile(t, want, "x")

	got, ok := NewResolver(DefaultAttachmentDirs, 3).Resolve("Pasted%20image.png", note)
	if !ok || got != want {
		t.Errorf("got %q, %v; want %q", got, ok, want)
	}
}

func TestResolve_Misses(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.md")
	if err := os.MkdirAll(filepath.Join(dir, "attachments", "folder.png"), 0o755); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(DefaultAttachmentDirs, 3)
	for _, ref := range []string{"missing.png", "folder.png", "", "   "} {
		if p, ok := r.Resolve(ref, note); ok {
			t.Errorf("Resolve(%q) = %q, want miss", ref, p)
		}
	}
}

func TestResolve_AbsoluteReference(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "abs.png")
	writeFile(t, abs, "x")

	got, ok := NewResolver(nil, 0).Resolve(abs, filepath.Join(dir, "note.md"))
	if !ok || got != abs {
		t.Errorf("got %q, %v; want %q", got, ok, abs)
	}
}
