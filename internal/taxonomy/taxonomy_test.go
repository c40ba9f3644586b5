package taxonomy

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/starford/notepress/internal/storage"
)

func TestIndex_RankedByCountThenName(t *testing.T) {
	ix := NewIndex(map[string]int{"rust": 2, "go": 5, "c": 2, "zero": 0})
	want := []string{"go", "c", "rust"}
	if got := ix.Ranked(); !reflect.DeepEqual(got, want) {
		t.Errorf("Ranked = %v, want %v", got, want)
	}
	if ix.Len() != 3 || ix.Count("go") != 5 || ix.Count("zero") != 0 {
		t.Errorf("unexpected counts: len=%d go=%d", ix.Len(), ix.Count("go"))
	}
	if e := ix.Entries(); e[0] != (Entry{Name: "go", Count: 5}) {
		t.Errorf("Entries[0] = %+v", e[0])
	}
}

func TestIndex_NilIsEmpty(t *testing.T) {
	var ix *Index
	if ix.Len() != 0 || ix.Count("x") != 0 || ix.Ranked() != nil || ix.Entries() != nil {
		t.Error("nil index should be empty")
	}
}

func TestBuild_CountsPosts(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	posts := map[string]string{
		"posts/a.md": "---\ntitle: A\ntags: [go, rust]\ncategories: [dev]\n---\nbody",
		"posts/b.md": "---\ntitle: B\ntags:\n  - go\n  - go\ncategories: dev\n---\nbody",
		"posts/c.md": "---\ntags: ' go '\n---\n",
		"posts/d.md": "no header at all",
		"posts/e.md": "---\ntags: [unclosed\n---\n",
		"posts/f.md": "---\ntags:\n  - 2024\n  - [nested]\n  - ''\n---\n",
		"other/x.md": "---\ntags: [elsewhere]\n---\n",
	}
	for p, content := range posts {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	tags, cats, err := Build(store, "posts", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// b.md lists go twice and counts twice.
	wantTags := map[string]int{"go": 4, "rust": 1, "2024": 1}
	for name, n := range wantTags {
		if got := tags.Count(name); got != n {
			t.Errorf("tag %q = %d, want %d", name, got, n)
		}
	}
	if tags.Len() != len(wantTags) {
		t.Errorf("tags = %v", tags.Entries())
	}
	if cats.Count("dev") != 2 || cats.Len() != 1 {
		t.Errorf("categories = %v", cats.Entries())
	}
	if got := tags.Ranked()[0]; got != "go" {
		t.Errorf("top tag = %q", got)
	}
}

func TestBuild_MissingDir(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	tags, cats, err := Build(store, "pages/posts", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tags.Len() != 0 || cats.Len() != 0 {
		t.Error("expected empty indexes")
	}
}

func TestBuild_ReadsNestedAndTOMLPosts(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	posts := map[string]string{
		"posts/2024/deep.md": "---\ntags: [nested]\n---\nbody",
		"posts/toml.md":      "+++\ntags = [\"toml\"]\n+++\nbody",
	}
	for p, content := range posts {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	tags, _, err := Build(store, "posts", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tags.Count("nested") != 1 || tags.Count("toml") != 1 {
		t.Errorf("tags = %v", tags.Entries())
	}
}
