package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/notepress/internal/apperr"
	"github.com/starford/notepress/internal/frontmatter"
	"github.com/starford/notepress/internal/taxonomy"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

type answers map[string][]string

func (a answers) Select(field string, _ []string) ([]string, error) { return a[field], nil }
func (a answers) Text(string) (string, error) { return "", nil }

func newPipeline() *Pipeline {
	return New(Config{AssetURLPrefix: "/assets/", ExternalPrefixes: []string{"/images/"}, AncestorDepth: 3},
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func setup(t *testing.T) (note, assetDir string) {
	t.Helper()
	vault := t.TempDir()
	note = filepath.Join(vault, "My Note.md")
	img := filepath.Join(vault, "attachments", "cat.png")
	if err := os.MkdirAll(filepath.Dir(img), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(img, []byte("meow"), 0o644); err != nil {
		t.Fatal(err)
	}
	return note, filepath.Join(t.TempDir(), "assets")
}

func TestRun_NoHeader(t *testing.T) {
	note, assetDir := setup(t)
	res, err := newPipeline().Run(Request{
		Document:     "see ![[cat.png|kitty]] here",
		SourcePath:   note,
		AssetDir:     assetDir,
		DefaultTitle: "My Note",
		Tags:         taxonomy.NewIndex(map[string]int{"go": 5, "rust": 2}),
		Interaction:  answers{"tags": {"1"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "---\n" +
		"title: My Note\n" +
		"date: \"2024-05-06 07:08:09\"\n" +
		"updated: \"2024-05-06 07:08:09\"\n" +
		"tags:\n  - go\n" +
		"---\n" +
		"see ![kitty](/assets/cat.png) here"
	if res.Document != want {
		t.Errorf("document =\n%s\nwant\n%s", res.Document, want)
	}
	if len(res.Assets) != 1 || len(res.Warnings) != 0 {
		t.Errorf("assets = %v, warnings = %v", res.Assets, res.Warnings)
	}
	if _, err := os.Stat(filepath.Join(assetDir, "cat.png")); err != nil {
		t.Errorf("asset missing: %v", err)
	}
}

func TestRun_OutputReparses(t *testing.T) {
	note, assetDir := setup(t)
	doc := "---\ntitle: Kept\ncustom:\n  - a: 1\ntags: [x]\n---\n![[cat.png]]\n"
	res, err := newPipeline().Run(Request{Document: doc, SourcePath: note, AssetDir: assetDir, DefaultTitle: "unused"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	h, body := frontmatter.Parse(res.Document)
	if !reflect.DeepEqual(h, res.Header) {
		t.Errorf("re-parsed header differs:\n%s", res.Document)
	}
	if body != "![cat](/assets/cat.png)\n" {
		t.Errorf("body = %q", body)
	}
	if want := []string{"title", "custom", "tags", "date", "updated"}; !reflect.DeepEqual(h.Keys(), want) {
		t.Errorf("keys = %v, want %v", h.Keys(), want)
	}
}

func TestRun_UnresolvedImageStillCompletes(t *testing.T) {
	note, assetDir := setup(t)
	res, err := newPipeline().Run(Request{
		Document:     "![gone](nowhere.png)",
		SourcePath:   note,
		AssetDir:     assetDir,
		DefaultTitle: "t",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasSuffix(res.Document, "---\n![gone](nowhere.png)") {
		t.Errorf("document = %q", res.Document)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want 1", res.Warnings)
	}
}

func TestRun_SerializationFailure(t *testing.T) {
	note, assetDir := setup(t)
	_, err := newPipeline().Run(Request{
		Document:   "---\n\"\": empty key\n---\n![[cat.png]]",
		SourcePath: note,
		AssetDir:   assetDir,
	})
	if !errors.Is(err, apperr.ErrSerialize) {
		t.Errorf("err = %v, want ErrSerialize", err)
	}
	if _, err := os.Stat(assetDir); !os.IsNotExist(err) {
		t.Error("assets copied for a document that cannot be serialized")
	}
}

func TestRun_InvalidUTF8AnswerStillSerializes(t *testing.T) {
	note, assetDir := setup(t)
	res, err := newPipeline().Run(Request{
		Document:     "![[cat.png]]",
		SourcePath:   note,
		AssetDir:     assetDir,
		DefaultTitle: "t\xff",
		Interaction:  answers{"tags": {"\xffbad", "go"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.Document, "tags:\n  - go\n") {
		t.Errorf("document = %q", res.Document)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("warnings = %v, want title and tag warnings", res.Warnings)
	}
	if _, err := os.Stat(filepath.Join(assetDir, "cat.png")); err != nil {
		t.Errorf("asset missing: %v", err)
	}
}

func TestNew_InstancesAreIndependent(t *testing.T) {
	note, assetDir := setup(t)
	a := New(Config{AssetURLPrefix: "/a/"}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	b := New(Config{AssetURLPrefix: "/b/"}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ra, err := a.Run(Request{Document: "![[cat.png]]", SourcePath: note, AssetDir: assetDir})
	if err != nil {
		t.Fatalf("Run a: %v", err)
	}
	rb, err := b.Run(Request{Document: "![[cat.png]]", SourcePath: note, AssetDir: assetDir})
	if err != nil {
		t.Fatalf("Run b: %v", err)
	}
	if !strings.Contains(ra.Document, "(/a/cat.png)") || !strings.Contains(rb.Document, "(/b/cat.png)") {
		t.Errorf("prefixes leaked:\n%s\n%s", ra.Document, rb.Document)
	}
}
