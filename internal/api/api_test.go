package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notepress/internal/pipeline"
	"github.com/starford/notepress/internal/publisher"
)

type testSite struct {
	root  string
	vault string
	svc   *publisher.Service
}

// testEnv sets up a temp site and vault, a publisher and a router.
// A non-empty authToken enables token mode.
func testEnv(t *testing.T, authToken string) (*testSite, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sse http.Handler) (*testSite, http.Handler) {
	t.Helper()
	s := &testSite{root: t.TempDir(), vault: t.TempDir()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := pipeline.New(pipeline.Config{AssetURLPrefix: "/assets/", AncestorDepth: 3},
		pipeline.WithLogger(logger),
		pipeline.WithClock(func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }),
	)
	svc, err := publisher.New(publisher.Settings{
		SiteRoot:  s.root,
		PostsDir:  "posts",
		AssetsDir: "assets",
	}, p, publisher.WithLogger(logger))
	if err != nil {
		t.Fatalf("publisher.New: %v", err)
	}
	s.svc = svc
	return s, NewRouter(svc, authEnabled, token, sse)
}

func (s *testSite) note(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(s.vault, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func publish(t *testing.T, router http.Handler, req PublishRequest, token string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(req)
	r := httptest.NewRequest(http.MethodPost, "/publish", bytes.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestPublishAndReadPost(t *testing.T) {
	site, router := testEnv(t, "")
	site.note(t, "attachments/cat.png", "meow")
	src := site.note(t, "My Note.md", "Hello ![[cat.png]]\n")

	w := publish(t, router, PublishRequest{SourcePath: src, Tags: []string{"go"}}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("publish status = %d, body = %s", w.Code, w.Body.String())
	}
	var report publisher.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Post != "posts/My-Note.md" {
		t.Errorf("post = %q", report.Post)
	}
	if report.Title != "My Note" {
		t.Errorf("title = %q", report.Title)
	}
	if len(report.Assets) != 1 || report.Assets[0].URL != "/assets/cat.png" {
		t.Errorf("assets = %+v", report.Assets)
	}

	req := httptest.NewRequest(http.MethodGet, "/posts/My-Note.md", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "![cat](/assets/cat.png)") || !strings.Contains(body, "  - go") {
		t.Errorf("post body:\n%s", body)
	}
}

func TestPublish_NumericTagsAreNames(t *testing.T) {
	site, router := testEnv(t, "")
	seed := site.note(t, "seed.md", "x")
	if w := publish(t, router, PublishRequest{SourcePath: seed, Tags: []string{"rust"}}, ""); w.Code != http.StatusOK {
		t.Fatalf("seed publish = %d", w.Code)
	}

	src := site.note(t, "year.md", "x")
	w := publish(t, router, PublishRequest{SourcePath: src, Tags: []string{"2024", "1", "go"}}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("publish = %d, body = %s", w.Code, w.Body.String())
	}
	var report publisher.Report
	_ = json.Unmarshal(w.Body.Bytes(), &report)
	if len(report.Warnings) != 0 {
		t.Errorf("warnings = %+v", report.Warnings)
	}
	data, err := site.svc.ReadPost("year.md")
	if err != nil {
		t.Fatalf("ReadPost: %v", err)
	}
	if !strings.Contains(string(data), "tags:\n  - \"2024\"\n  - \"1\"\n  - go\n") {
		t.Errorf("post:\n%s", data)
	}
}

func TestPublish_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	for _, req := range []PublishRequest{
		{},
		{SourcePath: "/vault/note.txt"},
		{SourcePath: "/vault/note.md", Tags: []string{""}},
	} {
		if w := publish(t, router, req, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%+v: status = %d, want 400", req, w.Code)
		}
	}

	r := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestPublish_MissingSource(t *testing.T) {
	site, router := testEnv(t, "")
	w := publish(t, router, PublishRequest{SourcePath: filepath.Join(site.vault, "ghost.md")}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing source = %d, want 400", w.Code)
	}
}

func TestPublish_UnserializableHeader(t *testing.T) {
	site, router := testEnv(t, "")
	src := site.note(t, "bad.md", "---\n\"\": empty key\n---\nbody\n")
	w := publish(t, router, PublishRequest{SourcePath: src}, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422, body = %s", w.Code, w.Body.String())
	}
}

func TestTaxonomyEndpoint(t *testing.T) {
	site, router := testEnv(t, "")
	for i, tags := range [][]string{{"go", "web"}, {"go"}} {
		src := site.note(t, filepath.Join("n", string(rune('a'+i))+".md"), "text\n")
		if w := publish(t, router, PublishRequest{SourcePath: src, Tags: tags, Categories: []string{"Dev"}}, ""); w.Code != http.StatusOK {
			t.Fatalf("publish = %d, body = %s", w.Code, w.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/taxonomy", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("taxonomy = %d", w.Code)
	}
	var resp TaxonomyResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Tags) != 2 || resp.Tags[0].Name != "go" || resp.Tags[0].Count != 2 {
		t.Errorf("tags = %+v", resp.Tags)
	}
	if len(resp.Categories) != 1 || resp.Categories[0].Count != 2 {
		t.Errorf("categories = %+v", resp.Categories)
	}
}

func TestTaxonomyEndpoint_EmptySite(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodGet, "/taxonomy", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"tags":[]`) {
		t.Errorf("body = %s, want empty arrays", w.Body.String())
	}
}

func TestListPosts(t *testing.T) {
	site, router := testEnv(t, "")
	for _, name := range []string{"a.md", "b.md"} {
		publish(t, router, PublishRequest{SourcePath: site.note(t, name, "# "+name)}, "")
	}

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp PostListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Posts) != 2 {
		t.Errorf("posts = %d, want 2", len(resp.Posts))
	}
}

func TestGetPost_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/posts/nope.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing post = %d, want 404", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/posts/nope.txt", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad name = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	site, router := testEnv(t, "secret123")
	src := site.note(t, "auth.md", "test")
	if w := publish(t, router, PublishRequest{SourcePath: src}, "secret123"); w.Code != http.StatusOK {
		t.Errorf("authed publish = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func blockingSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", blockingSSE())

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", blockingSSE())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

// Asset serving tests.

func assetRouter(dir string) http.Handler {
	r := chi.NewRouter()
	r.Get("/assets/{filename}", NewAssetHandler(dir).ServeFile)
	return r
}

func TestServeAsset(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cat.png"), []byte("meow"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	assetRouter(dir).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/cat.png", nil))
	if w.Code != http.StatusOK || w.Body.String() != "meow" {
		t.Errorf("serve = %d %q", w.Code, w.Body.String())
	}
}

func TestServeAsset_NotFound(t *testing.T) {
	w := httptest.NewRecorder()
	assetRouter(t.TempDir()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/nope.png", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing asset = %d, want 404", w.Code)
	}
}

func TestServeAsset_TraversalBlocked(t *testing.T) {
	r := assetRouter(t.TempDir())
	for _, name := range []string{"../secret.md", "..%2Fsecret.md", "../../etc/passwd"} {
		req := httptest.NewRequest(http.MethodGet, "/assets/"+name, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		// chi may not route the traversal paths at all (404), or the handler rejects (400).
		if w.Code == http.StatusOK {
			t.Errorf("traversal %q should not return 200", name)
		}
	}
}

func TestPublish_RejectsUnknownFields(t *testing.T) {
	_, router := testEnv(t, "")
	r := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(`{"source_path":"/v/a.md","tgas":["go"]}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown field = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ChallengeHeader(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/taxonomy", nil))
	if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer") {
		t.Errorf("WWW-Authenticate = %q", w.Header().Get("WWW-Authenticate"))
	}
}
