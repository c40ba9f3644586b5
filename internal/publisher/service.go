// Package publisher runs a complete publish: read the note, prepare it with
// the pipeline, write the post into the site and optionally push with git.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/notepress/internal/apperr"
	"github.com/starford/notepress/internal/models"
	"github.com/starford/notepress/internal/normalize"
	"github.com/starford/notepress/internal/pipeline"
	"github.com/starford/notepress/internal/source"
	"github.com/starford/notepress/internal/storage"
	"github.com/starford/notepress/internal/taxonomy"
	"github.com/starford/notepress/internal/vcs"
)

// Event kinds passed to the EventSink.
const (
	EventStarted  = "publish.started"
	EventAsset    = "asset.migrated"
	EventWarning  = "publish.warning"
	EventGitStep  = "git.step"
	EventFinished = "publish.finished"
)

// EventSink receives progress events tagged with the id of the publish run
// that produced them. It must not block.
type EventSink func(run, kind string, data any)

// Settings locate the site and describe accepted notes.
type Settings struct {
	SiteRoot          string
	PostsDir          string // relative to SiteRoot
	AssetsDir         string // relative to SiteRoot
	SourceExtensions  []string
	FallbackEncodings []string
	CommitTemplate    string // fmt template receiving the post title
}

// Options describe one publish.
type Options struct {
	SourcePath string
	// Title overrides the default title derived from the file name.
	Title       string
	Interaction normalize.Interaction
	Push        bool
}

// Report summarises a publish.
type Report struct {
	Run      string                 `json:"run"`
	Source   string                 `json:"source"`
	Post     string                 `json:"post"`
	Title    string                 `json:"title"`
	Encoding string                 `json:"encoding"`
	Assets   []models.MigratedAsset `json:"assets"`
	Warnings []models.Warning       `json:"warnings"`
	Git      []vcs.StepResult       `json:"git,omitempty"`
	Pushed   bool                   `json:"pushed"`
	Document string                 `json:"-"`
}

// Service publishes notes into one site. Publish calls are serialized since
// they share the asset store.
type Service struct {
	settings Settings
	site     *storage.FS
	pipeline *pipeline.Pipeline
	git      *vcs.Git
	logger   *slog.Logger
	emit     EventSink
	newRun   func() string

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithGit enables pushing through g.
func WithGit(g *vcs.Git) Option {
	return func(s *Service) { s.git = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEvents sets the progress sink.
func WithEvents(sink EventSink) Option {
	return func(s *Service) {
		if sink != nil {
			s.emit = sink
		}
	}
}

// New creates a Service. The site root must exist.
func New(settings Settings, p *pipeline.Pipeline, opts ...Option) (*Service, error) {
	site, err := storage.NewFS(settings.SiteRoot)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}
	if settings.SourceExtensions == nil {
		settings.SourceExtensions = source.DefaultExtensions
	}
	if settings.CommitTemplate == "" {
		settings.CommitTemplate = "feat: publish %s"
	}
	s := &Service{
		settings: settings,
		site:     site,
		pipeline: p,
		logger:   slog.Default(),
		emit:     func(string, string, any) {},
		newRun:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Publish turns the note at opts.SourcePath into a post. Input problems and
// unserializable headers are returned as errors before anything is written.
// Git failures are reported in the Report and do not undo the write.
func (s *Service) Publish(ctx context.Context, opts Options) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := source.Read(opts.SourcePath, s.settings.SourceExtensions, s.settings.FallbackEncodings)
	if err != nil {
		return nil, err
	}
	run := s.newRun()
	emit := func(kind string, data any) { s.emit(run, kind, data) }
	emit(EventStarted, map[string]string{"source": doc.Path})
	s.logger.Info("publisher: publishing",
		slog.String("run", run),
		slog.String("source", doc.Path),
		slog.String("encoding", doc.Encoding),
	)

	var warnings []models.Warning
	tags, cats, err := taxonomy.Build(s.site, s.settings.PostsDir, s.logger)
	if err != nil {
		warnings = append(warnings, models.Warning{Stage: "taxonomy", Message: err.Error()})
	}

	title := opts.Title
	if title == "" {
		title = source.Title(doc.Path)
	}

	res, err := s.pipeline.Run(pipeline.Request{
		Document:     doc.Text,
		SourcePath:   doc.Path,
		AssetDir:     filepath.Join(s.site.Root(), filepath.FromSlash(s.settings.AssetsDir)),
		DefaultTitle: title,
		Tags:         tags,
		Categories:   cats,
		Interaction:  opts.Interaction,
	})
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}
	for _, a := range res.Assets {
		emit(EventAsset, a)
	}
	warnings = append(warnings, res.Warnings...)
	for _, w := range warnings {
		emit(EventWarning, w)
	}

	post := path.Join(filepath.ToSlash(s.settings.PostsDir), source.DestinationName(doc.Path))
	if err := s.site.Write(post, []byte(res.Document)); err != nil {
		return nil, fmt.Errorf("publisher: write post: %w", err)
	}

	if v, ok := res.Header.Get(normalize.FieldTitle); ok && v.Text() != "" {
		title = v.Text()
	}
	report := &Report{
		Run:      run,
		Source:   doc.Path,
		Post:     post,
		Title:    title,
		Encoding: doc.Encoding,
		Assets:   res.Assets,
		Warnings: warnings,
		Document: res.Document,
	}
	if report.Assets == nil {
		report.Assets = []models.MigratedAsset{}
	}
	if report.Warnings == nil {
		report.Warnings = []models.Warning{}
	}

	if opts.Push && s.git != nil {
		msg := fmt.Sprintf(s.settings.CommitTemplate, title)
		report.Git, report.Pushed = s.git.Publish(ctx, msg, func(r vcs.StepResult) {
			emit(EventGitStep, r)
		})
	}

	s.logger.Info("publisher: published",
		slog.String("run", run),
		slog.String("post", post),
		slog.Int("assets", len(report.Assets)),
		slog.Int("warnings", len(report.Warnings)),
		slog.Bool("pushed", report.Pushed),
	)
	emit(EventFinished, map[string]any{"post": post, "title": title, "pushed": report.Pushed})
	return report, nil
}

// Taxonomy returns freshly counted tag and category indexes.
func (s *Service) Taxonomy() (tags, categories *taxonomy.Index, err error) {
	return taxonomy.Build(s.site, s.settings.PostsDir, s.logger)
}

// ListPosts returns every post under the posts directory.
func (s *Service) ListPosts() ([]models.PostMetadata, error) {
	posts, err := s.site.List(s.settings.PostsDir)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}
	if posts == nil {
		posts = []models.PostMetadata{}
	}
	return posts, nil
}

// ReadPost returns the post file name, which must be a bare .md file name.
func (s *Service) ReadPost(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) || !strings.EqualFold(filepath.Ext(name), ".md") {
		return nil, fmt.Errorf("publisher: %w: bad post name %q", apperr.ErrInvalidInput, name)
	}
	data, err := s.site.Read(path.Join(filepath.ToSlash(s.settings.PostsDir), name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}
