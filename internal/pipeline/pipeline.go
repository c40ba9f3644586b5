// Package pipeline turns a note into a publishable post: it migrates image
// embeds, normalizes the header and serializes the result.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/notepress/internal/assets"
	"github.com/starford/notepress/internal/frontmatter"
	"github.com/starford/notepress/internal/migrate"
	"github.com/starford/notepress/internal/models"
	"github.com/starford/notepress/internal/normalize"
	"github.com/starford/notepress/internal/taxonomy"
)

// Config carries the site and vault conventions a Pipeline works with.
type Config struct {
	AssetURLPrefix   string
	ExternalPrefixes []string
	AttachmentDirs   []string
	ImageExtensions  []string
	AncestorDepth    int
}

// Request describes one document run.
type Request struct {
	Document     string
	SourcePath   string
	AssetDir     string
	DefaultTitle string
	Tags         *taxonomy.Index
	Categories   *taxonomy.Index
	Interaction  normalize.Interaction
}

// Result is the prepared post plus what happened on the way.
type Result struct {
	Document string
	Header   *frontmatter.Header
	Assets   []models.MigratedAsset
	Warnings []models.Warning
}

// Pipeline chains migrate → normalize → dump.
type Pipeline struct {
	migrator   *migrate.Migrator
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

type options struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Pipeline.
type Option func(*options)

// WithLogger sets the logger handed to every stage.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the time source for header timestamps and collision names.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a Pipeline. Instances share no state.
func New(cfg Config, opts ...Option) *Pipeline {
	o := options{logger: slog.Default(), now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	dirs := cfg.AttachmentDirs
	if dirs == nil {
		dirs = assets.DefaultAttachmentDirs
	}

	resolver := assets.NewResolver(dirs, cfg.AncestorDepth)
	return &Pipeline{
		migrator: migrate.New(migrate.Config{
			URLPrefix:       cfg.AssetURLPrefix,
			SkipPrefixes:    cfg.ExternalPrefixes,
			ImageExtensions: cfg.ImageExtensions,
		}, resolver, migrate.WithLogger(o.logger), migrate.WithClock(o.now)),
		normalizer: normalize.New(normalize.WithLogger(o.logger), normalize.WithClock(o.now)),
		logger:     o.logger,
	}
}

// Run prepares req.Document. The only error is a header that cannot be
// serialized; unresolved images and interaction trouble come back as
// warnings.
func (p *Pipeline) Run(req Request) (*Result, error) {
	header, body := frontmatter.Parse(req.Document)
	if header == nil {
		p.logger.Debug("pipeline: no header", slog.String("source", req.SourcePath))
	} else if _, err := frontmatter.Dump(header, ""); err != nil {
		// Fail before any asset is copied.
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	migrated := p.migrator.Migrate(body, req.SourcePath, req.AssetDir)

	normalized, warnings := p.normalizer.Normalize(normalize.Input{
		Header:       header,
		DefaultTitle: req.DefaultTitle,
		Tags:         req.Tags,
		Categories:   req.Categories,
		Interaction:  req.Interaction,
	})

	doc, err := frontmatter.Dump(normalized, migrated.Body)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	return &Result{
		Document: doc,
		Header:   normalized,
		Assets:   migrated.Assets,
		Warnings: append(migrated.Warnings, warnings...),
	}, nil
}
