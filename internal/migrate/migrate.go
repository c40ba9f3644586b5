// Package migrate copies the local images a note embeds into the site asset
// store and rewrites the embeds to point at their published URLs.
package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/notepress/internal/models"
	"github.com/starford/notepress/internal/storage"
)

// StageName labels warnings produced here.
const StageName = "migrate"

const collisionLayout = "20060102150405"

// DefaultImageExtensions are the wiki embed extensions treated as images.
var DefaultImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".bmp", ".ico"}

var urlEscaper = strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29")

// Resolver locates the file behind an image reference.
type Resolver interface {
	Resolve(reference, documentPath string) (string, bool)
}

// Config fixes where migrated images are published.
type Config struct {
	// URLPrefix is the public path of the asset store, e.g. "/assets/".
	URLPrefix string
	// SkipPrefixes are further path prefixes already served by the site.
	SkipPrefixes []string
	// ImageExtensions decides which wiki embeds are images.
	ImageExtensions []string
}

// Result is the outcome of one Migrate call.
type Result struct {
	Body     string
	Assets   []models.MigratedAsset
	Warnings []models.Warning
}

// Migrator rewrites image embeds. It is safe to reuse across documents but a
// single asset store must not be migrated into concurrently.
type Migrator struct {
	cfg      Config
	exts     map[string]bool
	resolver Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock sets the time source used for collision suffixes.
func WithClock(now func() time.Time) Option {
	return func(m *Migrator) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Migrator.
func New(cfg Config, resolver Resolver, opts ...Option) *Migrator {
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = "/assets/"
	}
	if !strings.HasSuffix(cfg.URLPrefix, "/") {
		cfg.URLPrefix += "/"
	}
	if cfg.ImageExtensions == nil {
		cfg.ImageExtensions = DefaultImageExtensions
	}
	m := &Migrator{
		cfg:      cfg,
		exts:     make(map[string]bool, len(cfg.ImageExtensions)),
		resolver: resolver,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, e := range cfg.ImageExtensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m.exts[e] = true
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Migrate rewrites every local image embed of body that can be resolved from
// documentPath, copying the file into assetDir. Unresolved embeds are left
// untouched and reported as warnings; nothing here aborts the run.
func (m *Migrator) Migrate(body, documentPath, assetDir string) *Result {
	res := &Result{Body: body}
	refs := m.candidates(Scan(body))
	if len(refs) == 0 {
		m.logger.Info("migrate: no local images", slog.String("document", documentPath))
		return res
	}

	store, err := openStore(assetDir)
	if err != nil {
		m.logger.Error("migrate: asset store unavailable", slog.String("dir", assetDir), slog.String("error", err.Error()))
	}

	// Source path → published URL for this run.
	placed := make(map[string]string)

	var b strings.Builder
	last := 0
	for _, ref := range refs {
		src, ok := m.resolver.Resolve(ref.Target, documentPath)
		if !ok {
			m.logger.Warn("migrate: image not found", slog.String("reference", ref.Target))
			res.Warnings = append(res.Warnings, models.Warning{
				Stage:     StageName,
				Reference: ref.Target,
				Message:   "image not found, reference kept",
			})
			continue
		}
		ref.Resolved = src

		url, seen := placed[src]
		if !seen {
			if store == nil {
				res.Warnings = append(res.Warnings, models.Warning{
					Stage:     StageName,
					Reference: ref.Target,
					Message:   fmt.Sprintf("asset store unavailable: %v", err),
				})
				continue
			}
			asset, perr := m.place(store, ref)
			if perr != nil {
				m.logger.Warn("migrate: copy failed", slog.String("source", src), slog.String("error", perr.Error()))
				res.Warnings = append(res.Warnings, models.Warning{
					Stage:     StageName,
					Reference: ref.Target,
					Message:   perr.Error(),
				})
				continue
			}
			url = asset.URL
			placed[src] = url
			res.Assets = append(res.Assets, *asset)
		}

		b.WriteString(body[last:ref.Start])
		fmt.Fprintf(&b, "![%s](%s)", ref.Alt, url)
		last = ref.End
	}
	b.WriteString(body[last:])
	res.Body = b.String()

	m.logger.Info("migrate: done",
		slog.String("document", documentPath),
		slog.Int("assets", len(res.Assets)),
		slog.Int("warnings", len(res.Warnings)),
	)
	return res
}

// candidates drops the references that are not local images.
func (m *Migrator) candidates(refs []ImageReference) []ImageReference {
	out := refs[:0]
	for _, r := range refs {
		if m.skip(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (m *Migrator) skip(r ImageReference) bool {
	switch r.Syntax {
	case SyntaxWiki:
		return !m.exts[strings.ToLower(filepath.Ext(r.Target))]
	case SyntaxStandard:
		t := r.Target
		lower := strings.ToLower(t)
		if t == "" || strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return true
		}
		if strings.HasPrefix(t, m.cfg.URLPrefix) {
			return true
		}
		for _, p := range m.cfg.SkipPrefixes {
			if p != "" && strings.HasPrefix(t, p) {
				return true
			}
		}
	}
	return false
}

// place copies the resolved file into the store. A same-named destination of
// equal size is taken to be the same image and reused. Size equality is not a
// content check: two different images of identical size share one file.
func (m *Migrator) place(store storage.Provider, ref ImageReference) (*models.MigratedAsset, error) {
	srcInfo, err := os.Stat(ref.Resolved)
	if err != nil {
		return nil, fmt.Errorf("migrate: stat source: %w", err)
	}
	name := filepath.Base(ref.Resolved)
	asset := &models.MigratedAsset{Reference: ref.Target, Source: ref.Resolved}

	same, err := sameSize(store, name, srcInfo.Size())
	switch {
	case err == nil && same:
		m.logger.Debug("migrate: reusing asset", slog.String("name", name))
		return m.finish(store, asset, name), nil
	case err == nil:
		renamed, reuse, err := m.disambiguate(store, name, srcInfo.Size())
		if err != nil {
			return nil, err
		}
		m.logger.Info("migrate: name collision, renamed",
			slog.String("name", name), slog.String("as", renamed))
		asset.Renamed = true
		name = renamed
		if reuse {
			return m.finish(store, asset, name), nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	if err := store.Import(ref.Resolved, name); err != nil {
		return nil, err
	}
	asset.Copied = true
	m.logger.Debug("migrate: copied asset", slog.String("source", ref.Resolved), slog.String("name", name))
	return m.finish(store, asset, name), nil
}

func (m *Migrator) finish(store storage.Provider, a *models.MigratedAsset, name string) *models.MigratedAsset {
	a.Destination = name
	if fsStore, ok := store.(*storage.FS); ok {
		a.Destination = filepath.Join(fsStore.Root(), name)
	}
	a.URL = m.cfg.URLPrefix + urlEscaper.Replace(name)
	return a
}

// disambiguate picks stem_YYYYmmddHHMMSS.ext, falling back to a counter when
// that name is taken by a different file. reuse reports an equal-size file
// already sitting under the chosen name.
func (m *Migrator) disambiguate(store storage.Provider, name string, size int64) (string, bool, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext) + "_" + m.now().Format(collisionLayout)

	candidate := stem + ext
	for i := 1; ; i++ {
		same, err := sameSize(store, candidate, size)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, false, nil
		}
		if err != nil {
			return "", false, err
		}
		if same {
			return candidate, true, nil
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
}

func sameSize(store storage.Provider, name string, size int64) (bool, error) {
	info, err := store.Stat(name)
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular() && info.Size() == size, nil
}

func openStore(dir string) (*storage.FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("migrate: create asset dir: %w", err)
	}
	return storage.NewFS(dir)
}
