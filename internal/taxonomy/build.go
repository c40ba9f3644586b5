package taxonomy

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/starford/notepress/internal/storage"
)

// postHeader is the part of a published post's header the scan reads. Both
// fields accept a single string or a list.
type postHeader struct {
	Tags       any `yaml:"tags"`
	Categories any `yaml:"categories"`
}

// Build scans every post under dir and returns fresh tag and category indexes.
// Posts that cannot be read or whose header does not decode are skipped.
//
// The scan descends into subdirectories of dir and, through adrg/frontmatter,
// also reads TOML (+++) and JSON ({ }) headers, so it sees more posts than a
// top-level *.md scan of YAML headers would.
func Build(store storage.Provider, dir string, logger *slog.Logger) (tags, categories *Index, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	posts, err := store.List(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("taxonomy: list posts: %w", err)
	}

	tagCounts := make(map[string]int)
	catCounts := make(map[string]int)
	for _, p := range posts {
		data, err := store.Read(p.Path)
		if err != nil {
			logger.Warn("taxonomy: skipping unreadable post", slog.String("path", p.Path), slog.String("error", err.Error()))
			continue
		}
		var h postHeader
		if _, err := frontmatter.Parse(bytes.NewReader(data), &h); err != nil {
			logger.Debug("taxonomy: skipping post header", slog.String("path", p.Path), slog.String("error", err.Error()))
			continue
		}
		count(tagCounts, h.Tags)
		count(catCounts, h.Categories)
	}

	logger.Debug("taxonomy: built",
		slog.Int("posts", len(posts)),
		slog.Int("tags", len(tagCounts)),
		slog.Int("categories", len(catCounts)),
	)
	return NewIndex(tagCounts), NewIndex(catCounts), nil
}

// count adds one use for every scalar name in v. A post listing a tag twice
// counts it twice.
func count(counts map[string]int, v any) {
	add := func(item any) {
		if item == nil {
			return
		}
		switch item.(type) {
		case []any, map[string]any, map[any]any:
			return
		}
		name := strings.TrimSpace(fmt.Sprint(item))
		if name == "" {
			return
		}
		counts[name]++
	}

	switch val := v.(type) {
	case []any:
		for _, item := range val {
			add(item)
		}
	default:
		add(val)
	}
}
