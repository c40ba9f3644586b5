// Package normalize brings a note's header in line with the site schema:
// title, date and updated are always present, and tags, categories and an
// excerpt are solicited through an Interaction when the note lacks them.
package normalize

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/notepress/internal/frontmatter"
	"github.com/starford/notepress/internal/models"
	"github.com/starford/notepress/internal/taxonomy"
)

// Header fields written by the normalizer.
const (
	FieldTitle      = "title"
	FieldDate       = "date"
	FieldUpdated    = "updated"
	FieldTags       = "tags"
	FieldCategories = "categories"
	FieldExcerpt    = "excerpt"
)

// StageName labels warnings produced here.
const StageName = "header"

// TimestampLayout formats date and updated.
const TimestampLayout = "2006-01-02 15:04:05"

// Interaction supplies the answers a human would give. Select receives the
// existing names for field ranked by use and returns raw answers: 1-based
// indices into ranked or new names. Text returns a free-text answer; empty
// means skip.
type Interaction interface {
	Select(field string, ranked []string) ([]string, error)
	Text(field string) (string, error)
}

// NameSelector is implemented by interactions whose Select answers are always
// names. Numeric answers from such an interaction are kept as names instead
// of being read as indices.
type NameSelector interface {
	SelectsNames() bool
}

// Input is everything Normalize needs for one document.
type Input struct {
	// Header is nil when the document had none.
	Header       *frontmatter.Header
	DefaultTitle string
	Tags         *taxonomy.Index
	Categories   *taxonomy.Index
	// Interaction may be nil; nothing is solicited then.
	Interaction Interaction
}

// Normalizer fills missing header fields.
type Normalizer struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the time source for date and updated.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize returns a new header; in.Header is not modified. Keys it does not
// own pass through untouched and keep their order.
func (n *Normalizer) Normalize(in Input) (*frontmatter.Header, []models.Warning) {
	s := &session{in: in}
	stamp := frontmatter.String(n.now().Format(TimestampLayout))
	if !utf8.ValidString(in.DefaultTitle) {
		s.warn(FieldTitle, "default title is not valid UTF-8, invalid bytes replaced")
		in.DefaultTitle = strings.ToValidUTF8(in.DefaultTitle, string(utf8.RuneError))
	}

	if in.Header == nil {
		h := frontmatter.NewHeader()
		h.Set(FieldTitle, frontmatter.String(in.DefaultTitle))
		h.Set(FieldDate, stamp)
		h.Set(FieldUpdated, stamp)
		if tags := s.selectNames(FieldTags, in.Tags); len(tags) > 0 {
			h.Set(FieldTags, frontmatter.Strings(tags))
		}
		if cats := s.selectNames(FieldCategories, in.Categories); len(cats) > 0 {
			h.Set(FieldCategories, frontmatter.Strings(cats))
		}
		if excerpt := s.text(FieldExcerpt); excerpt != "" {
			h.Set(FieldExcerpt, frontmatter.String(excerpt))
		}
		n.logger.Debug("normalize: generated header", slog.Int("fields", h.Len()))
		return h, s.warnings
	}

	h := in.Header.Clone()
	if missing(h, FieldTitle) {
		h.Set(FieldTitle, frontmatter.String(in.DefaultTitle))
	}
	if missing(h, FieldDate) {
		h.Set(FieldDate, stamp)
	}
	if !h.Has(FieldUpdated) {
		h.Set(FieldUpdated, stamp)
	}
	if missing(h, FieldTags) {
		if tags := s.selectNames(FieldTags, in.Tags); len(tags) > 0 {
			h.Set(FieldTags, frontmatter.Strings(tags))
		}
	}
	return h, s.warnings
}

func missing(h *frontmatter.Header, key string) bool {
	v, ok := h.Get(key)
	return !ok || v.IsEmpty()
}

// session collects the warnings of one Normalize call.
type session struct {
	in       Input
	warnings []models.Warning
}

func (s *session) warn(field, msg string) {
	s.warnings = append(s.warnings, models.Warning{Stage: StageName, Reference: field, Message: msg})
}

func (s *session) selectNames(field string, ix *taxonomy.Index) []string {
	if s.in.Interaction == nil {
		return nil
	}
	ranked := ix.Ranked()
	answers, err := s.in.Interaction.Select(field, ranked)
	if err != nil {
		s.warn(field, fmt.Sprintf("selection failed: %v", err))
		return nil
	}
	answers = s.validAnswers(field, answers)
	if ns, ok := s.in.Interaction.(NameSelector); ok && ns.SelectsNames() {
		return ResolveNames(answers)
	}
	selected, rejected := ResolveSelection(answers, ranked)
	for _, r := range rejected {
		s.warn(field, fmt.Sprintf("index %s out of range 1-%d, ignored", r, len(ranked)))
	}
	return selected
}

// validAnswers drops answers the header cannot carry.
func (s *session) validAnswers(field string, answers []string) []string {
	out := answers[:0:0]
	for _, a := range answers {
		if !utf8.ValidString(a) {
			s.warn(field, fmt.Sprintf("answer %q is not valid UTF-8, ignored", a))
			continue
		}
		out = append(out, a)
	}
	return out
}

func (s *session) text(field string) string {
	if s.in.Interaction == nil {
		return ""
	}
	answer, err := s.in.Interaction.Text(field)
	if err != nil {
		s.warn(field, fmt.Sprintf("input failed: %v", err))
		return ""
	}
	if !utf8.ValidString(answer) {
		s.warn(field, fmt.Sprintf("answer %q is not valid UTF-8, ignored", answer))
		return ""
	}
	return strings.TrimSpace(answer)
}
