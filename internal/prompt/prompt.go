// Package prompt implements normalize.Interaction for a terminal and for
// unattended callers.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/starford/notepress/internal/normalize"
)

var fieldLabels = map[string]string{
	normalize.FieldTags:       "Tags",
	normalize.FieldCategories: "Categories",
	normalize.FieldExcerpt:    "Excerpt",
}

// Console asks on a terminal. Each answer is a single line.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole reads answers from in and prints questions to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// Select prints ranked as a numbered list and reads a comma-separated mix of
// numbers and new names. A blank line or end of input selects nothing.
func (c *Console) Select(field string, ranked []string) ([]string, error) {
	label := labelFor(field)
	fmt.Fprintf(c.out, "\n%s\n", label)
	if len(ranked) > 0 {
		for i, name := range ranked {
			fmt.Fprintf(c.out, "  [%2d] %s\n", i+1, name)
		}
		fmt.Fprintln(c.out, "Enter numbers and/or new names separated by commas, e.g. 1,3,new. Blank to skip.")
	} else {
		fmt.Fprintln(c.out, "No existing entries. Enter new names separated by commas. Blank to skip.")
	}
	fmt.Fprintf(c.out, "%s: ", label)

	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	return normalize.SplitAnswer(line), nil
}

// Text reads one free-text line.
func (c *Console) Text(field string) (string, error) {
	fmt.Fprintf(c.out, "\n%s (blank to skip): ", labelFor(field))
	return c.readLine()
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("prompt: read: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func labelFor(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

// Scripted returns fixed answers. Selections hold raw answers as a user would
// type them: names or 1-based indices. With NamesOnly set every selection is
// a name, so a tag such as "2024" is kept rather than read as an index.
type Scripted struct {
	Selections map[string][]string
	Texts      map[string]string
	NamesOnly  bool
}

// Select implements normalize.Interaction.
func (s Scripted) Select(field string, _ []string) ([]string, error) {
	return append([]string(nil), s.Selections[field]...), nil
}

// SelectsNames implements normalize.NameSelector.
func (s Scripted) SelectsNames() bool { return s.NamesOnly }

// Text implements normalize.Interaction.
func (s Scripted) Text(field string) (string, error) {
	return s.Texts[field], nil
}

// FromValues builds a Scripted whose selections are names, never indices.
// Empty values are left out.
func FromValues(tags, categories []string, excerpt string) Scripted {
	s := FromAnswers(tags, categories, excerpt)
	s.NamesOnly = true
	return s
}

// FromAnswers builds a Scripted from answers typed as on the console: each
// selection is a 1-based index into the ranked list or a new name.
func FromAnswers(tags, categories []string, excerpt string) Scripted {
	s := Scripted{
		Selections: make(map[string][]string),
		Texts:      make(map[string]string),
	}
	if len(tags) > 0 {
		s.Selections[normalize.FieldTags] = tags
	}
	if len(categories) > 0 {
		s.Selections[normalize.FieldCategories] = categories
	}
	if excerpt != "" {
		s.Texts[normalize.FieldExcerpt] = excerpt
	}
	return s
}

var (
	_ normalize.Interaction  = (*Console)(nil)
	_ normalize.Interaction  = Scripted{}
	_ normalize.NameSelector = Scripted{}
)
