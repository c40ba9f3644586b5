package migrate

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// Syntax distinguishes the two embed forms.
type Syntax int

const (
	// SyntaxStandard is ![alt](path).
	SyntaxStandard Syntax = iota + 1
	// SyntaxWiki is ![[name]] or ![[name|alt]].
	SyntaxWiki
)

func (s Syntax) String() string {
	switch s {
	case SyntaxStandard:
		return "standard"
	case SyntaxWiki:
		return "wiki"
	}
	return "unknown"
}

var (
	standardRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	wikiRe     = regexp.MustCompile(`!\[\[([^\]|]+?)(\|[^\]]*)?\]\]`)
)

// ImageReference is one embed found in a body. Start and End are byte offsets
// of Raw within the scanned text.
type ImageReference struct {
	Syntax Syntax
	Raw    string
	Target string
	Alt    string
	Start  int
	End    int

	// Resolved is the source file backing the reference, set once located.
	Resolved string
}

// Scan returns every image reference in body ordered by position. When two
// matches overlap the earlier one wins.
func Scan(body string) []ImageReference {
	var refs []ImageReference
	for _, m := range standardRe.FindAllStringSubmatchIndex(body, -1) {
		refs = append(refs, ImageReference{
			Syntax: SyntaxStandard,
			Raw:    body[m[0]:m[1]],
			Alt:    body[m[2]:m[3]],
			Target: strings.TrimSpace(body[m[4]:m[5]]),
			Start:  m[0],
			End:    m[1],
		})
	}
	for _, m := range wikiRe.FindAllStringSubmatchIndex(body, -1) {
		target := strings.TrimSpace(body[m[2]:m[3]])
		alt := strings.TrimSuffix(path.Base(target), path.Ext(target))
		if m[4] >= 0 {
			alt = strings.TrimSpace(body[m[4]+1 : m[5]])
		}
		refs = append(refs, ImageReference{
			Syntax: SyntaxWiki,
			Raw:    body[m[0]:m[1]],
			Target: target,
			Alt:    alt,
			Start:  m[0],
			End:    m[1],
		})
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Start < refs[j].Start })

	out := refs[:0]
	end := -1
	for _, r := range refs {
		if r.Start < end {
			continue
		}
		out = append(out, r)
		end = r.End
	}
	return out
}
