package normalize

import (
	"strconv"
	"strings"
)

// ResolveSelection turns raw answers into names. An answer that parses as an
// integer is a 1-based index into ranked; anything else is taken as a new
// name. Out-of-range indices are returned in rejected. Duplicates collapse to
// their first occurrence.
func ResolveSelection(entries, ranked []string) (selected, rejected []string) {
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		selected = append(selected, name)
	}

	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		idx, err := strconv.Atoi(e)
		if err != nil {
			add(e)
			continue
		}
		if idx < 1 || idx > len(ranked) {
			rejected = append(rejected, e)
			continue
		}
		add(ranked[idx-1])
	}
	return selected, rejected
}

// ResolveNames trims entries and collapses duplicates; every entry is a name,
// numeric or not.
func ResolveNames(entries []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// SplitAnswer splits a comma-separated answer line. Full-width commas are
// accepted as separators too.
func SplitAnswer(line string) []string {
	line = strings.ReplaceAll(line, "，", ",")
	var out []string
	for _, part := range strings.Split(line, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
