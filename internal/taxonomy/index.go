// Package taxonomy counts the tags and categories used by published posts.
package taxonomy

import "sort"

// Entry is one name with its occurrence count.
type Entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Index is a read-only snapshot of name → count. A nil *Index is empty.
type Index struct {
	counts map[string]int
	ranked []Entry
}

// NewIndex builds an Index from counts. Non-positive counts are dropped.
func NewIndex(counts map[string]int) *Index {
	ix := &Index{counts: make(map[string]int, len(counts))}
	for name, n := range counts {
		if name == "" || n <= 0 {
			continue
		}
		ix.counts[name] = n
		ix.ranked = append(ix.ranked, Entry{Name: name, Count: n})
	}
	sort.Slice(ix.ranked, func(i, j int) bool {
		a, b := ix.ranked[i], ix.ranked[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})
	return ix
}

// Len returns the number of distinct names.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.counts)
}

// Count returns how many posts use name.
func (ix *Index) Count(name string) int {
	if ix == nil {
		return 0
	}
	return ix.counts[name]
}

// Ranked returns names by descending count, ties by name.
func (ix *Index) Ranked() []string {
	if ix == nil {
		return nil
	}
	out := make([]string, len(ix.ranked))
	for i, e := range ix.ranked {
		out[i] = e.Name
	}
	return out
}

// Entries returns the ranked names with their counts.
func (ix *Index) Entries() []Entry {
	if ix == nil {
		return nil
	}
	return append([]Entry(nil), ix.ranked...)
}
