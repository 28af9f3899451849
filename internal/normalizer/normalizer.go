// Package normalizer implements deterministic name canonicalization and
// Levenshtein-based near-duplicate grouping, used for entity normalized
// names, tag comparisons, and the duplicate-detection admin endpoint.
package normalizer

import "strings"

// NormalizeName lowercases s and strips whitespace, hyphens, and
// underscores. Idempotent: NormalizeName(NormalizeName(s)) == NormalizeName(s).
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r == ' ', r == '\t', r == '\n', r == '\r', r == '-', r == '_':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Levenshtein computes the edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Group is a cluster of items whose normalized keys lie within maxDistance
// of the group's representative key.
type Group[T any] struct {
	Key   string
	Items []T
}

// FindNearDuplicates groups items whose NormalizeName(keyFn(item)) values are
// within maxDistance of one another. Grouping is not transitive: an item
// joins a group only if it is within maxDistance of the group's
// representative key, which is the key of the group's first item in input
// order. Singleton groups (no near-duplicate found) are omitted.
func FindNearDuplicates[T any](items []T, keyFn func(T) string, maxDistance int) []Group[T] {
	type entry struct {
		key  string
		item T
	}
	entries := make([]entry, len(items))
	for i, it := range items {
		entries[i] = entry{key: NormalizeName(keyFn(it)), item: it}
	}

	assigned := make([]bool, len(entries))
	var groups []Group[T]

	for i := range entries {
		if assigned[i] {
			continue
		}
		group := []T{entries[i].item}
		repKey := entries[i].key
		assigned[i] = true

		for j := i + 1; j < len(entries); j++ {
			if assigned[j] {
				continue
			}
			if Levenshtein(repKey, entries[j].key) <= maxDistance {
				group = append(group, entries[j].item)
				assigned[j] = true
			}
		}

		if len(group) > 1 {
			groups = append(groups, Group[T]{Key: repKey, Items: group})
		}
	}

	return groups
}
