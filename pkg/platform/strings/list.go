// Package strings holds small helpers for comma separated settings.
package strings

import "strings"

// SplitList splits a comma separated value into trimmed, non-empty, unique
// entries in input order. With fold set, entries are lowercased before the
// duplicate check.
func SplitList(raw string, fold bool) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		v := strings.TrimSpace(part)
		if fold {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
