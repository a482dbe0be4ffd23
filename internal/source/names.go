package source

import "strconv"

// UniqueNames renames repeated header names by appending ".1", ".2" and so
// on, skipping any suffix already in use by an earlier name:
//
//	["a", "a.1", "a"] -> ["a", "a.1", "a.2"]
func UniqueNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]struct{}, len(names))
	next := make(map[string]int)

	for i, n := range names {
		if _, dup := seen[n]; !dup {
			seen[n] = struct{}{}
			out[i] = n
			continue
		}
		for {
			next[n]++
			candidate := n + "." + strconv.Itoa(next[n])
			if _, taken := seen[candidate]; !taken {
				seen[candidate] = struct{}{}
				out[i] = candidate
				break
			}
		}
	}
	return out
}
