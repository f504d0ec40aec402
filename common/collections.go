package common

import (
	"bytes"
	"sort"
)

// Unique returns the elements of values in first-seen order without duplicates.
func Unique[V comparable](values []V) []V {
	seen := make(map[V]struct{}, len(values))
	results := make([]V, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		results = append(results, v)
	}
	return results
}

// SortedAddresses returns the keys of m ordered by their bytes.
func SortedAddresses[V any](m map[Address]V) []Address {
	results := make([]Address, 0, len(m))
	for k := range m {
		results = append(results, k)
	}
	sort.Slice(results, func(i, j int) bool {
		return bytes.Compare(results[i][:], results[j][:]) < 0
	})
	return results
}
