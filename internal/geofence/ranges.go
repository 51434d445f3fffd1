package geofence

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// rangeTerm matches both plain ids ("-2", "7") and inclusive ranges
// ("2-8").
var rangeTerm = regexp.MustCompile(`^(-?\d+)(?:-(-?\d+))?$`)

// ParseRange expands one CLI id term into its constituent ids. "N" yields
// [N]; "N-M" (N <= M) yields the inclusive range [N, M].
func ParseRange(term string) ([]int, error) {
	m := rangeTerm.FindStringSubmatch(term)
	if m == nil {
		return nil, fmt.Errorf("invalid id range %q", term)
	}
	lo, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid id range %q: %w", term, err)
	}
	if m[2] == "" {
		return []int{lo}, nil
	}
	hi, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("invalid id range %q: %w", term, err)
	}
	if lo > hi {
		return nil, fmt.Errorf("invalid id range %q: start exceeds end", term)
	}
	ids := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		ids = append(ids, i)
	}
	return ids, nil
}

// FlattenRanges expands and merges possibly-overlapping range terms into a
// sorted, deduplicated id list. The result is idempotent and insensitive
// to the order of the input terms.
func FlattenRanges(terms []string) ([]int, error) {
	seen := make(map[int]bool)
	for _, term := range terms {
		ids, err := ParseRange(term)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			seen[id] = true
		}
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}
