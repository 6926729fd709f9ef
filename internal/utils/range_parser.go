package utils

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ParseRanges parses a CLI index-set flag such as "1,3-5" into sorted,
// distinct integers. Flag values are 1-based (matching how the sample
// subcommand documents --inactive); the returned indices are 0-based,
// matching Parameter and sampler indexing. An empty string parses to an
// empty set.
func ParseRanges(input string) ([]int, error) {
	indices := []int{}
	for _, token := range strings.Split(input, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		first, last, err := parseIndexToken(token)
		if err != nil {
			return nil, err
		}
		for i := first; i <= last; i++ {
			indices = append(indices, i-1)
		}
	}
	slices.Sort(indices)
	return slices.Compact(indices), nil
}

// parseIndexToken parses one comma-separated token: either a single
// 1-based parameter index or an inclusive "first-last" range.
func parseIndexToken(token string) (first, last int, err error) {
	lo, hi, isRange := strings.Cut(token, "-")
	if !isRange {
		hi = lo
	}
	first, err = strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("parameter index %q is not a number or range: %w", token, err)
	}
	last, err = strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, fmt.Errorf("parameter index %q is not a number or range: %w", token, err)
	}
	if first < 1 || last < 1 {
		return 0, 0, fmt.Errorf("parameter index %q is out of range: indices are 1-based", token)
	}
	if first > last {
		return 0, 0, fmt.Errorf("parameter range %q runs backwards", token)
	}
	return first, last, nil
}
