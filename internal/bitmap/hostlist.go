// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package bitmap

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// hostRangePattern matches a single bracketed "prefix[ranges]suffix"
// component of a SLURM-style hostlist, e.g. "node[1-3,5]"; a bare name
// such as "node7" does not match.
var hostRangePattern = regexp.MustCompile(`^([^,\[\]]*)\[([0-9,\-]+)\](.*)$`)

// ExpandHostlist expands a compressed hostlist string such as
// "node[1-3,5],node9" into the individual host names it denotes, in
// the order the ranges were written.
func ExpandHostlist(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var hosts []string
	for _, component := range splitTopLevel(s) {
		if component == "" {
			continue
		}
		m := hostRangePattern.FindStringSubmatch(component)
		if m == nil {
			hosts = append(hosts, component)
			continue
		}
		prefix, rangeSpec, suffix := m[1], m[2], m[3]
		nums, width, err := expandNumericRanges(rangeSpec)
		if err != nil {
			return nil, fmt.Errorf("hostlist: %q: %w", component, err)
		}
		for _, n := range nums {
			hosts = append(hosts, fmt.Sprintf("%s%0*d%s", prefix, width, n, suffix))
		}
	}
	return hosts, nil
}

// splitTopLevel splits a hostlist on commas that are not inside a
// "[...]" range bracket.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// expandNumericRanges parses a comma-separated list of numbers and
// ranges ("1-3,5,8-9") and returns every value along with the zero
// padding width of the widest literal seen (so "001-003" expands to
// "001","002","003").
func expandNumericRanges(spec string) ([]int, int, error) {
	var nums []int
	width := 0
	for _, piece := range strings.Split(spec, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(piece, "-"); ok {
			loVal, err := strconv.Atoi(lo)
			if err != nil {
				return nil, 0, fmt.Errorf("invalid range start %q", piece)
			}
			hiVal, err := strconv.Atoi(hi)
			if err != nil {
				return nil, 0, fmt.Errorf("invalid range end %q", piece)
			}
			if len(lo) > width {
				width = len(lo)
			}
			for n := loVal; n <= hiVal; n++ {
				nums = append(nums, n)
			}
			continue
		}
		val, err := strconv.Atoi(piece)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid host index %q", piece)
		}
		if len(piece) > width {
			width = len(piece)
		}
		nums = append(nums, val)
	}
	return nums, width, nil
}

// CompressHostlist compresses host names that end in digits into
// "prefix[ranges]" form, preserving names without trailing digits
// verbatim. Hosts are grouped by (prefix, digit width) and numeric
// runs are compressed; groups are emitted in first-seen order.
func CompressHostlist(hosts []string) string {
	type group struct {
		prefix, suffix string
		width          int
		nums           []int
	}
	var order []string
	groups := make(map[string]*group)

	numSuffix := regexp.MustCompile(`^(.*?)([0-9]+)$`)

	for _, h := range hosts {
		m := numSuffix.FindStringSubmatch(h)
		if m == nil {
			order = append(order, h)
			groups[h] = &group{prefix: h}
			continue
		}
		prefix, numStr := m[1], m[2]
		n, _ := strconv.Atoi(numStr)
		key := prefix + "\x00" + strconv.Itoa(len(numStr))
		g, ok := groups[key]
		if !ok {
			g = &group{prefix: prefix, width: len(numStr)}
			groups[key] = g
			order = append(order, key)
		}
		g.nums = append(g.nums, n)
	}

	var parts []string
	for _, key := range order {
		g := groups[key]
		if len(g.nums) == 0 {
			parts = append(parts, g.prefix)
			continue
		}
		sort.Ints(g.nums)
		parts = append(parts, g.prefix+"["+compressRanges(g.nums, g.width)+"]")
	}
	return strings.Join(parts, ",")
}

// compressRanges collapses a sorted slice of numbers into run-length
// "lo-hi" / singleton components, zero-padded to width.
func compressRanges(nums []int, width int) string {
	var parts []string
	i := 0
	for i < len(nums) {
		start := nums[i]
		end := start
		j := i + 1
		for j < len(nums) && nums[j] == end+1 {
			end = nums[j]
			j++
		}
		if start == end {
			parts = append(parts, fmt.Sprintf("%0*d", width, start))
		} else {
			parts = append(parts, fmt.Sprintf("%0*d-%0*d", width, start, width, end))
		}
		i = j
	}
	return strings.Join(parts, ",")
}

// FromHostIndices builds a Bitmap of size n from a set of job-local
// node indices.
func FromHostIndices(n int, indices []int) *Bitmap {
	b := New(n)
	for _, idx := range indices {
		b.Set(idx)
	}
	return b
}

// ToHostlist renders the set bits of b as a compressed hostlist,
// resolving each job-local index through names (names[i] is the host
// at job-local index i).
func ToHostlist(b *Bitmap, names []string) (string, error) {
	var hosts []string
	for _, idx := range b.Indices() {
		if idx >= len(names) {
			return "", fmt.Errorf("hostlist: bit %d has no corresponding name (have %d names)", idx, len(names))
		}
		hosts = append(hosts, names[idx])
	}
	return CompressHostlist(hosts), nil
}
