// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package bitmap

import (
	"fmt"
	"strconv"
	"strings"
)

// RangeString renders b as the textual run-length hex-range form used
// by dump/load (SPEC_FULL §4.8): consecutive runs of set bits are
// written as "lo-hi" (in hex, without an "0x" prefix, matching the
// compact wire form), isolated bits as a single hex value, and runs
// are comma-separated in ascending order. An empty bitmap renders as
// the empty string.
func (b *Bitmap) RangeString() string {
	var parts []string
	i := 0
	for i < b.n {
		if !b.IsSet(i) {
			i++
			continue
		}
		start := i
		for i < b.n && b.IsSet(i) {
			i++
		}
		end := i - 1
		if start == end {
			parts = append(parts, fmt.Sprintf("%x", start))
		} else {
			parts = append(parts, fmt.Sprintf("%x-%x", start, end))
		}
	}
	return strings.Join(parts, ",")
}

// ParseRangeString parses the form produced by RangeString into a new
// Bitmap of the given size.
func ParseRangeString(s string, n int) (*Bitmap, error) {
	b := New(n)
	s = strings.TrimSpace(s)
	if s == "" {
		return b, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loVal, err := strconv.ParseInt(lo, 16, 64)
			if err != nil {
				return nil, fmt.Errorf("bitmap: invalid range start %q: %w", part, err)
			}
			hiVal, err := strconv.ParseInt(hi, 16, 64)
			if err != nil {
				return nil, fmt.Errorf("bitmap: invalid range end %q: %w", part, err)
			}
			if int(loVal) < 0 || int(hiVal) >= n || loVal > hiVal {
				return nil, fmt.Errorf("bitmap: range %q out of bounds for %d bits", part, n)
			}
			b.SetRange(int(loVal), int(hiVal))
			continue
		}
		val, err := strconv.ParseInt(part, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("bitmap: invalid bit index %q: %w", part, err)
		}
		if int(val) < 0 || int(val) >= n {
			return nil, fmt.Errorf("bitmap: bit %q out of bounds for %d bits", part, n)
		}
		b.Set(int(val))
	}
	return b, nil
}
