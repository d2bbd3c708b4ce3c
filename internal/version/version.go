// Package version compares dotted numeric version strings.
package version

import (
	"strconv"
	"strings"
)

// Parse splits v into numeric components after stripping leading "v"s.
// A component that is not a non-negative integer counts as 0.
func Parse(v string) []uint64 {
	v = strings.TrimLeft(strings.TrimSpace(v), "v")
	parts := strings.Split(v, ".")
	out := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			n = 0
		}
		out[i] = n
	}
	return out
}

// Compare returns 1 if a is newer than b, -1 if older and 0 if equal.
// Missing trailing components count as 0, so "2.0" equals "2.0.0".
func Compare(a, b string) int {
	pa, pb := Parse(a), Parse(b)
	n := max(len(pa), len(pb))
	for i := 0; i < n; i++ {
		var x, y uint64
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x > y:
			return 1
		case x < y:
			return -1
		}
	}
	return 0
}

// IsNewer reports whether candidate is a newer version than current.
func IsNewer(candidate, current string) bool {
	return Compare(candidate, current) > 0
}
