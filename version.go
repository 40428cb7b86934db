package softwareindex

import (
	"strings"
)

// CompareVersions compares two version strings in natural order, returning
// -1, 0, or 1.
//
// The strings are split into runs of digits and runs of everything else. Digit
// runs compare numerically, so "10.0" sorts after "2.0"; other runs compare
// bytewise. A digit run sorts before a non-digit run, and a string that's a
// prefix of another sorts first. Strings that are equal under those rules
// (e.g. "01" and "1") fall back to a bytewise comparison so the ordering is
// total.
func CompareVersions(a, b string) int {
	x, y := a, b
	for x != "" && y != "" {
		var cx, cy string
		var nx, ny bool
		cx, x, nx = chunk(x)
		cy, y, ny = chunk(y)
		switch {
		case nx && ny:
			if c := compareDigits(cx, cy); c != 0 {
				return c
			}
		case nx:
			return -1
		case ny:
			return 1
		default:
			if c := strings.Compare(cx, cy); c != 0 {
				return c
			}
		}
	}
	switch {
	case x == "" && y != "":
		return -1
	case x != "" && y == "":
		return 1
	}
	return strings.Compare(a, b)
}

// Chunk splits off the leading run of s, reporting whether it's numeric.
func chunk(s string) (head, tail string, numeric bool) {
	numeric = isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == numeric {
		i++
	}
	return s[:i], s[i:], numeric
}

// CompareDigits compares two digit strings by value without converting them,
// so arbitrarily long runs can't overflow.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
