package groupreduce

import "strings"

// Order selects how group keys are compared.
type Order int

const (
	// Lexical compares keys byte-wise.
	Lexical Order = iota
	// NumericAware compares digit runs by numeric value, so "pr-9" sorts
	// before "pr-10". Non-digit runs still compare byte-wise.
	NumericAware
)

// Compare returns -1, 0 or 1 ordering a against b under the given mode.
func Compare(order Order, a, b string) int {
	if order == Lexical {
		return strings.Compare(a, b)
	}

	return compareNumericAware(a, b)
}

// CompareKeys orders two key tuples element-wise under the given mode.
// A shorter tuple that is a prefix of a longer one sorts first.
func CompareKeys(order Order, a, b []string) int {
	for i := range min(len(a), len(b)) {
		if c := Compare(order, a[i], b[i]); c != 0 {
			return c
		}
	}

	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func compareNumericAware(a, b string) int {
	for a != "" && b != "" {
		aTok, aNum, aRest := nextToken(a)
		bTok, bNum, bRest := nextToken(b)

		var c int

		if aNum && bNum {
			c = compareDigits(aTok, bTok)
		} else {
			c = strings.Compare(aTok, bTok)
		}

		if c != 0 {
			return c
		}

		a, b = aRest, bRest
	}

	return strings.Compare(a, b)
}

// nextToken splits off the leading maximal digit or non-digit run.
func nextToken(s string) (token string, numeric bool, rest string) {
	numeric = isDigit(s[0])

	i := 1
	for i < len(s) && isDigit(s[i]) == numeric {
		i++
	}

	return s[:i], numeric, s[i:]
}

// compareDigits compares two digit runs by value without overflow:
// after stripping leading zeros, the longer run is the larger number.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")

	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
