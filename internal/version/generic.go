package version

import (
	"strings"
	"unicode"
)

// genericComparator implements a lexicographic comparison with runs of
// digits compared numerically, the fallback scheme named in spec §4.4 and
// also used for the "ecosystem" scheme, which OSV uses when it declares a
// range type without identifying a more specific scheme.
var genericComparator = ComparatorFunc(compareGeneric)

func compareGeneric(a, b string) Ordering {
	ar, br := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ar) && j < len(br) {
		switch {
		case unicode.IsDigit(ar[i]) && unicode.IsDigit(br[j]):
			ei := scanDigits(ar, i)
			ej := scanDigits(br, j)
			as, bs := strings.TrimLeft(string(ar[i:ei]), "0"), strings.TrimLeft(string(br[j:ej]), "0")
			switch {
			case len(as) != len(bs):
				if len(as) < len(bs) {
					return Less
				}
				return Greater
			case as != bs:
				if as < bs {
					return Less
				}
				return Greater
			}
			i, j = ei, ej
		default:
			if ar[i] != br[j] {
				if ar[i] < br[j] {
					return Less
				}
				return Greater
			}
			i, j = i+1, j+1
		}
	}
	switch {
	case i < len(ar):
		return Greater
	case j < len(br):
		return Less
	default:
		return Equal
	}
}

// scanDigits returns the index just past the run of digits starting at i.
func scanDigits(r []rune, i int) int {
	j := i
	for j < len(r) && unicode.IsDigit(r[j]) {
		j++
	}
	return j
}
