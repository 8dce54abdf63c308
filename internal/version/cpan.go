package version

import (
	"strconv"
	"strings"
)

// cpanComparator implements Perl/CPAN's dotted-decimal version ordering
// (the common "v1.2.3" / "1.002003" style: a decimal with a single dot and
// no "v" reads its fraction in groups of three digits, so "1.002003" equals
// "v1.2.3" and "1.5" is greater than "1.10"), falling back to a plain
// lexicographic-with-numeric-runs comparison (the generic comparator) for
// anything that isn't purely dotted numbers.
var cpanComparator = ComparatorFunc(func(a, b string) Ordering {
	av, aok := parseCpan(a)
	bv, bok := parseCpan(b)
	if !aok || !bok {
		return compareGeneric(a, b)
	}
	for i := 0; i < max(len(av), len(bv)); i++ {
		var x, y int
		if i < len(av) {
			x = av[i]
		}
		if i < len(bv) {
			y = bv[i]
		}
		if x != y {
			return orderingOf(cmpInt(x, y))
		}
	}
	return Equal
})

func parseCpan(s string) ([]int, bool) {
	decimal := !strings.HasPrefix(s, "v") && strings.Count(s, ".") == 1
	s = strings.TrimPrefix(s, "v")
	parts := strings.Split(s, ".")
	if decimal {
		frac := parts[1]
		for len(frac)%3 != 0 {
			frac += "0"
		}
		parts = parts[:1]
		for i := 0; i < len(frac); i += 3 {
			parts = append(parts, frac[i:i+3])
		}
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
