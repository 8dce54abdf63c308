package version

import debversion "github.com/knqyf263/go-deb-version"

// debComparator implements Debian version ordering via the
// knqyf263/go-deb-version package, the library the corpus's debian matcher
// uses for the identical comparison.
var debComparator = ComparatorFunc(func(a, b string) Ordering {
	av, aerr := debversion.NewVersion(a)
	bv, berr := debversion.NewVersion(b)
	if aerr != nil || berr != nil {
		return Incomparable
	}
	switch {
	case av.Equal(bv):
		return Equal
	case av.LessThan(bv):
		return Less
	default:
		return Greater
	}
})
