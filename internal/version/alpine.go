package version

import apkversion "github.com/knqyf263/go-apk-version"

// alpineComparator implements Alpine's apk version ordering via the
// knqyf263/go-apk-version package, the library the corpus's alpine matcher
// uses for the identical comparison.
var alpineComparator = ComparatorFunc(func(a, b string) Ordering {
	av, aerr := apkversion.NewVersion(a)
	bv, berr := apkversion.NewVersion(b)
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
