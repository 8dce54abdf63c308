package version

import rpmversion "github.com/knqyf263/go-rpm-version"

// rpmComparator implements RPM Evr comparison (epoch:version-release) via
// the knqyf263/go-rpm-version package, the same library the corpus's
// Red-Hat-family matchers (rhel, alma, oracle, photon, suse) use for this
// exact comparison.
var rpmComparator = ComparatorFunc(func(a, b string) Ordering {
	av, bv := rpmversion.NewVersion(a), rpmversion.NewVersion(b)
	switch av.Compare(bv) {
	case rpmversion.LESS:
		return Less
	case rpmversion.GREATER:
		return Greater
	default:
		return Equal
	}
})
