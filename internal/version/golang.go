package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// golangComparator implements Go module versioning (including pseudo
// versions and the "+incompatible" build tag) via golang.org/x/mod/semver,
// the library Go tooling itself uses for this comparison.
var golangComparator = ComparatorFunc(func(a, b string) Ordering {
	av, bv := canonicalGoVersion(a), canonicalGoVersion(b)
	if !semver.IsValid(av) || !semver.IsValid(bv) {
		return Incomparable
	}
	return orderingOf(semver.Compare(av, bv))
})

// canonicalGoVersion ensures the "v" prefix x/mod/semver requires, for
// callers that pass versions without it. A "+incompatible" suffix is left
// in place: x/mod/semver reads it as build metadata and ignores it for
// ordering.
func canonicalGoVersion(s string) string {
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	return s
}
