// Package version implements the per-scheme version comparators and the
// version_matches predicate described in spec §4.4.
//
// Every comparator here is a pure, deterministic function safe for
// concurrent and parallel evaluation: none retain state across calls, and
// none perform I/O.
package version

import "github.com/quay/vexgraph"

// Ordering is the result of comparing two versions under one scheme.
type Ordering int

// Defined orderings. Incomparable is produced when a version fails to parse,
// when a scheme has no comparator, and by the git scheme for distinct refs;
// callers treat it as "does not match" (spec §4.4).
const (
	Less Ordering = iota - 1
	Equal
	Greater
	Incomparable
)

// Comparator compares two version strings under a single scheme.
//
// Implementations must be pure and must return Incomparable rather than
// erroring when a version string fails to parse under the scheme.
type Comparator interface {
	Compare(a, b string) Ordering
}

// ComparatorFunc adapts a function to a [Comparator].
type ComparatorFunc func(a, b string) Ordering

// Compare implements Comparator.
func (f ComparatorFunc) Compare(a, b string) Ordering { return f(a, b) }

// schemes maps every defined [vexgraph.VersionScheme] to its comparator.
var schemes = map[vexgraph.VersionScheme]Comparator{
	vexgraph.SchemeSemver:    semverComparator,
	vexgraph.SchemeMaven:     mavenComparator,
	vexgraph.SchemeRPM:       rpmComparator,
	vexgraph.SchemeDeb:       debComparator,
	vexgraph.SchemeAlpine:    alpineComparator,
	vexgraph.SchemePyPI:      pep440Comparator,
	vexgraph.SchemeGolang:    golangComparator,
	vexgraph.SchemeGeneric:   genericComparator,
	vexgraph.SchemeGit:       gitComparator,
	vexgraph.SchemeGem:       gemComparator,
	vexgraph.SchemeNPM:       npmComparator,
	vexgraph.SchemeNuGet:     nugetComparator,
	vexgraph.SchemeGentoo:    gentooComparator,
	vexgraph.SchemeCPAN:      cpanComparator,
	vexgraph.SchemeEcosystem: genericComparator,
}

// Lookup returns the comparator registered for a scheme, and whether one was
// found.
func Lookup(s vexgraph.VersionScheme) (Comparator, bool) {
	c, ok := schemes[s]
	return c, ok
}

// Compare compares two version strings under the named scheme. An unknown
// scheme always yields Incomparable.
func Compare(scheme vexgraph.VersionScheme, a, b string) Ordering {
	c, ok := schemes[scheme]
	if !ok {
		return Incomparable
	}
	return c.Compare(a, b)
}

// Matches is the version_matches predicate of spec §4.4: does candidate fall
// within the bounds of rng under scheme?
//
// It returns true iff the scheme-specific parse of candidate succeeds (i.e.
// every comparison against a bound is not Incomparable) and candidate
// satisfies both bounds. An exact point range (low == high, both inclusive)
// reduces to equality, which falls naturally out of the bound checks below.
func Matches(scheme vexgraph.VersionScheme, candidate string, rng vexgraph.VersionRange) bool {
	cmp, ok := schemes[scheme]
	if !ok {
		return false
	}

	if rng.HasLow() {
		switch o := cmp.Compare(candidate, rng.LowVersion); {
		case o == Incomparable:
			return false
		case o == Equal:
			if !rng.LowInclusive {
				return false
			}
		case o == Less:
			return false
		}
	}
	if rng.HasHigh() {
		switch o := cmp.Compare(candidate, rng.HighVersion); {
		case o == Incomparable:
			return false
		case o == Equal:
			if !rng.HighInclusive {
				return false
			}
		case o == Greater:
			return false
		}
	}
	if !rng.HasLow() && !rng.HasHigh() {
		// No bound to check candidate against; still require that it
		// parses under scheme, via a reflexive self-comparison.
		if cmp.Compare(candidate, candidate) == Incomparable {
			return false
		}
	}
	return true
}
