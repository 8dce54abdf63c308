package version

import (
	"strings"

	"github.com/Masterminds/semver"
)

// semverComparator implements SemVer 2.0.0 ordering, tolerating trailing
// Red-Hat-style "-redhat-NNNN" or date-like "-0.20231218164901.0660a66.el9"
// suffixes by treating the whole trailing qualifier lexicographically after
// the numeric core, per spec §4.4.
var semverComparator = ComparatorFunc(compareSemver)

func compareSemver(a, b string) Ordering {
	av, aSuffix, aOK := parseSemverLoose(a)
	bv, bSuffix, bOK := parseSemverLoose(b)
	if !aOK || !bOK {
		return Incomparable
	}
	if c := av.Compare(bv); c != 0 {
		return orderingOf(c)
	}
	// Cores are equal: break the tie on any unparsed trailing qualifier,
	// lexicographically, with "no suffix" sorting before any suffix.
	switch {
	case aSuffix == bSuffix:
		return Equal
	case aSuffix == "":
		return Less
	case bSuffix == "":
		return Greater
	case aSuffix < bSuffix:
		return Less
	default:
		return Greater
	}
}

// parseSemverLoose tries the strict parse first; on failure it keeps only
// the leading "major.minor.patch" run (stopping at the first character that
// isn't a digit or a dot past the third segment) and retries, returning the
// discarded remainder as an opaque suffix for tie-breaking. This covers
// cores like "1.2.3.Final-redhat-0001" or "1.2.3-0.20231218164901.0660a66.el9"
// that a strict SemVer parser rejects outright.
func parseSemverLoose(s string) (*semver.Version, string, bool) {
	if v, err := semver.NewVersion(s); err == nil {
		return v, "", true
	}
	dots := 0
	cut := len(s)
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			continue
		case r == '.' && dots < 2:
			dots++
			continue
		default:
		}
		cut = i
		break
	}
	if cut == 0 || cut == len(s) {
		return nil, "", false
	}
	core, suffix := s[:cut], strings.TrimLeft(s[cut:], ".-")
	v, err := semver.NewVersion(core)
	if err != nil {
		return nil, "", false
	}
	return v, suffix, true
}

func orderingOf(c int) Ordering {
	switch {
	case c < 0:
		return Less
	case c > 0:
		return Greater
	default:
		return Equal
	}
}

// npmComparator: npm versions are SemVer-compatible (npm itself enforces
// node-semver, a superset of SemVer 2.0.0); reuse the same comparator.
var npmComparator = semverComparator

// nugetComparator: NuGet versions are a SemVer 2.0.0 superset as well
// (with up to 4 numeric segments); the SemVer comparator handles the common
// 3-segment + pre-release case used by the advisory sources this module
// ingests (OSV "ECOSYSTEM"/"SEMVER" ranges for the nuget ecosystem).
var nugetComparator = semverComparator
