package version

import (
	"testing"

	"github.com/quay/vexgraph"
)

func TestCompareUnknownScheme(t *testing.T) {
	if got := Compare(vexgraph.VersionScheme("no-such-scheme"), "1.0.0", "2.0.0"); got != Incomparable {
		t.Fatalf("Compare(unknown scheme) = %v, want Incomparable", got)
	}
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup(vexgraph.SchemeSemver); !ok {
		t.Fatal("Lookup(SchemeSemver): expected a registered comparator")
	}
	if _, ok := Lookup(vexgraph.VersionScheme("bogus")); ok {
		t.Fatal("Lookup(bogus): expected no registered comparator")
	}
}

func TestCompareSemver(t *testing.T) {
	tt := []struct {
		a, b string
		want Ordering
	}{
		{"1.2.3", "1.2.4", Less},
		{"1.2.4", "1.2.3", Greater},
		{"1.2.3", "1.2.3", Equal},
		{"1.2.3-alpha", "1.2.3", Less},
		{"not-a-version", "1.0.0", Incomparable},
	}
	for _, tc := range tt {
		if got := Compare(vexgraph.SchemeSemver, tc.a, tc.b); got != tc.want {
			t.Errorf("Compare(semver, %q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func mkRange(scheme vexgraph.VersionScheme, low string, lowIncl bool, high string, highIncl bool) vexgraph.VersionRange {
	return vexgraph.VersionRange{
		Scheme: scheme, LowVersion: low, LowInclusive: lowIncl, HighVersion: high, HighInclusive: highIncl,
	}
}

func TestMatchesBounds(t *testing.T) {
	tt := []struct {
		name      string
		candidate string
		rng       vexgraph.VersionRange
		want      bool
	}{
		{
			name:      "within inclusive-inclusive range",
			candidate: "1.5.0",
			rng:       mkRange(vexgraph.SchemeSemver, "1.0.0", true, "2.0.0", true),
			want:      true,
		},
		{
			name:      "low bound inclusive, exact match",
			candidate: "1.0.0",
			rng:       mkRange(vexgraph.SchemeSemver, "1.0.0", true, "2.0.0", true),
			want:      true,
		},
		{
			name:      "low bound exclusive, exact match excluded",
			candidate: "1.0.0",
			rng:       mkRange(vexgraph.SchemeSemver, "1.0.0", false, "2.0.0", true),
			want:      false,
		},
		{
			name:      "high bound inclusive, exact match",
			candidate: "2.0.0",
			rng:       mkRange(vexgraph.SchemeSemver, "1.0.0", true, "2.0.0", true),
			want:      true,
		},
		{
			name:      "high bound exclusive, exact match excluded",
			candidate: "2.0.0",
			rng:       mkRange(vexgraph.SchemeSemver, "1.0.0", true, "2.0.0", false),
			want:      false,
		},
		{
			name:      "below low bound",
			candidate: "0.9.0",
			rng:       mkRange(vexgraph.SchemeSemver, "1.0.0", true, "2.0.0", true),
			want:      false,
		},
		{
			name:      "above high bound",
			candidate: "2.1.0",
			rng:       mkRange(vexgraph.SchemeSemver, "1.0.0", true, "2.0.0", true),
			want:      false,
		},
		{
			name:      "exact point range",
			candidate: "1.5.0",
			rng:       mkRange(vexgraph.SchemeSemver, "1.5.0", true, "1.5.0", true),
			want:      true,
		},
		{
			name:      "unparseable candidate against a bound",
			candidate: "not-a-version",
			rng:       mkRange(vexgraph.SchemeSemver, "1.0.0", true, "2.0.0", true),
			want:      false,
		},
		{
			name:      "unparseable candidate against fully-open range",
			candidate: "not-a-version",
			rng:       mkRange(vexgraph.SchemeSemver, "", false, "", false),
			want:      false,
		},
		{
			name:      "parseable candidate against fully-open range",
			candidate: "1.5.0",
			rng:       mkRange(vexgraph.SchemeSemver, "", false, "", false),
			want:      true,
		},
		{
			name:      "only a low bound, candidate above it",
			candidate: "3.0.0",
			rng:       mkRange(vexgraph.SchemeSemver, "1.0.0", true, "", false),
			want:      true,
		},
		{
			name:      "only a high bound, candidate below it",
			candidate: "0.5.0",
			rng:       mkRange(vexgraph.SchemeSemver, "", false, "1.0.0", true),
			want:      true,
		},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(tc.rng.Scheme, tc.candidate, tc.rng); got != tc.want {
				t.Fatalf("Matches(%q, %+v) = %v, want %v", tc.candidate, tc.rng, got, tc.want)
			}
		})
	}
}

func TestMatchesUnknownScheme(t *testing.T) {
	rng := mkRange(vexgraph.VersionScheme("no-such-scheme"), "1.0.0", true, "2.0.0", true)
	if Matches(rng.Scheme, "1.5.0", rng) {
		t.Fatal("Matches: unknown scheme should never match")
	}
}

func TestMatchesGitEqualityOnly(t *testing.T) {
	exact := mkRange(vexgraph.SchemeGit, "deadbeef", true, "deadbeef", true)
	if !Matches(vexgraph.SchemeGit, "deadbeef", exact) {
		t.Fatal("Matches: git scheme should match an exact tag against itself")
	}
	if Matches(vexgraph.SchemeGit, "cafebabe", exact) {
		t.Fatal("Matches: git scheme should not match a different tag")
	}
	open := mkRange(vexgraph.SchemeGit, "", false, "", false)
	if !Matches(vexgraph.SchemeGit, "any-tag-at-all", open) {
		t.Fatal("Matches: git scheme with no bound should match any candidate (reflexive self-compare is always Equal)")
	}
}

func TestCompareRPM(t *testing.T) {
	if got := Compare(vexgraph.SchemeRPM, "1.0-1.el9", "1.0-2.el9"); got != Less {
		t.Errorf("Compare(rpm, 1.0-1.el9, 1.0-2.el9) = %v, want Less", got)
	}
}

func TestCompareDeb(t *testing.T) {
	if got := Compare(vexgraph.SchemeDeb, "1.0-1", "1.0-2"); got != Less {
		t.Errorf("Compare(deb, 1.0-1, 1.0-2) = %v, want Less", got)
	}
}

func TestCompareGolang(t *testing.T) {
	if got := Compare(vexgraph.SchemeGolang, "v1.2.3", "v1.3.0"); got != Less {
		t.Errorf("Compare(golang, v1.2.3, v1.3.0) = %v, want Less", got)
	}
}

func TestCompareGeneric(t *testing.T) {
	if got := Compare(vexgraph.SchemeGeneric, "a", "b"); got != Less {
		t.Errorf("Compare(generic, a, b) = %v, want Less", got)
	}
	if got := Compare(vexgraph.SchemeGeneric, "x9", "x10"); got != Less {
		t.Errorf("Compare(generic, x9, x10) = %v, want Less (numeric run comparison)", got)
	}
}
