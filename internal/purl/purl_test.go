package purl

import "testing"

func TestParseCanonicalRoundTrip(t *testing.T) {
	tt := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "simple",
			in:   "pkg:golang/github.com/quay/vexgraph@v1.2.3",
			want: "pkg:golang/github.com/quay/vexgraph@v1.2.3",
		},
		{
			name: "qualifiers already in canonical order",
			in:   "pkg:maven/org.apache.commons/commons-lang3@3.12.0?classifier=sources&type=jar",
			want: "pkg:maven/org.apache.commons/commons-lang3@3.12.0?classifier=sources&type=jar",
		},
		{
			name: "qualifiers given out of order",
			in:   "pkg:maven/org.apache.commons/commons-lang3@3.12.0?type=jar&classifier=sources",
			want: "pkg:maven/org.apache.commons/commons-lang3@3.12.0?classifier=sources&type=jar",
		},
		{
			name: "no version, no qualifiers",
			in:   "pkg:npm/left-pad",
			want: "pkg:npm/left-pad",
		},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Parse(tc.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.in, err)
			}
			if got := d.Canonical(); got != tc.want {
				t.Fatalf("Canonical() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCanonicalIsFixedPoint(t *testing.T) {
	in := "pkg:maven/org.apache.commons/commons-lang3@3.12.0?type=jar&classifier=sources"
	d, err := Parse(in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	once := d.Canonical()
	d2, err := Parse(once)
	if err != nil {
		t.Fatalf("Parse(canonical form): %v", err)
	}
	twice := d2.Canonical()
	if once != twice {
		t.Fatalf("canonical(parse(s)) not a fixed point: %q != %q", once, twice)
	}
}

func TestParseMalformed(t *testing.T) {
	tt := []string{
		"",
		"not-a-purl",
		"pkg:",
		"npm/left-pad",
	}
	for _, in := range tt {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", in)
		}
	}
}

func TestQualifierSorting(t *testing.T) {
	d, err := Parse("pkg:deb/debian/curl@7.74.0-1.3+deb11u7?arch=amd64&distro=debian-11")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for i := 1; i < len(d.Qualifiers); i++ {
		if d.Qualifiers[i-1].Key > d.Qualifiers[i].Key {
			t.Fatalf("qualifiers not sorted: %v", d.Qualifiers)
		}
	}
}

func TestBaseKey(t *testing.T) {
	a, err := Parse("pkg:maven/org.apache.commons/commons-lang3@3.12.0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := Parse("pkg:maven/org.apache.commons/commons-lang3@3.13.0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.BaseKey() != b.BaseKey() {
		t.Fatalf("BaseKey should ignore version: %q != %q", a.BaseKey(), b.BaseKey())
	}

	c, err := Parse("pkg:maven/org.apache.commons/commons-io@2.11.0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.BaseKey() == c.BaseKey() {
		t.Fatalf("BaseKey should differ for a different name: %q", a.BaseKey())
	}
}
