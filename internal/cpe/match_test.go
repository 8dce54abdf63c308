package cpe

import "testing"

func TestSupersetReflexive(t *testing.T) {
	wfns := []WFN{
		MustUnbind("cpe:2.3:a:apache:log4j:2.14.1:*:*:*:*:*:*:*"),
		MustUnbind("cpe:2.3:a:*:*:*:*:*:*:*:*:*:*"),
		MustUnbind("cpe:2.3:o:microsoft:windows_10:-:*:*:*:*:*:*:*"),
	}
	for _, w := range wfns {
		if !Superset(w, w) {
			t.Fatalf("Superset(%s, %s): want true (reflexivity, P7)", w, w)
		}
	}
}

func TestSupersetWildcardVendor(t *testing.T) {
	pattern := MustUnbind("cpe:2.3:a:*:log4j:2.14.1:*:*:*:*:*:*:*")
	concrete := MustUnbind("cpe:2.3:a:apache:log4j:2.14.1:*:*:*:*:*:*:*")
	if !Superset(pattern, concrete) {
		t.Fatal("Superset: wildcard vendor should match any concrete vendor")
	}
	if Superset(concrete, pattern) {
		t.Fatal("Superset: concrete vendor should not be a superset of a wildcard")
	}
}

func TestSupersetDisjointVersion(t *testing.T) {
	a := MustUnbind("cpe:2.3:a:apache:log4j:2.14.1:*:*:*:*:*:*:*")
	b := MustUnbind("cpe:2.3:a:apache:log4j:2.15.0:*:*:*:*:*:*:*")
	if Superset(a, b) {
		t.Fatal("Superset: different concrete versions must not match")
	}
}

func TestSupersetNAVsAny(t *testing.T) {
	// ANY is a superset of NA but NA is never a superset of a concrete ANY.
	anyWFN := MustUnbind("cpe:2.3:a:apache:log4j:*:*:*:*:*:*:*:*")
	naWFN := MustUnbind("cpe:2.3:a:apache:log4j:-:*:*:*:*:*:*:*")
	if !Superset(anyWFN, naWFN) {
		t.Fatal("Superset: ANY should be a superset of NA")
	}
	if Superset(naWFN, anyWFN) {
		t.Fatal("Superset: NA should not be a superset of ANY")
	}
}

func TestSupersetGlobPattern(t *testing.T) {
	pattern := MustUnbind("cpe:2.3:a:apache:log4j\\-core:2.14.1:*:*:*:*:*:*:*")
	glob := MustUnbind("cpe:2.3:a:apache:log4j*:2.14.1:*:*:*:*:*:*:*")
	if !Superset(glob, pattern) {
		t.Fatal("Superset: trailing-wildcard pattern should match a concrete prefix")
	}
}

func TestIsEqual(t *testing.T) {
	a := MustUnbind("cpe:2.3:a:apache:log4j:2.14.1:*:*:*:*:*:*:*")
	b := MustUnbind("cpe:2.3:a:apache:log4j:2.14.1:*:*:*:*:*:*:*")
	if !Compare(a, b).IsEqual() {
		t.Fatal("Compare: identical WFNs should be equal")
	}
	c := MustUnbind("cpe:2.3:a:apache:log4j:2.15.0:*:*:*:*:*:*:*")
	if Compare(a, c).IsEqual() {
		t.Fatal("Compare: differing version should not be equal")
	}
}

func TestCompareWildcardTargetIncomparable(t *testing.T) {
	src := MustUnbind("cpe:2.3:a:apache:log4j:2.14.1:*:*:*:*:*:*:*")
	tgtWithWildcard := MustUnbind("cpe:2.3:a:apache:log4j*:2.14.1:*:*:*:*:*:*:*")
	rs := Compare(src, tgtWithWildcard)
	if rs[Product] != Relation(0) {
		t.Fatalf("Compare: wildcarded target attribute should be incomparable, got %v", rs[Product])
	}
}
