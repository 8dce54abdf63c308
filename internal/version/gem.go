package version

import "strings"

// gemComparator implements RubyGems version ordering, adapted from
// RubyGems' own reference implementation (the same algorithm the corpus's
// ruby matcher hand-rolls on the standard library; no third-party Go
// package implements it).
var gemComparator = ComparatorFunc(func(a, b string) Ordering {
	av, aerr := parseGemVersion(a)
	bv, berr := parseGemVersion(b)
	if aerr != nil || berr != nil {
		return Incomparable
	}
	return orderingOf(compareGemSegments(av, bv))
})

type gemSegment struct {
	str    string
	isStr  bool
	numStr string
}

func parseGemVersion(s string) ([]gemSegment, error) {
	s = strings.TrimSpace(s)
	if !gemVersionPattern(s) {
		return nil, errInvalidGemVersion
	}
	if s == "" {
		s = "0"
	}
	s = strings.ReplaceAll(s, "-", ".pre.")
	return canonicalizeGem(s), nil
}

var errInvalidGemVersion = gemVersionError("version: invalid gem version")

type gemVersionError string

func (e gemVersionError) Error() string { return string(e) }

// gemVersionPattern is a hand-rolled stand-in for RubyGems' anchored
// version regexp: optional whitespace, then dot-separated alphanumeric (with
// internal hyphens) groups, optionally whitespace again.
func gemVersionPattern(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	for _, part := range strings.Split(s, ".") {
		for _, r := range part {
			if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '-') {
				return false
			}
		}
	}
	return true
}

func canonicalizeGem(v string) []gemSegment {
	var segs []gemSegment
	prerelease := false
	for _, part := range strings.Split(v, ".") {
		if part == "" {
			continue
		}
		if onlyDigitsGem(part) {
			segs = append(segs, gemSegment{numStr: part})
			continue
		}
		prerelease = true
		segs = append(segs, gemSegment{str: part, isStr: true})
	}

	// Trim trailing zero numeric segments.
	i := len(segs) - 1
	for ; i >= 0; i-- {
		if segs[i].isStr || !isZeroGem(segs[i].numStr) {
			break
		}
	}
	segs = segs[:i+1]

	if prerelease {
		end := -1
		for i := range segs {
			if segs[i].isStr {
				end = i
				break
			}
		}
		if end != -1 {
			start := 0
			for i := end - 1; i >= 0; i-- {
				if !segs[i].isStr && isZeroGem(segs[i].numStr) {
					continue
				}
				start = i + 1
				break
			}
			segs = append(segs[:start], segs[end:]...)
		}
	}
	return segs
}

func onlyDigitsGem(s string) bool {
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isZeroGem(s string) bool {
	for _, c := range []byte(s) {
		if c != '0' {
			return false
		}
	}
	return true
}

// compareGemSegments compares segment by segment; a string segment always
// sorts before a numeric segment, and numeric segments compare by
// zero-padded magnitude.
func compareGemSegments(a, b []gemSegment) int {
	limit := len(a)
	if len(b) > limit {
		limit = len(b)
	}
	for i := 0; i < limit; i++ {
		left, right := gemSegment{numStr: "0"}, gemSegment{numStr: "0"}
		if i < len(a) {
			left = a[i]
		}
		if i < len(b) {
			right = b[i]
		}
		if c := compareGemSegment(left, right); c != 0 {
			return c
		}
	}
	return 0
}

func compareGemSegment(a, b gemSegment) int {
	switch {
	case a.isStr && !b.isStr:
		return -1
	case !a.isStr && b.isStr:
		return 1
	case a.isStr && b.isStr:
		return strings.Compare(a.str, b.str)
	default:
		left, right := a.numStr, b.numStr
		if len(left) != len(right) {
			if len(left) < len(right) {
				left = strings.Repeat("0", len(right)-len(left)) + left
			} else {
				right = strings.Repeat("0", len(left)-len(right)) + right
			}
		}
		return strings.Compare(left, right)
	}
}
