package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// pep440Comparator implements PEP 440 ordering for Python package versions.
// PEP 440 isn't published with a reference implementation outside CPython's
// own packaging library, and no Go package in this module's corpus wraps it;
// this mirrors the corpus's own choice to hand-roll it on the standard
// library (see pkg/pep440 in the teacher) rather than reach for a
// third-party package that doesn't exist in the ecosystem this module draws
// from.
var pep440Comparator = ComparatorFunc(func(a, b string) Ordering {
	av, aerr := parsePep440(a)
	bv, berr := parsePep440(b)
	if aerr != nil || berr != nil {
		return Incomparable
	}
	return orderingOf(comparePep440(av, bv))
})

var pep440Pattern = regexp.MustCompile(
	`v?` +
		`(?:` +
		`(?:(?P<epoch>[0-9]+)!)?` +
		`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
		`(?P<pre>[-_\.]?(?P<pre_l>(a|b|c|rc|alpha|beta|pre|preview))[-_\.]?(?P<pre_n>[0-9]+)?)?` +
		`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_\.]?(?P<post_l>post|rev|r)[-_\.]?(?P<post_n2>[0-9]+)?))?` +
		`(?P<dev>[-_\.]?(?P<dev_l>dev)[-_\.]?(?P<dev_n>[0-9]+)?)?` +
		`)` +
		`(?:\+(?P<local>[a-z0-9]+(?:[-_\.][a-z0-9]+)*))?`,
)

type pep440Version struct {
	epoch    int
	release  []int
	preLabel string // "", "a", "b", "rc"
	preN     int
	post     int
	dev      int
	hasDev   bool
}

func parsePep440(s string) (pep440Version, error) {
	var v pep440Version
	if !pep440Pattern.MatchString(s) {
		return v, fmt.Errorf("pep440: invalid version %q", s)
	}
	ms := pep440Pattern.FindStringSubmatch(s)
	names := pep440Pattern.SubexpNames()
	for i, n := range names {
		if i >= len(ms) || ms[i] == "" {
			continue
		}
		var err error
		switch n {
		case "epoch":
			v.epoch, err = strconv.Atoi(ms[i])
		case "release":
			for _, seg := range strings.Split(ms[i], ".") {
				n, e := strconv.Atoi(seg)
				if e != nil {
					return v, e
				}
				v.release = append(v.release, n)
			}
		case "pre_l":
			switch ms[i] {
			case "a", "alpha":
				v.preLabel = "a"
			case "b", "beta":
				v.preLabel = "b"
			case "rc", "c", "pre", "preview":
				v.preLabel = "rc"
			default:
				return v, fmt.Errorf("pep440: unknown pre-release label %q", ms[i])
			}
		case "pre_n":
			v.preN, err = strconv.Atoi(ms[i])
		case "post_n1", "post_n2":
			v.post, err = strconv.Atoi(ms[i])
		case "dev_n":
			v.dev, err = strconv.Atoi(ms[i])
			v.hasDev = true
		}
		if err != nil {
			return v, err
		}
	}
	return v, nil
}

func preRank(label string) int {
	switch label {
	case "a":
		return -3
	case "b":
		return -2
	case "rc":
		return -1
	default:
		return 0
	}
}

// comparePep440 compares two already-parsed versions per PEP 440 §Appendix
// B's informal ordering: epoch, then release (element-wise, shorter padded
// with zeros), then pre/dev/post release qualifiers.
func comparePep440(a, b pep440Version) int {
	if a.epoch != b.epoch {
		return cmpInt(a.epoch, b.epoch)
	}
	for i := 0; i < max(len(a.release), len(b.release)); i++ {
		var av, bv int
		if i < len(a.release) {
			av = a.release[i]
		}
		if i < len(b.release) {
			bv = b.release[i]
		}
		if av != bv {
			return cmpInt(av, bv)
		}
	}
	ar, br := preRank(a.preLabel), preRank(b.preLabel)
	if ar != br {
		return cmpInt(ar, br)
	}
	if ar != 0 && a.preN != b.preN {
		return cmpInt(a.preN, b.preN)
	}
	// A bare dev release (no pre/post) sorts before the release itself.
	aDevOnly, bDevOnly := a.hasDev && ar == 0 && a.post == 0, b.hasDev && br == 0 && b.post == 0
	switch {
	case aDevOnly && !bDevOnly:
		return -1
	case !aDevOnly && bDevOnly:
		return 1
	case aDevOnly && bDevOnly:
		return cmpInt(a.dev, b.dev)
	}
	if a.post != b.post {
		return cmpInt(a.post, b.post)
	}
	if a.hasDev != b.hasDev {
		if a.hasDev {
			return -1
		}
		return 1
	}
	return cmpInt(a.dev, b.dev)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
