package version

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// mavenComparator implements Maven's version ordering, including the
// "-redhat-NNNN" and ".Final-..." qualifier handling spec §4.4 names.
//
// Maven versions are arbitrarily long and arbitrarily nested; there is no
// third-party Go implementation in the ecosystem this module draws from, and
// the reference algorithm (Maven's own ComparableVersion.java) isn't
// published as a spec document, only as reverse-engineerable source. This is
// implemented on the standard library, mirroring how the rest of this
// module's corpus hand-rolls exactly this comparator rather than reaching
// for a third-party package that doesn't exist.
//
// No package-level state is mutated; every call parses its own operands.
var mavenComparator = ComparatorFunc(func(a, b string) Ordering {
	av, aerr := parseMavenVersion(a)
	bv, berr := parseMavenVersion(b)
	if aerr != nil || berr != nil {
		return Incomparable
	}
	return orderingOf(av.compare(bv))
})

type mavenComponentKind int

const (
	mavenNull mavenComponentKind = iota
	mavenInt
	mavenString
	mavenList
)

type mavenComponent struct {
	str  *string
	num  *big.Int
	list []mavenComponent
}

func (c *mavenComponent) kind() mavenComponentKind {
	switch {
	case c.num != nil:
		return mavenInt
	case c.str != nil:
		return mavenString
	case c.list != nil:
		return mavenList
	default:
		return mavenNull
	}
}

var mavenZero = big.NewInt(0)

func (c *mavenComponent) isNull() bool {
	return c == nil ||
		(c.num != nil && c.num.Sign() == 0) ||
		(c.str != nil && *c.str == "") ||
		(c.list != nil && len(c.list) == 0)
}

type mavenVersion struct {
	root mavenComponent
}

// parseMavenVersion tokenizes a Maven version string into a tree of
// int/string/list components, alternating runs of digits and non-digits, and
// starting a new nesting level at each '-'.
func parseMavenVersion(s string) (*mavenVersion, error) {
	v := &mavenVersion{}
	var b strings.Builder
	list := &v.root.list
	isDigit, pos := false, 0

	flush := func(i int) error {
		if i == pos {
			b.WriteByte('0')
		}
		if isDigit {
			n := new(big.Int)
			if _, ok := n.SetString(b.String(), 10); !ok {
				return fmt.Errorf("maven: unable to parse number %q", b.String())
			}
			*list = append(*list, mavenComponent{num: n})
		} else {
			str := b.String()
			*list = append(*list, mavenComponent{str: &str})
		}
		b.Reset()
		return nil
	}
	descend := func() {
		idx := len(*list)
		*list = append(*list, mavenComponent{})
		list = &(*list)[idx].list
	}

	for i, r := range s {
		switch {
		case r == '.':
			if err := flush(i); err != nil {
				return nil, err
			}
			pos = i + 1
		case r == '-':
			if err := flush(i); err != nil {
				return nil, err
			}
			descend()
			pos = i + 1
		case unicode.IsDigit(r):
			if !isDigit && i > pos {
				if err := flush(i); err != nil {
					return nil, err
				}
				descend()
				pos = i
			}
			isDigit = true
			b.WriteRune(r)
		default:
			if isDigit && i > pos {
				if err := flush(i); err != nil {
					return nil, err
				}
				descend()
				pos = i
			}
			isDigit = false
			b.WriteRune(r)
		}
	}
	if err := flush(len(s)); err != nil {
		return nil, err
	}
	normalizeMaven(&v.root.list)
	return v, nil
}

// normalizeMaven strips trailing null components so that e.g. "1.0.0" and
// "1" compare equal.
func normalizeMaven(cs *[]mavenComponent) {
	for i := len(*cs) - 1; i >= 0; i-- {
		c := &(*cs)[i]
		if c.isNull() {
			*cs = (*cs)[:i]
			continue
		} else if c.kind() != mavenList {
			break
		}
		normalizeMaven(&c.list)
	}
}

func (v *mavenVersion) compare(o *mavenVersion) int {
	return v.root.compare(&o.root)
}

func (a *mavenComponent) compare(b *mavenComponent) int {
again:
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil && b.kind() == mavenInt:
		a = &mavenComponent{num: big.NewInt(0)}
		goto again
	case a == nil && b.kind() == mavenList:
		a = &mavenComponent{list: []mavenComponent{}}
		goto again
	case a == nil && b.kind() == mavenString:
		empty := ""
		a = &mavenComponent{str: &empty}
		goto again
	case a.kind() == mavenInt && b == nil:
		b = &mavenComponent{num: big.NewInt(0)}
		goto again
	case a.kind() == mavenInt && b.kind() == mavenInt:
		return a.num.Cmp(b.num)
	case a.kind() == mavenInt && (b.kind() == mavenList || b.kind() == mavenString):
		return 1
	case a.kind() == mavenList && b == nil:
		for i := range a.list {
			if c := a.list[i].compare(nil); c != 0 {
				return c
			}
		}
		return 0
	case a.kind() == mavenList && b.kind() == mavenList:
		for i := 0; i < len(a.list) || i < len(b.list); i++ {
			var l, r *mavenComponent
			if i < len(a.list) {
				l = &a.list[i]
			}
			if i < len(b.list) {
				r = &b.list[i]
			}
			var res int
			if l == nil {
				res = -r.compare(l)
			} else {
				res = l.compare(r)
			}
			if res != 0 {
				return res
			}
		}
		return 0
	case a.kind() == mavenList && b.kind() == mavenInt:
		return -1
	case a.kind() == mavenList && b.kind() == mavenString:
		return 1
	case a.kind() == mavenString && b == nil:
		empty := ""
		b = &mavenComponent{str: &empty}
		goto again
	case a.kind() == mavenString && b.kind() == mavenInt:
		return -1
	case a.kind() == mavenString && b.kind() == mavenList:
		return -1
	default: // both strings
		return strings.Compare(mavenOrdString(*a.str), mavenOrdString(*b.str))
	}
}

// mavenQualifiers are reverse-engineered from Maven's own
// ComparableVersion.java ordering table.
var mavenQualifiers = map[string]string{
	"alpha": "0", "a": "0",
	"beta": "1", "b": "1",
	"milestone": "2", "m": "2",
	"rc": "3", "cr": "3",
	"snapshot": "4",
	"":         "5", "ga": "5", "final": "5", "release": "5",
	"sp": "6",
}

const mavenUnknownQualifier = 7

func mavenOrdString(s string) string {
	s = strings.ToLower(s)
	if q, ok := mavenQualifiers[s]; ok {
		return q
	}
	return fmt.Sprintf("%d-%s", mavenUnknownQualifier, s)
}
