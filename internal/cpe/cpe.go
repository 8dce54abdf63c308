// Package cpe handles Common Platform Enumeration (CPE) well-formed names:
// parsing, canonical binding, and the superset matching predicate used for
// product-status filtering.
//
// The binding and matching algorithms are adapted from the CPE 2.3
// specification (NISTIR 7695/7696), restricted to the seven attributes the
// data model carries (part, vendor, product, version, update, edition,
// language).
package cpe

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Attribute enumerates the seven CPE attributes tracked by the data model,
// in CPE 2.3 binding order.
type Attribute int

// Defined attributes.
const (
	Part Attribute = iota
	Vendor
	Product
	Version
	Update
	Edition
	Language
)

// NumAttr is the number of attributes in this WFN.
const NumAttr = 7

var attrNames = [NumAttr]string{"part", "vendor", "product", "version", "update", "edition", "language"}

func (a Attribute) String() string {
	if int(a) < 0 || int(a) >= NumAttr {
		return fmt.Sprintf("Attribute(%d)", int(a))
	}
	return attrNames[a]
}

// ValueKind indicates what "kind" a Value is.
type ValueKind uint

// Defined value kinds.
const (
	ValueUnset ValueKind = iota // component not applicable to this binding ("" in the formatted string)
	ValueAny                    // "*", matches anything
	ValueNA                     // "-", explicitly not applicable
	ValueSet                    // a concrete (possibly quoted-glob) string
)

// Value represents one attribute's value.
type Value struct {
	V    string
	Kind ValueKind
}

// NewValue constructs a Value and validates its quoting, without quoting the
// string itself.
func NewValue(v string) (Value, error) {
	if err := validate(v); err != nil {
		return Value{}, err
	}
	return Value{Kind: ValueSet, V: v}, nil
}

func (v Value) String() string {
	var b strings.Builder
	v.bind(&b)
	return b.String()
}

// WFN is a well-formed CPE name.
type WFN struct {
	Attr [NumAttr]Value
}

// ErrUnset is returned from [WFN.Valid] for the zero WFN.
var ErrUnset = fmt.Errorf("cpe: wfn is empty")

// Valid reports an error if the WFN is not well-formed.
func (w WFN) Valid() error {
	unset := 0
	for i := 0; i < NumAttr; i++ {
		if err := validate(quoteReserved(w.Attr[i].V)); err != nil {
			return fmt.Errorf("cpe: wfn attr %v is invalid: %w", Attribute(i), err)
		}
		if w.Attr[i].Kind == ValueUnset {
			unset++
		}
	}
	if unset == NumAttr {
		return ErrUnset
	}
	if p := w.Attr[Part]; p.Kind == ValueSet {
		if len(p.V) != 1 || (p.V != "a" && p.V != "o" && p.V != "h") {
			return fmt.Errorf("cpe: wfn attr part is invalid: %q is a disallowed value", p.V)
		}
	}
	return nil
}

// quoteReserved backslash-quotes the reserved characters that unbinding
// leaves unquoted (such as the dots in "2.14.1"), keeping existing quotes and
// the '*'/'?' wildcards as they are, so validate sees the quoted WFN form.
func quoteReserved(s string) string {
	var b strings.Builder
	esc := false
	for _, r := range s {
		switch {
		case esc:
			esc = false
		case r == '\\':
			esc = true
		case r != '*' && r != '?' && reserved(r):
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (w WFN) String() string { return w.BindFS() }

// BindFS returns the WFN bound as a CPE 2.3 formatted string, the canonical
// wire form named in spec §4.5 / §6.
func (w WFN) BindFS() string {
	var b strings.Builder
	b.WriteString("cpe:2.3")
	for i := 0; i < NumAttr; i++ {
		b.WriteByte(':')
		w.Attr[i].bind(&b)
	}
	return b.String()
}

func (v Value) bind(b *strings.Builder) {
	switch v.Kind {
	case ValueUnset, ValueAny:
		b.WriteByte('*')
	case ValueNA:
		b.WriteByte('-')
	case ValueSet:
		fsUnescape.WriteString(b, v.V)
	}
}

var fsUnescape = strings.NewReplacer(`\.`, `.`, `\-`, `-`, `\_`, `_`)

// Unbind parses a string in either CPE 2.2 URI or CPE 2.3 formatted-string
// form into a WFN.
func Unbind(s string) (WFN, error) {
	switch {
	case strings.HasPrefix(s, "cpe:/"):
		return UnbindURI(s)
	case strings.HasPrefix(s, "cpe:2.3:"):
		return UnbindFS(s)
	default:
	}
	return WFN{}, fmt.Errorf("cpe: string does not appear to be a bound WFN: %q", s)
}

// MustUnbind calls [Unbind] and panics on error; for static test data only.
func MustUnbind(s string) WFN {
	w, err := Unbind(s)
	if err != nil {
		panic(err)
	}
	return w
}

// UnbindFS parses a CPE 2.3 formatted string into a WFN.
func UnbindFS(s string) (WFN, error) {
	r := WFN{}
	if !strings.HasPrefix(s, "cpe:2.3:") {
		return r, fmt.Errorf("cpe: malformed formatted string")
	}
	parts := splitFS(s)
	if len(parts) < 2+NumAttr {
		return r, fmt.Errorf("cpe: formatted string has too few components")
	}
	for i := 0; i < NumAttr; i++ {
		r.Attr[i].unbindFS(parts[2+i])
	}
	return r, r.Valid()
}

func (v *Value) unbindFS(s string) {
	switch s {
	case "":
		v.Kind = ValueUnset
	case "-":
		v.Kind = ValueNA
	case "*":
		v.Kind = ValueAny
	default:
		v.Kind = ValueSet
		v.V = s
	}
}

// splitFS splits a colon-separated CPE string respecting backslash escapes.
func splitFS(s string) []string {
	var out []string
	prev, esc := 0, false
	for i, r := range s {
		switch r {
		case '\\':
			esc = !esc
			continue
		case ':':
			if esc {
				break
			}
			out = append(out, s[prev:i])
			prev = i + 1
		default:
		}
		esc = false
	}
	out = append(out, s[prev:])
	return out
}

// UnbindURI parses a CPE 2.2 URI into a WFN.
func UnbindURI(s string) (WFN, error) {
	r := WFN{}
	if !strings.HasPrefix(s, "cpe:/") {
		return r, fmt.Errorf("cpe: malformed uri")
	}
	for i := 0; i < NumAttr; i++ {
		r.Attr[i].Kind = ValueAny
	}
	comp := strings.Split(s, ":")
	comp[1] = strings.TrimPrefix(comp[1], "/")
	for i, c := range comp[1:] {
		if i >= NumAttr {
			return r, fmt.Errorf("cpe: unexpected %dth uri component", i)
		}
		r.Attr[i].unbindURI(c)
	}
	return r, r.Valid()
}

func (v *Value) unbindURI(s string) {
	switch s {
	case "":
		v.Kind = ValueAny
	case "-":
		v.Kind = ValueNA
	default:
		v.Kind = ValueSet
		v.V = uriUnescape.Replace(strings.ToLower(s))
	}
}

var uriUnescape = strings.NewReplacer(
	`%01`, `?`, `%02`, `*`,
	`%21`, `!`, `%22`, `"`, `%23`, `#`, `%24`, `$`, `%25`, `%`, `%26`, `&`,
	`%27`, `'`, `%28`, `(`, `%29`, `)`, `%2a`, `*`, `%2b`, `+`, `%2c`, `,`,
	`%2f`, `/`, `%3a`, `:`, `%3b`, `;`, `%3c`, `<`, `%3d`, `=`, `%3e`, `>`,
	`%3f`, `?`, `%40`, `@`, `%5b`, `[`, `%5c`, `\`, `%5d`, `]`, `%5e`, `^`,
	`%60`, "`", `%7b`, `{`, `%7c`, `|`, `%7d`, `}`, `%7e`, `~`,
)

func nonASCII(r rune) bool { return r >= unicode.MaxASCII }

func reserved(r rune) bool {
	return (r < 0x30 || r > 0x39) && (r < 0x41 || r > 0x5a) && (r < 0x61 || r > 0x7a) && r != '_'
}

// validate checks a raw attribute value per NISTIR 7695 §5.3.2.
func validate(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("cpe: string not valid utf8")
	}
	if strings.IndexFunc(s, nonASCII) != -1 {
		return fmt.Errorf("cpe: string contains non-ASCII characters")
	}
	if strings.IndexFunc(s, unicode.IsSpace) != -1 {
		return fmt.Errorf("cpe: string contains space characters")
	}
	if s == "*" {
		return fmt.Errorf("cpe: single asterisk must not be used by itself")
	}
	if s == `\-` {
		return fmt.Errorf("cpe: quoted hyphen must not be used by itself")
	}
	var esc, qRun, atStart = false, false, true
	last := len(s) - 1
	for i, r := range s {
		switch r {
		case '*':
			if esc {
				break
			}
			if i != 0 && i != last {
				return fmt.Errorf("cpe: invalid position for special character %q at %d", r, i)
			}
		case '?':
			if esc {
				break
			}
			qRun = true
		case '\\':
			esc = true
			continue
		default:
			if reserved(r) && !esc {
				return fmt.Errorf("cpe: invalid unquoted character %q at %d", r, i)
			}
		}
		if r != '?' {
			if qRun && !atStart {
				return fmt.Errorf("cpe: invalid position for special character %q at %d", '?', i-1)
			}
			qRun, atStart = false, false
		}
		esc = false
	}
	return nil
}
