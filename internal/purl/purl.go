// Package purl decomposes Package URLs into the BasePurl/VersionedPurl/
// QualifiedPurl triple the data model stores, and re-derives the canonical
// string form from a decomposed value.
//
// Canonicalization rules (spec §4.5): qualifier keys sorted ascending, and an
// empty qualifier map round-trips to no "?" suffix.
package purl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/package-url/packageurl-go"
)

// Qualifier is one key=value pair of a qualified PURL, kept as a slice (not a
// map) so callers can preserve or impose an explicit order.
type Qualifier struct {
	Key   string
	Value string
}

// Decomposed is the (base, version, qualifiers) triple a pURL string maps to,
// 1-1, per spec §3.
type Decomposed struct {
	Type       string
	Namespace  string
	Name       string
	Version    string
	Qualifiers []Qualifier
}

// Parse decomposes a pURL string into its base/versioned/qualified parts.
func Parse(s string) (Decomposed, error) {
	p, err := packageurl.FromString(s)
	if err != nil {
		return Decomposed{}, fmt.Errorf("purl: unable to parse %q: %w", s, err)
	}
	d := Decomposed{
		Type:      p.Type,
		Namespace: p.Namespace,
		Name:      p.Name,
		Version:   p.Version,
	}
	for _, q := range p.Qualifiers {
		d.Qualifiers = append(d.Qualifiers, Qualifier{Key: q.Key, Value: q.Value})
	}
	sortQualifiers(d.Qualifiers)
	return d, nil
}

func sortQualifiers(qs []Qualifier) {
	sort.Slice(qs, func(i, j int) bool { return qs[i].Key < qs[j].Key })
}

// Canonical renders the decomposed pURL back to its canonical string form:
// "pkg:<type>[/<ns>]/<name>[@<version>][?k1=v1&k2=v2...]" with qualifier keys
// sorted ascending (P2: canonical(parse(s)) is a fixed point).
func (d Decomposed) Canonical() string {
	qs := make([]Qualifier, len(d.Qualifiers))
	copy(qs, d.Qualifiers)
	sortQualifiers(qs)

	qualifiers := make(packageurl.Qualifiers, 0, len(qs))
	for _, q := range qs {
		qualifiers = append(qualifiers, packageurl.Qualifier{Key: q.Key, Value: q.Value})
	}
	p := packageurl.NewPackageURL(d.Type, d.Namespace, d.Name, d.Version, qualifiers, "")
	return p.ToString()
}

// BaseKey is the uniqueness key for a BasePurl row: (type, namespace, name).
func (d Decomposed) BaseKey() string {
	return strings.Join([]string{d.Type, d.Namespace, d.Name}, "\x00")
}
