package vexgraph

import "fmt"

// Relationship enumerates the wire-stable SBOM relationship kinds from
// spec §3/§6.
type Relationship int

// Defined relationships. Order matches spec §6's listing.
const (
	_                       Relationship = iota // invalid
	Describes                                   // Describes
	ContainedBy                                  // ContainedBy
	DependencyOf                                 // DependencyOf
	DevDependencyOf                              // DevDependencyOf
	OptionalDependencyOf                         // OptionalDependencyOf
	ProvidedDependencyOf                         // ProvidedDependencyOf
	TestDependencyOf                             // TestDependencyOf
	RuntimeDependencyOf                           // RuntimeDependencyOf
	ExampleOf                                    // ExampleOf
	GeneratedFrom                                // GeneratedFrom
	AncestorOf                                   // AncestorOf
	VariantOf                                    // VariantOf
	BuildToolOf                                   // BuildToolOf
	DevToolOf                                    // DevToolOf
	Package                                      // Package
	Variant                                      // Variant
)

var relationshipNames = [...]string{
	"",
	"Describes",
	"ContainedBy",
	"DependencyOf",
	"DevDependencyOf",
	"OptionalDependencyOf",
	"ProvidedDependencyOf",
	"TestDependencyOf",
	"RuntimeDependencyOf",
	"ExampleOf",
	"GeneratedFrom",
	"AncestorOf",
	"VariantOf",
	"BuildToolOf",
	"DevToolOf",
	"Package",
	"Variant",
}

// String implements fmt.Stringer.
func (r Relationship) String() string {
	if int(r) < 0 || int(r) >= len(relationshipNames) {
		return fmt.Sprintf("Relationship(%d)", int(r))
	}
	return relationshipNames[r]
}

// ParseRelationship parses a wire name back into a Relationship.
func ParseRelationship(s string) (Relationship, error) {
	for i, n := range relationshipNames {
		if i == 0 {
			continue
		}
		if n == s {
			return Relationship(i), nil
		}
	}
	return 0, &Error{Kind: ErrValidation, Message: fmt.Sprintf("unknown relationship %q", s)}
}

// MarshalText implements encoding.TextMarshaler.
func (r Relationship) MarshalText() ([]byte, error) {
	if r == 0 {
		return nil, &Error{Kind: ErrValidation, Message: "cannot marshal zero Relationship"}
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Relationship) UnmarshalText(b []byte) error {
	v, err := ParseRelationship(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Status is the static vocabulary described in spec §3.
type Status struct {
	Slug        string
	Name        string
	Description string
}

// Defined statuses, the minimum vocabulary named in spec §3.
var (
	StatusAffected           = Status{Slug: "affected", Name: "Affected", Description: "the package is affected by the vulnerability"}
	StatusNotAffected        = Status{Slug: "not_affected", Name: "Not affected", Description: "the package is not affected by the vulnerability"}
	StatusFixed              = Status{Slug: "fixed", Name: "Fixed", Description: "the vulnerability is fixed in this version"}
	StatusUnderInvestigation = Status{Slug: "under_investigation", Name: "Under investigation", Description: "applicability has not yet been determined"}
	StatusKnownNotAffected   = Status{Slug: "known_not_affected", Name: "Known not affected", Description: "explicitly asserted as not affected upstream"}
)

// Statuses is the full static vocabulary, indexed by slug.
var Statuses = map[string]Status{
	StatusAffected.Slug:           StatusAffected,
	StatusNotAffected.Slug:        StatusNotAffected,
	StatusFixed.Slug:              StatusFixed,
	StatusUnderInvestigation.Slug: StatusUnderInvestigation,
	StatusKnownNotAffected.Slug:   StatusKnownNotAffected,
}

// ParseStatus validates a status slug against the static vocabulary.
func ParseStatus(slug string) (Status, error) {
	s, ok := Statuses[slug]
	if !ok {
		return Status{}, &Error{Kind: ErrValidation, Message: fmt.Sprintf("unknown status slug %q", slug)}
	}
	return s, nil
}
