package vexgraph

import "time"

// SourceDocument represents the raw bytes of one uploaded artifact.
//
// The triple of hashes uniquely identifies a document; re-ingesting
// identical bytes reuses the existing row (spec §3).
type SourceDocument struct {
	ID     Id
	SHA256 Id
	SHA384 Id
	SHA512 Id
}

// Labels is a string->string mapping attached to SBOMs and advisories.
type Labels map[string]string

// Advisory is a normalized advisory record, spanning CSAF, CVE, and OSV
// origins.
type Advisory struct {
	ID               Id
	Identifier       string
	Version          string
	DocumentID       Id
	Issuer           string
	Published        *time.Time
	Modified         *time.Time
	Withdrawn        *time.Time
	Title            string
	Labels           Labels
	Deprecated       bool
	SourceDocumentID Id
}

// Vulnerability is a normalized vulnerability record, e.g. a CVE.
type Vulnerability struct {
	ID        string
	Title     string
	Published *time.Time
	Modified  *time.Time
	Withdrawn *time.Time
	CWEs      []string
}

// AdvisoryVulnerability binds an Advisory to a Vulnerability with
// advisory-local narrative fields.
type AdvisoryVulnerability struct {
	AdvisoryID      Id
	VulnerabilityID string
	Title           string
	Summary         string
	Description     string
	ReservedDate    *time.Time
	DiscoveryDate   *time.Time
	ReleaseDate     *time.Time
	CWEs            []string
}

// PackageStatus binds (package, version-range, optional product CPE) to a
// status for a given (advisory, vulnerability).
type PackageStatus struct {
	ID              Id
	AdvisoryID      Id
	VulnerabilityID string
	StatusID        string
	BasePurlID      Id
	VersionRangeID  Id
	ContextCpeID    *Id
}

// ProductStatus is the coarser form used when upstream advisories name only
// a product CPE plus a free-form package name.
type ProductStatus struct {
	AdvisoryID      Id
	VulnerabilityID string
	StatusID        string
	ContextCpeID    Id
	Package         string
}

// BasePurl is the (type, namespace, name) decomposition of a PURL.
type BasePurl struct {
	ID        Id
	Type      string
	Namespace string
	Name      string
}

// VersionedPurl adds a version to a BasePurl.
type VersionedPurl struct {
	ID         Id
	BasePurlID Id
	Version    string
}

// Qualifier is a single purl qualifier key/value pair.
type Qualifier struct {
	Key   string
	Value string
}

// OrderedQualifiers is a purl qualifier list in the canonical sort order
// (lexicographic by key) that internal/purl produces. Order matters because
// QualifiedPurl identity is the canonical string form, and two qualifier
// lists that differ only in input order must decompose to the same row.
type OrderedQualifiers []Qualifier

// QualifiedPurl adds qualifiers and the canonical string form to a
// VersionedPurl.
type QualifiedPurl struct {
	ID              Id
	VersionedPurlID Id
	Qualifiers      OrderedQualifiers
	Purl            string // canonical form
}

// Cpe is the 7-column decomposition of a CPE WFN.
type Cpe struct {
	ID       Id
	Part     string
	Vendor   string
	Product  string
	Version  string
	Update   string
	Edition  string
	Language string
}

// VersionRange encodes a range of versions under a specific [VersionScheme].
type VersionRange struct {
	ID            Id
	Scheme        VersionScheme
	LowVersion    string
	LowInclusive  bool
	HighVersion   string
	HighInclusive bool
}

// HasLow reports whether the range has a lower bound.
func (r VersionRange) HasLow() bool { return r.LowVersion != "" }

// HasHigh reports whether the range has an upper bound.
func (r VersionRange) HasHigh() bool { return r.HighVersion != "" }

// VersionScheme is an enumerated versioning scheme id.
type VersionScheme string

// Defined version schemes, per spec §3.
const (
	SchemeSemver    VersionScheme = "semver"
	SchemeEcosystem VersionScheme = "ecosystem"
	SchemeGit       VersionScheme = "git"
	SchemeDeb       VersionScheme = "deb"
	SchemeRPM       VersionScheme = "rpm"
	SchemeGem       VersionScheme = "gem"
	SchemeNPM       VersionScheme = "npm"
	SchemePyPI      VersionScheme = "pypi"
	SchemeCPAN      VersionScheme = "cpan"
	SchemeGolang    VersionScheme = "golang"
	SchemeMaven     VersionScheme = "maven"
	SchemeNuGet     VersionScheme = "nuget"
	SchemeGentoo    VersionScheme = "gentoo"
	SchemeAlpine    VersionScheme = "alpine"
	SchemeGeneric   VersionScheme = "generic"
)

// Sbom is a single ingested Software Bill of Materials document.
type Sbom struct {
	SbomID           Id
	DocumentID       Id
	Published        *time.Time
	Authors          []string
	Labels           Labels
	SourceDocumentID Id
}

// SbomNode is the minimal identity of one node in an SBOM graph.
type SbomNode struct {
	SbomID Id
	NodeID string
	Name   string
}

// SbomPackage attaches a version to an SbomNode that represents a package.
type SbomPackage struct {
	SbomID  Id
	NodeID  string
	Version string
}

// SbomPackagePurlRef links an SbomPackage to a QualifiedPurl.
type SbomPackagePurlRef struct {
	SbomID          Id
	NodeID          string
	QualifiedPurlID Id
}

// SbomPackageCpeRef links an SbomPackage to a Cpe.
type SbomPackageCpeRef struct {
	SbomID Id
	NodeID string
	CpeID  Id
}

// SbomExternalNode is a placeholder for a node living in another SBOM
// document, resolved lazily at traversal time.
type SbomExternalNode struct {
	SbomID             Id
	NodeID             string
	ExternalType       string
	ExternalDocumentID string
	ExternalNodeID     string
	Discriminator      string
}

// PackageRelatesToPackage is one edge of the SBOM relationship graph.
type PackageRelatesToPackage struct {
	SbomID       Id
	LeftNodeID   string
	Relationship Relationship
	RightNodeID  string
}

// License is a normalized SPDX license expression.
type License struct {
	ID   Id // deterministic uuid of the normalized expression
	Text string
}

// PurlLicenseAssertion binds a license to a versioned PURL inside a given
// SBOM.
type PurlLicenseAssertion struct {
	SbomID          Id
	VersionedPurlID Id
	LicenseID       Id
}

// CpeLicenseAssertion binds a license to a CPE inside a given SBOM.
type CpeLicenseAssertion struct {
	SbomID    Id
	CpeID     Id
	LicenseID Id
}

// Weakness is a CWE catalog entry.
type Weakness struct {
	ID                 string
	Description        string
	ExtendedDescription string
	ChildOf            []string
	ParentOf           []string
	StartsWith         []string
	CanFollow          []string
	CanPrecede         []string
	RequiredBy         []string
	Requires           []string
	CanAlsoBe          []string
	PeerOf             []string
}

// TrustAnchor is a root credential (initially PGP-only) used to verify
// document signatures.
type TrustAnchor struct {
	ID          Id
	Revision    Id // uuid, used for optimistic concurrency
	Disabled    bool
	Description string
	Type        TrustAnchorType
	Payload     []byte
}

// TrustAnchorType enumerates supported trust anchor credential kinds.
type TrustAnchorType string

// TrustAnchorPGP is currently the only supported trust anchor type.
const TrustAnchorPGP TrustAnchorType = "pgp"

// SourceDocumentSignature is a detached signature for a SourceDocument.
type SourceDocumentSignature struct {
	ID         Id
	DocumentID Id
	Type       TrustAnchorType
	Payload    []byte
}

// IngestResult is returned by every ingest operation.
type IngestResult struct {
	ID         Id
	DocumentID Id
	Warnings   []string
}
