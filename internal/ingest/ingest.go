// Package ingest defines the shared result type and identifier-resolution
// helpers every format loader (C7) builds on: SPDX, CycloneDX, CSAF, CVE,
// OSV, CWE, and ClearlyDefined. Loaders are self-contained per spec §4.7 —
// this package exists only to avoid duplicating the purl/cpe decomposition
// glue across all seven, not to share mutable state between them.
package ingest

import (
	"fmt"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/cpe"
	"github.com/quay/vexgraph/internal/purl"
	"github.com/quay/vexgraph/internal/store/postgres"
)

// Result is the IngestResult named in spec §4.7: the id a loader produced
// (an Advisory id for CSAF, CVE and OSV, an Sbom id for SPDX and
// CycloneDX, the QualifiedPurl id for ClearlyDefined, none for CWE), the
// source document's own identifier, and any non-fatal warnings collected
// while parsing (invalid license expressions, relationships dropped for
// referencing unknown ids, and similar per-entry problems).
type Result struct {
	ID         vexgraph.Id
	DocumentID string
	Warnings   []string
}

// AddWarning appends a formatted warning to r.
func (r *Result) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// QueuePurl decomposes s and queues it on pc, returning the canonical purl
// string Flush will use as the map key to resolve pc's output back to
// this call. A parse failure is reported as an error rather than a
// warning, since a malformed purl in a SPDX/CDX external ref generally
// indicates a malformed document, not a recoverable gap.
func QueuePurl(pc *postgres.PurlCreator, s string) (string, error) {
	d, err := purl.Parse(s)
	if err != nil {
		return "", fmt.Errorf("ingest: invalid purl %q: %w", s, err)
	}
	canonical := d.Canonical()
	var qs vexgraph.OrderedQualifiers
	for _, q := range d.Qualifiers {
		qs = append(qs, vexgraph.Qualifier{Key: q.Key, Value: q.Value})
	}
	pc.Queue(d.Type, d.Namespace, d.Name, d.Version, qs, canonical)
	return canonical, nil
}

// QueueCpe unbinds s (a CPE 2.3 formatted string, or a 2.2 URI — Unbind
// handles both per internal/cpe's WFN.Valid contract) and queues it on cc,
// returning the key cc.Flush's result map uses.
func QueueCpe(cc *postgres.CpeCreator, s string) (string, error) {
	w, err := cpe.Unbind(s)
	if err != nil {
		return "", fmt.Errorf("ingest: invalid cpe %q: %w", s, err)
	}
	c := vexgraph.Cpe{
		Part:     w.Attr[cpe.Part].String(),
		Vendor:   w.Attr[cpe.Vendor].String(),
		Product:  w.Attr[cpe.Product].String(),
		Version:  w.Attr[cpe.Version].String(),
		Update:   w.Attr[cpe.Update].String(),
		Edition:  w.Attr[cpe.Edition].String(),
		Language: w.Attr[cpe.Language].String(),
	}
	cc.Queue(c)
	return postgres.CpeKey(c), nil
}

// CanonicalPurl returns s's canonical purl string without mutating any
// PurlCreator, for callers that need to reproduce a PurlCreator.Flush map
// key from a purl string they queued earlier through QueuePurl.
func CanonicalPurl(s string) (string, error) {
	d, err := purl.Parse(s)
	if err != nil {
		return "", fmt.Errorf("ingest: invalid purl %q: %w", s, err)
	}
	return d.Canonical(), nil
}
