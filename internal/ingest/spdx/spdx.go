// Package spdx loads SPDX 2.3 JSON SBOM documents, per spec §4.7. Parsing
// itself is delegated to the teacher's own dependency,
// github.com/spdx/tools-golang, exactly as sbom/spdx/decoder.go does.
package spdx

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"
	spdxjson "github.com/spdx/tools-golang/json"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/ingest"
	"github.com/quay/vexgraph/internal/store/postgres"
)

// spdxRelationshipMap translates SPDX relationship type names to the
// internal Relationship enum, per spec §4.7's "fixed table" requirement.
// CONTAINS and DEPENDS_ON are the entries that swap sides: SPDX's
// "A CONTAINS B" and this module's "B ContainedBy A" name the same edge from
// opposite ends, as do "A DEPENDS_ON B" and "B DependencyOf A".
var spdxRelationshipMap = map[string]struct {
	rel  vexgraph.Relationship
	swap bool
}{
	"DESCRIBES":              {vexgraph.Describes, false},
	"CONTAINS":               {vexgraph.ContainedBy, true},
	"CONTAINED_BY":           {vexgraph.ContainedBy, false},
	"DEPENDS_ON":             {vexgraph.DependencyOf, true},
	"DEPENDENCY_OF":          {vexgraph.DependencyOf, false},
	"DEV_DEPENDENCY_OF":      {vexgraph.DevDependencyOf, false},
	"OPTIONAL_DEPENDENCY_OF": {vexgraph.OptionalDependencyOf, false},
	"PROVIDED_DEPENDENCY_OF": {vexgraph.ProvidedDependencyOf, false},
	"TEST_DEPENDENCY_OF":     {vexgraph.TestDependencyOf, false},
	"RUNTIME_DEPENDENCY_OF":  {vexgraph.RuntimeDependencyOf, false},
	"EXAMPLE_OF":             {vexgraph.ExampleOf, false},
	"GENERATED_FROM":         {vexgraph.GeneratedFrom, false},
	"ANCESTOR_OF":            {vexgraph.AncestorOf, false},
	"VARIANT_OF":             {vexgraph.VariantOf, false},
	"BUILD_TOOL_OF":          {vexgraph.BuildToolOf, false},
	"DEV_TOOL_OF":            {vexgraph.DevToolOf, false},
}

// validLicenseExpression is a conservative well-formedness check: no
// pack example or ecosystem dependency parses full SPDX license
// expression grammar, so this only rejects the empty string and
// unbalanced parens, per spec §4.7's "invalid expressions rewritten to
// NOASSERTION" rule — anything more permissive risks silently accepting
// garbage, anything stricter needs a real expression parser this module
// doesn't have a dependency for.
func validLicenseExpression(s string) bool {
	if s == "" {
		return false
	}
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return depth == 0
}

// Load parses raw as an SPDX 2.3 JSON document and ingests it as one
// Sbom: package_information becomes SbomNode/SbomPackage with purl/cpe
// refs, relationships map onto the internal Relationship vocabulary.
func Load(ctx context.Context, s *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, sourceDocID vexgraph.Id) (ingest.Result, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ingest.spdx")
	doc, err := spdxjson.Read(bytes.NewReader(raw))
	if err != nil {
		return ingest.Result{}, &vexgraph.Error{Op: "spdx.Load", Kind: vexgraph.ErrInputParse, Inner: err}
	}

	res := ingest.Result{DocumentID: doc.DocumentName}

	sbomID, _, err := s.FindOrCreateSbom(ctx, tx, vexgraph.Sbom{
		DocumentID:       sourceDocID,
		Labels:           labels,
		SourceDocumentID: sourceDocID,
	})
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/spdx: %w", err)
	}
	res.ID = sbomID

	pc := s.NewPurlCreator()
	cc := s.NewCpeCreator()
	knownIDs := make(map[string]bool, len(doc.Packages))
	type nodeRefs struct {
		purlKeys, cpeKeys []string
	}
	refs := make(map[string]nodeRefs, len(doc.Packages))
	licenseIDs := make(map[string]vexgraph.Id, len(doc.Packages))

	for _, pkg := range doc.Packages {
		id := string(pkg.PackageSPDXIdentifier)
		knownIDs[id] = true
		var nr nodeRefs
		for _, ext := range pkg.PackageExternalReferences {
			switch ext.RefType {
			case "purl":
				key, err := ingest.QueuePurl(pc, ext.Locator)
				if err != nil {
					res.AddWarning("package %s: %v", id, err)
					continue
				}
				nr.purlKeys = append(nr.purlKeys, key)
			case "cpe23Type":
				key, err := ingest.QueueCpe(cc, ext.Locator)
				if err != nil {
					res.AddWarning("package %s: %v", id, err)
					continue
				}
				nr.cpeKeys = append(nr.cpeKeys, key)
			}
		}
		refs[id] = nr

		if lic := string(pkg.PackageLicenseConcluded); lic != "" {
			if !validLicenseExpression(lic) {
				res.AddWarning("package %s: invalid license expression %q rewritten to NOASSERTION", id, lic)
				lic = "NOASSERTION"
			}
			licID, err := s.UpsertLicense(ctx, tx, lic)
			if err != nil {
				return ingest.Result{}, fmt.Errorf("ingest/spdx: %w", err)
			}
			licenseIDs[id] = licID
		}
	}

	purlIDs, err := pc.Flush(ctx, tx)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/spdx: %w", err)
	}
	cpeIDs, err := cc.Flush(ctx, tx)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/spdx: %w", err)
	}

	spc := s.NewSbomPackageCreator()
	for _, pkg := range doc.Packages {
		id := string(pkg.PackageSPDXIdentifier)
		nr := refs[id]
		var pIDs, cIDs []vexgraph.Id
		for _, k := range nr.purlKeys {
			if v, ok := purlIDs[k]; ok {
				pIDs = append(pIDs, v)
			}
		}
		for _, k := range nr.cpeKeys {
			if v, ok := cpeIDs[k]; ok {
				cIDs = append(cIDs, v)
			}
		}
		var purlLic, cpeLic []vexgraph.Id
		if licID, ok := licenseIDs[id]; ok {
			if len(pIDs) > 0 {
				purlLic = []vexgraph.Id{licID}
			}
			if len(cIDs) > 0 {
				cpeLic = []vexgraph.Id{licID}
			}
		}
		spc.Queue(id, pkg.PackageName, pkg.PackageVersion, pIDs, cIDs, purlLic, cpeLic)
	}
	if err := spc.Flush(ctx, tx, sbomID); err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/spdx: %w", err)
	}

	rc := s.NewRelationshipCreator()
	for _, r := range doc.Relationships {
		mapping, ok := spdxRelationshipMap[r.Relationship]
		if !ok {
			res.AddWarning("unmapped SPDX relationship type %q, skipped", r.Relationship)
			continue
		}
		left, right := string(r.RefA.ElementRefID), string(r.RefB.ElementRefID)
		if !knownIDs[left] && r.Relationship != "DESCRIBES" {
			res.AddWarning("relationship %s: unknown left id %q, dropped", r.Relationship, left)
			continue
		}
		if !knownIDs[right] {
			res.AddWarning("relationship %s: unknown right id %q, dropped", r.Relationship, right)
			continue
		}
		if mapping.swap {
			left, right = right, left
		}
		rc.Queue(vexgraph.PackageRelatesToPackage{
			SbomID: sbomID, LeftNodeID: left, Relationship: mapping.rel, RightNodeID: right,
		})
	}
	if err := rc.Flush(ctx, tx); err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/spdx: %w", err)
	}

	return res, nil
}
