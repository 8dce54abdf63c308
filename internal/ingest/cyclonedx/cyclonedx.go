// Package cyclonedx loads CycloneDX 1.x SBOM documents (JSON or XML), per
// spec §4.7. It mirrors the spdx loader's shape but walks CDX's
// components/dependencies arrays instead of SPDX's packages/relationships.
package cyclonedx

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/ingest"
	"github.com/quay/vexgraph/internal/store/postgres"
)

// Format selects which CycloneDX encoding Load should expect.
type Format int

const (
	FormatJSON Format = iota
	FormatXML
)

func (f Format) bomFormat() cyclonedx.BOMFileFormat {
	if f == FormatXML {
		return cyclonedx.BOMFileFormatXML
	}
	return cyclonedx.BOMFileFormatJSON
}

// nodeRef is what a component's BOMRef resolves to, kept across the
// decompose-then-resolve passes the same way spdx.Load keeps refs.
type nodeRef struct {
	name, version      string
	purlKeys, cpeKeys  []string
}

// Load ingests one CycloneDX document as a single Sbom: each component
// (recursing into nested components) becomes an SbomNode/SbomPackage,
// each dependency edge becomes a PackageRelatesToPackage, and any
// "urn:cdx:" external reference becomes an SbomExternalNode.
func Load(ctx context.Context, s *postgres.Store, tx pgx.Tx, raw []byte, format Format, labels vexgraph.Labels, sourceDocID vexgraph.Id) (ingest.Result, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ingest.cyclonedx")

	var bom cyclonedx.BOM
	if err := cyclonedx.NewBOMDecoder(bytes.NewReader(raw), format.bomFormat()).Decode(&bom); err != nil {
		return ingest.Result{}, &vexgraph.Error{Op: "cyclonedx.Load", Kind: vexgraph.ErrInputParse, Inner: err}
	}

	docID := bom.SerialNumber
	if docID == "" && bom.Metadata != nil && bom.Metadata.Component != nil {
		docID = bom.Metadata.Component.BOMRef
	}
	res := ingest.Result{DocumentID: docID}

	sbomID, _, err := s.FindOrCreateSbom(ctx, tx, vexgraph.Sbom{
		DocumentID:       sourceDocID,
		Labels:           labels,
		SourceDocumentID: sourceDocID,
	})
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/cyclonedx: %w", err)
	}
	res.ID = sbomID

	pc := s.NewPurlCreator()
	cc := s.NewCpeCreator()
	refs := make(map[string]nodeRef)
	knownIDs := make(map[string]bool)

	var walk func(comps []cyclonedx.Component)
	walk = func(comps []cyclonedx.Component) {
		for _, c := range comps {
			id := c.BOMRef
			if id == "" {
				res.AddWarning("component %q has no bom-ref, skipped", c.Name)
				continue
			}
			knownIDs[id] = true
			nr := nodeRef{name: c.Name, version: c.Version}
			if c.PackageURL != "" {
				key, err := ingest.QueuePurl(pc, c.PackageURL)
				if err != nil {
					res.AddWarning("component %s: %v", id, err)
				} else {
					nr.purlKeys = append(nr.purlKeys, key)
				}
			}
			if c.CPE != "" {
				key, err := ingest.QueueCpe(cc, c.CPE)
				if err != nil {
					res.AddWarning("component %s: %v", id, err)
				} else {
					nr.cpeKeys = append(nr.cpeKeys, key)
				}
			}
			refs[id] = nr
			if c.ExternalReferences != nil {
				for _, ext := range *c.ExternalReferences {
					if strings.HasPrefix(ext.URL, "urn:cdx:") {
						if err := s.CreateExternalNode(ctx, tx, vexgraph.SbomExternalNode{
							SbomID: sbomID, NodeID: id, ExternalType: "cyclonedx",
							ExternalDocumentID: ext.URL, ExternalNodeID: "",
						}); err != nil {
							res.AddWarning("component %s: external node: %v", id, err)
						}
					}
				}
			}
			if c.Components != nil {
				walk(*c.Components)
			}
		}
	}
	if bom.Components != nil {
		walk(*bom.Components)
	}

	purlIDs, err := pc.Flush(ctx, tx)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/cyclonedx: %w", err)
	}
	cpeIDs, err := cc.Flush(ctx, tx)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/cyclonedx: %w", err)
	}

	spc := s.NewSbomPackageCreator()
	for id, nr := range refs {
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
		spc.Queue(id, nr.name, nr.version, pIDs, cIDs, nil, nil)
	}
	if err := spc.Flush(ctx, tx, sbomID); err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/cyclonedx: %w", err)
	}

	rc := s.NewRelationshipCreator()
	if bom.Dependencies != nil {
		for _, dep := range *bom.Dependencies {
			if !knownIDs[dep.Ref] {
				res.AddWarning("dependency entry for unknown ref %q, dropped", dep.Ref)
				continue
			}
			if dep.Dependencies == nil {
				continue
			}
			for _, d := range *dep.Dependencies {
				if !knownIDs[d] {
					res.AddWarning("dependency %s -> %s: unknown ref %q, dropped", dep.Ref, d, d)
					continue
				}
				// dep.Ref depends on d, i.e. d is a dependency of dep.Ref.
				rc.Queue(vexgraph.PackageRelatesToPackage{
					SbomID: sbomID, LeftNodeID: d, Relationship: vexgraph.DependencyOf, RightNodeID: dep.Ref,
				})
			}
		}
	}
	if err := rc.Flush(ctx, tx); err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/cyclonedx: %w", err)
	}

	return res, nil
}
