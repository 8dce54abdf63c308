// Package cwe parses the MITRE CWE XML catalog and upserts Weakness rows,
// per spec §4.7.
package cwe

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/ingest"
	"github.com/quay/vexgraph/internal/store/postgres"
)

type catalog struct {
	XMLName    xml.Name    `xml:"Weakness_Catalog"`
	Weaknesses []xmlWeakness `xml:"Weaknesses>Weakness"`
}

type xmlWeakness struct {
	ID                   string `xml:"ID,attr"`
	Name                 string `xml:"Name,attr"`
	Description          string `xml:"Description"`
	ExtendedDescription  rawXML `xml:"Extended_Description"`
	RelatedWeaknesses struct {
		Related []struct {
			Nature string `xml:"Nature,attr"`
			CweID  string `xml:"CWE_ID,attr"`
		} `xml:"Related_Weakness"`
	} `xml:"Related_Weaknesses"`
}

// rawXML captures an element's inner markup verbatim (tag-preserving),
// per spec §4.7's "extended-description elements are serialized back to
// a tag-preserving string" requirement — encoding/xml's ",innerxml" tag
// does this without a second parse pass.
type rawXML struct {
	Inner string `xml:",innerxml"`
}

// Load parses raw as a CWE catalog document and upserts every Weakness
// entry found. An entry with no ID is skipped and a related weakness with an
// unrecognized Nature is left out of the row; each yields one warning,
// in the other loaders' "skip gracefully, don't abort the batch" style.
func Load(ctx context.Context, s *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, sourceDocID vexgraph.Id) (ingest.Result, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ingest.cwe")
	var cat catalog
	if err := xml.Unmarshal(raw, &cat); err != nil {
		return ingest.Result{}, &vexgraph.Error{Op: "cwe.Load", Kind: vexgraph.ErrInputParse, Inner: err}
	}

	res := ingest.Result{DocumentID: "cwec"}
	for _, w := range cat.Weaknesses {
		if w.ID == "" {
			res.AddWarning("skipped weakness entry with no ID (name %q)", w.Name)
			continue
		}
		model := vexgraph.Weakness{
			ID:                  "CWE-" + w.ID,
			Description:         strings.TrimSpace(w.Description),
			ExtendedDescription: strings.TrimSpace(w.ExtendedDescription.Inner),
		}
		for _, rel := range w.RelatedWeaknesses.Related {
			id := "CWE-" + rel.CweID
			switch rel.Nature {
			case "ChildOf":
				model.ChildOf = append(model.ChildOf, id)
			case "ParentOf":
				model.ParentOf = append(model.ParentOf, id)
			case "StartsWith":
				model.StartsWith = append(model.StartsWith, id)
			case "CanFollow":
				model.CanFollow = append(model.CanFollow, id)
			case "CanPrecede":
				model.CanPrecede = append(model.CanPrecede, id)
			case "RequiredBy":
				model.RequiredBy = append(model.RequiredBy, id)
			case "Requires":
				model.Requires = append(model.Requires, id)
			case "CanAlsoBe":
				model.CanAlsoBe = append(model.CanAlsoBe, id)
			case "PeerOf":
				model.PeerOf = append(model.PeerOf, id)
			default:
				res.AddWarning("weakness %s: unknown relation nature %q to %s", model.ID, rel.Nature, id)
			}
		}
		if err := s.UpsertWeakness(ctx, tx, model); err != nil {
			return ingest.Result{}, fmt.Errorf("ingest/cwe: %w", err)
		}
	}
	return res, nil
}
