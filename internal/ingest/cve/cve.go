// Package cve loads CVE Record Format v5 JSON records, per spec §4.7.
package cve

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/ingest"
	"github.com/quay/vexgraph/internal/store/postgres"
)

// record is the subset of CVE Record Format v5 this loader understands.
// Decoded with encoding/json rather than gjson: the schema is fixed and
// versioned by MITRE, unlike CSAF/OSV's free-form product trees, so there
// is no benefit to untyped peeking here.
type record struct {
	CveMetadata struct {
		CveID        string `json:"cveId"`
		State        string `json:"state"`
		DatePublished string `json:"datePublished"`
		DateUpdated  string `json:"dateUpdated"`
		DateReserved string `json:"dateReserved"`
	} `json:"cveMetadata"`
	Containers struct {
		Cna struct {
			Title        string `json:"title"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
			ProblemTypes []struct {
				Descriptions []struct {
					CweID       string `json:"cweId"`
					Description string `json:"description"`
				} `json:"descriptions"`
			} `json:"problemTypes"`
		} `json:"cna"`
	} `json:"containers"`
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// Load ingests one CVE record per spec §4.7: a Vulnerability row keyed by
// the CVE id, an Advisory for the CVE record itself (one advisory per
// record), and an AdvisoryVulnerability linking them. One description is
// stored: the English one if present, otherwise the first listed;
// descriptions in other languages are not kept.
func Load(ctx context.Context, s *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, sourceDocID vexgraph.Id) (ingest.Result, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ingest.cve")
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ingest.Result{}, &vexgraph.Error{Op: "cve.Load", Kind: vexgraph.ErrInputParse, Inner: err}
	}
	if rec.CveMetadata.CveID == "" {
		return ingest.Result{}, &vexgraph.Error{Op: "cve.Load", Kind: vexgraph.ErrInputParse, Message: "missing cveMetadata.cveId"}
	}

	var res ingest.Result
	res.DocumentID = rec.CveMetadata.CveID

	var cwes []string
	var description string
	for _, d := range rec.Containers.Cna.Descriptions {
		if d.Lang == "en" || description == "" {
			description = d.Value
		}
	}
	for _, pt := range rec.Containers.Cna.ProblemTypes {
		for _, d := range pt.Descriptions {
			if d.CweID != "" {
				cwes = append(cwes, d.CweID)
			}
		}
	}

	vuln := vexgraph.Vulnerability{
		ID:        rec.CveMetadata.CveID,
		Title:     rec.Containers.Cna.Title,
		Published: parseTime(rec.CveMetadata.DatePublished),
		Modified:  parseTime(rec.CveMetadata.DateUpdated),
		CWEs:      cwes,
	}
	if err := s.FindOrCreateVulnerability(ctx, tx, vuln); err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/cve: %w", err)
	}

	adv := vexgraph.Advisory{
		Identifier:       rec.CveMetadata.CveID,
		DocumentID:       sourceDocID,
		Published:        parseTime(rec.CveMetadata.DatePublished),
		Modified:         parseTime(rec.CveMetadata.DateUpdated),
		Title:            rec.Containers.Cna.Title,
		Labels:           labels,
		SourceDocumentID: sourceDocID,
	}
	advID, err := s.CreateAdvisory(ctx, tx, adv)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/cve: %w", err)
	}
	res.ID = advID

	av := vexgraph.AdvisoryVulnerability{
		AdvisoryID:      advID,
		VulnerabilityID: vuln.ID,
		Description:     description,
		ReservedDate:    parseTime(rec.CveMetadata.DateReserved),
		CWEs:            cwes,
	}
	if err := s.CreateAdvisoryVulnerability(ctx, tx, av); err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/cve: %w", err)
	}

	return res, nil
}
