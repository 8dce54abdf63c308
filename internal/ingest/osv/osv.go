// Package osv loads OSV (Open Source Vulnerability) JSON records, per
// spec §4.7. Ranges and events are walked with gjson rather than typed
// structs, matching SPEC_FULL's domain-stack note that CSAF/OSV payloads
// get untyped JSON walking while fixed-schema formats (CVE) get
// encoding/json structs.
package osv

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"
	"github.com/tidwall/gjson"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/ingest"
	"github.com/quay/vexgraph/internal/store/postgres"
)

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

// Load ingests one OSV record: one Advisory per OSV id, one
// AdvisoryVulnerability per "CVE-" alias, and for each ECOSYSTEM/SEMVER
// range a VersionRange with an affected PackageStatus, plus a fixed
// PackageStatus when the range has a fixed event.
func Load(ctx context.Context, s *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, sourceDocID vexgraph.Id) (ingest.Result, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ingest.osv")
	if !gjson.ValidBytes(raw) {
		return ingest.Result{}, &vexgraph.Error{Op: "osv.Load", Kind: vexgraph.ErrInputParse, Message: "invalid JSON"}
	}
	doc := gjson.ParseBytes(raw)
	id := doc.Get("id").String()
	if id == "" {
		return ingest.Result{}, &vexgraph.Error{Op: "osv.Load", Kind: vexgraph.ErrInputParse, Message: "missing id"}
	}

	res := ingest.Result{DocumentID: id}

	vuln := vexgraph.Vulnerability{
		ID:        id,
		Title:     doc.Get("summary").String(),
		Published: parseTime(doc.Get("published").String()),
		Modified:  parseTime(doc.Get("modified").String()),
		Withdrawn: parseTimePtr(doc, "withdrawn"),
	}
	if err := s.FindOrCreateVulnerability(ctx, tx, vuln); err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/osv: %w", err)
	}

	adv := vexgraph.Advisory{
		Identifier:       id,
		DocumentID:       sourceDocID,
		Published:        vuln.Published,
		Modified:         vuln.Modified,
		Withdrawn:        vuln.Withdrawn,
		Title:            vuln.Title,
		Labels:           labels,
		SourceDocumentID: sourceDocID,
	}
	advID, err := s.CreateAdvisory(ctx, tx, adv)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/osv: %w", err)
	}
	res.ID = advID

	av := vexgraph.AdvisoryVulnerability{
		AdvisoryID:      advID,
		VulnerabilityID: id,
		Description:     doc.Get("details").String(),
	}
	if err := s.CreateAdvisoryVulnerability(ctx, tx, av); err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/osv: %w", err)
	}

	for _, alias := range doc.Get("aliases").Array() {
		a := alias.String()
		if len(a) >= 4 && a[:4] == "CVE-" {
			if err := s.FindOrCreateVulnerability(ctx, tx, vexgraph.Vulnerability{ID: a}); err != nil {
				return ingest.Result{}, fmt.Errorf("ingest/osv: %w", err)
			}
			cveAv := vexgraph.AdvisoryVulnerability{AdvisoryID: advID, VulnerabilityID: a}
			if err := s.CreateAdvisoryVulnerability(ctx, tx, cveAv); err != nil {
				return ingest.Result{}, fmt.Errorf("ingest/osv: %w", err)
			}
		}
	}

	for _, affected := range doc.Get("affected").Array() {
		pkg := affected.Get("package")
		ecosystem := pkg.Get("ecosystem").String()
		name := pkg.Get("name").String()
		if ecosystem == "" || name == "" {
			res.AddWarning("affected entry missing package ecosystem/name, skipped")
			continue
		}
		basePurlID, err := s.FindOrCreateBasePurl(ctx, tx, "generic", ecosystem, name)
		if err != nil {
			return ingest.Result{}, fmt.Errorf("ingest/osv: %w", err)
		}

		for _, rng := range affected.Get("ranges").Array() {
			typ := rng.Get("type").String()
			var scheme vexgraph.VersionScheme
			switch typ {
			case "ECOSYSTEM":
				scheme = vexgraph.SchemeEcosystem
			case "SEMVER":
				scheme = vexgraph.SchemeSemver
			default:
				continue // GIT ranges are out of scope for PackageStatus derivation here
			}

			var introduced, fixed string
			for _, ev := range rng.Get("events").Array() {
				if v := ev.Get("introduced"); v.Exists() {
					introduced = v.String()
				}
				if v := ev.Get("fixed"); v.Exists() {
					fixed = v.String()
				}
			}

			affectedRange := vexgraph.VersionRange{Scheme: scheme}
			if introduced != "" && introduced != "0" {
				affectedRange.LowVersion, affectedRange.LowInclusive = introduced, true
			}
			if fixed != "" {
				affectedRange.HighVersion, affectedRange.HighInclusive = fixed, false
			}
			affectedRangeID, err := s.UpsertVersionRange(ctx, tx, affectedRange)
			if err != nil {
				return ingest.Result{}, fmt.Errorf("ingest/osv: %w", err)
			}
			if err := s.CreatePackageStatus(ctx, tx, vexgraph.PackageStatus{
				AdvisoryID:      advID,
				VulnerabilityID: id,
				StatusID:        "affected",
				BasePurlID:      basePurlID,
				VersionRangeID:  affectedRangeID,
			}); err != nil {
				return ingest.Result{}, fmt.Errorf("ingest/osv: %w", err)
			}

			if fixed != "" {
				fixedRange := vexgraph.VersionRange{
					Scheme: scheme, LowVersion: fixed, LowInclusive: true,
					HighVersion: fixed, HighInclusive: true,
				}
				fixedRangeID, err := s.UpsertVersionRange(ctx, tx, fixedRange)
				if err != nil {
					return ingest.Result{}, fmt.Errorf("ingest/osv: %w", err)
				}
				if err := s.CreatePackageStatus(ctx, tx, vexgraph.PackageStatus{
					AdvisoryID:      advID,
					VulnerabilityID: id,
					StatusID:        "fixed",
					BasePurlID:      basePurlID,
					VersionRangeID:  fixedRangeID,
				}); err != nil {
					return ingest.Result{}, fmt.Errorf("ingest/osv: %w", err)
				}
			}
		}
	}

	return res, nil
}

func parseTimePtr(doc gjson.Result, key string) *time.Time {
	v := doc.Get(key)
	if !v.Exists() {
		return nil
	}
	return parseTime(v.String())
}
