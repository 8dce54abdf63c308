// Package csaf loads CSAF (Common Security Advisory Framework) JSON
// documents, per spec §4.7. Product-id resolution is untyped JSON walking
// (gjson) rather than typed structs, per SPEC_FULL's "dynamic JSON
// payloads" note (spec §9/§11).
package csaf

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"
	"github.com/tidwall/gjson"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/ingest"
	"github.com/quay/vexgraph/internal/purl"
	"github.com/quay/vexgraph/internal/store/postgres"
)

// product is what a product id resolves to after one backtrace over the
// product tree: an optional CPE, an optional purl, and the display name
// assembled from the branch chain (vendor/product_name/product_version).
type product struct {
	cpe, purl, name string
}

// ProductResolver is SPEC_FULL §12's named reusable type: it builds a
// product-id → product map in one O(n) pass over product_tree (branches
// plus relationships' full_product_name entries), then answers Resolve
// in amortized O(1), instead of re-walking the tree per vulnerability
// status entry the way a naive loader would.
type ProductResolver struct {
	products map[string]product
}

// NewProductResolver builds the backtrace cache for doc's product_tree.
func NewProductResolver(doc gjson.Result) *ProductResolver {
	r := &ProductResolver{products: make(map[string]product)}
	tree := doc.Get("product_tree")
	r.walkBranches(tree.Get("branches"), "")
	for _, rel := range tree.Get("relationships").Array() {
		fpn := rel.Get("full_product_name")
		id := fpn.Get("product_id").String()
		if id == "" {
			continue
		}
		r.products[id] = product{
			name: fpn.Get("name").String(),
			cpe:  fpn.Get("product_identification_helper.cpe").String(),
			purl: fpn.Get("product_identification_helper.purl").String(),
		}
	}
	return r
}

func (r *ProductResolver) walkBranches(branches gjson.Result, namePrefix string) {
	for _, b := range branches.Array() {
		name := b.Get("name").String()
		chain := name
		if namePrefix != "" {
			chain = namePrefix + " " + name
		}
		if p := b.Get("product"); p.Exists() {
			id := p.Get("product_id").String()
			if id != "" {
				r.products[id] = product{
					name: chain,
					cpe:  p.Get("product_identification_helper.cpe").String(),
					purl: p.Get("product_identification_helper.purl").String(),
				}
			}
		}
		if sub := b.Get("branches"); sub.Exists() {
			r.walkBranches(sub, chain)
		}
	}
}

// Resolve returns the product a product id maps to, if known.
func (r *ProductResolver) Resolve(productID string) (product, bool) {
	p, ok := r.products[productID]
	return p, ok
}

var statusSlug = map[string]string{
	"fixed":               "fixed",
	"first_fixed":         "fixed",
	"recommended":         "fixed",
	"known_affected":      "affected",
	"first_affected":      "affected",
	"known_not_affected":  "known_not_affected",
	"under_investigation": "under_investigation",
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

// Load ingests one CSAF document: an Advisory for the document's own
// tracking id, a Vulnerability/AdvisoryVulnerability per entry in
// "vulnerabilities", and a PackageStatus or ProductStatus for every
// product id named under each vulnerability's product_status sets.
func Load(ctx context.Context, s *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, sourceDocID vexgraph.Id) (ingest.Result, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ingest.csaf")
	if !gjson.ValidBytes(raw) {
		return ingest.Result{}, &vexgraph.Error{Op: "csaf.Load", Kind: vexgraph.ErrInputParse, Message: "invalid JSON"}
	}
	doc := gjson.ParseBytes(raw)

	docID := doc.Get("document.tracking.id").String()
	if docID == "" {
		return ingest.Result{}, &vexgraph.Error{Op: "csaf.Load", Kind: vexgraph.ErrInputParse, Message: "missing document.tracking.id"}
	}
	res := ingest.Result{DocumentID: docID}

	adv := vexgraph.Advisory{
		Identifier:       docID,
		DocumentID:       sourceDocID,
		Published:        parseTime(doc.Get("document.tracking.initial_release_date").String()),
		Modified:         parseTime(doc.Get("document.tracking.current_release_date").String()),
		Title:            doc.Get("document.title").String(),
		Labels:           labels,
		SourceDocumentID: sourceDocID,
	}
	advID, err := s.CreateAdvisory(ctx, tx, adv)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/csaf: %w", err)
	}
	res.ID = advID

	resolver := NewProductResolver(doc)
	pc := s.NewPurlCreator()

	type pendingStatus struct {
		vulnID, statusSlug, productID string
	}
	var pending []pendingStatus
	var cveIDs []string

	for _, vuln := range doc.Get("vulnerabilities").Array() {
		cve := vuln.Get("cve").String()
		if cve == "" {
			res.AddWarning("vulnerability entry with no cve id skipped")
			continue
		}
		cveIDs = append(cveIDs, cve)
		if err := s.FindOrCreateVulnerability(ctx, tx, vexgraph.Vulnerability{ID: cve}); err != nil {
			return ingest.Result{}, fmt.Errorf("ingest/csaf: %w", err)
		}
		if err := s.CreateAdvisoryVulnerability(ctx, tx, vexgraph.AdvisoryVulnerability{
			AdvisoryID: advID, VulnerabilityID: cve,
		}); err != nil {
			return ingest.Result{}, fmt.Errorf("ingest/csaf: %w", err)
		}

		ps := vuln.Get("product_status")
		for slug := range statusSlug {
			for _, id := range ps.Get(slug).Array() {
				pid := id.String()
				if _, ok := resolver.Resolve(pid); !ok {
					res.AddWarning("%s: unresolvable product id %q under %q", cve, pid, slug)
					continue
				}
				pending = append(pending, pendingStatus{cve, statusSlug[slug], pid})
				if p, _ := resolver.Resolve(pid); p.purl != "" {
					if _, err := ingest.QueuePurl(pc, p.purl); err != nil {
						res.AddWarning("%s: %v", cve, err)
					}
				}
			}
		}
	}

	if _, err := pc.Flush(ctx, tx); err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/csaf: %w", err)
	}

	for _, p := range pending {
		prod, _ := resolver.Resolve(p.productID)
		genericRange := vexgraph.VersionRange{Scheme: vexgraph.SchemeGeneric}

		switch {
		case prod.purl != "":
			d, err := purl.Parse(prod.purl)
			if err != nil {
				res.AddWarning("%s: %v", p.vulnID, err)
				continue
			}
			basePurlID, err := s.FindOrCreateBasePurl(ctx, tx, d.Type, d.Namespace, d.Name)
			if err != nil {
				return ingest.Result{}, fmt.Errorf("ingest/csaf: %w", err)
			}
			rangeID, err := s.UpsertVersionRange(ctx, tx, genericRange)
			if err != nil {
				return ingest.Result{}, fmt.Errorf("ingest/csaf: %w", err)
			}
			if err := s.CreatePackageStatus(ctx, tx, vexgraph.PackageStatus{
				AdvisoryID: advID, VulnerabilityID: p.vulnID, StatusID: p.statusSlug,
				BasePurlID: basePurlID, VersionRangeID: rangeID,
			}); err != nil {
				return ingest.Result{}, fmt.Errorf("ingest/csaf: %w", err)
			}
		case prod.cpe != "":
			cc := s.NewCpeCreator()
			key, err := ingest.QueueCpe(cc, prod.cpe)
			if err != nil {
				res.AddWarning("%s: %v", p.vulnID, err)
				continue
			}
			cpeIDs, err := cc.Flush(ctx, tx)
			if err != nil {
				return ingest.Result{}, fmt.Errorf("ingest/csaf: %w", err)
			}
			cpeID, ok := cpeIDs[key]
			if !ok {
				res.AddWarning("%s: cpe %q did not resolve after flush", p.vulnID, prod.cpe)
				continue
			}
			if err := s.CreateProductStatus(ctx, tx, vexgraph.ProductStatus{
				AdvisoryID: advID, VulnerabilityID: p.vulnID, StatusID: p.statusSlug,
				ContextCpeID: cpeID, Package: prod.name,
			}); err != nil {
				return ingest.Result{}, fmt.Errorf("ingest/csaf: %w", err)
			}
		default:
			res.AddWarning("%s: product %q has neither purl nor cpe, skipped", p.vulnID, p.productID)
		}
	}

	return res, nil
}

// canonicalize mirrors ingest.QueuePurl's canonicalization so pending
// entries can look their id up in PurlCreator.Flush's result map without
// re-parsing.
func canonicalize(s string) string {
	c, err := ingest.CanonicalPurl(s)
	if err != nil {
		return s
	}
	return c
}
