package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
)

// FindOrCreateSbom implements the same digest-idempotence shape as
// FindOrCreateSourceDocument, keyed on the SBOM's own document id rather
// than a content hash, per C6's "Sbom row, unique per document_id" rule.
func (s *Store) FindOrCreateSbom(ctx context.Context, tx pgx.Tx, sb vexgraph.Sbom) (vexgraph.Id, bool, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.FindOrCreateSbom")
	const (
		find = `SELECT sbom_id FROM sbom WHERE document_id = $1;`
		ins  = `INSERT INTO sbom (document_id, published, authors, labels, source_document_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (document_id) DO NOTHING RETURNING sbom_id;`
	)

	labels, err := json.Marshal(sb.Labels)
	if err != nil {
		return vexgraph.Id{}, false, &vexgraph.Error{Op: "postgres.FindOrCreateSbom", Kind: vexgraph.ErrValidation, Inner: err}
	}

	start := time.Now()
	var u uuid.UUID
	err = tx.QueryRow(ctx, find, sb.DocumentID).Scan(&u)
	observe("sbom.find", start)
	if err == nil {
		return vexgraph.NewUUIDId(u), true, nil
	}
	if err != pgx.ErrNoRows {
		return vexgraph.Id{}, false, &vexgraph.Error{Op: "postgres.FindOrCreateSbom", Kind: vexgraph.ErrDatabase, Inner: err}
	}

	start = time.Now()
	err = tx.QueryRow(ctx, ins, sb.DocumentID, sb.Published, sb.Authors, labels, idArg(sb.SourceDocumentID)).Scan(&u)
	observe("sbom.insert", start)
	switch err {
	case nil:
		return vexgraph.NewUUIDId(u), false, nil
	case pgx.ErrNoRows:
		if err := tx.QueryRow(ctx, find, sb.DocumentID).Scan(&u); err != nil {
			return vexgraph.Id{}, false, &vexgraph.Error{Op: "postgres.FindOrCreateSbom", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		return vexgraph.NewUUIDId(u), true, nil
	default:
		return vexgraph.Id{}, false, &vexgraph.Error{Op: "postgres.FindOrCreateSbom", Kind: vexgraph.ErrDatabase, Inner: err}
	}
}

// licenseNamespace anchors the deterministic id of a normalized SPDX
// license expression, mirroring versionRangeNamespace's role for ranges.
var licenseNamespace = uuid.MustParse("2a9a6e36-4e0c-4a0a-9b2a-7a6f6e1d9c3a")

// UpsertLicense normalizes text to its deterministic id and ensures a row
// exists for it.
func (s *Store) UpsertLicense(ctx context.Context, tx pgx.Tx, text string) (vexgraph.Id, error) {
	id := uuid.NewSHA1(licenseNamespace, []byte(text))
	const ins = `INSERT INTO license (id, text) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING;`
	start := time.Now()
	_, err := tx.Exec(ctx, ins, id, text)
	observe("license.upsert", start)
	if err != nil {
		return vexgraph.Id{}, &vexgraph.Error{Op: "postgres.UpsertLicense", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return vexgraph.NewUUIDId(id), nil
}

// sbomPackageEntry is one queued node of an SBOM graph: its identity, its
// optional version, and the purl/cpe/license ids already resolved by the
// caller (typically via PurlCreator/CpeCreator/UpsertLicense).
type sbomPackageEntry struct {
	nodeID, name, version string
	purlIDs, cpeIDs       []vexgraph.Id
	purlLicenses          []vexgraph.Id // license ids asserted against purlIDs[0]
	cpeLicenses           []vexgraph.Id // license ids asserted against cpeIDs[0]
}

// SbomPackageCreator accumulates {node_id, name, version?, refs[],
// licenses[]} tuples, per spec §4.6, flushing SbomNode, SbomPackage,
// SbomPackagePurlRef, SbomPackageCpeRef and the license assertion tables
// together so a single node's graph identity is never left half-written.
type SbomPackageCreator struct {
	s      *Store
	queued []sbomPackageEntry
}

// NewSbomPackageCreator returns an empty SbomPackageCreator bound to s.
func (s *Store) NewSbomPackageCreator() *SbomPackageCreator { return &SbomPackageCreator{s: s} }

// Queue adds one package node to the batch. version may be empty for
// nodes with no resolvable version. purlLicenses/cpeLicenses are asserted
// against the first element of purlIDs/cpeIDs respectively,
// matching the common case of one license set per node.
func (c *SbomPackageCreator) Queue(nodeID, name, version string, purlIDs, cpeIDs []vexgraph.Id, purlLicenses, cpeLicenses []vexgraph.Id) {
	c.queued = append(c.queued, sbomPackageEntry{nodeID, name, version, purlIDs, cpeIDs, purlLicenses, cpeLicenses})
}

// Flush writes every queued node under sbomID. Composite-key ON CONFLICT
// DO NOTHING makes the whole call idempotent against re-ingest of the
// same document.
func (c *SbomPackageCreator) Flush(ctx context.Context, tx pgx.Tx, sbomID vexgraph.Id) error {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.SbomPackageCreator.Flush")
	if len(c.queued) == 0 {
		return nil
	}

	const (
		insNode       = `INSERT INTO sbom_node (sbom_id, node_id, name) VALUES ($1, $2, $3) ON CONFLICT (sbom_id, node_id) DO NOTHING;`
		insPkg        = `INSERT INTO sbom_package (sbom_id, node_id, version) VALUES ($1, $2, $3) ON CONFLICT (sbom_id, node_id) DO NOTHING;`
		insPurlRef    = `INSERT INTO sbom_package_purl_ref (sbom_id, node_id, qualified_purl_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING;`
		insCpeRef     = `INSERT INTO sbom_package_cpe_ref (sbom_id, node_id, cpe_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING;`
		insPurlLicAsn = `INSERT INTO purl_license_assertion (sbom_id, qualified_purl_id, license_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING;`
		insCpeLicAsn  = `INSERT INTO cpe_license_assertion (sbom_id, cpe_id, license_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING;`
	)

	start := time.Now()
	batcher := newInsertBatcher(tx, 500, time.Minute)
	for _, e := range c.queued {
		if err := batcher.Queue(ctx, insNode, idArg(sbomID), e.nodeID, e.name); err != nil {
			return &vexgraph.Error{Op: "SbomPackageCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
		}
	}
	if err := batcher.Done(ctx); err != nil {
		return &vexgraph.Error{Op: "SbomPackageCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	observe("sbom_node.insert", start)

	start = time.Now()
	batcher = newInsertBatcher(tx, 500, time.Minute)
	for _, e := range c.queued {
		if err := batcher.Queue(ctx, insPkg, idArg(sbomID), e.nodeID, nullIfEmpty(e.version)); err != nil {
			return &vexgraph.Error{Op: "SbomPackageCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
		}
	}
	if err := batcher.Done(ctx); err != nil {
		return &vexgraph.Error{Op: "SbomPackageCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	observe("sbom_package.insert", start)

	start = time.Now()
	batcher = newInsertBatcher(tx, 500, time.Minute)
	for _, e := range c.queued {
		for _, pid := range e.purlIDs {
			if err := batcher.Queue(ctx, insPurlRef, idArg(sbomID), e.nodeID, idArg(pid)); err != nil {
				return &vexgraph.Error{Op: "SbomPackageCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
			}
		}
		for _, cid := range e.cpeIDs {
			if err := batcher.Queue(ctx, insCpeRef, idArg(sbomID), e.nodeID, idArg(cid)); err != nil {
				return &vexgraph.Error{Op: "SbomPackageCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
			}
		}
		if len(e.purlIDs) > 0 {
			for _, lic := range e.purlLicenses {
				if err := batcher.Queue(ctx, insPurlLicAsn, idArg(sbomID), idArg(e.purlIDs[0]), idArg(lic)); err != nil {
					return &vexgraph.Error{Op: "SbomPackageCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
				}
			}
		}
		if len(e.cpeIDs) > 0 {
			for _, lic := range e.cpeLicenses {
				if err := batcher.Queue(ctx, insCpeLicAsn, idArg(sbomID), idArg(e.cpeIDs[0]), idArg(lic)); err != nil {
					return &vexgraph.Error{Op: "SbomPackageCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
				}
			}
		}
	}
	if err := batcher.Done(ctx); err != nil {
		return &vexgraph.Error{Op: "SbomPackageCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	observe("sbom_package_ref.insert", start)

	c.queued = c.queued[:0]
	return nil
}

// CreateExternalNode records a placeholder node resolved lazily at graph
// traversal time, per spec §4.6's external document reference handling.
func (s *Store) CreateExternalNode(ctx context.Context, tx pgx.Tx, n vexgraph.SbomExternalNode) error {
	const ins = `INSERT INTO sbom_external_node
		(sbom_id, node_id, external_type, external_document_id, external_node_id, discriminator)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sbom_id, node_id) DO NOTHING;`
	start := time.Now()
	_, err := tx.Exec(ctx, ins, idArg(n.SbomID), n.NodeID, n.ExternalType, n.ExternalDocumentID, n.ExternalNodeID, nullIfEmpty(n.Discriminator))
	observe("sbom_external_node.insert", start)
	if err != nil {
		return &vexgraph.Error{Op: "postgres.CreateExternalNode", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return nil
}

// CreatePackageLicenseAssertion records a package-level declared-license
// assertion (ClearlyDefined) that is not scoped to any one SBOM.
func (s *Store) CreatePackageLicenseAssertion(ctx context.Context, tx pgx.Tx, purlID, licenseID, sourceDocID vexgraph.Id) error {
	const ins = `INSERT INTO package_license_assertion (qualified_purl_id, license_id, source_document_id)
		VALUES ($1, $2, $3) ON CONFLICT (qualified_purl_id, license_id) DO NOTHING;`
	start := time.Now()
	_, err := tx.Exec(ctx, ins, idArg(purlID), idArg(licenseID), idArg(sourceDocID))
	observe("package_license_assertion.insert", start)
	if err != nil {
		return &vexgraph.Error{Op: "postgres.CreatePackageLicenseAssertion", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return nil
}
