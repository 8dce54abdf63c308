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

// CreateAdvisory inserts an Advisory row and returns its id. Callers are
// responsible for calling DeprecateAdvisories afterward (or batching many
// CreateAdvisory calls followed by one DeprecateAdvisories sweep).
func (s *Store) CreateAdvisory(ctx context.Context, tx pgx.Tx, a vexgraph.Advisory) (vexgraph.Id, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.CreateAdvisory", "identifier", a.Identifier)
	const ins = `INSERT INTO advisory
		(identifier, version, document_id, issuer, published, modified, withdrawn, title, labels, source_document_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id;`

	labels, err := json.Marshal(a.Labels)
	if err != nil {
		return vexgraph.Id{}, &vexgraph.Error{Op: "postgres.CreateAdvisory", Kind: vexgraph.ErrValidation, Inner: err}
	}

	start := time.Now()
	var u uuid.UUID
	err = tx.QueryRow(ctx, ins,
		a.Identifier, nullIfEmpty(a.Version), a.DocumentID, nullIfEmpty(a.Issuer),
		a.Published, a.Modified, a.Withdrawn, nullIfEmpty(a.Title), labels, idArg(a.SourceDocumentID),
	).Scan(&u)
	observe("advisory.insert", start)
	if err != nil {
		return vexgraph.Id{}, &vexgraph.Error{Op: "postgres.CreateAdvisory", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return vexgraph.NewUUIDId(u), nil
}

// DeprecateAdvisories runs the set-oriented deprecation sweep described in
// spec §4.6/§9: within each identifier group, every row except the one
// with the maximum modified timestamp is marked deprecated. Passing an
// empty identifier sweeps every group, matching the "called globally when
// invoked with no argument" contract; SPEC_FULL.md §12 exposes this as an
// independently callable operation, not just an ingest side effect.
func (s *Store) DeprecateAdvisories(ctx context.Context, identifier string) error {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.DeprecateAdvisories", "identifier", identifier)
	const sweep = `
	WITH ranked AS (
		SELECT id, modified = MAX(modified) OVER (PARTITION BY identifier) AS is_latest
		FROM advisory
		WHERE ($1 = '' OR identifier = $1)
	)
	UPDATE advisory SET deprecated = NOT ranked.is_latest
	FROM ranked
	WHERE advisory.id = ranked.id AND advisory.deprecated = ranked.is_latest;`

	start := time.Now()
	tag, err := s.pool.Exec(ctx, sweep, identifier)
	observe("advisory.deprecate", start)
	if err != nil {
		return &vexgraph.Error{Op: "postgres.DeprecateAdvisories", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	zlog.Debug(ctx).Int64("rows", tag.RowsAffected()).Msg("deprecation sweep complete")
	return nil
}

// FindOrCreateVulnerability ensures a Vulnerability row exists for id,
// updating title/published/modified/withdrawn/cwes if it already does.
func (s *Store) FindOrCreateVulnerability(ctx context.Context, tx pgx.Tx, v vexgraph.Vulnerability) error {
	const upsert = `INSERT INTO vulnerability (id, title, published, modified, withdrawn, cwes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = COALESCE(EXCLUDED.title, vulnerability.title),
			published = COALESCE(EXCLUDED.published, vulnerability.published),
			modified = COALESCE(EXCLUDED.modified, vulnerability.modified),
			withdrawn = COALESCE(EXCLUDED.withdrawn, vulnerability.withdrawn),
			cwes = CASE WHEN array_length(EXCLUDED.cwes, 1) > 0 THEN EXCLUDED.cwes ELSE vulnerability.cwes END;`

	start := time.Now()
	_, err := tx.Exec(ctx, upsert, v.ID, nullIfEmpty(v.Title), v.Published, v.Modified, v.Withdrawn, v.CWEs)
	observe("vulnerability.upsert", start)
	if err != nil {
		return &vexgraph.Error{Op: "postgres.FindOrCreateVulnerability", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return nil
}

// CreateAdvisoryVulnerability links an Advisory to a Vulnerability.
func (s *Store) CreateAdvisoryVulnerability(ctx context.Context, tx pgx.Tx, av vexgraph.AdvisoryVulnerability) error {
	const ins = `INSERT INTO advisory_vulnerability
		(advisory_id, vulnerability_id, title, summary, description, reserved_date, discovery_date, release_date, cwes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (advisory_id, vulnerability_id) DO NOTHING;`
	start := time.Now()
	_, err := tx.Exec(ctx, ins, idArg(av.AdvisoryID), av.VulnerabilityID, nullIfEmpty(av.Title), nullIfEmpty(av.Summary),
		nullIfEmpty(av.Description), av.ReservedDate, av.DiscoveryDate, av.ReleaseDate, av.CWEs)
	observe("advisory_vulnerability.insert", start)
	if err != nil {
		return &vexgraph.Error{Op: "postgres.CreateAdvisoryVulnerability", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return nil
}

// CreatePackageStatus binds a (package, version-range, optional context
// CPE) tuple to a status for an (advisory, vulnerability) pair.
func (s *Store) CreatePackageStatus(ctx context.Context, tx pgx.Tx, ps vexgraph.PackageStatus) error {
	const ins = `INSERT INTO package_status
		(advisory_id, vulnerability_id, status_id, base_purl_id, version_range_id, context_cpe_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (advisory_id, vulnerability_id, status_id, base_purl_id, version_range_id, context_cpe_id) DO NOTHING;`
	start := time.Now()
	var contextCpe any
	if ps.ContextCpeID != nil {
		contextCpe = idArg(*ps.ContextCpeID)
	}
	_, err := tx.Exec(ctx, ins, idArg(ps.AdvisoryID), ps.VulnerabilityID, ps.StatusID, idArg(ps.BasePurlID), idArg(ps.VersionRangeID), contextCpe)
	observe("package_status.insert", start)
	if err != nil {
		return &vexgraph.Error{Op: "postgres.CreatePackageStatus", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return nil
}

// CreateProductStatus binds a (product CPE, free-form package name) tuple
// to a status, used when the upstream advisory names only a product.
func (s *Store) CreateProductStatus(ctx context.Context, tx pgx.Tx, ps vexgraph.ProductStatus) error {
	const ins = `INSERT INTO product_status
		(advisory_id, vulnerability_id, status_id, context_cpe_id, package)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (advisory_id, vulnerability_id, status_id, context_cpe_id, package) DO NOTHING;`
	start := time.Now()
	_, err := tx.Exec(ctx, ins, idArg(ps.AdvisoryID), ps.VulnerabilityID, ps.StatusID, idArg(ps.ContextCpeID), ps.Package)
	observe("product_status.insert", start)
	if err != nil {
		return &vexgraph.Error{Op: "postgres.CreateProductStatus", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return nil
}
