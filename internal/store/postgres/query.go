package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"
	"golang.org/x/sync/errgroup"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/cpe"
	"github.com/quay/vexgraph/internal/version"
)

// LabelFilter selects rows whose labels are a superset of match, using
// Postgres's jsonb containment operator so filtering happens server-side
// against the gin index rather than by scanning every row into Go.
type LabelFilter struct {
	Match vexgraph.Labels
}

// AdvisoryIDsByLabel returns the ids of advisories whose labels contain
// every key/value pair in f.Match.
func (s *Store) AdvisoryIDsByLabel(ctx context.Context, f LabelFilter) ([]vexgraph.Id, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.AdvisoryIDsByLabel")
	b, err := json.Marshal(f.Match)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.AdvisoryIDsByLabel", Kind: vexgraph.ErrValidation, Inner: err}
	}
	const q = `SELECT id FROM advisory WHERE labels @> $1::jsonb AND NOT deprecated;`

	start := time.Now()
	rows, err := s.pool.Query(ctx, q, b)
	observe("advisory.by_label", start)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.AdvisoryIDsByLabel", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer rows.Close()

	var out []vexgraph.Id
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.AdvisoryIDsByLabel", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		out = append(out, vexgraph.NewUUIDId(u))
	}
	if err := rows.Err(); err != nil {
		return nil, &vexgraph.Error{Op: "postgres.AdvisoryIDsByLabel", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return out, nil
}

// SbomIDsByLabel returns the ids of SBOMs whose labels contain every
// key/value pair in f.Match.
func (s *Store) SbomIDsByLabel(ctx context.Context, f LabelFilter) ([]vexgraph.Id, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.SbomIDsByLabel")
	b, err := json.Marshal(f.Match)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.SbomIDsByLabel", Kind: vexgraph.ErrValidation, Inner: err}
	}
	const q = `SELECT sbom_id FROM sbom WHERE labels @> $1::jsonb;`

	start := time.Now()
	rows, err := s.pool.Query(ctx, q, b)
	observe("sbom.by_label", start)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.SbomIDsByLabel", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer rows.Close()

	var out []vexgraph.Id
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.SbomIDsByLabel", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		out = append(out, vexgraph.NewUUIDId(u))
	}
	if err := rows.Err(); err != nil {
		return nil, &vexgraph.Error{Op: "postgres.SbomIDsByLabel", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return out, nil
}

// ListOptions bounds a List* query's page, per spec §6's Query API.
type ListOptions struct {
	Limit  int
	Offset int
}

func (o ListOptions) limit() int32 {
	switch {
	case o.Limit <= 0:
		return 100
	case o.Limit > 500:
		return 500
	default:
		return int32(o.Limit)
	}
}

func (o ListOptions) offset() int32 {
	if o.Offset < 0 {
		return 0
	}
	return int32(o.Offset)
}

func scanLabels(b []byte) (vexgraph.Labels, error) {
	if len(b) == 0 {
		return vexgraph.Labels{}, nil
	}
	var l vexgraph.Labels
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, err
	}
	return l, nil
}

// GetSbom fetches one Sbom by id.
func (s *Store) GetSbom(ctx context.Context, id vexgraph.Id) (vexgraph.Sbom, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.GetSbom")
	const q = `SELECT sbom_id, document_id, published, authors, labels, source_document_id FROM sbom WHERE sbom_id = $1;`

	start := time.Now()
	var sb vexgraph.Sbom
	var sbomU, srcU uuid.UUID
	var labels []byte
	err := s.pool.QueryRow(ctx, q, idArg(id)).Scan(&sbomU, &sb.DocumentID, &sb.Published, &sb.Authors, &labels, &srcU)
	observe("sbom.get", start)
	switch err {
	case nil:
	case pgx.ErrNoRows:
		return vexgraph.Sbom{}, &vexgraph.Error{Op: "postgres.GetSbom", Kind: vexgraph.ErrNotFound}
	default:
		return vexgraph.Sbom{}, &vexgraph.Error{Op: "postgres.GetSbom", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	sb.SbomID = vexgraph.NewUUIDId(sbomU)
	sb.SourceDocumentID = vexgraph.NewUUIDId(srcU)
	if sb.Labels, err = scanLabels(labels); err != nil {
		return vexgraph.Sbom{}, &vexgraph.Error{Op: "postgres.GetSbom", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return sb, nil
}

// ListSboms pages through every Sbom, ordered by document_id for a stable
// page boundary.
func (s *Store) ListSboms(ctx context.Context, opts ListOptions) ([]vexgraph.Sbom, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.ListSboms")
	const q = `SELECT sbom_id, document_id, published, authors, labels, source_document_id
		FROM sbom ORDER BY document_id LIMIT $1 OFFSET $2;`

	start := time.Now()
	rows, err := s.pool.Query(ctx, q, opts.limit(), opts.offset())
	observe("sbom.list", start)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.ListSboms", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer rows.Close()

	var out []vexgraph.Sbom
	for rows.Next() {
		var sb vexgraph.Sbom
		var sbomU, srcU uuid.UUID
		var labels []byte
		if err := rows.Scan(&sbomU, &sb.DocumentID, &sb.Published, &sb.Authors, &labels, &srcU); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.ListSboms", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		sb.SbomID = vexgraph.NewUUIDId(sbomU)
		sb.SourceDocumentID = vexgraph.NewUUIDId(srcU)
		if sb.Labels, err = scanLabels(labels); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.ListSboms", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		out = append(out, sb)
	}
	if err := rows.Err(); err != nil {
		return nil, &vexgraph.Error{Op: "postgres.ListSboms", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return out, nil
}

// GetAdvisory fetches one Advisory by id.
func (s *Store) GetAdvisory(ctx context.Context, id vexgraph.Id) (vexgraph.Advisory, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.GetAdvisory")
	const q = `SELECT id, identifier, version, document_id, issuer, published, modified, withdrawn,
		title, labels, deprecated, source_document_id FROM advisory WHERE id = $1;`

	start := time.Now()
	var a vexgraph.Advisory
	var u, srcU uuid.UUID
	var version, issuer, title *string
	var labels []byte
	err := s.pool.QueryRow(ctx, q, idArg(id)).Scan(&u, &a.Identifier, &version, &a.DocumentID, &issuer,
		&a.Published, &a.Modified, &a.Withdrawn, &title, &labels, &a.Deprecated, &srcU)
	observe("advisory.get", start)
	switch err {
	case nil:
	case pgx.ErrNoRows:
		return vexgraph.Advisory{}, &vexgraph.Error{Op: "postgres.GetAdvisory", Kind: vexgraph.ErrNotFound}
	default:
		return vexgraph.Advisory{}, &vexgraph.Error{Op: "postgres.GetAdvisory", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	a.ID = vexgraph.NewUUIDId(u)
	a.SourceDocumentID = vexgraph.NewUUIDId(srcU)
	if version != nil {
		a.Version = *version
	}
	if issuer != nil {
		a.Issuer = *issuer
	}
	if title != nil {
		a.Title = *title
	}
	if a.Labels, err = scanLabels(labels); err != nil {
		return vexgraph.Advisory{}, &vexgraph.Error{Op: "postgres.GetAdvisory", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return a, nil
}

// ListAdvisories pages through non-deprecated advisories, ordered by
// identifier.
func (s *Store) ListAdvisories(ctx context.Context, opts ListOptions) ([]vexgraph.Advisory, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.ListAdvisories")
	const q = `SELECT id, identifier, version, document_id, issuer, published, modified, withdrawn,
		title, labels, deprecated, source_document_id FROM advisory
		WHERE NOT deprecated ORDER BY identifier LIMIT $1 OFFSET $2;`

	start := time.Now()
	rows, err := s.pool.Query(ctx, q, opts.limit(), opts.offset())
	observe("advisory.list", start)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.ListAdvisories", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer rows.Close()

	var out []vexgraph.Advisory
	for rows.Next() {
		var a vexgraph.Advisory
		var u, srcU uuid.UUID
		var ver, issuer, title *string
		var labels []byte
		if err := rows.Scan(&u, &a.Identifier, &ver, &a.DocumentID, &issuer,
			&a.Published, &a.Modified, &a.Withdrawn, &title, &labels, &a.Deprecated, &srcU); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.ListAdvisories", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		a.ID = vexgraph.NewUUIDId(u)
		a.SourceDocumentID = vexgraph.NewUUIDId(srcU)
		if ver != nil {
			a.Version = *ver
		}
		if issuer != nil {
			a.Issuer = *issuer
		}
		if title != nil {
			a.Title = *title
		}
		if a.Labels, err = scanLabels(labels); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.ListAdvisories", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &vexgraph.Error{Op: "postgres.ListAdvisories", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return out, nil
}

// GetVulnerability fetches one Vulnerability by its CVE/GHSA/etc id.
func (s *Store) GetVulnerability(ctx context.Context, id string) (vexgraph.Vulnerability, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.GetVulnerability")
	const q = `SELECT id, title, published, modified, withdrawn, cwes FROM vulnerability WHERE id = $1;`

	start := time.Now()
	var v vexgraph.Vulnerability
	var title *string
	err := s.pool.QueryRow(ctx, q, id).Scan(&v.ID, &title, &v.Published, &v.Modified, &v.Withdrawn, &v.CWEs)
	observe("vulnerability.get", start)
	switch err {
	case nil:
	case pgx.ErrNoRows:
		return vexgraph.Vulnerability{}, &vexgraph.Error{Op: "postgres.GetVulnerability", Kind: vexgraph.ErrNotFound}
	default:
		return vexgraph.Vulnerability{}, &vexgraph.Error{Op: "postgres.GetVulnerability", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	if title != nil {
		v.Title = *title
	}
	return v, nil
}

// ListVulnerabilities pages through every Vulnerability, ordered by id.
func (s *Store) ListVulnerabilities(ctx context.Context, opts ListOptions) ([]vexgraph.Vulnerability, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.ListVulnerabilities")
	const q = `SELECT id, title, published, modified, withdrawn, cwes FROM vulnerability
		ORDER BY id LIMIT $1 OFFSET $2;`

	start := time.Now()
	rows, err := s.pool.Query(ctx, q, opts.limit(), opts.offset())
	observe("vulnerability.list", start)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.ListVulnerabilities", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer rows.Close()

	var out []vexgraph.Vulnerability
	for rows.Next() {
		var v vexgraph.Vulnerability
		var title *string
		if err := rows.Scan(&v.ID, &title, &v.Published, &v.Modified, &v.Withdrawn, &v.CWEs); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.ListVulnerabilities", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		if title != nil {
			v.Title = *title
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &vexgraph.Error{Op: "postgres.ListVulnerabilities", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return out, nil
}

// GetLicense fetches one normalized License by id.
func (s *Store) GetLicense(ctx context.Context, id vexgraph.Id) (vexgraph.License, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.GetLicense")
	const q = `SELECT id, text FROM license WHERE id = $1;`

	start := time.Now()
	var l vexgraph.License
	var u uuid.UUID
	err := s.pool.QueryRow(ctx, q, idArg(id)).Scan(&u, &l.Text)
	observe("license.get", start)
	switch err {
	case nil:
	case pgx.ErrNoRows:
		return vexgraph.License{}, &vexgraph.Error{Op: "postgres.GetLicense", Kind: vexgraph.ErrNotFound}
	default:
		return vexgraph.License{}, &vexgraph.Error{Op: "postgres.GetLicense", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	l.ID = vexgraph.NewUUIDId(u)
	return l, nil
}

// ListLicenses pages through every normalized License, ordered by text.
func (s *Store) ListLicenses(ctx context.Context, opts ListOptions) ([]vexgraph.License, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.ListLicenses")
	const q = `SELECT id, text FROM license ORDER BY text LIMIT $1 OFFSET $2;`

	start := time.Now()
	rows, err := s.pool.Query(ctx, q, opts.limit(), opts.offset())
	observe("license.list", start)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.ListLicenses", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer rows.Close()

	var out []vexgraph.License
	for rows.Next() {
		var l vexgraph.License
		var u uuid.UUID
		if err := rows.Scan(&u, &l.Text); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.ListLicenses", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		l.ID = vexgraph.NewUUIDId(u)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, &vexgraph.Error{Op: "postgres.ListLicenses", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return out, nil
}

// GetWeakness fetches one CWE catalog entry by id (e.g. "CWE-79").
func (s *Store) GetWeakness(ctx context.Context, id string) (vexgraph.Weakness, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.GetWeakness")
	const q = `SELECT id, description, extended_description, child_of, parent_of, starts_with,
		can_follow, can_precede, required_by, requires, can_also_be, peer_of
		FROM weakness WHERE id = $1;`

	start := time.Now()
	var w vexgraph.Weakness
	var desc, extDesc *string
	err := s.pool.QueryRow(ctx, q, id).Scan(&w.ID, &desc, &extDesc, &w.ChildOf, &w.ParentOf, &w.StartsWith,
		&w.CanFollow, &w.CanPrecede, &w.RequiredBy, &w.Requires, &w.CanAlsoBe, &w.PeerOf)
	observe("weakness.get", start)
	switch err {
	case nil:
	case pgx.ErrNoRows:
		return vexgraph.Weakness{}, &vexgraph.Error{Op: "postgres.GetWeakness", Kind: vexgraph.ErrNotFound}
	default:
		return vexgraph.Weakness{}, &vexgraph.Error{Op: "postgres.GetWeakness", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	if desc != nil {
		w.Description = *desc
	}
	if extDesc != nil {
		w.ExtendedDescription = *extDesc
	}
	return w, nil
}

// ListWeaknesses pages through the CWE catalog, ordered by id.
func (s *Store) ListWeaknesses(ctx context.Context, opts ListOptions) ([]vexgraph.Weakness, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.ListWeaknesses")
	const q = `SELECT id, description, extended_description, child_of, parent_of, starts_with,
		can_follow, can_precede, required_by, requires, can_also_be, peer_of
		FROM weakness ORDER BY id LIMIT $1 OFFSET $2;`

	start := time.Now()
	rows, err := s.pool.Query(ctx, q, opts.limit(), opts.offset())
	observe("weakness.list", start)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.ListWeaknesses", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer rows.Close()

	var out []vexgraph.Weakness
	for rows.Next() {
		var w vexgraph.Weakness
		var desc, extDesc *string
		if err := rows.Scan(&w.ID, &desc, &extDesc, &w.ChildOf, &w.ParentOf, &w.StartsWith,
			&w.CanFollow, &w.CanPrecede, &w.RequiredBy, &w.Requires, &w.CanAlsoBe, &w.PeerOf); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.ListWeaknesses", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		if desc != nil {
			w.Description = *desc
		}
		if extDesc != nil {
			w.ExtendedDescription = *extDesc
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, &vexgraph.Error{Op: "postgres.ListWeaknesses", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return out, nil
}

// RelatedNode is one edge connecting an SbomPackageRow to another node of
// the same SBOM graph.
type RelatedNode struct {
	NodeID       string
	Relationship vexgraph.Relationship
	Incoming     bool
}

// SbomPackageRow is one package node of an SBOM, together with the other
// nodes it directly relates to, per spec §6's "SBOM packages with related
// packages."
type SbomPackageRow struct {
	NodeID  string
	Name    string
	Version string
	Purls   []string
	Cpes    []string
	Related []RelatedNode
}

func buildPackageRows(nodeRows []GraphNodeRow, edgeRows []GraphEdgeRow) []SbomPackageRow {
	related := make(map[string][]RelatedNode, len(nodeRows))
	for _, e := range edgeRows {
		related[e.LeftNodeID] = append(related[e.LeftNodeID], RelatedNode{NodeID: e.RightNodeID, Relationship: e.Relationship})
		related[e.RightNodeID] = append(related[e.RightNodeID], RelatedNode{NodeID: e.LeftNodeID, Relationship: e.Relationship, Incoming: true})
	}
	out := make([]SbomPackageRow, len(nodeRows))
	for i, n := range nodeRows {
		out[i] = SbomPackageRow{NodeID: n.NodeID, Name: n.Name, Version: n.Version, Purls: n.Purls, Cpes: n.Cpes, Related: related[n.NodeID]}
	}
	return out
}

// SbomPackages lists every package node of sbomID together with the nodes
// it directly relates to.
func (s *Store) SbomPackages(ctx context.Context, sbomID vexgraph.Id) ([]SbomPackageRow, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.SbomPackages")
	_, nodeRows, _, edgeRows, err := s.LoadSbomGraph(ctx, sbomID)
	if err != nil {
		return nil, err
	}
	return buildPackageRows(nodeRows, edgeRows), nil
}

// AdvisoryMatch is one (advisory, vulnerability, status) triple that
// applies to a node of an SBOM, discovered either by matching the node's
// purl against package_status's base_purl+version_range (MatchedVia
// "purl"), or by matching the node's CPE against product_status's context
// CPE via [cpe.Superset] (MatchedVia "cpe").
type AdvisoryMatch struct {
	NodeID          string
	AdvisoryID      vexgraph.Id
	VulnerabilityID string
	StatusID        string
	MatchedVia      string
}

// SbomDetails is one SBOM's full query-facing view: its metadata, every
// package node with related packages, and every advisory whose status
// applies to one of its nodes.
type SbomDetails struct {
	Meta       SbomMeta
	Packages   []SbomPackageRow
	Advisories []AdvisoryMatch
}

// productStatusCandidate is one product_status row decomposed to a WFN,
// loaded once per SbomDetails call rather than once per node.
type productStatusCandidate struct {
	advisoryID      vexgraph.Id
	vulnerabilityID string
	statusID        string
	wfn             cpe.WFN
}

func cpeValue(s string) cpe.Value {
	switch s {
	case "", "*":
		return cpe.Value{Kind: cpe.ValueAny}
	case "-":
		return cpe.Value{Kind: cpe.ValueNA}
	default:
		return cpe.Value{Kind: cpe.ValueSet, V: s}
	}
}

func cpeToWFN(c vexgraph.Cpe) cpe.WFN {
	var w cpe.WFN
	w.Attr[cpe.Part] = cpeValue(c.Part)
	w.Attr[cpe.Vendor] = cpeValue(c.Vendor)
	w.Attr[cpe.Product] = cpeValue(c.Product)
	w.Attr[cpe.Version] = cpeValue(c.Version)
	w.Attr[cpe.Update] = cpeValue(c.Update)
	w.Attr[cpe.Edition] = cpeValue(c.Edition)
	w.Attr[cpe.Language] = cpeValue(c.Language)
	return w
}

// productStatusCandidates loads every product_status row's advisory and
// context CPE. Wildcard CPE attribute matching has no SQL-pushdown form
// this schema supports, so every candidate is decomposed once here and
// matched against SBOM nodes in Go via cpe.Superset.
func (s *Store) productStatusCandidates(ctx context.Context) ([]productStatusCandidate, error) {
	const q = `SELECT ps.advisory_id, ps.vulnerability_id, ps.status_id,
		c.part, c.vendor, c.product, c.version, c.update_, c.edition, c.language
		FROM product_status ps JOIN cpe c ON c.id = ps.context_cpe_id;`

	start := time.Now()
	rows, err := s.pool.Query(ctx, q)
	observe("product_status.candidates", start)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.SbomDetails", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer rows.Close()

	var out []productStatusCandidate
	for rows.Next() {
		var advU uuid.UUID
		var pc productStatusCandidate
		var c vexgraph.Cpe
		if err := rows.Scan(&advU, &pc.vulnerabilityID, &pc.statusID,
			&c.Part, &c.Vendor, &c.Product, &c.Version, &c.Update, &c.Edition, &c.Language); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.SbomDetails", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		pc.advisoryID = vexgraph.NewUUIDId(advU)
		pc.wfn = cpeToWFN(c)
		out = append(out, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, &vexgraph.Error{Op: "postgres.SbomDetails", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return out, nil
}

// purlStatusMatches resolves every package_status row reachable from
// sbomID's purl refs, filtering candidates through version.Matches in Go
// since scheme-specific comparison isn't something a plain SQL predicate
// can express once schemes beyond lexical ordering are involved.
func (s *Store) purlStatusMatches(ctx context.Context, sbomID vexgraph.Id) ([]AdvisoryMatch, error) {
	const q = `
		SELECT spr.node_id, ps.advisory_id, ps.vulnerability_id, ps.status_id,
			vr.version_scheme, vr.low_version, vr.low_inclusive, vr.high_version, vr.high_inclusive,
			vp.version
		FROM sbom_package_purl_ref spr
		JOIN qualified_purl qp ON qp.id = spr.qualified_purl_id
		JOIN versioned_purl vp ON vp.id = qp.versioned_purl_id
		JOIN base_purl bp ON bp.id = vp.base_purl_id
		JOIN package_status ps ON ps.base_purl_id = bp.id
		JOIN version_range vr ON vr.id = ps.version_range_id
		WHERE spr.sbom_id = $1;`

	start := time.Now()
	rows, err := s.pool.Query(ctx, q, idArg(sbomID))
	observe("package_status.match", start)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.SbomDetails", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer rows.Close()

	var out []AdvisoryMatch
	for rows.Next() {
		var nodeID, vulnID, statusID, scheme, nodeVersion string
		var advU uuid.UUID
		var low, high *string
		var lowIncl, highIncl *bool
		if err := rows.Scan(&nodeID, &advU, &vulnID, &statusID, &scheme, &low, &lowIncl, &high, &highIncl, &nodeVersion); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.SbomDetails", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		rng := vexgraph.VersionRange{Scheme: vexgraph.VersionScheme(scheme)}
		if low != nil {
			rng.LowVersion = *low
			rng.LowInclusive = lowIncl != nil && *lowIncl
		}
		if high != nil {
			rng.HighVersion = *high
			rng.HighInclusive = highIncl != nil && *highIncl
		}
		if !version.Matches(rng.Scheme, nodeVersion, rng) {
			continue
		}
		out = append(out, AdvisoryMatch{
			NodeID: nodeID, AdvisoryID: vexgraph.NewUUIDId(advU), VulnerabilityID: vulnID,
			StatusID: statusID, MatchedVia: "purl",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &vexgraph.Error{Op: "postgres.SbomDetails", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return out, nil
}

// SbomDetails assembles sbomID's full query-facing view, per spec §6's
// "SBOM details including derived advisories (joined via product status +
// CPE superset matching)." The purl-based package_status match and the
// CPE-based product_status match run concurrently, since each is an
// independent read against the connection pool.
func (s *Store) SbomDetails(ctx context.Context, sbomID vexgraph.Id) (SbomDetails, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.SbomDetails")

	meta, nodeRows, _, edgeRows, err := s.LoadSbomGraph(ctx, sbomID)
	if err != nil {
		return SbomDetails{}, err
	}
	packages := buildPackageRows(nodeRows, edgeRows)

	var purlMatches []AdvisoryMatch
	var candidates []productStatusCandidate
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		purlMatches, err = s.purlStatusMatches(egCtx, sbomID)
		return err
	})
	eg.Go(func() (err error) {
		candidates, err = s.productStatusCandidates(egCtx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return SbomDetails{}, err
	}

	advisories := purlMatches
	for _, n := range nodeRows {
		for _, cs := range n.Cpes {
			nodeWFN, err := cpe.Unbind(cs)
			if err != nil {
				zlog.Debug(ctx).Str("node_id", n.NodeID).Str("cpe", cs).Msg("unparseable node cpe, skipped in advisory match")
				continue
			}
			for _, c := range candidates {
				if !cpe.Superset(c.wfn, nodeWFN) {
					continue
				}
				advisories = append(advisories, AdvisoryMatch{
					NodeID: n.NodeID, AdvisoryID: c.advisoryID, VulnerabilityID: c.vulnerabilityID,
					StatusID: c.statusID, MatchedVia: "cpe",
				})
			}
		}
	}

	return SbomDetails{Meta: meta, Packages: packages, Advisories: advisories}, nil
}
