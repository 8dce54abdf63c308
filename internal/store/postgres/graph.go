package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
)

// GraphNodeRow is one row of a loaded SBOM's node set, denormalized with
// every purl/cpe string the node carries so graph.LoadGraph never needs a
// second round trip per node.
type GraphNodeRow struct {
	NodeID  string
	Name    string
	Version string
	Purls   []string
	Cpes    []string
}

// GraphExternalRow is one cross-SBOM reference placeholder.
type GraphExternalRow struct {
	NodeID             string
	ExternalType       string
	ExternalDocumentID string
	ExternalNodeID     string
	Discriminator      string
}

// GraphEdgeRow is one relationship edge.
type GraphEdgeRow struct {
	LeftNodeID   string
	Relationship vexgraph.Relationship
	RightNodeID  string
}

// SbomMeta is the sbom-level metadata graph.LoadGraph attaches to every
// node it returns (spec §4.8's published/document_id fields).
type SbomMeta struct {
	DocumentID string
	Published  *time.Time
}

// LoadSbomGraph reads everything needed to assemble C8's in-memory graph
// for one SBOM: the sbom row itself, every node with its resolved purl/cpe
// strings, every external-node placeholder, and every relationship edge.
func (s *Store) LoadSbomGraph(ctx context.Context, sbomID vexgraph.Id) (SbomMeta, []GraphNodeRow, []GraphExternalRow, []GraphEdgeRow, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "postgres.LoadSbomGraph")
	const (
		metaQ = `SELECT document_id, published FROM sbom WHERE sbom_id = $1;`

		nodesQ = `
			SELECT n.node_id, n.name, COALESCE(p.version, ''),
				COALESCE(purls.purls, '{}'),
				COALESCE(cpes.cpes, '{}')
			FROM sbom_node n
			LEFT JOIN sbom_package p ON p.sbom_id = n.sbom_id AND p.node_id = n.node_id
			LEFT JOIN LATERAL (
				SELECT array_agg(qp.purl) AS purls
				FROM sbom_package_purl_ref r JOIN qualified_purl qp ON qp.id = r.qualified_purl_id
				WHERE r.sbom_id = n.sbom_id AND r.node_id = n.node_id
			) purls ON true
			LEFT JOIN LATERAL (
				SELECT array_agg(
					'cpe:2.3:' || c.part || ':' || c.vendor || ':' || c.product || ':' ||
					c.version || ':' || c.update_ || ':' || c.edition || ':' || c.language
				) AS cpes
				FROM sbom_package_cpe_ref r JOIN cpe c ON c.id = r.cpe_id
				WHERE r.sbom_id = n.sbom_id AND r.node_id = n.node_id
			) cpes ON true
			WHERE n.sbom_id = $1;`

		externalQ = `
			SELECT node_id, external_type, external_document_id, external_node_id, COALESCE(discriminator, '')
			FROM sbom_external_node WHERE sbom_id = $1;`

		edgesQ = `
			SELECT left_node_id, relationship, right_node_id
			FROM package_relates_to_package WHERE sbom_id = $1;`
	)

	var meta SbomMeta
	if err := s.pool.QueryRow(ctx, metaQ, idArg(sbomID)).Scan(&meta.DocumentID, &meta.Published); err != nil {
		if err == pgx.ErrNoRows {
			return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrNotFound, Message: "sbom not found"}
		}
		return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrDatabase, Inner: err}
	}

	nodeRows, err := s.pool.Query(ctx, nodesQ, idArg(sbomID))
	if err != nil {
		return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer nodeRows.Close()
	var nodes []GraphNodeRow
	for nodeRows.Next() {
		var n GraphNodeRow
		if err := nodeRows.Scan(&n.NodeID, &n.Name, &n.Version, &n.Purls, &n.Cpes); err != nil {
			return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		nodes = append(nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrDatabase, Inner: err}
	}

	extRows, err := s.pool.Query(ctx, externalQ, idArg(sbomID))
	if err != nil {
		return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer extRows.Close()
	var externals []GraphExternalRow
	for extRows.Next() {
		var e GraphExternalRow
		if err := extRows.Scan(&e.NodeID, &e.ExternalType, &e.ExternalDocumentID, &e.ExternalNodeID, &e.Discriminator); err != nil {
			return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		externals = append(externals, e)
	}
	if err := extRows.Err(); err != nil {
		return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrDatabase, Inner: err}
	}

	edgeRows, err := s.pool.Query(ctx, edgesQ, idArg(sbomID))
	if err != nil {
		return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer edgeRows.Close()
	var edges []GraphEdgeRow
	for edgeRows.Next() {
		var left, rel, right string
		if err := edgeRows.Scan(&left, &rel, &right); err != nil {
			return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		r, err := vexgraph.ParseRelationship(rel)
		if err != nil {
			return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		edges = append(edges, GraphEdgeRow{LeftNodeID: left, Relationship: r, RightNodeID: right})
	}
	if err := edgeRows.Err(); err != nil {
		return SbomMeta{}, nil, nil, nil, &vexgraph.Error{Op: "postgres.LoadSbomGraph", Kind: vexgraph.ErrDatabase, Inner: err}
	}

	return meta, nodes, externals, edges, nil
}

// FindSbomIDByDocumentID resolves a document id to its sbom id, for
// cross-SBOM external-reference resolution (C8's GraphMap lookups).
func (s *Store) FindSbomIDByDocumentID(ctx context.Context, documentID string) (vexgraph.Id, error) {
	const q = `SELECT sbom_id FROM sbom WHERE document_id = $1;`
	var u uuid.UUID
	if err := s.pool.QueryRow(ctx, q, documentID).Scan(&u); err != nil {
		if err == pgx.ErrNoRows {
			return vexgraph.Id{}, &vexgraph.Error{Op: "postgres.FindSbomIDByDocumentID", Kind: vexgraph.ErrNotFound}
		}
		return vexgraph.Id{}, &vexgraph.Error{Op: "postgres.FindSbomIDByDocumentID", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return vexgraph.NewUUIDId(u), nil
}
