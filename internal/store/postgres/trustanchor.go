package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
)

// CreateSourceDocumentSignature records a detached signature alongside the
// SourceDocument it was captured with, per spec §4.1's "capture signatures
// during ingest, verify later" split between C1/C6 and C9.
func (s *Store) CreateSourceDocumentSignature(ctx context.Context, tx pgx.Tx, sig vexgraph.SourceDocumentSignature) (vexgraph.Id, error) {
	const q = `INSERT INTO source_document_signature (document_id, type, payload)
		VALUES ($1, $2, $3) RETURNING id;`
	start := time.Now()
	var u uuid.UUID
	err := tx.QueryRow(ctx, q, idArg(sig.DocumentID), string(sig.Type), sig.Payload).Scan(&u)
	observe("source_document_signature.insert", start)
	if err != nil {
		return vexgraph.Id{}, &vexgraph.Error{Op: "postgres.CreateSourceDocumentSignature", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return vexgraph.NewUUIDId(u), nil
}

// SignaturesForDocument returns every detached signature captured for a
// SourceDocument, for C9 to verify.
func (s *Store) SignaturesForDocument(ctx context.Context, documentID vexgraph.Id) ([]vexgraph.SourceDocumentSignature, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "postgres.SignaturesForDocument")
	const q = `SELECT id, document_id, type, payload FROM source_document_signature WHERE document_id = $1;`

	rows, err := s.pool.Query(ctx, q, idArg(documentID))
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.SignaturesForDocument", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer rows.Close()

	var out []vexgraph.SourceDocumentSignature
	for rows.Next() {
		var id, docID uuid.UUID
		var typ string
		var payload []byte
		if err := rows.Scan(&id, &docID, &typ, &payload); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.SignaturesForDocument", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		out = append(out, vexgraph.SourceDocumentSignature{
			ID: vexgraph.NewUUIDId(id), DocumentID: vexgraph.NewUUIDId(docID),
			Type: vexgraph.TrustAnchorType(typ), Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &vexgraph.Error{Op: "postgres.SignaturesForDocument", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return out, nil
}

// EnabledTrustAnchors returns every non-disabled trust anchor of the given
// type, in the order C9 should try them: newest revision first, so a
// rotated-in replacement key is tried before its predecessor.
func (s *Store) EnabledTrustAnchors(ctx context.Context, typ vexgraph.TrustAnchorType) ([]vexgraph.TrustAnchor, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "postgres.EnabledTrustAnchors")
	const q = `SELECT id, revision, disabled, description, type, payload
		FROM trust_anchor WHERE type = $1 AND disabled = false ORDER BY revision DESC;`

	rows, err := s.pool.Query(ctx, q, string(typ))
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.EnabledTrustAnchors", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	defer rows.Close()

	var out []vexgraph.TrustAnchor
	for rows.Next() {
		var id, rev uuid.UUID
		var ta vexgraph.TrustAnchor
		var t string
		if err := rows.Scan(&id, &rev, &ta.Disabled, &ta.Description, &t, &ta.Payload); err != nil {
			return nil, &vexgraph.Error{Op: "postgres.EnabledTrustAnchors", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		ta.ID = vexgraph.NewUUIDId(id)
		ta.Revision = vexgraph.NewUUIDId(rev)
		ta.Type = vexgraph.TrustAnchorType(t)
		out = append(out, ta)
	}
	if err := rows.Err(); err != nil {
		return nil, &vexgraph.Error{Op: "postgres.EnabledTrustAnchors", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return out, nil
}

// CreateTrustAnchor registers a new trust anchor, stamping a fresh revision.
func (s *Store) CreateTrustAnchor(ctx context.Context, ta vexgraph.TrustAnchor) (vexgraph.Id, error) {
	const q = `INSERT INTO trust_anchor (revision, disabled, description, type, payload)
		VALUES ($1, $2, $3, $4, $5) RETURNING id;`
	var u uuid.UUID
	err := s.pool.QueryRow(ctx, q, uuid.Must(uuid.NewV7()), ta.Disabled, ta.Description, string(ta.Type), ta.Payload).Scan(&u)
	if err != nil {
		return vexgraph.Id{}, &vexgraph.Error{Op: "postgres.CreateTrustAnchor", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return vexgraph.NewUUIDId(u), nil
}

// SetTrustAnchorDisabled flips a trust anchor's disabled flag, stamping a
// new revision so optimistic readers notice the change.
func (s *Store) SetTrustAnchorDisabled(ctx context.Context, id vexgraph.Id, disabled bool) error {
	const q = `UPDATE trust_anchor SET disabled = $2, revision = $3 WHERE id = $1;`
	tag, err := s.pool.Exec(ctx, q, idArg(id), disabled, uuid.Must(uuid.NewV7()))
	if err != nil {
		return &vexgraph.Error{Op: "postgres.SetTrustAnchorDisabled", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	if tag.RowsAffected() == 0 {
		return &vexgraph.Error{Op: "postgres.SetTrustAnchorDisabled", Kind: vexgraph.ErrNotFound}
	}
	return nil
}
