package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
)

// FindOrCreateSourceDocument implements the P1 digest-idempotence
// contract: a document with a matching SHA-256 is reused rather than
// re-inserted. Callers pass the digests computed by internal/hashreader.
//
// The returned bool reports whether the document already existed.
func (s *Store) FindOrCreateSourceDocument(ctx context.Context, sha256, sha384, sha512 []byte) (vexgraph.Id, bool, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.FindOrCreateSourceDocument")
	const (
		find = `SELECT id FROM source_document WHERE sha256 = $1;`
		ins  = `INSERT INTO source_document (sha256, sha384, sha512) VALUES ($1, $2, $3)
			ON CONFLICT (sha256) DO NOTHING RETURNING id;`
	)

	start := time.Now()
	var u uuid.UUID
	err := s.pool.QueryRow(ctx, find, sha256).Scan(&u)
	observe("source_document.find", start)
	if err == nil {
		id := vexgraph.NewUUIDId(u)
		zlog.Debug(ctx).Str("document_id", id.String()).Msg("source document already ingested")
		return id, true, nil
	}
	if err != pgx.ErrNoRows {
		return vexgraph.Id{}, false, &vexgraph.Error{Op: "postgres.FindOrCreateSourceDocument", Kind: vexgraph.ErrDatabase, Inner: err}
	}

	start = time.Now()
	err = s.pool.QueryRow(ctx, ins, sha256, sha384, sha512).Scan(&u)
	observe("source_document.insert", start)
	switch err {
	case nil:
		return vexgraph.NewUUIDId(u), false, nil
	case pgx.ErrNoRows:
		// Lost the race with a concurrent ingest of the same bytes; the
		// insert no-op'd via ON CONFLICT. Re-select the winner's row.
		if err := s.pool.QueryRow(ctx, find, sha256).Scan(&u); err != nil {
			return vexgraph.Id{}, false, &vexgraph.Error{Op: "postgres.FindOrCreateSourceDocument", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		return vexgraph.NewUUIDId(u), true, nil
	default:
		return vexgraph.Id{}, false, &vexgraph.Error{Op: "postgres.FindOrCreateSourceDocument", Kind: vexgraph.ErrDatabase, Inner: err}
	}
}
