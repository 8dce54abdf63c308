package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
)

// UpsertWeakness writes a CWE catalog entry, replacing the previous row's
// relation arrays wholesale on conflict (the catalog is fully republished
// on each release, so there is no partial-merge case to preserve).
func (s *Store) UpsertWeakness(ctx context.Context, tx pgx.Tx, w vexgraph.Weakness) error {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.UpsertWeakness", "cwe_id", w.ID)
	const ins = `INSERT INTO weakness
		(id, description, extended_description, child_of, parent_of, starts_with, can_follow,
		 can_precede, required_by, requires, can_also_be, peer_of)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			extended_description = EXCLUDED.extended_description,
			child_of = EXCLUDED.child_of,
			parent_of = EXCLUDED.parent_of,
			starts_with = EXCLUDED.starts_with,
			can_follow = EXCLUDED.can_follow,
			can_precede = EXCLUDED.can_precede,
			required_by = EXCLUDED.required_by,
			requires = EXCLUDED.requires,
			can_also_be = EXCLUDED.can_also_be,
			peer_of = EXCLUDED.peer_of;`

	start := time.Now()
	_, err := tx.Exec(ctx, ins, w.ID, nullIfEmpty(w.Description), nullIfEmpty(w.ExtendedDescription),
		w.ChildOf, w.ParentOf, w.StartsWith, w.CanFollow, w.CanPrecede, w.RequiredBy, w.Requires, w.CanAlsoBe, w.PeerOf)
	observe("weakness.upsert", start)
	if err != nil {
		return &vexgraph.Error{Op: "postgres.UpsertWeakness", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return nil
}
