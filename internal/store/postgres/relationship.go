package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
)

// RelationshipCreator accumulates (left, rel, right) triples and flushes
// them as package_relates_to_package rows, per spec §4.6. Duplicates are
// silently ignored via the table's composite primary key, satisfying the
// relationship-dedup property.
type RelationshipCreator struct {
	s      *Store
	queued []vexgraph.PackageRelatesToPackage
}

// NewRelationshipCreator returns an empty RelationshipCreator bound to s.
func (s *Store) NewRelationshipCreator() *RelationshipCreator { return &RelationshipCreator{s: s} }

// Queue adds one edge to the batch.
func (c *RelationshipCreator) Queue(r vexgraph.PackageRelatesToPackage) {
	c.queued = append(c.queued, r)
}

// Flush writes every queued edge, ignoring ones already present.
func (c *RelationshipCreator) Flush(ctx context.Context, tx pgx.Tx) error {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.RelationshipCreator.Flush")
	if len(c.queued) == 0 {
		return nil
	}
	const ins = `INSERT INTO package_relates_to_package (sbom_id, left_node_id, relationship, right_node_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sbom_id, left_node_id, relationship, right_node_id) DO NOTHING;`

	start := time.Now()
	batcher := newInsertBatcher(tx, 500, time.Minute)
	for _, r := range c.queued {
		if err := batcher.Queue(ctx, ins, idArg(r.SbomID), r.LeftNodeID, r.Relationship.String(), r.RightNodeID); err != nil {
			return &vexgraph.Error{Op: "RelationshipCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
		}
	}
	if err := batcher.Done(ctx); err != nil {
		return &vexgraph.Error{Op: "RelationshipCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	observe("package_relates_to_package.insert", start)

	zlog.Debug(ctx).Int("count", len(c.queued)).Msg("flushed relationships")
	c.queued = c.queued[:0]
	return nil
}
