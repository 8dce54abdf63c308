package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
)

// versionRangeNamespace is the fixed namespace UUID that anchors every
// VersionRange's deterministic UUIDv5, so the same (scheme, spec) always
// deduplicates to the same row regardless of which loader computed it.
var versionRangeNamespace = uuid.MustParse("c36b1ffc-c8ea-4b61-9d1b-2f2f9c6e9a55")

// versionRangeSpec builds the canonical string a VersionRange's id is
// derived from. Bound presence and inclusivity are folded in so that
// "no lower bound" and "lower bound == empty string" never collide.
func versionRangeSpec(r vexgraph.VersionRange) string {
	low, high := "-", "-"
	if r.HasLow() {
		low = fmt.Sprintf("%s:%t", r.LowVersion, r.LowInclusive)
	}
	if r.HasHigh() {
		high = fmt.Sprintf("%s:%t", r.HighVersion, r.HighInclusive)
	}
	return string(r.Scheme) + "|" + low + "|" + high
}

// UpsertVersionRange computes r's deterministic id and upserts the row,
// per C6's "always use VersionRange UUIDv5 of scheme || spec" contract.
func (s *Store) UpsertVersionRange(ctx context.Context, tx pgx.Tx, r vexgraph.VersionRange) (vexgraph.Id, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.UpsertVersionRange")
	id := uuid.NewSHA1(versionRangeNamespace, []byte(versionRangeSpec(r)))

	const ins = `INSERT INTO version_range (id, version_scheme, low_version, low_inclusive, high_version, high_inclusive)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING;`

	start := time.Now()
	var low, high *string
	var lowIncl, highIncl *bool
	if r.HasLow() {
		v, b := r.LowVersion, r.LowInclusive
		low, lowIncl = &v, &b
	}
	if r.HasHigh() {
		v, b := r.HighVersion, r.HighInclusive
		high, highIncl = &v, &b
	}
	_, err := tx.Exec(ctx, ins, id, string(r.Scheme), low, lowIncl, high, highIncl)
	observe("version_range.upsert", start)
	if err != nil {
		return vexgraph.Id{}, &vexgraph.Error{Op: "postgres.UpsertVersionRange", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return vexgraph.NewUUIDId(id), nil
}
