package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
)

// PurlCreator batch-buffers new PURL rows and resolves every queued
// canonical purl string to a QualifiedPurl id in one Flush, per C6's
// "batch-buffer, flush with ON CONFLICT DO NOTHING, then resolve" contract.
type PurlCreator struct {
	s      *Store
	queued []queuedPurl
}

type queuedPurl struct {
	typ, namespace, name, version string
	qualifiers                    vexgraph.OrderedQualifiers
	canonical                     string
}

// NewPurlCreator returns an empty PurlCreator bound to s.
func (s *Store) NewPurlCreator() *PurlCreator { return &PurlCreator{s: s} }

// Queue adds a decomposed purl to the batch.
func (c *PurlCreator) Queue(typ, namespace, name, version string, qualifiers vexgraph.OrderedQualifiers, canonical string) {
	c.queued = append(c.queued, queuedPurl{typ, namespace, name, version, qualifiers, canonical})
}

// Flush inserts every queued purl (ignoring rows that already exist) and
// returns a canonical-string → QualifiedPurl id map covering every purl
// queued since the last Flush.
func (c *PurlCreator) Flush(ctx context.Context, tx pgx.Tx) (map[string]vexgraph.Id, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.PurlCreator.Flush")
	out := make(map[string]vexgraph.Id, len(c.queued))
	if len(c.queued) == 0 {
		return out, nil
	}

	const (
		insBase = `INSERT INTO base_purl (type, namespace, name) VALUES ($1, $2, $3)
			ON CONFLICT (type, namespace, name) DO NOTHING;`
		selBase = `SELECT id FROM base_purl WHERE type = $1 AND namespace IS NOT DISTINCT FROM $2 AND name = $3;`
		insVer  = `INSERT INTO versioned_purl (base_purl_id, version) VALUES ($1, $2)
			ON CONFLICT (base_purl_id, version) DO NOTHING;`
		selVer = `SELECT id FROM versioned_purl WHERE base_purl_id = $1 AND version = $2;`
		insQual = `INSERT INTO qualified_purl (versioned_purl_id, qualifiers, purl) VALUES ($1, $2, $3)
			ON CONFLICT (purl) DO NOTHING;`
		selQual = `SELECT id FROM qualified_purl WHERE purl = $1;`
	)

	start := time.Now()
	batcher := newInsertBatcher(tx, 500, time.Minute)
	for _, p := range c.queued {
		if err := batcher.Queue(ctx, insBase, p.typ, nullIfEmpty(p.namespace), p.name); err != nil {
			return nil, &vexgraph.Error{Op: "PurlCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
		}
	}
	if err := batcher.Done(ctx); err != nil {
		return nil, &vexgraph.Error{Op: "PurlCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	observe("purl.insert_base", start)

	baseIDs := make(map[string]uuid.UUID, len(c.queued))
	for _, p := range c.queued {
		key := p.typ + "\x00" + p.namespace + "\x00" + p.name
		if _, ok := baseIDs[key]; ok {
			continue
		}
		var u uuid.UUID
		if err := tx.QueryRow(ctx, selBase, p.typ, nullIfEmpty(p.namespace), p.name).Scan(&u); err != nil {
			return nil, &vexgraph.Error{Op: "PurlCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		baseIDs[key] = u
	}

	start = time.Now()
	batcher = newInsertBatcher(tx, 500, time.Minute)
	for _, p := range c.queued {
		key := p.typ + "\x00" + p.namespace + "\x00" + p.name
		if err := batcher.Queue(ctx, insVer, baseIDs[key], p.version); err != nil {
			return nil, &vexgraph.Error{Op: "PurlCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
		}
	}
	if err := batcher.Done(ctx); err != nil {
		return nil, &vexgraph.Error{Op: "PurlCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	observe("purl.insert_versioned", start)

	versionedIDs := make(map[string]uuid.UUID, len(c.queued))
	for _, p := range c.queued {
		bkey := p.typ + "\x00" + p.namespace + "\x00" + p.name
		vkey := bkey + "\x00" + p.version
		if _, ok := versionedIDs[vkey]; ok {
			continue
		}
		var u uuid.UUID
		if err := tx.QueryRow(ctx, selVer, baseIDs[bkey], p.version).Scan(&u); err != nil {
			return nil, &vexgraph.Error{Op: "PurlCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		versionedIDs[vkey] = u
	}

	start = time.Now()
	batcher = newInsertBatcher(tx, 500, time.Minute)
	for _, p := range c.queued {
		vkey := p.typ + "\x00" + p.namespace + "\x00" + p.name + "\x00" + p.version
		qb, err := json.Marshal(p.qualifiers)
		if err != nil {
			return nil, &vexgraph.Error{Op: "PurlCreator.Flush", Kind: vexgraph.ErrValidation, Inner: err}
		}
		if err := batcher.Queue(ctx, insQual, versionedIDs[vkey], qb, p.canonical); err != nil {
			return nil, &vexgraph.Error{Op: "PurlCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
		}
	}
	if err := batcher.Done(ctx); err != nil {
		return nil, &vexgraph.Error{Op: "PurlCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	observe("purl.insert_qualified", start)

	for _, p := range c.queued {
		if _, ok := out[p.canonical]; ok {
			continue
		}
		var u uuid.UUID
		if err := tx.QueryRow(ctx, selQual, p.canonical).Scan(&u); err != nil {
			return nil, &vexgraph.Error{Op: "PurlCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		out[p.canonical] = vexgraph.NewUUIDId(u)
	}

	c.queued = c.queued[:0]
	return out, nil
}

// CpeCreator batch-buffers new CPE rows, flushing with ON CONFLICT DO
// NOTHING and resolving ids, mirroring PurlCreator.
type CpeCreator struct {
	s      *Store
	queued []vexgraph.Cpe
}

// NewCpeCreator returns an empty CpeCreator bound to s.
func (s *Store) NewCpeCreator() *CpeCreator { return &CpeCreator{s: s} }

// Queue adds a 7-tuple CPE to the batch.
func (c *CpeCreator) Queue(cpe vexgraph.Cpe) { c.queued = append(c.queued, cpe) }

// CpeKey computes the composite key used to resolve a queued Cpe back to
// its id after Flush; external packages needing to reproduce it (e.g.
// internal/ingest) must call this rather than recompute it independently.
func CpeKey(c vexgraph.Cpe) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%s\x00%s\x00%s", c.Part, c.Vendor, c.Product, c.Version, c.Update, c.Edition, c.Language)
}

// Flush inserts every queued CPE (ignoring rows that already exist) and
// returns a key → Id map covering every CPE queued since the last Flush.
// The map is keyed by CpeKey, which callers reproduce via the same fields.
func (c *CpeCreator) Flush(ctx context.Context, tx pgx.Tx) (map[string]vexgraph.Id, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "internal/store/postgres.CpeCreator.Flush")
	out := make(map[string]vexgraph.Id, len(c.queued))
	if len(c.queued) == 0 {
		return out, nil
	}

	const (
		ins = `INSERT INTO cpe (part, vendor, product, version, update_, edition, language)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (part, vendor, product, version, update_, edition, language) DO NOTHING;`
		sel = `SELECT id FROM cpe WHERE part = $1 AND vendor = $2 AND product = $3 AND version = $4
			AND update_ = $5 AND edition = $6 AND language = $7;`
	)

	start := time.Now()
	batcher := newInsertBatcher(tx, 500, time.Minute)
	for _, cpe := range c.queued {
		if err := batcher.Queue(ctx, ins, cpe.Part, cpe.Vendor, cpe.Product, cpe.Version, cpe.Update, cpe.Edition, cpe.Language); err != nil {
			return nil, &vexgraph.Error{Op: "CpeCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
		}
	}
	if err := batcher.Done(ctx); err != nil {
		return nil, &vexgraph.Error{Op: "CpeCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	observe("cpe.insert", start)

	for _, cpe := range c.queued {
		key := CpeKey(cpe)
		if _, ok := out[key]; ok {
			continue
		}
		var u uuid.UUID
		if err := tx.QueryRow(ctx, sel, cpe.Part, cpe.Vendor, cpe.Product, cpe.Version, cpe.Update, cpe.Edition, cpe.Language).Scan(&u); err != nil {
			return nil, &vexgraph.Error{Op: "CpeCreator.Flush", Kind: vexgraph.ErrDatabase, Inner: err}
		}
		out[key] = vexgraph.NewUUIDId(u)
	}

	c.queued = c.queued[:0]
	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// FindOrCreateBasePurl upserts a single (type, namespace, name) row
// outside the batch-buffer path, for loaders (e.g. OSV) that only ever
// know a package's ecosystem/name and never assemble a full purl string.
func (s *Store) FindOrCreateBasePurl(ctx context.Context, tx pgx.Tx, typ, namespace, name string) (vexgraph.Id, error) {
	const (
		ins = `INSERT INTO base_purl (type, namespace, name) VALUES ($1, $2, $3)
			ON CONFLICT (type, namespace, name) DO NOTHING;`
		sel = `SELECT id FROM base_purl WHERE type = $1 AND namespace IS NOT DISTINCT FROM $2 AND name = $3;`
	)
	start := time.Now()
	if _, err := tx.Exec(ctx, ins, typ, nullIfEmpty(namespace), name); err != nil {
		return vexgraph.Id{}, &vexgraph.Error{Op: "postgres.FindOrCreateBasePurl", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	var u uuid.UUID
	if err := tx.QueryRow(ctx, sel, typ, nullIfEmpty(namespace), name).Scan(&u); err != nil {
		return vexgraph.Id{}, &vexgraph.Error{Op: "postgres.FindOrCreateBasePurl", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	observe("base_purl.find_or_create", start)
	return vexgraph.NewUUIDId(u), nil
}
