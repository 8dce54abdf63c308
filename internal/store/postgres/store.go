// Package postgres is the C6 graph persistence backend: a pgx-backed store
// that creates/upserts advisories, vulnerabilities, statuses, PURLs, CPEs,
// SBOM nodes, packages, relationships, licenses, and signatures, with
// strict idempotence by digest.
//
// Construction follows the teacher's libvuln.New shape: an Options struct
// with a Validate method, defaulted and connected inside New.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/remind101/migrate"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/store/postgres/migrations"
)

// Options configures a Store.
type Options struct {
	// ConnString is a postgres connection URI or DSN.
	ConnString string
	// MinConns/MaxConns bound the pgx connection pool.
	MinConns, MaxConns int32
	// ConnectTimeout, MaxConnLifetime, MaxConnIdleTime bound pool connection
	// lifecycle, matching the teacher's pool knobs. AcquireTimeout is
	// defaulted by Validate but not applied to the pool configuration.
	ConnectTimeout, AcquireTimeout, MaxConnLifetime, MaxConnIdleTime time.Duration
	// Migrate, when true, runs pending migrations during New.
	Migrate bool
}

// Validate fills in defaults and rejects unusable configuration.
func (o *Options) Validate() error {
	if o.ConnString == "" {
		return fmt.Errorf("postgres: ConnString is required")
	}
	if o.MinConns == 0 {
		o.MinConns = 2
	}
	if o.MaxConns == 0 {
		o.MaxConns = 30
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.AcquireTimeout == 0 {
		o.AcquireTimeout = 10 * time.Second
	}
	if o.MaxConnLifetime == 0 {
		o.MaxConnLifetime = time.Hour
	}
	if o.MaxConnIdleTime == 0 {
		o.MaxConnIdleTime = 30 * time.Minute
	}
	return nil
}

// Store is the C6 persistence backend.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store, connecting a pool and optionally running
// migrations.
func New(ctx context.Context, opts *Options) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("postgres: unable to parse ConnString: %w", err)
	}
	cfg.MinConns = opts.MinConns
	cfg.MaxConns = opts.MaxConns
	cfg.MaxConnLifetime = opts.MaxConnLifetime
	cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: unable to create connection pool: %w", err)
	}

	if opts.Migrate {
		db, err := sqlx.Open("pgx", opts.ConnString)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: unable to open migration handle: %w", err)
		}
		defer db.Close()
		migrator := migrate.NewPostgresMigrator(db.DB)
		migrator.Table = migrations.MigrationTable
		if err := migrator.Exec(migrate.Up, migrations.Migrations...); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: unable to run migrations: %w", err)
		}
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Begin starts a transaction, giving callers (the top-level ingest package,
// chiefly) the single-transaction-per-ingest unit spec §5 requires: every
// write from one call to a C7 loader must commit or roll back together.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &vexgraph.Error{Op: "postgres.Begin", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return tx, nil
}

// idArg adapts id for binding against a plain `uuid`-typed column. An Id's
// canonical wire form carries a scheme prefix ("urn:uuid:...", "sha256:..."),
// which Postgres's implicit text-to-uuid cast rejects; for UUID-kinded ids
// this unwraps to the bare uuid.UUID pgx binds natively. Hash-kinded ids
// (used only for `text` document-identity columns) pass through unchanged.
func idArg(id vexgraph.Id) any {
	if id.Kind() == vexgraph.KindUUID {
		return id.UUID()
	}
	return id
}
