package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// insertBatcher batches queued inserts into fixed-size pgx.Batch sends,
// adapted from the teacher's pkg/microbatch for pgx/v5's batch API.
type insertBatcher struct {
	tx        pgx.Tx
	batch     *pgx.Batch
	batchSize int
	queued    int
	total     int
	timeout   time.Duration
}

func newInsertBatcher(tx pgx.Tx, batchSize int, timeout time.Duration) *insertBatcher {
	if timeout == 0 {
		timeout = time.Minute
	}
	return &insertBatcher{tx: tx, batchSize: batchSize, timeout: timeout}
}

// Queue enqueues a statement, flushing automatically once batchSize is
// reached.
func (b *insertBatcher) Queue(ctx context.Context, query string, args ...any) error {
	if b.queued == b.batchSize {
		if err := b.flush(ctx); err != nil {
			return fmt.Errorf("microbatch: flush while queueing: %w", err)
		}
	}
	if b.batch == nil {
		b.batch = &pgx.Batch{}
	}
	b.batch.Queue(query, args...)
	b.queued++
	b.total++
	return nil
}

func (b *insertBatcher) flush(ctx context.Context) error {
	if b.queued == 0 {
		return nil
	}
	tctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	res := b.tx.SendBatch(tctx, b.batch)
	var errs error
	for i := 0; i < b.queued; i++ {
		if _, err := res.Exec(); err != nil {
			errs = fmt.Errorf("microbatch: exec %d of %d: %w", i, b.queued, err)
			break
		}
	}
	if cerr := res.Close(); cerr != nil && errs == nil {
		errs = cerr
	}
	b.batch = nil
	b.queued = 0
	return errs
}

// Done flushes any remaining queued statements. Callers MUST call Done once
// all inserts have been queued.
func (b *insertBatcher) Done(ctx context.Context) error {
	return b.flush(ctx)
}

// Total reports the number of statements queued across the batcher's
// lifetime.
func (b *insertBatcher) Total() int { return b.total }
