// Package tx carries SQL transactions through context and provides the
// transaction runners services use to make multi-store changes atomic.
package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	dErrors "onboarding/pkg/domain-errors"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Transactor runs fn atomically with respect to other calls sharing key.
type Transactor interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

const defaultTxTimeout = 5 * time.Second

// SQLTransactor opens a database transaction and exposes it to stores via context.
// Row-level serialization is the stores' job (SELECT ... FOR UPDATE); key is unused.
type SQLTransactor struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLTransactor(db *sql.DB) *SQLTransactor {
	return &SQLTransactor{db: db, timeout: defaultTxTimeout}
}

func (t *SQLTransactor) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) (err error) {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const numShards = 64

// ShardedTransactor serializes in-memory operations per key using a fixed set
// of mutexes. Distinct keys may share a shard.
type ShardedTransactor struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTransactor() *ShardedTransactor {
	return &ShardedTransactor{timeout: defaultTxTimeout}
}

func (t *ShardedTransactor) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := &t.shards[murmur3.Sum32([]byte(key))%numShards]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}
