package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	apperrors "staybid/pkg/errors"

	"github.com/uptrace/bun"
)

type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type txKey struct{}

type bunTransactionManager struct {
	db          *bun.DB
	lockTimeout time.Duration
}

// NewTransactionManager returns a manager whose transactions give up waiting
// on any lock after lockTimeout.
func NewTransactionManager(db *bun.DB, lockTimeout time.Duration) TransactionManager {
	return &bunTransactionManager{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

// ExecuteTransaction runs fn in a transaction carried by ctx. A call made
// inside an existing transaction joins it.
func (m *bunTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}

	ctx, finish := CommitScope(ctx)
	err := m.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx bun.Tx) error {
		if m.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}
		return fn(context.WithValue(ctx, txKey{}, tx))
	})

	finish(err == nil)
	return TxError(err)
}

// TxError maps the error that aborted a transaction. A lock wait that gave up
// anywhere in the chain becomes LockContention, even under an AppError a
// service wrapped it in.
func TxError(err error) error {
	if err == nil {
		return nil
	}
	if IsLockContention(err) {
		if apperrors.IsCode(err, apperrors.CodeLockContention) {
			return err
		}
		return apperrors.LockContention(err)
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return fmt.Errorf("transaction failed: %w", err)
}

// Conn returns the transaction carried by ctx, or db when there is none.
func Conn(ctx context.Context, db bun.IDB) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return db
}

type afterCommitKey struct{}

type afterCommitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// CommitScope opens a scope for AfterCommit hooks. The returned finish runs
// the collected hooks when committed is true and drops them otherwise.
// Nested scopes defer to the outermost one.
func CommitScope(ctx context.Context) (context.Context, func(committed bool)) {
	if _, ok := ctx.Value(afterCommitKey{}).(*afterCommitHooks); ok {
		return ctx, func(bool) {}
	}
	hooks := &afterCommitHooks{}
	return context.WithValue(ctx, afterCommitKey{}, hooks), func(committed bool) {
		hooks.mu.Lock()
		fns := hooks.fns
		hooks.fns = nil
		hooks.mu.Unlock()
		if !committed {
			return
		}
		for _, fn := range fns {
			fn()
		}
	}
}

// AfterCommit runs fn once the outermost transaction in ctx commits, or right
// away when ctx carries no transaction.
func AfterCommit(ctx context.Context, fn func()) {
	hooks, ok := ctx.Value(afterCommitKey{}).(*afterCommitHooks)
	if !ok {
		fn()
		return
	}
	hooks.mu.Lock()
	hooks.fns = append(hooks.fns, fn)
	hooks.mu.Unlock()
}
