package db

import (
	"context"
	"fmt"
	"time"

	txcontext "vettinghub/pkg/platform/tx"
)

// TxRunner executes a unit of work. Implementations decide whether a real
// transaction backs it; stores pick the transaction up from ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLTxRunner runs fn inside a database transaction with a deadline. The
// transaction is carried in ctx so every store call inside fn joins it.
type SQLTxRunner struct {
	handle  *Handle
	timeout time.Duration
}

// NewTxRunner constructs a runner over the handle. A zero timeout means no
// deadline beyond the connection's own.
func NewTxRunner(handle *Handle, timeout time.Duration) *SQLTxRunner {
	return &SQLTxRunner{handle: handle, timeout: timeout}
}

func (r *SQLTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	tx, err := r.handle.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// PassthroughTxRunner runs fn directly. Used with the in-memory stores, whose
// operations are individually atomic.
type PassthroughTxRunner struct{}

func (PassthroughTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
