package sqlite

import (
	"context"
	"fmt"
)

// TxExecutor runs statements inside a transaction opened by WithTransaction.
// The first failing statement rolls the transaction back.
type TxExecutor struct {
	conn       Conn
	rolledBack bool
}

// Exec runs one statement in the transaction. Without args the text may hold
// several statements separated by semicolons; with args it goes through
// Execute and must be a single statement. On failure the transaction is
// rolled back, any rollback error is ignored, and the error wraps
// ErrMigrationSQL.
func (tx *TxExecutor) Exec(ctx context.Context, query string, args ...Arg) error {
	if tx.rolledBack {
		return fmt.Errorf("%w: transaction already rolled back", ErrMigrationSQL)
	}
	var err error
	if len(args) == 0 {
		_, err = tx.conn.ExecContext(ctx, query)
	} else {
		_, err = Execute(ctx, tx.conn, query, args...)
	}
	if err != nil {
		tx.rollback(ctx)
		return fmt.Errorf("%w: %w", ErrMigrationSQL, err)
	}
	return nil
}

// Query runs a statement in the transaction and returns its rows.
// Failures roll back like Exec.
func (tx *TxExecutor) Query(ctx context.Context, query string, args ...Arg) ([]Row, error) {
	if tx.rolledBack {
		return nil, fmt.Errorf("%w: transaction already rolled back", ErrMigrationSQL)
	}
	rows, err := Execute(ctx, tx.conn, query, args...)
	if err != nil {
		tx.rollback(ctx)
		return nil, fmt.Errorf("%w: %w", ErrMigrationSQL, err)
	}
	return rows, nil
}

// Fail rolls the transaction back and returns err wrapped in ErrMigrationSQL.
// Step bodies use it when a check fails without a statement error.
func (tx *TxExecutor) Fail(ctx context.Context, err error) error {
	tx.rollback(ctx)
	return fmt.Errorf("%w: %w", ErrMigrationSQL, err)
}

// rollback issues ROLLBACK at most once. Errors are dropped: the engine may
// already have rolled back on its own.
func (tx *TxExecutor) rollback(ctx context.Context) {
	if tx.rolledBack {
		return
	}
	tx.rolledBack = true
	_, _ = tx.conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
}

// WithTransaction runs body between BEGIN and COMMIT on conn.
//
// If BEGIN fails body never runs. If body fails the transaction is rolled
// back (once, even if the TxExecutor already did it) and body's error is
// returned as is. If COMMIT fails the transaction is rolled back and the
// error wraps ErrTransaction, so the database never stays inside an open
// transaction.
func WithTransaction[R any](ctx context.Context, conn Conn, body func(*TxExecutor) (R, error)) (R, error) {
	var zero R
	if _, err := conn.ExecContext(ctx, "BEGIN"); err != nil {
		return zero, fmt.Errorf("%w: begin: %w", ErrTransaction, err)
	}

	tx := &TxExecutor{conn: conn}
	done := false
	defer func() {
		// also runs when body panics
		if !done {
			tx.rollback(ctx)
		}
	}()

	result, err := body(tx)
	if err != nil {
		return zero, err
	}
	if tx.rolledBack {
		return zero, fmt.Errorf("%w: transaction was rolled back", ErrTransaction)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return zero, fmt.Errorf("%w: commit: %w", ErrTransaction, err)
	}
	done = true
	return result, nil
}

// WithForeignKeysOff disables foreign key enforcement on conn, runs body and
// re-enables enforcement on every exit path. The pragma is a no-op inside an
// open transaction, so this must wrap WithTransaction, not the reverse.
func WithForeignKeysOff[R any](ctx context.Context, conn Conn, body func() (R, error)) (R, error) {
	var zero R
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=OFF"); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrForeignKeys, err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA foreign_keys=ON")
	}()

	return body()
}
