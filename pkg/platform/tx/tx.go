// Package tx wraps multi-statement store writes in a SQL transaction.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Run executes fn inside a transaction, committing on success and rolling
// back on any error. Errors from fn pass through unwrapped so sentinel
// checks keep working.
func Run(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
