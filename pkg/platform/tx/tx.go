// Package tx carries a SQL transaction through context so the stores join the
// surrounding application write without threading *sql.Tx through every
// signature. Stores that find no transaction fall back to their pool.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores the transaction opened for an application write. A nil tx
// leaves the context untouched so callers need not branch.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From returns the transaction for the current write, if one is open.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
