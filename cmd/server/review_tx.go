package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	reviewservice "bursary/internal/review/service"
	id "bursary/pkg/domain"
	dErrors "bursary/pkg/domain-errors"
	txcontext "bursary/pkg/platform/tx"
)

const defaultReviewTxTimeout = 5 * time.Second

// reviewPostgresTx serializes writes per application with a row lock. The
// *sql.Tx travels in the context so every store touched inside fn joins the
// same transaction.
type reviewPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newReviewPostgresTx(db *sql.DB) *reviewPostgresTx {
	return &reviewPostgresTx{db: db}
}

var _ reviewservice.StoreTx = (*reviewPostgresTx)(nil)

func (t *reviewPostgresTx) RunInTx(ctx context.Context, appID id.ApplicationID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultReviewTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Lock the application row so concurrent decisions for the same
	// application serialize. Missing rows lock nothing; fn surfaces not found.
	if _, err := tx.ExecContext(ctx,
		`SELECT id FROM applications WHERE id = $1 FOR UPDATE`, uuid.UUID(appID)); err != nil {
		return err
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	return tx.Commit()
}
