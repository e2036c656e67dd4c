package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
	"bursary/pkg/platform/sentinel"
	txcontext "bursary/pkg/platform/tx"
)

// Postgres persists applications in PostgreSQL. Writes issued inside a
// service transaction pick the *sql.Tx from context so the whole decision
// submission commits or rolls back as one unit.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a postgres-backed application store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const applicationColumns = `id, application_number, category, subcategory, requested_amount_cents,
	status, submitted_at, approved_at, rejected_at, rejection_reason, withdrawn_at,
	created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(app.ID),
		app.Number,
		app.Category,
		nullString(app.Subcategory),
		app.RequestedAmountCents,
		string(app.Status),
		app.SubmittedAt,
		app.ApprovedAt,
		app.RejectedAt,
		nullString(app.RejectionReason),
		app.WithdrawnAt,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(appID))
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

func (s *Postgres) Update(ctx context.Context, app *models.Application) error {
	query := `
		UPDATE applications
		SET status = $2, approved_at = $3, rejected_at = $4, rejection_reason = $5,
		    withdrawn_at = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(app.ID),
		string(app.Status),
		app.ApprovedAt,
		app.RejectedAt,
		nullString(app.RejectionReason),
		app.WithdrawnAt,
		app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByStatus(ctx context.Context, statuses ...models.OverallStatus) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications`
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY submitted_at ASC, id ASC`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

// AllocateNumber reserves the next per-year sequence for the human-readable
// application number. The upsert keeps allocation atomic under concurrent
// intake.
func (s *Postgres) AllocateNumber(ctx context.Context, year int) (int64, error) {
	query := `
		INSERT INTO application_numbers (year, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_seq = application_numbers.last_seq + 1
		RETURNING last_seq
	`
	var seq int64
	if err := s.execer(ctx).QueryRowContext(ctx, query, year).Scan(&seq); err != nil {
		return 0, fmt.Errorf("allocate application number: %w", err)
	}
	return seq, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app             models.Application
		appID           uuid.UUID
		status          string
		subcategory     sql.NullString
		rejectionReason sql.NullString
	)
	err := row.Scan(
		&appID,
		&app.Number,
		&app.Category,
		&subcategory,
		&app.RequestedAmountCents,
		&status,
		&app.SubmittedAt,
		&app.ApprovedAt,
		&app.RejectedAt,
		&rejectionReason,
		&app.WithdrawnAt,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.ID = id.ApplicationID(appID)
	app.Status = models.OverallStatus(status)
	app.Subcategory = subcategory.String
	app.RejectionReason = rejectionReason.String
	return &app, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
