package stagestatus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
	txcontext "bursary/pkg/platform/tx"
)

// Postgres persists one current row per (application, stage) pair, upserted
// on every decision.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a postgres-backed stage status store.
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

func (s *Postgres) Get(ctx context.Context, appID id.ApplicationID, stage id.Stage) (models.StageStatus, error) {
	query := `
		SELECT application_id, stage, status, reviewer_id, reviewed_at, notes, payload
		FROM stage_statuses
		WHERE application_id = $1 AND stage = $2
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(appID), string(stage))
	status, err := scanStageStatus(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PendingStageStatus(appID, stage), nil
		}
		return models.StageStatus{}, fmt.Errorf("find stage status: %w", err)
	}
	return status, nil
}

func (s *Postgres) GetSet(ctx context.Context, appID id.ApplicationID) (models.StageStatusSet, error) {
	query := `
		SELECT application_id, stage, status, reviewer_id, reviewed_at, notes, payload
		FROM stage_statuses
		WHERE application_id = $1
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("query stage statuses: %w", err)
	}
	defer rows.Close()

	set := models.NewStageStatusSet(appID)
	for rows.Next() {
		status, err := scanStageStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage status: %w", err)
		}
		set[status.Stage] = status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage statuses: %w", err)
	}
	return set, nil
}

func (s *Postgres) Apply(ctx context.Context, status models.StageStatus) error {
	payload, err := json.Marshal(status.Payload)
	if err != nil {
		return fmt.Errorf("marshal stage payload: %w", err)
	}

	var reviewerID *uuid.UUID
	if !status.ReviewerID.IsNil() {
		rid := uuid.UUID(status.ReviewerID)
		reviewerID = &rid
	}

	query := `
		INSERT INTO stage_statuses (application_id, stage, status, reviewer_id, reviewed_at, notes, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (application_id, stage) DO UPDATE SET
			status = EXCLUDED.status,
			reviewer_id = EXCLUDED.reviewer_id,
			reviewed_at = EXCLUDED.reviewed_at,
			notes = EXCLUDED.notes,
			payload = EXCLUDED.payload
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(status.ApplicationID),
		string(status.Stage),
		string(status.Status),
		reviewerID,
		status.ReviewedAt,
		status.Notes,
		payload,
	)
	if err != nil {
		return fmt.Errorf("upsert stage status: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStageStatus(row rowScanner) (models.StageStatus, error) {
	var (
		status     models.StageStatus
		appID      uuid.UUID
		stage      string
		value      string
		reviewerID *uuid.UUID
		notes      sql.NullString
		payload    []byte
	)
	err := row.Scan(&appID, &stage, &value, &reviewerID, &status.ReviewedAt, &notes, &payload)
	if err != nil {
		return models.StageStatus{}, err
	}
	status.ApplicationID = id.ApplicationID(appID)
	status.Stage = id.Stage(stage)
	status.Status = models.StageStatusValue(value)
	if reviewerID != nil {
		status.ReviewerID = id.ReviewerID(*reviewerID)
	}
	status.Notes = notes.String
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &status.Payload); err != nil {
			return models.StageStatus{}, fmt.Errorf("unmarshal stage payload: %w", err)
		}
	}
	return status, nil
}
