package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
	txcontext "bursary/pkg/platform/tx"
)

// Postgres persists ledger entries in the stage_decisions table. The store
// deliberately exposes no UPDATE or DELETE: append-only is enforced by the
// absence of any mutating statement, and rows carry everything needed to
// replay the current stage state.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a postgres-backed decision ledger.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const decisionColumns = `id, application_id, stage, decision_type, outcome, payload, notes, reviewer_id, created_at`

func (s *Postgres) Append(ctx context.Context, decision models.StageDecision) error {
	payload, err := json.Marshal(decision.Payload)
	if err != nil {
		return fmt.Errorf("marshal decision payload: %w", err)
	}

	query := `
		INSERT INTO stage_decisions (` + decisionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(decision.ID),
		uuid.UUID(decision.ApplicationID),
		nullableString(string(decision.Stage)),
		string(decision.Type),
		nullableString(string(decision.Outcome)),
		payload,
		decision.Notes,
		uuid.UUID(decision.ReviewerID),
		decision.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (s *Postgres) ListFor(ctx context.Context, appID id.ApplicationID) ([]models.StageDecision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM stage_decisions
		WHERE application_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

// ListAll filters server-side so large histories never load fully into
// memory.
func (s *Postgres) ListAll(ctx context.Context, filter models.LedgerFilter) ([]models.StageDecision, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Stage != nil {
		conditions = append(conditions, "stage = "+arg(string(*filter.Stage)))
	}
	if filter.Outcome != nil {
		conditions = append(conditions, "outcome = "+arg(string(*filter.Outcome)))
	}
	if filter.From != nil {
		conditions = append(conditions, "created_at >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "created_at <= "+arg(*filter.To))
	}

	query := `SELECT ` + decisionColumns + ` FROM stage_decisions`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

func scanDecisions(rows *sql.Rows) ([]models.StageDecision, error) {
	var out []models.StageDecision
	for rows.Next() {
		var (
			decision     models.StageDecision
			decisionID   uuid.UUID
			appID        uuid.UUID
			stage        sql.NullString
			decisionType string
			outcome      sql.NullString
			payload      []byte
			reviewerID   uuid.UUID
		)
		err := rows.Scan(
			&decisionID,
			&appID,
			&stage,
			&decisionType,
			&outcome,
			&payload,
			&decision.Notes,
			&reviewerID,
			&decision.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		decision.ID = id.DecisionID(decisionID)
		decision.ApplicationID = id.ApplicationID(appID)
		decision.Stage = id.Stage(stage.String)
		decision.Type = models.DecisionType(decisionType)
		decision.Outcome = models.Outcome(outcome.String)
		decision.ReviewerID = id.ReviewerID(reviewerID)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &decision.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal decision payload: %w", err)
			}
		}
		out = append(out, decision)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return out, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
