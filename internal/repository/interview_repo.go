package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mockmate-backend/internal/models"
)

type InterviewRepo struct {
	pool *pgxpool.Pool
}

func NewInterviewRepo(pool *pgxpool.Pool) *InterviewRepo {
	return &InterviewRepo{pool: pool}
}

const sessionColumns = `id, session_id, user_id, role, selected_rounds, rounds, completed_rounds,
	overall_score, status, revision, start_time, end_time, created_at, updated_at`

func (r *InterviewRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	s.ID = uuid.New()

	selected, rounds, completed, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}

	query := `INSERT INTO interviews (id, session_id, user_id, role, selected_rounds, rounds, completed_rounds, overall_score, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING start_time, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		s.ID, s.SessionID, s.UserID, s.Role, selected, rounds, completed, s.OverallScore, s.Status,
	).Scan(&s.StartTime, &s.CreatedAt, &s.UpdatedAt)
}

func (r *InterviewRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM interviews WHERE session_id = $1`
	return scanSession(r.pool.QueryRow(ctx, query, sessionID))
}

// GetActiveByUser returns the user's most recently started active session.
func (r *InterviewRepo) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.InterviewSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM interviews
		WHERE user_id = $1 AND status = 'active'
		ORDER BY start_time DESC LIMIT 1`
	return scanSession(r.pool.QueryRow(ctx, query, userID))
}

func (r *InterviewRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.InterviewSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM interviews
		WHERE user_id = $1 ORDER BY start_time DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.InterviewSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// CancelActiveByUser marks every active session of the user as cancelled
// and stamps their end time. Returns the number of sessions cancelled.
func (r *InterviewRepo) CancelActiveByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE interviews
		SET status = 'cancelled', end_time = NOW(), revision = revision + 1, updated_at = NOW()
		WHERE user_id = $1 AND status = 'active'`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// UpdateSelectedRounds replaces the selected-rounds list, guarded by the
// revision the caller read. Returns false when the revision moved on.
func (r *InterviewRepo) UpdateSelectedRounds(ctx context.Context, id uuid.UUID, selectedRounds []string, revision int) (bool, error) {
	selected, err := json.Marshal(selectedRounds)
	if err != nil {
		return false, fmt.Errorf("failed to marshal selected rounds: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE interviews
		SET selected_rounds = $2, revision = revision + 1, updated_at = NOW()
		WHERE id = $1 AND revision = $3`,
		id, selected, revision)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SaveRound writes one round's record into the rounds document without
// touching the other rounds, guarded by the revision the caller read.
func (r *InterviewRepo) SaveRound(ctx context.Context, id uuid.UUID, roundType string, rec *models.RoundRecord, revision int) (bool, error) {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to marshal round record: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE interviews
		SET rounds = jsonb_set(rounds, ARRAY[$2], $3::jsonb, true),
		    revision = revision + 1, updated_at = NOW()
		WHERE id = $1 AND revision = $4`,
		id, roundType, recJSON, revision)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteRound applies one submission's effects in a single conditional
// update: the touched round's record plus the recomputed aggregates. Only
// these fields change, so concurrent submissions to other rounds are never
// clobbered; the revision guard catches the ones racing on the aggregates.
func (r *InterviewRepo) CompleteRound(ctx context.Context, s *models.InterviewSession, roundType string, revision int) (bool, error) {
	rec, ok := s.Rounds[roundType]
	if !ok {
		return false, fmt.Errorf("round %s not present on session", roundType)
	}
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to marshal round record: %w", err)
	}
	completed, err := json.Marshal(s.CompletedRounds)
	if err != nil {
		return false, fmt.Errorf("failed to marshal completed rounds: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE interviews
		SET rounds = jsonb_set(rounds, ARRAY[$2], $3::jsonb, true),
		    completed_rounds = $4,
		    overall_score = $5,
		    status = $6,
		    end_time = $7,
		    revision = revision + 1,
		    updated_at = NOW()
		WHERE id = $1 AND revision = $8`,
		s.ID, roundType, recJSON, completed, s.OverallScore, s.Status, s.EndTime, revision)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func marshalSessionJSON(s *models.InterviewSession) (selected, rounds, completed []byte, err error) {
	if s.SelectedRounds == nil {
		s.SelectedRounds = []string{}
	}
	if s.CompletedRounds == nil {
		s.CompletedRounds = []string{}
	}
	if s.Rounds == nil {
		s.Rounds = make(map[string]*models.RoundRecord)
	}

	if selected, err = json.Marshal(s.SelectedRounds); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal selected rounds: %w", err)
	}
	if rounds, err = json.Marshal(s.Rounds); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal rounds: %w", err)
	}
	if completed, err = json.Marshal(s.CompletedRounds); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal completed rounds: %w", err)
	}
	return selected, rounds, completed, nil
}

func scanSession(row pgx.Row) (*models.InterviewSession, error) {
	s := &models.InterviewSession{}
	var selected, rounds, completed []byte
	var endTime *time.Time

	err := row.Scan(
		&s.ID, &s.SessionID, &s.UserID, &s.Role, &selected, &rounds, &completed,
		&s.OverallScore, &s.Status, &s.Revision, &s.StartTime, &endTime, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.EndTime = endTime

	if err := json.Unmarshal(selected, &s.SelectedRounds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selected rounds: %w", err)
	}
	if err := json.Unmarshal(rounds, &s.Rounds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rounds: %w", err)
	}
	if err := json.Unmarshal(completed, &s.CompletedRounds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal completed rounds: %w", err)
	}
	if s.Rounds == nil {
		s.Rounds = make(map[string]*models.RoundRecord)
	}
	return s, nil
}
