package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mockmate-backend/internal/models"
)

type FeedbackRepo struct {
	pool *pgxpool.Pool
}

func NewFeedbackRepo(pool *pgxpool.Pool) *FeedbackRepo {
	return &FeedbackRepo{pool: pool}
}

// Create inserts a feedback row unless one already exists for the session.
// The unique constraint on session_id is the final word against duplicate
// submissions racing past the existence pre-check. Returns false when the
// row was already there.
func (r *FeedbackRepo) Create(ctx context.Context, f *models.Feedback) (bool, error) {
	f.ID = uuid.New()

	scores, err := json.Marshal(f.RoundScores)
	if err != nil {
		return false, fmt.Errorf("failed to marshal round scores: %w", err)
	}

	query := `INSERT INTO feedbacks (id, feedback_id, session_id, user_id, role, average_score, round_scores, improvement, suggestion)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING created_at`

	err = r.pool.QueryRow(ctx, query,
		f.ID, f.FeedbackID, f.SessionID, f.UserID, f.Role, f.AverageScore, scores, f.Improvement, f.Suggestion,
	).Scan(&f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *FeedbackRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Feedback, error) {
	f := &models.Feedback{}
	var scores []byte

	query := `SELECT id, feedback_id, session_id, user_id, role, average_score, round_scores, improvement, suggestion, created_at
		FROM feedbacks WHERE session_id = $1`

	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&f.ID, &f.FeedbackID, &f.SessionID, &f.UserID, &f.Role, &f.AverageScore,
		&scores, &f.Improvement, &f.Suggestion, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scores, &f.RoundScores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal round scores: %w", err)
	}
	return f, nil
}

// ExistsBySessionID is the cheap idempotency pre-check before generating
// feedback text.
func (r *FeedbackRepo) ExistsBySessionID(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM feedbacks WHERE session_id = $1)", sessionID,
	).Scan(&exists)
	return exists, err
}
