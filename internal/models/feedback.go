package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Feedback is the post-completion summary for one session. At most one row
// exists per session id.
type Feedback struct {
	ID           uuid.UUID      `json:"id"`
	FeedbackID   string         `json:"feedback_id"`
	SessionID    string         `json:"session_id"`
	UserID       uuid.UUID      `json:"user_id"`
	Role         string         `json:"role"`
	AverageScore int            `json:"average_score"`
	RoundScores  map[string]int `json:"round_scores"`
	Improvement  string         `json:"improvement"`
	Suggestion   string         `json:"suggestion"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewFeedbackID returns a client-facing feedback identifier.
func NewFeedbackID() string {
	return fmt.Sprintf("FB-%d-%s", time.Now().UnixMilli(), randBase36(9))
}
