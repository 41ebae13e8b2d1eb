package models

import (
	"time"

	"github.com/google/uuid"
)

// Job tracks one queued feedback-generation task.
type Job struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Type         string     `json:"type"` // "feedback-generation"
	SessionID    string     `json:"session_id"`
	Status       string     `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	ErrorMessage *string    `json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

const JobFeedbackGeneration = "feedback-generation"

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type RoundScoredEvent struct {
	SessionID    string `json:"session_id"`
	RoundType    string `json:"round_type"`
	Score        int    `json:"score"`
	AverageScore int    `json:"average_score"`
	CompletedAll bool   `json:"completed_all"`
}

type FeedbackReadyEvent struct {
	SessionID    string `json:"session_id"`
	FeedbackID   string `json:"feedback_id"`
	AverageScore int    `json:"average_score"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
