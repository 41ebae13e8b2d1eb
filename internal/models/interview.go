package models

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Round type tags. Round names are normalized (lowercased, trimmed) before
// any lookup, so these constants are the only forms stored.
const (
	RoundAptitude  = "aptitude"
	RoundCoding    = "coding"
	RoundTechnical = "technical"
	RoundHR        = "hr"
)

// Session statuses.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
)

// Round statuses.
const (
	RoundPending    = "pending"
	RoundInProgress = "in-progress"
	RoundCompleted  = "completed"
)

// Question types.
const (
	QuestionMCQ    = "mcq"
	QuestionText   = "text"
	QuestionCoding = "coding"
)

// NormalizeRound lowercases and trims a round tag. Returns "" for tags
// outside the four supported types.
func NormalizeRound(roundType string) string {
	r := strings.ToLower(strings.TrimSpace(roundType))
	switch r {
	case RoundAptitude, RoundCoding, RoundTechnical, RoundHR:
		return r
	}
	return ""
}

type TestCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// Question is polymorphic over round type: MCQ questions carry Options and
// a canonical Answer letter, coding questions carry Title/Description/
// Difficulty/TestCases, text questions are just a prompt (optionally with a
// reference Answer used as grading context).
type Question struct {
	Type     string   `json:"type"`
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`
	Answer   string   `json:"answer,omitempty"`

	// Coding round fields
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Difficulty  string     `json:"difficulty,omitempty"`
	TestCases   []TestCase `json:"testCases,omitempty"`
}

// RoundRecord is one round's question/answer/score bundle within a session.
// Answers are keyed by question index ("0", "1", ...) and hold the user's
// raw answer text, for MCQ rounds the literal option text the user clicked.
type RoundRecord struct {
	Questions   []Question        `json:"questions"`
	Answers     map[string]string `json:"answers,omitempty"`
	Score       *int              `json:"score,omitempty"`
	Status      string            `json:"status"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
}

type InterviewSession struct {
	ID              uuid.UUID               `json:"-"`
	SessionID       string                  `json:"session_id"`
	UserID          uuid.UUID               `json:"user_id"`
	Role            string                  `json:"role"`
	SelectedRounds  []string                `json:"selected_rounds"`
	Rounds          map[string]*RoundRecord `json:"rounds"`
	CompletedRounds []string                `json:"completed_rounds"`
	OverallScore    int                     `json:"overall_score"`
	Status          string                  `json:"status"`
	Revision        int                     `json:"-"`
	StartTime       time.Time               `json:"start_time"`
	EndTime         *time.Time              `json:"end_time,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// NewSessionID returns a client-facing session identifier.
func NewSessionID() string {
	return fmt.Sprintf("INT-%d-%s", time.Now().UnixMilli(), randBase36(9))
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36[rand.Intn(len(base36))]
	}
	return string(b)
}

// MergeSelectedRounds unions newly requested rounds into the selected list,
// preserving the order rounds were first selected. Previously selected
// rounds are never removed.
func (s *InterviewSession) MergeSelectedRounds(rounds []string) {
	for _, r := range rounds {
		norm := NormalizeRound(r)
		if norm == "" {
			continue
		}
		if !containsRound(s.SelectedRounds, norm) {
			s.SelectedRounds = append(s.SelectedRounds, norm)
		}
	}
}

// HasCachedQuestions reports whether a round was already started and has a
// non-empty question set.
func (s *InterviewSession) HasCachedQuestions(roundType string) bool {
	rec, ok := s.Rounds[roundType]
	return ok && rec != nil && len(rec.Questions) > 0
}

// ServeCached reports whether a round start may reuse the stored question
// set. Coding rounds always regenerate, so repeat attempts never see the
// same problems; every other round returns its cached set once started.
func (s *InterviewSession) ServeCached(roundType string) bool {
	return roundType != RoundCoding && s.HasCachedQuestions(roundType)
}

// InitializeRound stores a freshly generated question set for a round,
// overwriting any prior record, and marks the round in-progress.
func (s *InterviewSession) InitializeRound(roundType string, questions []Question) {
	if s.Rounds == nil {
		s.Rounds = make(map[string]*RoundRecord)
	}
	now := time.Now()
	s.Rounds[roundType] = &RoundRecord{
		Questions: questions,
		Status:    RoundInProgress,
		StartedAt: &now,
	}
}

// MarkRoundCompleted records answers and the round score, adds the round to
// completedRounds (idempotently), recomputes the overall score, and if every
// selected round is now completed, transitions the session to completed and
// stamps the end time. Returns true when this call completed the session.
func (s *InterviewSession) MarkRoundCompleted(roundType string, answers map[string]string, score int) bool {
	rec, ok := s.Rounds[roundType]
	if !ok || rec == nil {
		return false
	}
	now := time.Now()
	rec.Answers = answers
	rec.Score = &score
	rec.Status = RoundCompleted
	rec.SubmittedAt = &now

	if containsRound(s.SelectedRounds, roundType) && !containsRound(s.CompletedRounds, roundType) {
		s.CompletedRounds = append(s.CompletedRounds, roundType)
	}
	s.RecomputeOverallScore()

	if s.AllRoundsCompleted() && s.Status == SessionActive {
		s.Status = SessionCompleted
		s.EndTime = &now
		return true
	}
	return false
}

// RecomputeOverallScore sets OverallScore to the rounded arithmetic mean of
// every round that has a score. Sessions with no scored rounds get 0.
func (s *InterviewSession) RecomputeOverallScore() {
	sum, n := 0, 0
	for _, rec := range s.Rounds {
		if rec != nil && rec.Score != nil {
			sum += *rec.Score
			n++
		}
	}
	if n == 0 {
		s.OverallScore = 0
		return
	}
	s.OverallScore = int(math.Round(float64(sum) / float64(n)))
}

// AllRoundsCompleted reports whether completedRounds covers selectedRounds.
// Order does not matter: rounds may be submitted in any order.
func (s *InterviewSession) AllRoundsCompleted() bool {
	if len(s.SelectedRounds) == 0 {
		return false
	}
	for _, r := range s.SelectedRounds {
		if !containsRound(s.CompletedRounds, r) {
			return false
		}
	}
	return true
}

// NextRound returns the first selected round not yet completed, in the order
// the user selected them, or "" when every round is done.
func (s *InterviewSession) NextRound() string {
	for _, r := range s.SelectedRounds {
		if !containsRound(s.CompletedRounds, r) {
			return r
		}
	}
	return ""
}

// ShouldAdvance reports whether the session still has rounds left.
func (s *InterviewSession) ShouldAdvance() bool {
	return len(s.CompletedRounds) < len(s.SelectedRounds)
}

func containsRound(rounds []string, roundType string) bool {
	for _, r := range rounds {
		if r == roundType {
			return true
		}
	}
	return false
}

// Request/response payloads for the interview endpoints.

type StartRoundRequest struct {
	Role           string   `json:"role"`
	RoundType      string   `json:"roundType"`
	SelectedRounds []string `json:"selectedRounds,omitempty"`
	ForceNew       bool     `json:"forceNew,omitempty"`
}

type StartRoundResponse struct {
	SessionID string     `json:"sessionId"`
	RoundType string     `json:"roundType"`
	Questions []Question `json:"questions"`
}

type SubmitRoundRequest struct {
	SessionID   string            `json:"sessionId,omitempty"`
	RoundType   string            `json:"roundType"`
	Answers     map[string]string `json:"answers"`
	PassedCount *int              `json:"passedCount,omitempty"`
}

type SubmitRoundResponse struct {
	SessionID    string `json:"sessionId"`
	RoundType    string `json:"roundType"`
	Score        int    `json:"score"`
	AverageScore int    `json:"averageScore"`
	CompletedAll bool   `json:"completedAll"`
	NextRound    string `json:"nextRound,omitempty"`
}
