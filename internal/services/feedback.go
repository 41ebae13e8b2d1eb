package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"mockmate-backend/internal/models"
	"mockmate-backend/internal/repository"
)

// FeedbackQueue is the Redis list the worker pool consumes.
const FeedbackQueue = "feedback-generation"

// feedbackStore is the slice of FeedbackRepo the service needs; tests
// substitute a stub to exercise the lost-insert-race path.
type feedbackStore interface {
	Create(ctx context.Context, f *models.Feedback) (bool, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Feedback, error)
	ExistsBySessionID(ctx context.Context, sessionID string) (bool, error)
}

// FeedbackService produces the one-per-session post-completion feedback
// record. The normal path enqueues a job for the worker pool; if enqueueing
// fails the feedback is generated inline so the session never ends up
// completed-but-feedbackless.
type FeedbackService struct {
	feedbackRepo feedbackStore
	jobRepo      *repository.JobRepo
	ai           *GeminiService // nil when no API key is configured
	queue        *redis.Client
	pubsub       *redis.Client
	timeout      time.Duration
}

func NewFeedbackService(
	feedbackRepo feedbackStore,
	jobRepo *repository.JobRepo,
	ai *GeminiService,
	queueClient *redis.Client,
	pubsubClient *redis.Client,
	timeout time.Duration,
) *FeedbackService {
	return &FeedbackService{
		feedbackRepo: feedbackRepo,
		jobRepo:      jobRepo,
		ai:           ai,
		queue:        queueClient,
		pubsub:       pubsubClient,
		timeout:      timeout,
	}
}

// Trigger fires feedback generation for a just-completed session. It never
// returns an error: failures are logged and recovered via the inline path,
// because feedback must not block or fail the submit response.
func (s *FeedbackService) Trigger(ctx context.Context, session *models.InterviewSession) {
	exists, err := s.feedbackRepo.ExistsBySessionID(ctx, session.SessionID)
	if err != nil {
		log.Printf("Feedback existence check failed for session %s: %v", session.SessionID, err)
	}
	if exists {
		return
	}

	job := &models.Job{
		UserID:    session.UserID,
		Type:      models.JobFeedbackGeneration,
		SessionID: session.SessionID,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		log.Printf("Failed to create feedback job for session %s, generating inline: %v", session.SessionID, err)
		s.generateInline(ctx, session)
		return
	}

	if err := s.enqueue(ctx, job.ID.String()); err != nil {
		log.Printf("Failed to enqueue feedback job %s, generating inline: %v", job.ID, err)
		s.jobRepo.UpdateStatus(ctx, job.ID, "failed")
		s.generateInline(ctx, session)
	}
}

func (s *FeedbackService) enqueue(ctx context.Context, jobID string) error {
	return s.queue.LPush(ctx, FeedbackQueue, jobID).Err()
}

func (s *FeedbackService) generateInline(ctx context.Context, session *models.InterviewSession) {
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.GenerateForSession(genCtx, session); err != nil {
		log.Printf("Inline feedback generation failed for session %s: %v", session.SessionID, err)
	}
}

// GenerateForSession builds and persists the feedback record for a
// completed session. AI text is attempted first; any failure degrades to
// the deterministic score-band fallback. Safe to call more than once: the
// insert is idempotent by session id.
func (s *FeedbackService) GenerateForSession(ctx context.Context, session *models.InterviewSession) (*models.Feedback, error) {
	roundScores := make(map[string]int)
	for roundType, rec := range session.Rounds {
		if rec != nil && rec.Score != nil {
			roundScores[roundType] = *rec.Score
		}
	}

	improvement, suggestion := "", ""
	if s.ai != nil {
		var err error
		improvement, suggestion, err = s.ai.GenerateFeedback(ctx, session.Role, session.OverallScore, roundScores)
		if err != nil {
			log.Printf("AI feedback failed for session %s, using fallback: %v", session.SessionID, err)
		}
	}
	if improvement == "" || suggestion == "" {
		improvement, suggestion = FallbackFeedback(session.Role, session.OverallScore)
	}

	feedback := &models.Feedback{
		FeedbackID:   models.NewFeedbackID(),
		SessionID:    session.SessionID,
		UserID:       session.UserID,
		Role:         session.Role,
		AverageScore: session.OverallScore,
		RoundScores:  roundScores,
		Improvement:  improvement,
		Suggestion:   suggestion,
	}

	created, err := s.feedbackRepo.Create(ctx, feedback)
	if err != nil {
		return nil, fmt.Errorf("failed to persist feedback: %w", err)
	}
	if !created {
		// Lost the race to a concurrent submit; serve the winner's record.
		return s.feedbackRepo.GetBySessionID(ctx, session.SessionID)
	}

	publishUserUpdate(ctx, s.pubsub, session.UserID, models.WSMessage{
		Type: "feedback_ready",
		Payload: models.FeedbackReadyEvent{
			SessionID:    session.SessionID,
			FeedbackID:   feedback.FeedbackID,
			AverageScore: feedback.AverageScore,
		},
	})
	return feedback, nil
}

// GetBySessionID returns the feedback for a session, or nil when it has not
// been generated yet.
func (s *FeedbackService) GetBySessionID(ctx context.Context, sessionID string) (*models.Feedback, error) {
	feedback, err := s.feedbackRepo.GetBySessionID(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return feedback, nil
}

// FallbackFeedback is the deterministic rule table used whenever the AI
// call is unavailable or unparseable.
func FallbackFeedback(role string, averageScore int) (improvement, suggestion string) {
	switch {
	case averageScore >= 90:
		improvement = "Excellent performance! You demonstrated strong command across every round; go deeper into advanced topics to stay sharp."
	case averageScore >= 75:
		improvement = "Strong performance overall. Polish edge cases and tighten your weaker answers to reach the top band."
	case averageScore >= 60:
		improvement = "Good foundation. Focus on consistent practice in your weaker rounds to lift your overall score."
	default:
		improvement = "Needs significant improvement. Revisit the fundamentals and practice each round type regularly before your next attempt."
	}
	return improvement, roleSuggestion(role)
}

var roleSuggestions = map[string]string{
	"frontend": "Build small projects exercising modern JavaScript, component frameworks, and responsive CSS, and practice explaining rendering behavior.",
	"backend":  "Practice designing REST APIs, writing efficient SQL, and reasoning about caching and data consistency.",
	"full":     "Alternate between UI-focused and API-focused practice projects so both halves of the stack stay fresh.",
	"data":     "Work through SQL and Python exercises daily and practice explaining model evaluation trade-offs out loud.",
	"devops":   "Set up a small CI/CD pipeline end to end and practice debugging container and deployment failures.",
	"mobile":   "Ship a small app to a device and practice explaining lifecycle, state, and performance decisions.",
}

func roleSuggestion(role string) string {
	lower := strings.ToLower(role)
	for key, suggestion := range roleSuggestions {
		if strings.Contains(lower, key) {
			return suggestion
		}
	}
	return "Practice data structures, algorithms, and clear communication of your problem-solving steps, and do regular mock interviews."
}
