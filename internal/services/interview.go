package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"mockmate-backend/internal/models"
)

// sessionStore is the slice of InterviewRepo the service needs; tests
// substitute an in-memory stub to exercise the revision-conflict paths.
type sessionStore interface {
	Create(ctx context.Context, s *models.InterviewSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.InterviewSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.InterviewSession, error)
	CancelActiveByUser(ctx context.Context, userID uuid.UUID) (int, error)
	UpdateSelectedRounds(ctx context.Context, id uuid.UUID, selectedRounds []string, revision int) (bool, error)
	SaveRound(ctx context.Context, id uuid.UUID, roundType string, rec *models.RoundRecord, revision int) (bool, error)
	CompleteRound(ctx context.Context, s *models.InterviewSession, roundType string, revision int) (bool, error)
}

// InterviewService owns the session lifecycle: starting rounds (with
// question generation and caching), scoring submissions, progression, and
// handing completed sessions to the feedback service.
type InterviewService struct {
	interviewRepo sessionStore
	generator     *QuestionGenerator
	ai            *GeminiService // nil when no API key is configured
	feedback      *FeedbackService
	pubsub        *redis.Client
}

func NewInterviewService(
	interviewRepo sessionStore,
	generator *QuestionGenerator,
	ai *GeminiService,
	feedback *FeedbackService,
	pubsubClient *redis.Client,
) *InterviewService {
	return &InterviewService{
		interviewRepo: interviewRepo,
		generator:     generator,
		ai:            ai,
		feedback:      feedback,
		pubsub:        pubsubClient,
	}
}

// StartRound finds or creates the user's session and returns the round's
// questions. Cached questions are reused for every round type except
// coding, which always regenerates.
func (s *InterviewService) StartRound(ctx context.Context, userID uuid.UUID, req models.StartRoundRequest) (*models.StartRoundResponse, error) {
	roundType := models.NormalizeRound(req.RoundType)
	if roundType == "" {
		return nil, &ValidationError{Fields: map[string]string{"roundType": "Round type must be one of aptitude, coding, technical, hr"}}
	}

	if req.ForceNew {
		if _, err := s.interviewRepo.CancelActiveByUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to cancel active sessions: %w", err)
		}
	}

	session, err := s.interviewRepo.GetActiveByUser(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		session, err = s.createSession(ctx, userID, roundType, req)
	}
	if err != nil {
		return nil, err
	}

	if err := s.mergeSelectedRounds(ctx, session, roundType, req.SelectedRounds); err != nil {
		return nil, err
	}

	if session.ServeCached(roundType) {
		return &models.StartRoundResponse{
			SessionID: session.SessionID,
			RoundType: roundType,
			Questions: session.Rounds[roundType].Questions,
		}, nil
	}

	questions := s.generator.Generate(ctx, roundType, session.Role)
	session.InitializeRound(roundType, questions)

	ok, err := s.interviewRepo.SaveRound(ctx, session.ID, roundType, session.Rounds[roundType], session.Revision)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Revision moved on under us; re-read once and retry.
		fresh, err := s.interviewRepo.GetBySessionID(ctx, session.SessionID)
		if err != nil {
			return nil, err
		}
		fresh.InitializeRound(roundType, questions)
		ok, err = s.interviewRepo.SaveRound(ctx, fresh.ID, roundType, fresh.Rounds[roundType], fresh.Revision)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("session %s is being updated concurrently", session.SessionID)
		}
	}

	return &models.StartRoundResponse{
		SessionID: session.SessionID,
		RoundType: roundType,
		Questions: questions,
	}, nil
}

func (s *InterviewService) createSession(ctx context.Context, userID uuid.UUID, roundType string, req models.StartRoundRequest) (*models.InterviewSession, error) {
	if req.Role == "" {
		return nil, &ValidationError{Fields: map[string]string{"role": "Role is required to start an interview"}}
	}

	session := &models.InterviewSession{
		SessionID: models.NewSessionID(),
		UserID:    userID,
		Role:      req.Role,
		Rounds:    make(map[string]*models.RoundRecord),
		Status:    models.SessionActive,
	}
	session.MergeSelectedRounds(req.SelectedRounds)
	if len(session.SelectedRounds) == 0 {
		session.SelectedRounds = []string{roundType}
	}

	if err := s.interviewRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	log.Printf("Created interview session %s for user %s (role=%s, rounds=%v)",
		session.SessionID, userID, session.Role, session.SelectedRounds)
	return session, nil
}

// mergeSelectedRounds unions newly requested rounds into an existing
// session. The requested round itself is always included.
func (s *InterviewService) mergeSelectedRounds(ctx context.Context, session *models.InterviewSession, roundType string, requested []string) error {
	before := len(session.SelectedRounds)
	session.MergeSelectedRounds(requested)
	session.MergeSelectedRounds([]string{roundType})
	if len(session.SelectedRounds) == before {
		return nil
	}

	ok, err := s.interviewRepo.UpdateSelectedRounds(ctx, session.ID, session.SelectedRounds, session.Revision)
	if err != nil {
		return err
	}
	if !ok {
		fresh, err := s.interviewRepo.GetBySessionID(ctx, session.SessionID)
		if err != nil {
			return err
		}
		fresh.MergeSelectedRounds(session.SelectedRounds)
		ok, err = s.interviewRepo.UpdateSelectedRounds(ctx, fresh.ID, fresh.SelectedRounds, fresh.Revision)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("session %s is being updated concurrently", session.SessionID)
		}
		fresh.Revision++
		*session = *fresh
		return nil
	}
	session.Revision++
	return nil
}

// SubmitRound scores a round's answers, records the result, and triggers
// feedback generation when the submission completes the session.
func (s *InterviewService) SubmitRound(ctx context.Context, userID uuid.UUID, req models.SubmitRoundRequest) (*models.SubmitRoundResponse, error) {
	roundType := models.NormalizeRound(req.RoundType)
	if roundType == "" {
		return nil, &ValidationError{Fields: map[string]string{"roundType": "Round type must be one of aptitude, coding, technical, hr"}}
	}

	session, err := s.locateSession(ctx, userID, req.SessionID)
	if err != nil {
		return nil, err
	}

	if !session.HasCachedQuestions(roundType) {
		return nil, &NotFoundError{Message: fmt.Sprintf("Round %s has no questions; start the round first", roundType)}
	}

	answers := req.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	score := s.scoreRound(ctx, session, roundType, answers, req.PassedCount)

	completedAll, err := s.applySubmission(ctx, session, roundType, answers, score)
	if err != nil {
		return nil, err
	}

	log.Printf("Scored round %s of session %s: score=%d overall=%d completedAll=%v",
		roundType, session.SessionID, score, session.OverallScore, completedAll)

	publishUserUpdate(ctx, s.pubsub, session.UserID, models.WSMessage{
		Type: "round_scored",
		Payload: models.RoundScoredEvent{
			SessionID:    session.SessionID,
			RoundType:    roundType,
			Score:        score,
			AverageScore: session.OverallScore,
			CompletedAll: completedAll,
		},
	})

	if completedAll {
		// Feedback generation must never fail the submit response.
		s.feedback.Trigger(ctx, session)
	}

	return &models.SubmitRoundResponse{
		SessionID:    session.SessionID,
		RoundType:    roundType,
		Score:        score,
		AverageScore: session.OverallScore,
		CompletedAll: completedAll,
		NextRound:    session.NextRound(),
	}, nil
}

// applySubmission runs the state-machine transition and persists it with a
// field-scoped conditional update, retrying once on a revision conflict
// with a fresh read so concurrent submissions of other rounds are folded in
// rather than lost.
func (s *InterviewService) applySubmission(ctx context.Context, session *models.InterviewSession, roundType string, answers map[string]string, score int) (bool, error) {
	completedAll := session.MarkRoundCompleted(roundType, answers, score)

	ok, err := s.interviewRepo.CompleteRound(ctx, session, roundType, session.Revision)
	if err != nil {
		return false, err
	}
	if ok {
		session.Revision++
		return completedAll, nil
	}

	fresh, err := s.interviewRepo.GetBySessionID(ctx, session.SessionID)
	if err != nil {
		return false, err
	}
	fresh.InitializeRound(roundType, session.Rounds[roundType].Questions)
	completedAll = fresh.MarkRoundCompleted(roundType, answers, score)

	ok, err = s.interviewRepo.CompleteRound(ctx, fresh, roundType, fresh.Revision)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("session %s is being updated concurrently", session.SessionID)
	}
	*session = *fresh
	session.Revision++
	return completedAll, nil
}

func (s *InterviewService) scoreRound(ctx context.Context, session *models.InterviewSession, roundType string, answers map[string]string, passedCount *int) int {
	questions := session.Rounds[roundType].Questions

	switch roundType {
	case models.RoundAptitude:
		return ScoreAptitude(questions, answers)
	case models.RoundCoding:
		passed := 0
		if passedCount != nil {
			passed = *passedCount
		}
		return ScoreCoding(passed)
	case models.RoundTechnical:
		return ScoreTechnical(ctx, questions, answers, session.Role, s.technicalGrader())
	case models.RoundHR:
		return ScoreHR(ctx, questions, answers, session.Role, s.behavioralGrader())
	}
	return 0
}

func (s *InterviewService) technicalGrader() TextGrader {
	if s.ai == nil {
		return nil
	}
	return s.ai.GradeTechnicalAnswer
}

func (s *InterviewService) behavioralGrader() TextGrader {
	if s.ai == nil {
		return nil
	}
	return s.ai.GradeBehavioralAnswer
}

// locateSession resolves the target session by id when provided, falling
// back to the user's most recent active session.
func (s *InterviewService) locateSession(ctx context.Context, userID uuid.UUID, sessionID string) (*models.InterviewSession, error) {
	if sessionID != "" {
		session, err := s.interviewRepo.GetBySessionID(ctx, sessionID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Interview session not found"}
		}
		if err != nil {
			return nil, err
		}
		if session.UserID != userID {
			return nil, &NotFoundError{Message: "Interview session not found"}
		}
		return session, nil
	}

	session, err := s.interviewRepo.GetActiveByUser(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "No active interview session"}
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetResults returns the session snapshot plus its feedback (nil when not
// yet generated).
func (s *InterviewService) GetResults(ctx context.Context, userID uuid.UUID, sessionID string) (*models.InterviewSession, *models.Feedback, error) {
	session, err := s.interviewRepo.GetBySessionID(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, &NotFoundError{Message: "Interview session not found"}
	}
	if err != nil {
		return nil, nil, err
	}
	if session.UserID != userID {
		return nil, nil, &NotFoundError{Message: "Interview session not found"}
	}

	feedback, err := s.feedback.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, feedback, nil
}

// ListResults returns all of the user's sessions, newest first.
func (s *InterviewService) ListResults(ctx context.Context, userID uuid.UUID) ([]*models.InterviewSession, error) {
	return s.interviewRepo.ListByUser(ctx, userID)
}

// Progress summarizes the user's active session for the round wizard.
type Progress struct {
	SessionID       string   `json:"session_id"`
	Role            string   `json:"role"`
	SelectedRounds  []string `json:"selected_rounds"`
	CompletedRounds []string `json:"completed_rounds"`
	NextRound       string   `json:"next_round"`
	OverallScore    int      `json:"overall_score"`
	CompletedAll    bool     `json:"completed_all"`
}

// GetProgress returns the active-session summary, or nil when the user has
// no active session (not an error).
func (s *InterviewService) GetProgress(ctx context.Context, userID uuid.UUID) (*Progress, error) {
	session, err := s.interviewRepo.GetActiveByUser(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &Progress{
		SessionID:       session.SessionID,
		Role:            session.Role,
		SelectedRounds:  session.SelectedRounds,
		CompletedRounds: session.CompletedRounds,
		NextRound:       session.NextRound(),
		OverallScore:    session.OverallScore,
		CompletedAll:    session.AllRoundsCompleted(),
	}, nil
}

// StartNew cancels any active session so the next round-start creates a
// fresh one. Returns how many sessions were cancelled.
func (s *InterviewService) StartNew(ctx context.Context, userID uuid.UUID) (int, error) {
	cancelled, err := s.interviewRepo.CancelActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if cancelled > 0 {
		log.Printf("Cancelled %d active session(s) for user %s", cancelled, userID)
	}
	return cancelled, nil
}

// publishUserUpdate sends a WebSocket update via Redis pub/sub.
func publishUserUpdate(ctx context.Context, rdb *redis.Client, userID uuid.UUID, msg models.WSMessage) {
	if rdb == nil {
		return
	}
	data, _ := json.Marshal(msg)
	rdb.Publish(ctx, fmt.Sprintf("user_updates:%s", userID.String()), string(data))
}
