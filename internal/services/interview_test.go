package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mockmate-backend/internal/models"
)

// fakeSessionStore keeps one session in memory and enforces the same
// revision precondition as the SQL repository, so the conflict-retry paths
// can be exercised without a database.
type fakeSessionStore struct {
	stored *models.InterviewSession

	failMergeOnce  bool
	mergeCalls     int
	saveRoundCalls int
	saveRoundMiss  int
}

func cloneSession(s *models.InterviewSession) *models.InterviewSession {
	c := *s
	c.SelectedRounds = append([]string(nil), s.SelectedRounds...)
	c.CompletedRounds = append([]string(nil), s.CompletedRounds...)
	c.Rounds = make(map[string]*models.RoundRecord, len(s.Rounds))
	for k, v := range s.Rounds {
		rec := *v
		c.Rounds[k] = &rec
	}
	return &c
}

func (f *fakeSessionStore) Create(_ context.Context, s *models.InterviewSession) error {
	s.ID = uuid.New()
	f.stored = cloneSession(s)
	return nil
}

func (f *fakeSessionStore) GetBySessionID(_ context.Context, sessionID string) (*models.InterviewSession, error) {
	if f.stored == nil || f.stored.SessionID != sessionID {
		return nil, pgx.ErrNoRows
	}
	return cloneSession(f.stored), nil
}

func (f *fakeSessionStore) GetActiveByUser(_ context.Context, userID uuid.UUID) (*models.InterviewSession, error) {
	if f.stored == nil || f.stored.UserID != userID || f.stored.Status != models.SessionActive {
		return nil, pgx.ErrNoRows
	}
	return cloneSession(f.stored), nil
}

func (f *fakeSessionStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.InterviewSession, error) {
	if f.stored == nil || f.stored.UserID != userID {
		return nil, nil
	}
	return []*models.InterviewSession{cloneSession(f.stored)}, nil
}

func (f *fakeSessionStore) CancelActiveByUser(_ context.Context, userID uuid.UUID) (int, error) {
	if f.stored != nil && f.stored.UserID == userID && f.stored.Status == models.SessionActive {
		f.stored.Status = models.SessionCancelled
		f.stored.Revision++
		return 1, nil
	}
	return 0, nil
}

func (f *fakeSessionStore) UpdateSelectedRounds(_ context.Context, id uuid.UUID, selectedRounds []string, revision int) (bool, error) {
	f.mergeCalls++
	if f.failMergeOnce {
		// Simulate a concurrent writer landing first.
		f.failMergeOnce = false
		f.stored.Revision++
		return false, nil
	}
	if revision != f.stored.Revision {
		return false, nil
	}
	f.stored.SelectedRounds = append([]string(nil), selectedRounds...)
	f.stored.Revision++
	return true, nil
}

func (f *fakeSessionStore) SaveRound(_ context.Context, id uuid.UUID, roundType string, rec *models.RoundRecord, revision int) (bool, error) {
	f.saveRoundCalls++
	if revision != f.stored.Revision {
		f.saveRoundMiss++
		return false, nil
	}
	copied := *rec
	f.stored.Rounds[roundType] = &copied
	f.stored.Revision++
	return true, nil
}

func (f *fakeSessionStore) CompleteRound(_ context.Context, s *models.InterviewSession, roundType string, revision int) (bool, error) {
	if revision != f.stored.Revision {
		return false, nil
	}
	rec := *s.Rounds[roundType]
	f.stored.Rounds[roundType] = &rec
	f.stored.CompletedRounds = append([]string(nil), s.CompletedRounds...)
	f.stored.OverallScore = s.OverallScore
	f.stored.Status = s.Status
	f.stored.EndTime = s.EndTime
	f.stored.Revision++
	return true, nil
}

func activeTestSession(userID uuid.UUID, selected ...string) *models.InterviewSession {
	return &models.InterviewSession{
		ID:             uuid.New(),
		SessionID:      models.NewSessionID(),
		UserID:         userID,
		Role:           "Backend Engineer",
		SelectedRounds: selected,
		Rounds:         make(map[string]*models.RoundRecord),
		Status:         models.SessionActive,
		Revision:       1,
	}
}

func TestStartRound_ServesCacheExceptCoding(t *testing.T) {
	userID := uuid.New()
	session := activeTestSession(userID, models.RoundAptitude, models.RoundCoding)
	session.Rounds[models.RoundAptitude] = &models.RoundRecord{
		Questions: []models.Question{{Type: models.QuestionMCQ, Question: "cached aptitude question"}},
		Status:    models.RoundInProgress,
	}
	session.Rounds[models.RoundCoding] = &models.RoundRecord{
		Questions: []models.Question{{Type: models.QuestionCoding, Title: "cached problem"}},
		Status:    models.RoundInProgress,
	}

	store := &fakeSessionStore{stored: session}
	svc := NewInterviewService(store, NewQuestionGenerator(nil), nil, nil, nil)

	// Aptitude has questions already: served as-is, nothing written.
	resp, err := svc.StartRound(context.Background(), userID, models.StartRoundRequest{RoundType: "aptitude"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(resp.Questions) != 1 || resp.Questions[0].Question != "cached aptitude question" {
		t.Errorf("Expected the cached aptitude set, got %+v", resp.Questions)
	}
	if store.saveRoundCalls != 0 {
		t.Errorf("Cached start should not write, got %d SaveRound calls", store.saveRoundCalls)
	}

	// Coding has questions too, but a second start must regenerate.
	resp, err = svc.StartRound(context.Background(), userID, models.StartRoundRequest{RoundType: "coding"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(resp.Questions) != CodingQuestionCount {
		t.Fatalf("Expected %d regenerated problems, got %d", CodingQuestionCount, len(resp.Questions))
	}
	for _, q := range resp.Questions {
		if q.Title == "cached problem" {
			t.Error("Coding round must not be served from cache")
		}
	}
	if store.saveRoundCalls != 1 {
		t.Errorf("Regenerated round should be written once, got %d SaveRound calls", store.saveRoundCalls)
	}
}

func TestStartRound_MergeRetryKeepsRevisionCurrent(t *testing.T) {
	userID := uuid.New()
	store := &fakeSessionStore{
		stored:        activeTestSession(userID, models.RoundAptitude),
		failMergeOnce: true,
	}
	svc := NewInterviewService(store, NewQuestionGenerator(nil), nil, nil, nil)

	resp, err := svc.StartRound(context.Background(), userID, models.StartRoundRequest{
		RoundType:      "technical",
		SelectedRounds: []string{"technical"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(resp.Questions) != TechnicalQuestionCount {
		t.Fatalf("Expected %d questions, got %d", TechnicalQuestionCount, len(resp.Questions))
	}

	if store.mergeCalls != 2 {
		t.Errorf("Expected one merge retry, got %d UpdateSelectedRounds calls", store.mergeCalls)
	}
	// After the retried merge the in-memory revision must match the store,
	// so the following round write lands on the first attempt.
	if store.saveRoundMiss != 0 {
		t.Errorf("Expected no revision conflicts on SaveRound, got %d", store.saveRoundMiss)
	}
	if store.saveRoundCalls != 1 {
		t.Errorf("Expected exactly one SaveRound call, got %d", store.saveRoundCalls)
	}

	selected := store.stored.SelectedRounds
	if len(selected) != 2 || selected[0] != models.RoundAptitude || selected[1] != models.RoundTechnical {
		t.Errorf("Expected merged selection [aptitude technical], got %v", selected)
	}
}
