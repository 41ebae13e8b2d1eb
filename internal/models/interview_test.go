package models

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func intPtr(n int) *int { return &n }

func newTestSession(selected ...string) *InterviewSession {
	return &InterviewSession{
		SessionID:      NewSessionID(),
		UserID:         uuid.New(),
		Role:           "Frontend Developer",
		SelectedRounds: selected,
		Rounds:         make(map[string]*RoundRecord),
		Status:         SessionActive,
	}
}

func TestNormalizeRound(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"aptitude", "aptitude"},
		{"  Coding ", "coding"},
		{"TECHNICAL", "technical"},
		{"Hr", "hr"},
		{"design", ""},
		{"", ""},
	}

	for _, tc := range tests {
		if got := NormalizeRound(tc.input); got != tc.expected {
			t.Errorf("NormalizeRound(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestMergeSelectedRounds(t *testing.T) {
	s := newTestSession("aptitude", "hr")

	s.MergeSelectedRounds([]string{"HR", "coding", "bogus"})

	want := []string{"aptitude", "hr", "coding"}
	if len(s.SelectedRounds) != len(want) {
		t.Fatalf("Expected %d rounds, got %v", len(want), s.SelectedRounds)
	}
	for i, r := range want {
		if s.SelectedRounds[i] != r {
			t.Errorf("SelectedRounds[%d] = %q, want %q", i, s.SelectedRounds[i], r)
		}
	}
}

func TestMarkRoundCompleted_PartialSession(t *testing.T) {
	s := newTestSession("aptitude", "hr")
	s.InitializeRound("aptitude", []Question{{Type: QuestionMCQ, Question: "q"}})

	done := s.MarkRoundCompleted("aptitude", map[string]string{"0": "A"}, 100)

	if done {
		t.Error("Session should not be complete with hr still pending")
	}
	if s.Status != SessionActive {
		t.Errorf("Expected status active, got %q", s.Status)
	}
	if s.OverallScore != 100 {
		t.Errorf("Expected overall score 100, got %d", s.OverallScore)
	}
	if s.NextRound() != "hr" {
		t.Errorf("Expected next round hr, got %q", s.NextRound())
	}
	if !s.ShouldAdvance() {
		t.Error("Expected ShouldAdvance to be true")
	}
}

func TestMarkRoundCompleted_FinalRoundCompletesSession(t *testing.T) {
	s := newTestSession("aptitude", "hr")
	s.InitializeRound("aptitude", []Question{{Type: QuestionMCQ}})
	s.InitializeRound("hr", []Question{{Type: QuestionText}})

	s.MarkRoundCompleted("aptitude", nil, 100)
	done := s.MarkRoundCompleted("hr", nil, 0)

	if !done {
		t.Error("Final round submission should complete the session")
	}
	if s.Status != SessionCompleted {
		t.Errorf("Expected status completed, got %q", s.Status)
	}
	if s.EndTime == nil {
		t.Error("Expected end time to be stamped")
	}
	if s.OverallScore != 50 {
		t.Errorf("Expected overall score round((100+0)/2)=50, got %d", s.OverallScore)
	}
	if s.NextRound() != "" {
		t.Errorf("Expected no next round, got %q", s.NextRound())
	}
}

func TestMarkRoundCompleted_OutOfOrder(t *testing.T) {
	s := newTestSession("aptitude", "coding", "hr")
	s.InitializeRound("hr", []Question{{Type: QuestionText}})

	s.MarkRoundCompleted("hr", nil, 80)

	// hr finished first; the resolver still points at the first unfinished
	// round in selection order.
	if s.NextRound() != "aptitude" {
		t.Errorf("Expected next round aptitude, got %q", s.NextRound())
	}
	if s.Status != SessionActive {
		t.Errorf("Expected status active, got %q", s.Status)
	}
}

func TestMarkRoundCompleted_Idempotent(t *testing.T) {
	s := newTestSession("aptitude")
	s.InitializeRound("aptitude", []Question{{Type: QuestionMCQ}})

	s.MarkRoundCompleted("aptitude", nil, 60)
	s.MarkRoundCompleted("aptitude", nil, 80)

	if len(s.CompletedRounds) != 1 {
		t.Errorf("Expected 1 completed round, got %v", s.CompletedRounds)
	}
	// Resubmission overwrites the round score and the aggregate follows.
	if s.OverallScore != 80 {
		t.Errorf("Expected overall score 80, got %d", s.OverallScore)
	}
}

func TestCompletedRoundsSubsetOfSelected(t *testing.T) {
	s := newTestSession("aptitude")
	s.InitializeRound("technical", []Question{{Type: QuestionMCQ}})

	// technical was started but never selected; completing it must not leak
	// into completedRounds.
	s.MarkRoundCompleted("technical", nil, 90)

	for _, r := range s.CompletedRounds {
		found := false
		for _, sel := range s.SelectedRounds {
			if r == sel {
				found = true
			}
		}
		if !found {
			t.Errorf("Completed round %q not in selected rounds %v", r, s.SelectedRounds)
		}
	}
	// Its score still participates in the average since the round has one.
	if s.OverallScore != 90 {
		t.Errorf("Expected overall score 90, got %d", s.OverallScore)
	}
}

func TestRecomputeOverallScore_Rounding(t *testing.T) {
	s := newTestSession("aptitude", "technical", "hr")
	s.Rounds = map[string]*RoundRecord{
		"aptitude":  {Score: intPtr(100)},
		"technical": {Score: intPtr(50)},
		"hr":        {Score: intPtr(50)},
	}

	s.RecomputeOverallScore()
	first := s.OverallScore
	s.RecomputeOverallScore()

	if first != 67 {
		t.Errorf("Expected round(200/3)=67, got %d", first)
	}
	if s.OverallScore != first {
		t.Errorf("Recompute not idempotent: %d then %d", first, s.OverallScore)
	}
}

func TestRecomputeOverallScore_NoScoredRounds(t *testing.T) {
	s := newTestSession("aptitude")
	s.OverallScore = 42

	s.RecomputeOverallScore()

	if s.OverallScore != 0 {
		t.Errorf("Expected 0 with no scored rounds, got %d", s.OverallScore)
	}
}

func TestAllRoundsCompleted_EmptySelection(t *testing.T) {
	s := newTestSession()
	if s.AllRoundsCompleted() {
		t.Error("Session with no selected rounds must never report complete")
	}
}

func TestHasCachedQuestions(t *testing.T) {
	s := newTestSession("aptitude")

	if s.HasCachedQuestions("aptitude") {
		t.Error("Unstarted round should not report cached questions")
	}

	s.InitializeRound("aptitude", nil)
	if s.HasCachedQuestions("aptitude") {
		t.Error("Round with empty question list should not report cached questions")
	}

	s.InitializeRound("aptitude", []Question{{Type: QuestionMCQ}})
	if !s.HasCachedQuestions("aptitude") {
		t.Error("Round with questions should report cached questions")
	}
}

func TestServeCached(t *testing.T) {
	s := newTestSession(RoundAptitude, RoundTechnical, RoundHR, RoundCoding)
	for _, round := range s.SelectedRounds {
		s.InitializeRound(round, []Question{{Type: QuestionText, Question: "q"}})
	}

	tests := []struct {
		roundType string
		expected  bool
	}{
		{RoundAptitude, true},
		{RoundTechnical, true},
		{RoundHR, true},
		{RoundCoding, false}, // coding always regenerates
	}

	for _, tc := range tests {
		t.Run(tc.roundType, func(t *testing.T) {
			if got := s.ServeCached(tc.roundType); got != tc.expected {
				t.Errorf("ServeCached(%q) = %v, expected %v", tc.roundType, got, tc.expected)
			}
		})
	}

	empty := newTestSession(RoundAptitude)
	if empty.ServeCached(RoundAptitude) {
		t.Error("Unstarted round must not be served from cache")
	}
}

func TestNewSessionID_Format(t *testing.T) {
	id := NewSessionID()
	if !strings.HasPrefix(id, "INT-") {
		t.Errorf("Expected INT- prefix, got %q", id)
	}
	if id == NewSessionID() && id == NewSessionID() {
		t.Error("Expected session ids to vary")
	}
}

func TestNewFeedbackID_Format(t *testing.T) {
	id := NewFeedbackID()
	if !strings.HasPrefix(id, "FB-") {
		t.Errorf("Expected FB- prefix, got %q", id)
	}
}
