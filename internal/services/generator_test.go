package services

import (
	"context"
	"errors"
	"testing"

	"mockmate-backend/internal/models"
)

type stubModel struct {
	questions []models.Question
	err       error
}

func (s *stubModel) GenerateRoundQuestions(ctx context.Context, roundType, role string) ([]models.Question, error) {
	return s.questions, s.err
}

func TestGenerate_UsesModelOutput(t *testing.T) {
	want := []models.Question{{Type: models.QuestionMCQ, Question: "from model"}}
	g := NewQuestionGenerator(&stubModel{questions: want})

	got := g.Generate(context.Background(), models.RoundAptitude, "Backend Developer")
	if len(got) != 1 || got[0].Question != "from model" {
		t.Errorf("Expected model questions, got %+v", got)
	}
}

func TestGenerate_FallsBackOnModelError(t *testing.T) {
	g := NewQuestionGenerator(&stubModel{err: errors.New("unparseable garbage")})

	got := g.Generate(context.Background(), models.RoundAptitude, "Backend Developer")
	if len(got) != AptitudeQuestionCount {
		t.Errorf("Expected %d fallback questions, got %d", AptitudeQuestionCount, len(got))
	}
}

func TestGenerate_FallsBackOnEmptyOutput(t *testing.T) {
	g := NewQuestionGenerator(&stubModel{questions: nil})

	got := g.Generate(context.Background(), models.RoundHR, "any")
	if len(got) != HRQuestionCount {
		t.Errorf("Expected %d fallback questions, got %d", HRQuestionCount, len(got))
	}
}

func TestGenerate_NilModelUsesFallback(t *testing.T) {
	g := NewQuestionGenerator(nil)

	got := g.Generate(context.Background(), models.RoundCoding, "any")
	if len(got) != CodingQuestionCount {
		t.Errorf("Expected %d fallback questions, got %d", CodingQuestionCount, len(got))
	}
}

func TestFallbackQuestions_FixedCounts(t *testing.T) {
	tests := []struct {
		roundType string
		expected  int
	}{
		{models.RoundAptitude, 20},
		{models.RoundTechnical, 20},
		{models.RoundHR, 10},
		{models.RoundCoding, 3},
	}

	for _, tc := range tests {
		t.Run(tc.roundType, func(t *testing.T) {
			got := FallbackQuestions(tc.roundType, "Frontend Developer")
			if len(got) != tc.expected {
				t.Errorf("Expected %d questions, got %d", tc.expected, len(got))
			}
		})
	}
}

func TestFallbackAptitude_AnswersMatchOptions(t *testing.T) {
	for i, q := range fallbackAptitude(20) {
		if q.Type != models.QuestionMCQ {
			t.Fatalf("Question %d: expected mcq, got %q", i, q.Type)
		}
		if len(q.Options) != 4 {
			t.Fatalf("Question %d: expected 4 options, got %d", i, len(q.Options))
		}
		idx := int(q.Answer[0] - 'A')
		if idx < 0 || idx >= len(q.Options) {
			t.Fatalf("Question %d: answer letter %q out of range", i, q.Answer)
		}
		// Answering with the correct option text must score full marks.
		score := ScoreAptitude([]models.Question{q}, map[string]string{"0": q.Options[idx]})
		if score != 100 {
			t.Errorf("Question %d: correct option scored %d", i, score)
		}
	}
}

func TestFallbackTechnical_RoleAware(t *testing.T) {
	questions := fallbackTechnical(TechnicalQuestionCount, "Frontend Developer")

	textCount := 0
	for _, q := range questions {
		if q.Type == models.QuestionText {
			textCount++
		} else if len(q.Options) != 4 {
			t.Errorf("MCQ question has %d options", len(q.Options))
		}
	}
	if textCount == 0 {
		t.Error("Expected some free-text questions in the technical fallback")
	}
}

func TestFallbackCoding_HasTestCases(t *testing.T) {
	for _, role := range []string{"Frontend Developer", "Backend Engineer", "Data Scientist"} {
		questions := fallbackCoding(role)
		if len(questions) != CodingQuestionCount {
			t.Fatalf("%s: expected %d problems, got %d", role, CodingQuestionCount, len(questions))
		}
		for _, q := range questions {
			if q.Type != models.QuestionCoding {
				t.Errorf("%s: expected coding type, got %q", role, q.Type)
			}
			if q.Title == "" || q.Description == "" {
				t.Errorf("%s: coding question missing title or description: %+v", role, q)
			}
			if len(q.TestCases) < 2 {
				t.Errorf("%s: coding question %q has %d test cases", role, q.Title, len(q.TestCases))
			}
		}
	}
}

func TestFallbackCoding_RoleSpecificSets(t *testing.T) {
	frontend := fallbackCoding("Senior Frontend Developer")
	backend := fallbackCoding("backend engineer")
	general := fallbackCoding("Data Scientist")

	if frontend[0].Title == backend[0].Title {
		t.Error("Frontend and backend fallback sets should differ")
	}
	if general[0].Title != "Two Sum" {
		t.Errorf("Unmatched roles should get the general set, got %q", general[0].Title)
	}
	for _, set := range [][]models.Question{frontend, backend, general} {
		difficulties := []string{set[0].Difficulty, set[1].Difficulty, set[2].Difficulty}
		if difficulties[0] != "easy" || difficulties[2] != "hard" {
			t.Errorf("Expected easy-to-hard progression, got %v", difficulties)
		}
	}
}

func TestRoundQuestionCount(t *testing.T) {
	if RoundQuestionCount("bogus") != 0 {
		t.Error("Unknown round should have count 0")
	}
	if RoundQuestionCount(models.RoundAptitude) != 20 {
		t.Error("Aptitude count should be 20")
	}
}
