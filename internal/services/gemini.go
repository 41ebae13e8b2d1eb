package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"

	"google.golang.org/api/option"

	"mockmate-backend/internal/aijson"
	"mockmate-backend/internal/models"
)

// Fixed question counts per round type.
const (
	AptitudeQuestionCount  = 20
	TechnicalQuestionCount = 20
	HRQuestionCount        = 10
	CodingQuestionCount    = 3
)

// RoundQuestionCount returns the fixed question count for a round type.
func RoundQuestionCount(roundType string) int {
	switch roundType {
	case models.RoundAptitude:
		return AptitudeQuestionCount
	case models.RoundTechnical:
		return TechnicalQuestionCount
	case models.RoundHR:
		return HRQuestionCount
	case models.RoundCoding:
		return CodingQuestionCount
	}
	return 0
}

type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket

	generationTimeout time.Duration
	gradingTimeout    time.Duration
}

func NewGeminiService(
	apiKey string,
	modelName string,
	concurrentReqs int,
	generationTimeout time.Duration,
	gradingTimeout time.Duration,
) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:            client,
		model:             model,
		rateChan:          rateChan,
		generationTimeout: generationTimeout,
		gradingTimeout:    gradingTimeout,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// generate runs one model call under a rate slot and a bounded timeout.
func (s *GeminiService) generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("Gemini returned empty text")
	}
	return text, nil
}

// GenerateRoundQuestions asks the model for a round's question set and
// normalizes the response into exactly the round's fixed count. Returns an
// error when the output cannot be salvaged; the dispatcher turns that into
// fallback questions.
func (s *GeminiService) GenerateRoundQuestions(ctx context.Context, roundType, role string) ([]models.Question, error) {
	count := RoundQuestionCount(roundType)
	prompt := buildRoundPrompt(roundType, role, count)

	raw, err := s.generate(ctx, prompt, s.generationTimeout)
	if err != nil {
		return nil, err
	}

	var questions []models.Question
	if roundType == models.RoundCoding {
		// Coding prompts produce the least reliable JSON; use the repair path.
		err = aijson.UnmarshalArrayRepaired(raw, &questions)
	} else {
		err = aijson.UnmarshalArray(raw, &questions)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated questions: %w", err)
	}

	questions = validateQuestions(roundType, questions)
	if len(questions) == 0 {
		return nil, fmt.Errorf("no valid questions in generated output")
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	return questions, nil
}

// GradeTechnicalAnswer scores one free-text technical answer 0-100.
func (s *GeminiService) GradeTechnicalAnswer(ctx context.Context, question, answer, role string) (int, error) {
	prompt := fmt.Sprintf(`You are a strict technical interviewer for a %s position.
Grade the candidate's answer to the question below on a 0-100 scale for correctness, depth, and clarity.

CRITICAL: Return ONLY a valid JSON object: {"score": int}

Question: %s
Answer: %s`, role, question, answer)

	return s.gradeAnswer(ctx, prompt)
}

// GradeBehavioralAnswer scores one HR answer 0-100 for STAR-method
// structure and communication quality.
func (s *GeminiService) GradeBehavioralAnswer(ctx context.Context, question, answer, role string) (int, error) {
	prompt := fmt.Sprintf(`You are an experienced HR interviewer evaluating a candidate for a %s position.
Grade the answer below on a 0-100 scale for STAR-method structure (situation, task, action, result), relevance, and communication quality.

CRITICAL: Return ONLY a valid JSON object: {"score": int}

Question: %s
Answer: %s`, role, question, answer)

	return s.gradeAnswer(ctx, prompt)
}

func (s *GeminiService) gradeAnswer(ctx context.Context, prompt string) (int, error) {
	raw, err := s.generate(ctx, prompt, s.gradingTimeout)
	if err != nil {
		return 0, err
	}

	var out struct {
		Score int `json:"score"`
	}
	if err := aijson.UnmarshalObject(raw, &out); err != nil {
		return 0, fmt.Errorf("failed to parse grading response: %w", err)
	}
	if out.Score < 0 || out.Score > 100 {
		return 0, fmt.Errorf("grading score %d out of range", out.Score)
	}
	return out.Score, nil
}

// GenerateFeedback asks the model for personalized improvement/suggestion
// text for a completed session.
func (s *GeminiService) GenerateFeedback(ctx context.Context, role string, averageScore int, roundScores map[string]int) (improvement, suggestion string, err error) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("You are a career coach reviewing a mock interview for a %s position.\n", role))
	b.WriteString(fmt.Sprintf("Overall score: %d/100. Round scores:\n", averageScore))
	for round, score := range roundScores {
		b.WriteString(fmt.Sprintf("- %s: %d/100\n", round, score))
	}
	b.WriteString(`
CRITICAL: Return ONLY a valid JSON object:
{"improvement": "one or two sentences on the weakest area", "suggestion": "one or two sentences of concrete study advice"}
`)

	raw, err := s.generate(ctx, b.String(), s.gradingTimeout)
	if err != nil {
		return "", "", err
	}

	var out struct {
		Improvement string `json:"improvement"`
		Suggestion  string `json:"suggestion"`
	}
	if err := aijson.UnmarshalObject(raw, &out); err != nil {
		return "", "", fmt.Errorf("failed to parse feedback response: %w", err)
	}
	if out.Improvement == "" || out.Suggestion == "" {
		return "", "", fmt.Errorf("feedback response missing fields")
	}
	return out.Improvement, out.Suggestion, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func buildRoundPrompt(roundType, role string, count int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("You are an expert interviewer preparing a %s round for a %s candidate.\n\n", roundType, role))
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")

	switch roundType {
	case models.RoundAptitude:
		b.WriteString(fmt.Sprintf("Generate exactly %d aptitude questions covering quantitative reasoning, logical reasoning, and verbal ability.\n", count))
		b.WriteString(`
JSON schema per question:
{"type": "mcq", "question": "string", "options": ["string", "string", "string", "string"], "answer": "A"|"B"|"C"|"D"}

"answer" is the letter of the correct option. Exactly 4 options per question.
`)
	case models.RoundTechnical:
		mcqCount := count * 3 / 4
		textCount := count - mcqCount
		b.WriteString(fmt.Sprintf("Generate exactly %d technical questions for the %s role: %d multiple-choice and %d short-answer.\n", count, role, mcqCount, textCount))
		b.WriteString(`
JSON schema per question:
{"type": "mcq", "question": "string", "options": ["string", "string", "string", "string"], "answer": "A"|"B"|"C"|"D"}
or
{"type": "text", "question": "string"}
`)
	case models.RoundHR:
		b.WriteString(fmt.Sprintf("Generate exactly %d behavioral interview questions suited to a %s candidate, answerable with the STAR method.\n", count, role))
		b.WriteString(`
JSON schema per question:
{"type": "text", "question": "string"}
`)
	case models.RoundCoding:
		b.WriteString(fmt.Sprintf("Generate exactly %d coding problems of increasing difficulty (easy, medium, hard) relevant to a %s role.\n", count, role))
		b.WriteString(`
JSON schema per problem:
{"type": "coding", "title": "string", "description": "string", "difficulty": "easy"|"medium"|"hard", "testCases": [{"input": "string", "expected": "string"}]}

Include 2-3 test cases per problem.
`)
	}

	return b.String()
}

// validateQuestions drops structurally unusable entries and normalizes the
// rest for the given round type.
func validateQuestions(roundType string, questions []models.Question) []models.Question {
	var valid []models.Question
	for _, q := range questions {
		switch roundType {
		case models.RoundCoding:
			if q.Title == "" && q.Description == "" {
				continue
			}
			q.Type = models.QuestionCoding
			switch strings.ToLower(q.Difficulty) {
			case "easy", "medium", "hard":
				q.Difficulty = strings.ToLower(q.Difficulty)
			default:
				q.Difficulty = "medium"
			}
		case models.RoundHR:
			if q.Question == "" {
				continue
			}
			q.Type = models.QuestionText
			q.Options = nil
		default:
			if q.Question == "" {
				continue
			}
			if q.Type != models.QuestionText {
				if len(q.Options) < 2 || len(q.Options) > 4 {
					continue
				}
				q.Type = models.QuestionMCQ
				q.Answer = strings.ToUpper(strings.TrimSpace(q.Answer))
				if !validAnswerLetter(q.Answer, len(q.Options)) {
					q.Answer = "A"
				}
			}
		}
		valid = append(valid, q)
	}
	return valid
}

func validAnswerLetter(letter string, optionCount int) bool {
	if len(letter) != 1 {
		return false
	}
	idx := int(letter[0] - 'A')
	return idx >= 0 && idx < optionCount
}
