package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"mockmate-backend/internal/models"
)

// questionModel is the slice of GeminiService the dispatcher needs; tests
// substitute a stub to exercise the fallback path.
type questionModel interface {
	GenerateRoundQuestions(ctx context.Context, roundType, role string) ([]models.Question, error)
}

// QuestionGenerator obtains a round's question set: from the AI model when
// one is configured and its output parses, otherwise from the deterministic
// local generator. Generate never fails and never returns an empty list.
type QuestionGenerator struct {
	ai questionModel
}

func NewQuestionGenerator(ai questionModel) *QuestionGenerator {
	return &QuestionGenerator{ai: ai}
}

// Generate returns the round's questions. roundType must already be
// normalized.
func (g *QuestionGenerator) Generate(ctx context.Context, roundType, role string) []models.Question {
	if g.ai != nil {
		questions, err := g.ai.GenerateRoundQuestions(ctx, roundType, role)
		if err == nil && len(questions) > 0 {
			return questions
		}
		if err != nil {
			log.Printf("Question generation failed for round=%s role=%s, using fallback: %v", roundType, role, err)
		}
	}
	return FallbackQuestions(roundType, role)
}

// FallbackQuestions produces the fixed-size placeholder question set for a
// round. It is fully local and deterministic for a given round and role.
func FallbackQuestions(roundType, role string) []models.Question {
	switch roundType {
	case models.RoundAptitude:
		return fallbackAptitude(AptitudeQuestionCount)
	case models.RoundTechnical:
		return fallbackTechnical(TechnicalQuestionCount, role)
	case models.RoundHR:
		return fallbackHR(HRQuestionCount, role)
	case models.RoundCoding:
		return fallbackCoding(role)
	}
	return nil
}

// fallbackAptitude builds MCQ arithmetic questions with computed answers.
// The correct option rotates through positions so answer letters vary.
func fallbackAptitude(count int) []models.Question {
	questions := make([]models.Question, 0, count)
	for i := 0; i < count; i++ {
		a := 12 + i*3
		b := 4 + i

		var prompt string
		var correct int
		switch i % 3 {
		case 0:
			prompt = fmt.Sprintf("What is %d + %d?", a, b)
			correct = a + b
		case 1:
			prompt = fmt.Sprintf("What is %d × %d?", b, i%5+2)
			correct = b * (i%5 + 2)
		default:
			prompt = fmt.Sprintf("A worker completes %d tasks per day. How many tasks are done in %d days?", b, i%4+2)
			correct = b * (i%4 + 2)
		}

		correctPos := i % 4
		options := make([]string, 4)
		distractors := []int{correct - 3, correct + 2, correct + 6}
		d := 0
		for pos := 0; pos < 4; pos++ {
			if pos == correctPos {
				options[pos] = fmt.Sprintf("%d", correct)
			} else {
				options[pos] = fmt.Sprintf("%d", distractors[d])
				d++
			}
		}

		questions = append(questions, models.Question{
			Type:     models.QuestionMCQ,
			Question: prompt,
			Options:  options,
			Answer:   string(rune('A' + correctPos)),
		})
	}
	return questions
}

var fallbackTechnicalMCQ = []struct {
	question string
	options  []string
	answer   string
}{
	{"Which data structure offers O(1) average lookup by key?", []string{"Hash map", "Linked list", "Binary tree", "Stack"}, "A"},
	{"What is the time complexity of binary search on a sorted array?", []string{"O(n)", "O(log n)", "O(n log n)", "O(1)"}, "B"},
	{"Which HTTP status code indicates a resource was not found?", []string{"400", "401", "404", "500"}, "C"},
	{"What does an index on a database column primarily improve?", []string{"Write speed", "Storage usage", "Data integrity", "Read speed"}, "D"},
	{"Which of these is NOT a valid HTTP method?", []string{"FETCH", "PATCH", "DELETE", "OPTIONS"}, "A"},
	{"In version control, what does a merge conflict indicate?", []string{"A corrupted repository", "Overlapping edits to the same lines", "A failed push", "A detached HEAD"}, "B"},
	{"Which protocol underlies HTTPS encryption?", []string{"SSH", "FTP", "TLS", "SMTP"}, "C"},
	{"What is the main purpose of a cache?", []string{"Durability", "Validation", "Compression", "Faster repeated reads"}, "D"},
}

func fallbackTechnical(count int, role string) []models.Question {
	questions := make([]models.Question, 0, count)

	mcqCount := count * 3 / 4
	for i := 0; i < mcqCount; i++ {
		src := fallbackTechnicalMCQ[i%len(fallbackTechnicalMCQ)]
		questions = append(questions, models.Question{
			Type:     models.QuestionMCQ,
			Question: src.question,
			Options:  src.options,
			Answer:   src.answer,
		})
	}

	terms := termsForRole(role)
	for i := 0; len(questions) < count; i++ {
		term := terms[i%len(terms)]
		questions = append(questions, models.Question{
			Type:     models.QuestionText,
			Question: fmt.Sprintf("Explain how you have used %s in your work as a %s, including one concrete problem it solved.", term, role),
		})
	}
	return questions
}

var fallbackHRPrompts = []string{
	"Tell me about a time you had a conflict with a teammate. How did you resolve it?",
	"Describe a situation where you missed a deadline. What happened and what did you change afterwards?",
	"Tell me about the achievement you are most proud of and why.",
	"Describe a time you received difficult feedback. How did you respond?",
	"Tell me about a time you had to learn something new quickly.",
	"Describe a situation where you disagreed with your manager's decision.",
	"Tell me about a time you took responsibility for a mistake.",
	"Describe how you prioritize when everything feels urgent.",
	"Tell me about a time you helped a struggling teammate.",
	"Where do you see yourself in five years, and how does this role fit that plan?",
}

func fallbackHR(count int, role string) []models.Question {
	questions := make([]models.Question, 0, count)
	for i := 0; i < count; i++ {
		prompt := fallbackHRPrompts[i%len(fallbackHRPrompts)]
		if i == 0 {
			prompt = fmt.Sprintf("Why do you want to work as a %s?", role)
		}
		questions = append(questions, models.Question{
			Type:     models.QuestionText,
			Question: prompt,
		})
	}
	return questions
}

// fallbackCoding serves a role-matched problem set where one exists,
// otherwise the general algorithmic set.
func fallbackCoding(role string) []models.Question {
	lower := strings.ToLower(role)
	switch {
	case strings.Contains(lower, "frontend"):
		return fallbackCodingFrontend()
	case strings.Contains(lower, "backend"):
		return fallbackCodingBackend()
	}
	return fallbackCodingGeneral()
}

func fallbackCodingFrontend() []models.Question {
	return []models.Question{
		{
			Type:        models.QuestionCoding,
			Title:       "Debounced Input Handler",
			Description: "Write a debounce function that delays invoking a callback until the given number of milliseconds has passed since the last call. Typing into a search box should fire at most one request after the user pauses.",
			Difficulty:  "easy",
			TestCases: []models.TestCase{
				{Input: "3 calls within 100ms, wait=200ms", Expected: "callback runs once"},
				{Input: "2 calls 300ms apart, wait=200ms", Expected: "callback runs twice"},
			},
		},
		{
			Type:        models.QuestionCoding,
			Title:       "Email Field Validator",
			Description: "Write a function that validates an email input value and returns true for a well-formed address, false otherwise. Do not use a library.",
			Difficulty:  "medium",
			TestCases: []models.TestCase{
				{Input: `"test@example.com"`, Expected: "true"},
				{Input: `"invalid-email"`, Expected: "false"},
			},
		},
		{
			Type:        models.QuestionCoding,
			Title:       "Nested List Renderer",
			Description: "Given a tree of {label, children} nodes, produce the flat list of labels in depth-first order with each label prefixed by its depth (e.g. \"2:item\"). Handle arbitrary nesting.",
			Difficulty:  "hard",
			TestCases: []models.TestCase{
				{Input: `{a,[{b},{c,[{d}]}]}`, Expected: `["0:a","1:b","1:c","2:d"]`},
				{Input: `{a}`, Expected: `["0:a"]`},
			},
		},
	}
}

func fallbackCodingBackend() []models.Question {
	return []models.Question{
		{
			Type:        models.QuestionCoding,
			Title:       "Request Path Router",
			Description: "Write a function that matches a request path like /users/42/orders against registered patterns like /users/{id}/orders and returns the extracted parameters, or null when nothing matches.",
			Difficulty:  "easy",
			TestCases: []models.TestCase{
				{Input: `"/users/42/orders" vs "/users/{id}/orders"`, Expected: `{"id":"42"}`},
				{Input: `"/health" vs "/users/{id}"`, Expected: "null"},
			},
		},
		{
			Type:        models.QuestionCoding,
			Title:       "In-Memory Rate Limiter",
			Description: "Implement a fixed-window rate limiter: allow(clientID) returns true for the first N calls per client within each window and false afterwards, resetting when the window rolls over.",
			Difficulty:  "medium",
			TestCases: []models.TestCase{
				{Input: "N=2, 3 calls in one window", Expected: "true, true, false"},
				{Input: "N=2, 1 call per window across 3 windows", Expected: "true, true, true"},
			},
		},
		{
			Type:        models.QuestionCoding,
			Title:       "Job Queue With Retries",
			Description: "Implement a queue that processes jobs with a handler that may fail. Failed jobs are retried up to 3 times with their attempt count tracked; jobs that exhaust retries move to a dead-letter list. Return the final dead-letter contents.",
			Difficulty:  "hard",
			TestCases: []models.TestCase{
				{Input: "jobs=[a,b], b always fails", Expected: `dead=["b"], attempts(b)=3`},
				{Input: "jobs=[a], a succeeds", Expected: "dead=[]"},
			},
		},
	}
}

func fallbackCodingGeneral() []models.Question {
	return []models.Question{
		{
			Type:        models.QuestionCoding,
			Title:       "Two Sum",
			Description: "Given an array of integers and a target, return the indices of the two numbers that add up to the target. Each input has exactly one solution.",
			Difficulty:  "easy",
			TestCases: []models.TestCase{
				{Input: "[2,7,11,15], target=9", Expected: "[0,1]"},
				{Input: "[3,2,4], target=6", Expected: "[1,2]"},
			},
		},
		{
			Type:        models.QuestionCoding,
			Title:       "Longest Substring Without Repeating Characters",
			Description: "Given a string, return the length of the longest substring that contains no repeated characters.",
			Difficulty:  "medium",
			TestCases: []models.TestCase{
				{Input: `"abcabcbb"`, Expected: "3"},
				{Input: `"bbbbb"`, Expected: "1"},
				{Input: `"pwwkew"`, Expected: "3"},
			},
		},
		{
			Type:        models.QuestionCoding,
			Title:       "Edit Distance",
			Description: "Given two strings, return the minimum number of single-character insertions, deletions, or substitutions required to transform one into the other.",
			Difficulty:  "hard",
			TestCases: []models.TestCase{
				{Input: `"horse", "ros"`, Expected: "3"},
				{Input: `"intention", "execution"`, Expected: "5"},
			},
		},
	}
}
