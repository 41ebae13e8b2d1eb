package services

import (
	"context"
	"math"
	"strconv"
	"strings"

	"mockmate-backend/internal/models"
)

// TextGrader grades one free-text answer and returns a 0-100 score. The
// interview service wires this to the AI evaluator; scorers fall back to the
// local heuristics whenever the grader is nil or fails.
type TextGrader func(ctx context.Context, question, answer, role string) (int, error)

// ScoreAptitude grades an MCQ round by exact letter matching. The stored
// answer is the literal option text the user clicked; it is matched back to
// its index in the question's options, converted to a letter (A=index 0),
// and compared case-insensitively against the canonical answer letter.
// Non-MCQ questions are excluded from the denominator.
func ScoreAptitude(questions []models.Question, answers map[string]string) int {
	total, correct := 0, 0
	for i, q := range questions {
		if q.Type != models.QuestionMCQ {
			continue
		}
		total++
		ans, ok := answers[indexKey(i)]
		if !ok {
			continue
		}
		if optionLetter(q.Options, ans) == normalizeLetter(q.Answer) && q.Answer != "" {
			correct++
		}
	}
	if total == 0 {
		return 0
	}
	return roundPct(correct, total)
}

// ScoreCoding maps the externally judged pass count onto the coarse coding
// rubric: no passes 0, one pass 50, two or more 100.
func ScoreCoding(passedCount int) int {
	switch {
	case passedCount <= 0:
		return 0
	case passedCount == 1:
		return 50
	default:
		return 100
	}
}

// ScoreTechnical grades a mixed MCQ + free-text round. The MCQ sub-score is
// exact letter matching as in aptitude; each non-empty text answer goes
// through the grader (heuristic on failure). The final score is the average
// of the two sub-scores weighted by how many questions of each type exist.
func ScoreTechnical(ctx context.Context, questions []models.Question, answers map[string]string, role string, grade TextGrader) int {
	mcqTotal, mcqCorrect := 0, 0
	textTotal, textSum := 0, 0

	for i, q := range questions {
		ans := strings.TrimSpace(answers[indexKey(i)])
		switch q.Type {
		case models.QuestionMCQ:
			mcqTotal++
			if ans != "" && optionLetter(q.Options, ans) == normalizeLetter(q.Answer) && q.Answer != "" {
				mcqCorrect++
			}
		default:
			textTotal++
			if ans == "" {
				continue
			}
			textSum += gradeText(ctx, grade, q.Question, ans, role, technicalHeuristic)
		}
	}

	total := mcqTotal + textTotal
	if total == 0 {
		return 0
	}

	mcqPct := 0.0
	if mcqTotal > 0 {
		mcqPct = 100 * float64(mcqCorrect) / float64(mcqTotal)
	}
	textPct := 0.0
	if textTotal > 0 {
		textPct = float64(textSum) / float64(textTotal)
	}

	weighted := (mcqPct*float64(mcqTotal) + textPct*float64(textTotal)) / float64(total)
	return clampScore(int(math.Round(weighted)))
}

// ScoreHR grades a behavioral round: every question is free-text, each
// non-empty answer is graded for communication quality, empty answers score
// zero, and the round score is the rounded mean.
func ScoreHR(ctx context.Context, questions []models.Question, answers map[string]string, role string, grade TextGrader) int {
	if len(questions) == 0 {
		return 0
	}
	sum := 0
	for i, q := range questions {
		ans := strings.TrimSpace(answers[indexKey(i)])
		if ans == "" {
			continue
		}
		sum += gradeText(ctx, grade, q.Question, ans, role, behavioralHeuristic)
	}
	return clampScore(int(math.Round(float64(sum) / float64(len(questions)))))
}

func gradeText(ctx context.Context, grade TextGrader, question, answer, role string, heuristic func(answer, role string) int) int {
	if grade != nil {
		if score, err := grade(ctx, question, answer, role); err == nil {
			return clampScore(score)
		}
	}
	return heuristic(answer, role)
}

// technicalTerms maps a role substring to keywords whose presence in an
// answer suggests real technical content.
var technicalTerms = map[string][]string{
	"frontend": {"javascript", "react", "vue", "angular", "css", "html", "dom", "component"},
	"backend":  {"api", "database", "server", "sql", "rest", "cache", "queue", "index"},
	"full":     {"api", "react", "database", "javascript", "server", "css", "rest"},
	"data":     {"python", "sql", "pandas", "model", "statistics", "pipeline", "feature"},
	"devops":   {"docker", "kubernetes", "pipeline", "deploy", "ci", "monitoring", "terraform"},
	"mobile":   {"android", "ios", "swift", "kotlin", "react native", "flutter"},
	"security": {"encryption", "vulnerability", "authentication", "owasp", "firewall", "tls"},
}

var defaultTerms = []string{"algorithm", "complexity", "design", "test", "performance", "architecture"}

// behavioralIndicators are STAR-method and soft-skill markers.
var behavioralIndicators = []string{
	"situation", "task", "action", "result", "team", "challenge", "learned",
	"improved", "managed", "resolved", "conflict", "deadline", "communicate",
	"feedback", "responsibility",
}

// technicalHeuristic blends answer length with role-specific keyword hits.
func technicalHeuristic(answer, role string) int {
	score := lengthScore(answer)
	lower := strings.ToLower(answer)
	for _, term := range termsForRole(role) {
		if strings.Contains(lower, term) {
			score += 15
		}
	}
	return clampScore(score)
}

// behavioralHeuristic blends answer length with behavioral-keyword hits.
func behavioralHeuristic(answer, _ string) int {
	score := lengthScore(answer)
	lower := strings.ToLower(answer)
	for _, term := range behavioralIndicators {
		if strings.Contains(lower, term) {
			score += 10
		}
	}
	return clampScore(score)
}

func termsForRole(role string) []string {
	lower := strings.ToLower(role)
	for key, terms := range technicalTerms {
		if strings.Contains(lower, key) {
			return terms
		}
	}
	return defaultTerms
}

func lengthScore(answer string) int {
	switch n := len(strings.TrimSpace(answer)); {
	case n >= 200:
		return 50
	case n >= 100:
		return 40
	case n >= 40:
		return 30
	case n > 0:
		return 20
	default:
		return 0
	}
}

// optionLetter matches the user's raw answer text back to its option index
// and returns the corresponding letter, or "" when no option matches.
func optionLetter(options []string, answer string) string {
	ans := strings.ToLower(strings.TrimSpace(answer))
	if ans == "" {
		return ""
	}
	for i, opt := range options {
		if strings.ToLower(strings.TrimSpace(opt)) == ans {
			return string(rune('a' + i))
		}
	}
	return ""
}

func normalizeLetter(letter string) string {
	return strings.ToLower(strings.TrimSpace(letter))
}

func indexKey(i int) string {
	return strconv.Itoa(i)
}

func roundPct(part, total int) int {
	return clampScore(int(math.Round(100 * float64(part) / float64(total))))
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
