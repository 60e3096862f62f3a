package studybuddy

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// BlankMarker marks the gap in a fill-in-the-blank question.
const BlankMarker = "___"

const minQuestionLength = 10

// Difficulty is the requested difficulty of a question
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Difficulties lists the supported difficulty levels in display order
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty converts user input into a Difficulty, ignoring case
func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range Difficulties {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// QuestionKind is the discriminant of a generated question
type QuestionKind string

const (
	KindMCQ       QuestionKind = "MCQ"
	KindFillBlank QuestionKind = "FillBlank"
)

// Label returns the human readable name of the kind
func (k QuestionKind) Label() string {
	switch k {
	case KindMCQ:
		return "Multiple Choice"
	case KindFillBlank:
		return "Fill in the Blank"
	}
	return string(k)
}

// ParseQuestionKind accepts the discriminant or the human readable label
func ParseQuestionKind(s string) (QuestionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mcq", "multiple choice", "multiple-choice":
		return KindMCQ, nil
	case "fillblank", "fill-blank", "fill in the blank", "fill-in-the-blank":
		return KindFillBlank, nil
	}
	return "", fmt.Errorf("unknown question type %q", s)
}

// MultipleChoiceQuestion is a validated question with four options
type MultipleChoiceQuestion struct {
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correct_answer"`
	Explanation   string     `json:"explanation"`
	Difficulty    Difficulty `json:"difficulty"`
}

// NewMultipleChoiceQuestion builds a question and enforces its invariants
func NewMultipleChoiceQuestion(question string, options []string, correctAnswer, explanation string, difficulty Difficulty) (*MultipleChoiceQuestion, error) {
	if utf8.RuneCountInString(strings.TrimSpace(question)) < minQuestionLength {
		return nil, &ValidationError{Field: "question", Reason: fmt.Sprintf("must be at least %d characters", minQuestionLength)}
	}
	if len(options) != 4 {
		return nil, &ValidationError{Field: "options", Reason: fmt.Sprintf("must contain exactly 4 options, got %d", len(options))}
	}

	seen := make(map[string]bool, len(options))
	for _, option := range options {
		if strings.TrimSpace(option) == "" {
			return nil, &ValidationError{Field: "options", Reason: "options must not be empty"}
		}
		if seen[option] {
			return nil, &ValidationError{Field: "options", Reason: fmt.Sprintf("duplicate option %q", option)}
		}
		seen[option] = true
	}

	if !seen[correctAnswer] {
		return nil, &ValidationError{Field: "correct_answer", Reason: fmt.Sprintf("%q is not one of the options", correctAnswer)}
	}

	if difficulty == "" {
		difficulty = DifficultyMedium
	}
	level, err := ParseDifficulty(string(difficulty))
	if err != nil {
		return nil, &ValidationError{Field: "difficulty", Reason: err.Error()}
	}

	opts := make([]string, len(options))
	copy(opts, options)

	return &MultipleChoiceQuestion{
		Question:      question,
		Options:       opts,
		CorrectAnswer: correctAnswer,
		Explanation:   explanation,
		Difficulty:    level,
	}, nil
}

// FillBlankQuestion is a validated sentence with a gap to complete
type FillBlankQuestion struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

// NewFillBlankQuestion builds a question and enforces its invariants
func NewFillBlankQuestion(question, answer, explanation string) (*FillBlankQuestion, error) {
	if !strings.Contains(question, BlankMarker) {
		return nil, &ValidationError{Field: "question", Reason: fmt.Sprintf("must contain %q to mark the blank", BlankMarker)}
	}
	if strings.TrimSpace(answer) == "" {
		return nil, &ValidationError{Field: "answer", Reason: "must not be empty"}
	}
	return &FillBlankQuestion{
		Question:    question,
		Answer:      answer,
		Explanation: explanation,
	}, nil
}

// Question is a generated question as stored by a session.
// Exactly one of MCQ and FillBlank is set, matching Kind.
type Question struct {
	Kind      QuestionKind            `json:"type"`
	MCQ       *MultipleChoiceQuestion `json:"mcq,omitempty"`
	FillBlank *FillBlankQuestion      `json:"fill_blank,omitempty"`
}

// MCQRecord tags a multiple choice question
func MCQRecord(q *MultipleChoiceQuestion) Question {
	return Question{Kind: KindMCQ, MCQ: q}
}

// FillBlankRecord tags a fill-in-the-blank question
func FillBlankRecord(q *FillBlankQuestion) Question {
	return Question{Kind: KindFillBlank, FillBlank: q}
}

// Text returns the question statement
func (q Question) Text() string {
	switch q.Kind {
	case KindMCQ:
		return q.MCQ.Question
	case KindFillBlank:
		return q.FillBlank.Question
	}
	return ""
}

// Options returns the choices of an MCQ, nil for other kinds
func (q Question) Options() []string {
	if q.Kind == KindMCQ {
		return q.MCQ.Options
	}
	return nil
}

// CorrectAnswer returns the option text of an MCQ or the expected fill-blank answer
func (q Question) CorrectAnswer() string {
	switch q.Kind {
	case KindMCQ:
		return q.MCQ.CorrectAnswer
	case KindFillBlank:
		return q.FillBlank.Answer
	}
	return ""
}

// Explanation returns the teaching note shown with the result
func (q Question) Explanation() string {
	switch q.Kind {
	case KindMCQ:
		return q.MCQ.Explanation
	case KindFillBlank:
		return q.FillBlank.Explanation
	}
	return ""
}

// Grade reports whether answer is correct for this question.
// MCQ answers must match exactly; fill-blank answers ignore case and surrounding whitespace.
func (q Question) Grade(answer string) bool {
	switch q.Kind {
	case KindMCQ:
		return answer == q.MCQ.CorrectAnswer
	case KindFillBlank:
		return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.FillBlank.Answer))
	}
	return false
}

// GradedResult is the outcome of grading one answer
type GradedResult struct {
	Question      string    `json:"question"`
	UserAnswer    string    `json:"user_answer"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   string    `json:"explanation"`
	IsCorrect     bool      `json:"is_correct"`
	GradedAt      time.Time `json:"graded_at"`
}

// Score summarizes a graded quiz
type Score struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// GenerationRequest represents a request to generate a quiz
type GenerationRequest struct {
	Topic      string       `json:"topic" validate:"required,max=200"`
	Kind       QuestionKind `json:"type" validate:"required,oneof=MCQ FillBlank"`
	Difficulty Difficulty   `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
	Count      int          `json:"count" validate:"min=1,max=10"`
}

// Validate checks the request fields before any provider call is made
func (r GenerationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid generation request: %w", err)
	}
	return nil
}
