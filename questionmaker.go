package studybuddy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxRetries is the number of attempts made for each question
const DefaultMaxRetries = 3

// QuestionMaker generates validated questions through a ChatModel
type QuestionMaker struct {
	model  ChatModel
	logger logrus.FieldLogger

	MaxRetries     int
	RetryBackoff   time.Duration // doubled after every failed attempt, 0 disables
	AttemptTimeout time.Duration // deadline of a single provider call, 0 disables
}

// NewQuestionMaker creates a question maker using model
func NewQuestionMaker(model ChatModel, cfg GenerationConfig, logger logrus.FieldLogger) *QuestionMaker {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &QuestionMaker{
		model:          model,
		logger:         logger,
		MaxRetries:     maxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		AttemptTimeout: cfg.AttemptTimeout,
	}
}

// GenerateMCQ generates a validated multiple choice question
func (qm *QuestionMaker) GenerateMCQ(ctx context.Context, topic string, difficulty Difficulty) (*MultipleChoiceQuestion, error) {
	q, err := qm.Generate(ctx, KindMCQ, topic, difficulty)
	if err != nil {
		return nil, err
	}
	return q.MCQ, nil
}

// GenerateFillBlank generates a validated fill-in-the-blank question
func (qm *QuestionMaker) GenerateFillBlank(ctx context.Context, topic string, difficulty Difficulty) (*FillBlankQuestion, error) {
	q, err := qm.Generate(ctx, KindFillBlank, topic, difficulty)
	if err != nil {
		return nil, err
	}
	return q.FillBlank, nil
}

// Generate produces one question of the given kind, retrying failed attempts
func (qm *QuestionMaker) Generate(ctx context.Context, kind QuestionKind, topic string, difficulty Difficulty) (Question, error) {
	prompt := BuildPrompt(topic, difficulty, kind)
	transcript := TranscriptFromContext(ctx)
	backoff := qm.RetryBackoff

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= qm.MaxRetries; attempt++ {
		attempts = attempt
		log := qm.logger.WithFields(logrus.Fields{
			"attempt":    fmt.Sprintf("%d/%d", attempt, qm.MaxRetries),
			"topic":      topic,
			"difficulty": difficulty,
			"type":       kind,
		})
		log.Info("Generating question")

		q, err := qm.attempt(ctx, kind, difficulty, attempt, prompt, transcript)
		if err == nil {
			log.Info("Question generated")
			return q, nil
		}

		lastErr = err
		log.WithError(err).Warn("Attempt failed")
		if transcript != nil {
			transcript.LogAttemptFailure(kind, attempt, err)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			lastErr = fmt.Errorf("%w: %v", ctxErr, err)
			break
		}
		if attempt == qm.MaxRetries {
			break
		}
		if backoff > 0 {
			if ctxErr := sleepContext(ctx, backoff); ctxErr != nil {
				lastErr = fmt.Errorf("%w: %v", ctxErr, err)
				break
			}
			backoff *= 2
		}
	}

	qm.logger.WithFields(logrus.Fields{
		"topic":    topic,
		"attempts": attempts,
	}).WithError(lastErr).Error("Generation failed")

	return Question{}, &GenerationError{Topic: topic, Kind: kind, Attempts: attempts, Err: lastErr}
}

func (qm *QuestionMaker) attempt(ctx context.Context, kind QuestionKind, difficulty Difficulty, attempt int, prompt string, transcript *LLMLogger) (Question, error) {
	if qm.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, qm.AttemptTimeout)
		defer cancel()
	}

	if transcript != nil {
		transcript.LogLLMRequest(kind, attempt, prompt)
	}

	response, err := qm.model.Invoke(ctx, prompt)
	if err != nil {
		return Question{}, fmt.Errorf("provider call failed: %w", err)
	}

	if transcript != nil {
		transcript.LogLLMResponse(kind, attempt, response)
	}

	return ParseQuestion(kind, response, difficulty)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type mcqOutput struct {
	Question      json.RawMessage `json:"question"`
	Options       []string        `json:"options"`
	CorrectAnswer string          `json:"correct_answer"`
	Explanation   string          `json:"explanation"`
	Difficulty    string          `json:"difficulty"`
}

type fillBlankOutput struct {
	Question    json.RawMessage `json:"question"`
	Answer      string          `json:"answer"`
	Explanation string          `json:"explanation"`
}

// ParseQuestion turns a raw model reply into a validated question.
// requested is used when the reply carries no difficulty of its own.
func ParseQuestion(kind QuestionKind, response string, requested Difficulty) (Question, error) {
	data, err := extractJSON(response)
	if err != nil {
		return Question{}, err
	}

	switch kind {
	case KindMCQ:
		var raw mcqOutput
		if err := json.Unmarshal(data, &raw); err != nil {
			return Question{}, fmt.Errorf("failed to parse MCQ response: %w", err)
		}
		text, err := decodeText(raw.Question)
		if err != nil {
			return Question{}, err
		}
		difficulty := requested
		if raw.Difficulty != "" {
			difficulty, err = ParseDifficulty(raw.Difficulty)
			if err != nil {
				return Question{}, &ValidationError{Field: "difficulty", Reason: err.Error()}
			}
		}
		q, err := NewMultipleChoiceQuestion(text, raw.Options, raw.CorrectAnswer, raw.Explanation, difficulty)
		if err != nil {
			return Question{}, err
		}
		return MCQRecord(q), nil

	case KindFillBlank:
		var raw fillBlankOutput
		if err := json.Unmarshal(data, &raw); err != nil {
			return Question{}, fmt.Errorf("failed to parse fill-blank response: %w", err)
		}
		text, err := decodeText(raw.Question)
		if err != nil {
			return Question{}, err
		}
		q, err := NewFillBlankQuestion(text, raw.Answer, raw.Explanation)
		if err != nil {
			return Question{}, err
		}
		return FillBlankRecord(q), nil
	}

	return Question{}, fmt.Errorf("unknown question type %q", kind)
}

// extractJSON strips markdown fences and surrounding prose from a reply
func extractJSON(response string) ([]byte, error) {
	clean := strings.TrimSpace(response)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end < start {
		return nil, errors.New("no JSON object in response")
	}
	return []byte(clean[start : end+1]), nil
}

// decodeText accepts a plain string or an object carrying a description
func decodeText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", &ValidationError{Field: "question", Reason: "missing"}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var obj struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Description != "" {
		return obj.Description, nil
	}
	return string(raw), nil
}
