package studybuddy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LLMLogger writes the transcript of every LLM interaction of one quiz
type LLMLogger struct {
	file   *os.File
	mu     sync.Mutex
	quizID string
}

// NewLLMLogger creates a transcript file <dir>/<quizID>.log
func NewLLMLogger(dir, quizID string, req GenerationRequest) (*LLMLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", quizID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &LLMLogger{
		file:   file,
		quizID: quizID,
	}

	logger.Logf("=== Quiz Generation Log ===\n")
	logger.Logf("Quiz ID: %s\n", quizID)
	logger.Logf("Topic: %s\n", req.Topic)
	logger.Logf("Question Type: %s\n", req.Kind.Label())
	logger.Logf("Difficulty: %s\n", req.Difficulty)
	logger.Logf("Number of Questions: %d\n", req.Count)
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("========================\n\n")

	return logger, nil
}

// Logf writes a formatted log entry with timestamp
func (ll *LLMLogger) Logf(format string, args ...interface{}) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.logf(format, args...)
}

func (ll *LLMLogger) logf(format string, args ...interface{}) {
	timestamp := time.Now().Format("15:04:05.000")
	message := fmt.Sprintf(format, args...)

	fmt.Fprintf(ll.file, "[%s] %s", timestamp, message)
	ll.file.Sync()
}

// LogLLMRequest logs the prompt of one attempt
func (ll *LLMLogger) LogLLMRequest(kind QuestionKind, attempt int, prompt string) {
	ll.Logf("=== LLM REQUEST (%s, attempt %d) ===\n", kind, attempt)
	ll.Logf("Prompt:\n%s\n", prompt)
	ll.Logf("=====================\n\n")
}

// LogLLMResponse logs the raw reply of one attempt
func (ll *LLMLogger) LogLLMResponse(kind QuestionKind, attempt int, response string) {
	ll.Logf("=== LLM RESPONSE (%s, attempt %d) ===\n", kind, attempt)
	ll.Logf("Response:\n%s\n", response)
	ll.Logf("======================\n\n")
}

// LogAttemptFailure logs why an attempt was discarded
func (ll *LLMLogger) LogAttemptFailure(kind QuestionKind, attempt int, err error) {
	ll.Logf("Attempt %d (%s): FAILED - %v\n", attempt, kind, err)
}

// LogQuestionResult logs an accepted question
func (ll *LLMLogger) LogQuestionResult(num int, q Question) {
	ll.Logf("Question %d: ACCEPTED - %s\n", num, q.Text())
}

// Close closes the log file
func (ll *LLMLogger) Close() error {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file != nil {
		ll.logf("=== Quiz Generation Complete ===\n")
		ll.logf("Completed: %s\n", time.Now().Format(time.RFC3339))
		ll.logf("=============================\n")
		err := ll.file.Close()
		ll.file = nil
		return err
	}
	return nil
}

type transcriptKey struct{}

// WithTranscript attaches a transcript logger to ctx
func WithTranscript(ctx context.Context, ll *LLMLogger) context.Context {
	return context.WithValue(ctx, transcriptKey{}, ll)
}

// TranscriptFromContext returns the transcript logger attached to ctx, or nil
func TranscriptFromContext(ctx context.Context) *LLMLogger {
	ll, _ := ctx.Value(transcriptKey{}).(*LLMLogger)
	return ll
}
