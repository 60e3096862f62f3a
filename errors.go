package studybuddy

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedProvider is wrapped by a ConfigurationError naming an unknown provider
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrAnswerCount is returned when answers and questions are not paired one to one
	ErrAnswerCount = errors.New("number of answers does not match number of questions")
)

// ConfigurationError means the provider could not be set up
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Err)
	}
	return "configuration error: " + e.Message
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// GenerationError means every attempt to generate one question failed
type GenerationError struct {
	Topic    string
	Kind     QuestionKind
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate %s question for topic %q after %d attempts: %v", e.Kind, e.Topic, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ValidationError is a violated question invariant
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExportError wraps an I/O failure while writing results
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("failed to export results to %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
