package studybuddy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// QuestionGenerator produces one validated question per call
type QuestionGenerator interface {
	Generate(ctx context.Context, kind QuestionKind, topic string, difficulty Difficulty) (Question, error)
}

// SessionOptions configures a QuizSession
type SessionOptions struct {
	ExportDir     string           // directory for CSV exports
	TranscriptDir string           // directory for per-quiz LLM transcripts, empty disables them
	Clock         func() time.Time // defaults to time.Now
}

// QuizSession holds the questions and graded results of one user session
type QuizSession struct {
	mu        sync.Mutex
	quizID    string
	request   GenerationRequest
	questions []Question
	results   []GradedResult

	exportDir     string
	transcriptDir string
	now           func() time.Time
	logger        logrus.FieldLogger
}

// NewQuizSession creates an empty session
func NewQuizSession(opts SessionOptions, logger logrus.FieldLogger) *QuizSession {
	if opts.ExportDir == "" {
		opts.ExportDir = DefaultExportDir
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &QuizSession{
		exportDir:     opts.ExportDir,
		transcriptDir: opts.TranscriptDir,
		now:           opts.Clock,
		logger:        logger,
	}
}

// Generate replaces the session's questions with req.Count freshly generated ones.
// The batch is built without holding the session lock and committed only when
// every question succeeds; on failure the session keeps its previous questions
// and results.
func (s *QuizSession) Generate(ctx context.Context, gen QuestionGenerator, req GenerationRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	quizID := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{
		"quiz_id": quizID,
		"topic":   req.Topic,
		"type":    req.Kind,
	})
	log.Infof("Starting quiz generation, target questions: %d", req.Count)

	if s.transcriptDir != "" {
		transcript, err := NewLLMLogger(s.transcriptDir, quizID, req)
		if err != nil {
			log.WithError(err).Warn("Failed to create transcript logger")
		} else {
			defer transcript.Close()
			ctx = WithTranscript(ctx, transcript)
		}
	}
	transcript := TranscriptFromContext(ctx)

	questions := make([]Question, 0, req.Count)
	for i := 1; i <= req.Count; i++ {
		log.Infof("Generating question %d/%d", i, req.Count)

		q, err := gen.Generate(ctx, req.Kind, req.Topic, req.Difficulty)
		if err != nil {
			log.WithError(err).Errorf("Quiz generation aborted at question %d/%d", i, req.Count)
			return err
		}
		if q.Kind != req.Kind {
			return fmt.Errorf("generator returned %s question, want %s", q.Kind, req.Kind)
		}
		if transcript != nil {
			transcript.LogQuestionResult(i, q)
		}
		questions = append(questions, q)
	}

	s.mu.Lock()
	s.quizID = quizID
	s.request = req
	s.questions = questions
	s.results = nil
	s.mu.Unlock()

	log.Infof("Quiz generation complete: %d questions", len(questions))
	return nil
}

// Evaluate grades answers positionally against the current questions
func (s *QuizSession) Evaluate(answers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(answers) != len(s.questions) {
		return fmt.Errorf("%w: got %d answers for %d questions", ErrAnswerCount, len(answers), len(s.questions))
	}

	gradedAt := s.now()
	results := make([]GradedResult, len(s.questions))
	for i, q := range s.questions {
		results[i] = GradedResult{
			Question:      q.Text(),
			UserAnswer:    answers[i],
			CorrectAnswer: q.CorrectAnswer(),
			Explanation:   q.Explanation(),
			IsCorrect:     q.Grade(answers[i]),
			GradedAt:      gradedAt,
		}
	}
	s.results = results

	s.logger.WithField("quiz_id", s.quizID).Infof("Quiz evaluated. Total questions: %d", len(results))
	return nil
}

// Export writes the graded results to a timestamped CSV file.
// It reports false when there is nothing to export or the write failed.
func (s *QuizSession) Export() (string, bool) {
	s.mu.Lock()
	results := append([]GradedResult(nil), s.results...)
	stamp := s.now()
	s.mu.Unlock()

	if len(results) == 0 {
		s.logger.Warn("No results to save")
		return "", false
	}

	path, err := ExportResults(s.exportDir, stamp, results)
	if err != nil {
		s.logger.WithError(err).Error("Failed to save CSV")
		return "", false
	}

	s.logger.WithField("path", path).Info("Quiz results exported")
	return path, true
}

// Reset drops the current questions and results
func (s *QuizSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizID = ""
	s.request = GenerationRequest{}
	s.questions = nil
	s.results = nil
}

// QuizID identifies the current batch of questions
func (s *QuizSession) QuizID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quizID
}

// Request returns the request that produced the current questions
func (s *QuizSession) Request() GenerationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request
}

// Questions returns a copy of the committed questions
func (s *QuizSession) Questions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Question(nil), s.questions...)
}

// Results returns a copy of the graded results
func (s *QuizSession) Results() []GradedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GradedResult(nil), s.results...)
}

// Score summarizes the current results
func (s *QuizSession) Score() Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ScoreResults(s.results)
}

// ScoreResults counts correct answers
func ScoreResults(results []GradedResult) Score {
	score := Score{Total: len(results)}
	for _, r := range results {
		if r.IsCorrect {
			score.Correct++
		}
	}
	if score.Total > 0 {
		score.Percent = float64(score.Correct) / float64(score.Total) * 100
	}
	return score
}
