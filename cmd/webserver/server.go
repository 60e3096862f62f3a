package main

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"studybuddy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	cookieName = "study-buddy"
	sessionKey = "sid"

	// sessionMaxAge is the cookie lifetime and the idle time after which a quiz is dropped
	sessionMaxAge = 7 * 24 * time.Hour
)

// newCookieStore returns the cookie store holding the session ID
func newCookieStore(secret []byte) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(sessionMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

type quizEntry struct {
	quiz     *studybuddy.QuizSession
	lastUsed time.Time
}

// Server serves the quiz UI. Each browser session owns one QuizSession.
type Server struct {
	generator studybuddy.QuestionGenerator
	options   studybuddy.SessionOptions
	db        *studybuddy.DB
	store     sessions.Store
	templates map[string]*template.Template
	logger    logrus.FieldLogger

	genTimeout  time.Duration
	idleTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	quizzes map[string]*quizEntry
}

// NewServer wires the handlers. db may be nil to disable the history pages.
func NewServer(generator studybuddy.QuestionGenerator, options studybuddy.SessionOptions, db *studybuddy.DB, store sessions.Store, logger logrus.FieldLogger) *Server {
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"label": func(i int) string {
			return string(rune('A' + i))
		},
	}

	templates := make(map[string]*template.Template)
	for _, name := range []string{"home", "history", "history_detail"} {
		templates[name] = template.Must(template.New(name).Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html"))
	}

	return &Server{
		generator:  generator,
		options:    options,
		db:         db,
		store:      store,
		templates:  templates,
		logger:     logger,
		genTimeout:  10 * time.Minute,
		idleTimeout: sessionMaxAge,
		now:         time.Now,
		quizzes:     make(map[string]*quizEntry),
	}
}

// Routes returns the HTTP handler of the server
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Route("/quiz", func(r chi.Router) {
		r.Post("/", s.handleGenerate)
		r.Post("/answers", s.handleSubmit)
		r.Post("/export", s.handleExport)
		r.Post("/reset", s.handleReset)
	})
	r.Get("/history", s.handleHistory)
	r.Get("/history/{quizID}", s.handleHistoryDetail)

	return r
}

// quizSession returns the QuizSession bound to the request's cookie. A new
// one is created only when create is set; otherwise the quiz may be nil.
func (s *Server) quizSession(w http.ResponseWriter, r *http.Request, create bool) (*sessions.Session, *studybuddy.QuizSession) {
	session, err := s.store.Get(r, cookieName)
	if err != nil {
		s.logger.WithError(err).Warn("Discarding invalid session cookie")
	}

	sid, _ := session.Values[sessionKey].(string)

	s.mu.Lock()
	now := s.now()
	entry, ok := s.quizzes[sid]
	if ok {
		entry.lastUsed = now
	} else if create {
		s.evictIdle(now)
		sid = uuid.NewString()
		entry = &quizEntry{
			quiz:     studybuddy.NewQuizSession(s.options, s.logger.WithField("session", sid)),
			lastUsed: now,
		}
		s.quizzes[sid] = entry
	}
	s.mu.Unlock()

	if ok {
		return session, entry.quiz
	}
	if !create {
		return session, nil
	}

	session.Values[sessionKey] = sid
	if err := session.Save(r, w); err != nil {
		s.logger.WithError(err).Error("Session save error")
	}
	return session, entry.quiz
}

// evictIdle drops quizzes unused for longer than the idle timeout. Callers hold s.mu.
func (s *Server) evictIdle(now time.Time) {
	for sid, entry := range s.quizzes {
		if now.Sub(entry.lastUsed) > s.idleTimeout {
			delete(s.quizzes, sid)
			s.logger.WithField("session", sid).Debug("Evicted idle quiz session")
		}
	}
}

// dropQuiz forgets the quiz bound to the request's cookie
func (s *Server) dropQuiz(session *sessions.Session) {
	sid, _ := session.Values[sessionKey].(string)
	s.mu.Lock()
	entry, ok := s.quizzes[sid]
	delete(s.quizzes, sid)
	s.mu.Unlock()

	if ok {
		entry.quiz.Reset()
	}
}

func (s *Server) flash(w http.ResponseWriter, r *http.Request, session *sessions.Session, message string) {
	session.AddFlash(message)
	if err := session.Save(r, w); err != nil {
		s.logger.WithError(err).Error("Session save error")
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data map[string]interface{}) {
	if err := s.templates[name].ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.WithError(err).Errorf("Template error in %s", name)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	session, quiz := s.quizSession(w, r, false)

	var flashes []string
	for _, f := range session.Flashes() {
		if msg, ok := f.(string); ok {
			flashes = append(flashes, msg)
		}
	}
	if len(flashes) > 0 {
		if err := session.Save(r, w); err != nil {
			s.logger.WithError(err).Error("Session save error")
		}
	}

	var (
		req       studybuddy.GenerationRequest
		questions []studybuddy.Question
		results   []studybuddy.GradedResult
	)
	if quiz != nil {
		req = quiz.Request()
		questions = quiz.Questions()
		results = quiz.Results()
	}
	if req.Difficulty == "" {
		req.Difficulty = studybuddy.DifficultyMedium
	}
	if req.Kind == "" {
		req.Kind = studybuddy.KindMCQ
	}
	if req.Count == 0 {
		req.Count = 3
	}

	s.render(w, "home", map[string]interface{}{
		"Flashes":      flashes,
		"Request":      req,
		"Kinds":        []studybuddy.QuestionKind{studybuddy.KindMCQ, studybuddy.KindFillBlank},
		"Difficulties": studybuddy.Difficulties,
		"Questions":    questions,
		"Results":      results,
		"Score":        studybuddy.ScoreResults(results),
		"HasHistory":   s.db != nil,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	req, err := parseGenerationForm(r)
	if err != nil {
		session, _ := s.quizSession(w, r, false)
		s.flash(w, r, session, "Please provide a topic, question type, difficulty and between 1 and 10 questions.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	session, quiz := s.quizSession(w, r, true)

	ctx, cancel := context.WithTimeout(r.Context(), s.genTimeout)
	defer cancel()

	if err := quiz.Generate(ctx, s.generator, req); err != nil {
		s.logger.WithError(err).WithField("topic", req.Topic).Error("Failed to generate quiz")
		s.flash(w, r, session, "We encountered an issue with the AI provider. Please try again.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.logger.WithFields(logrus.Fields{"topic": req.Topic, "count": req.Count}).Info("New quiz generated")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func parseGenerationForm(r *http.Request) (studybuddy.GenerationRequest, error) {
	kind, err := studybuddy.ParseQuestionKind(r.FormValue("type"))
	if err != nil {
		return studybuddy.GenerationRequest{}, err
	}
	difficulty, err := studybuddy.ParseDifficulty(r.FormValue("difficulty"))
	if err != nil {
		return studybuddy.GenerationRequest{}, err
	}
	count, err := strconv.Atoi(r.FormValue("count"))
	if err != nil {
		return studybuddy.GenerationRequest{}, err
	}

	req := studybuddy.GenerationRequest{
		Topic:      strings.TrimSpace(r.FormValue("topic")),
		Kind:       kind,
		Difficulty: difficulty,
		Count:      count,
	}
	return req, req.Validate()
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session, quiz := s.quizSession(w, r, false)
	if quiz == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	questions := quiz.Questions()
	if len(questions) == 0 {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	answers := make([]string, len(questions))
	for i := range questions {
		answers[i] = r.FormValue(fmt.Sprintf("answer_%d", i))
	}

	if err := quiz.Evaluate(answers); err != nil {
		s.logger.WithError(err).Error("Failed to evaluate quiz")
		s.flash(w, r, session, "Your answers could not be graded. Please try again.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.logger.Info("User submitted quiz for evaluation")

	if s.db != nil {
		if err := s.db.ArchiveResults(quiz.QuizID(), quiz.Request(), quiz.Results()); err != nil {
			s.logger.WithError(err).Warn("Failed to archive results")
		}
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	session, quiz := s.quizSession(w, r, false)

	var path string
	ok := false
	if quiz != nil {
		path, ok = quiz.Export()
	}
	if !ok {
		s.flash(w, r, session, "Error saving results.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	session, _ := s.quizSession(w, r, false)
	s.dropQuiz(session)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.NotFound(w, r)
		return
	}

	quizzes, err := s.db.GetQuizzes(50)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get quizzes")
		http.Error(w, "Failed to get quizzes", http.StatusInternalServerError)
		return
	}

	s.render(w, "history", map[string]interface{}{
		"Quizzes":    quizzes,
		"HasHistory": true,
	})
}

func (s *Server) handleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.NotFound(w, r)
		return
	}

	quizID := chi.URLParam(r, "quizID")
	quiz, err := s.db.GetQuiz(quizID)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	results, err := s.db.GetResults(quizID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get results")
		http.Error(w, "Failed to get results", http.StatusInternalServerError)
		return
	}

	s.render(w, "history_detail", map[string]interface{}{
		"Quiz":       quiz,
		"Results":    results,
		"Score":      studybuddy.ScoreResults(results),
		"HasHistory": true,
	})
}
