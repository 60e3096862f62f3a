package studybuddy

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB archives graded quizzes in SQLite
type DB struct {
	db *sql.DB
}

// DBQuiz is an archived quiz attempt
type DBQuiz struct {
	ID           string       `json:"id"`
	Topic        string       `json:"topic"`
	Kind         QuestionKind `json:"type"`
	Difficulty   Difficulty   `json:"difficulty"`
	NumQuestions int          `json:"num_questions"`
	NumCorrect   int          `json:"num_correct"`
	CreatedAt    time.Time    `json:"created_at"`
}

// OpenDB opens the archive and creates its tables
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	archive := &DB{db: db}
	if err := archive.CreateTables(); err != nil {
		db.Close()
		return nil, err
	}
	return archive, nil
}

// CloseDB closes the database connection
func (db *DB) CloseDB() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			question_type TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			num_questions INTEGER NOT NULL,
			num_correct INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			quiz_id TEXT NOT NULL,
			question_num INTEGER NOT NULL,
			question TEXT NOT NULL,
			user_answer TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			explanation TEXT,
			is_correct BOOLEAN NOT NULL,
			graded_at DATETIME NOT NULL,
			PRIMARY KEY (quiz_id, question_num),
			FOREIGN KEY (quiz_id) REFERENCES quizzes(id)
		)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// ArchiveResults stores a graded quiz, replacing an earlier archive of the same quiz
func (db *DB) ArchiveResults(quizID string, req GenerationRequest, results []GradedResult) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to archive for quiz %s", quizID)
	}

	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM results WHERE quiz_id = ?", quizID); err != nil {
		return fmt.Errorf("failed to clear results: %w", err)
	}

	score := ScoreResults(results)
	_, err = tx.Exec(
		`INSERT INTO quizzes (id, topic, question_type, difficulty, num_questions, num_correct, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET num_correct = excluded.num_correct, created_at = excluded.created_at`,
		quizID, req.Topic, string(req.Kind), string(req.Difficulty), score.Total, score.Correct, results[0].GradedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	for i, r := range results {
		_, err := tx.Exec(
			"INSERT INTO results (quiz_id, question_num, question, user_answer, correct_answer, explanation, is_correct, graded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			quizID, i+1, r.Question, r.UserAnswer, r.CorrectAnswer, r.Explanation, r.IsCorrect, r.GradedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// GetQuiz retrieves an archived quiz by ID
func (db *DB) GetQuiz(id string) (*DBQuiz, error) {
	var quiz DBQuiz
	err := db.db.QueryRow(
		"SELECT id, topic, question_type, difficulty, num_questions, num_correct, created_at FROM quizzes WHERE id = ?",
		id,
	).Scan(&quiz.ID, &quiz.Topic, &quiz.Kind, &quiz.Difficulty, &quiz.NumQuestions, &quiz.NumCorrect, &quiz.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("quiz not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return &quiz, nil
}

// GetQuizzes retrieves archived quizzes, newest first, optionally limited by count
func (db *DB) GetQuizzes(limit int) ([]DBQuiz, error) {
	query := "SELECT id, topic, question_type, difficulty, num_questions, num_correct, created_at FROM quizzes ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []DBQuiz
	for rows.Next() {
		var quiz DBQuiz
		err := rows.Scan(&quiz.ID, &quiz.Topic, &quiz.Kind, &quiz.Difficulty, &quiz.NumQuestions, &quiz.NumCorrect, &quiz.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quizzes: %w", err)
	}

	return quizzes, nil
}

// GetResults retrieves the graded answers of a quiz in question order
func (db *DB) GetResults(quizID string) ([]GradedResult, error) {
	rows, err := db.db.Query(
		"SELECT question, user_answer, correct_answer, explanation, is_correct, graded_at FROM results WHERE quiz_id = ? ORDER BY question_num",
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	var results []GradedResult
	for rows.Next() {
		var r GradedResult
		var explanation sql.NullString
		err := rows.Scan(&r.Question, &r.UserAnswer, &r.CorrectAnswer, &explanation, &r.IsCorrect, &r.GradedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Explanation = explanation.String
		results = append(results, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}
