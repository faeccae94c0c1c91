// Package quiz holds the read-only quiz catalog. Authoring is out of
// scope; the catalog is seeded at startup and served over the HTTP API.
package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"quizhub/pkg/types"
)

// Catalog is the quiz lookup interface the API serves from.
type Catalog interface {
	ListQuizzes(ctx context.Context) ([]types.QuizSummary, error)
	GetQuiz(ctx context.Context, id string) (*types.Quiz, error)
	Close() error
}

// SQLiteCatalog backs the catalog with a SQLite database. The default
// path is :memory:, so quiz content lives only for the process lifetime
// like the rest of the coordination state, but a file path makes the
// catalog survive restarts if content is ever curated by hand.
type SQLiteCatalog struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenSQLite opens (and if necessary creates) the catalog database at
// path and ensures the schema exists.
func OpenSQLite(path string, log zerolog.Logger) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open quiz database: %w", err)
	}

	c := &SQLiteCatalog{
		db:  db,
		log: log.With().Str("component", "quiz").Logger(),
	}
	if err := c.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCatalog) ensureSchema() error {
	// Questions are stored as a JSON column: the catalog is read-only at
	// runtime, so there is nothing to gain from normalizing them.
	const schema = `
	CREATE TABLE IF NOT EXISTS quizzes (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		questions  TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create quiz schema: %w", err)
	}
	return nil
}

// Seed inserts quizzes that are not already present, keyed by id.
func (c *SQLiteCatalog) Seed(ctx context.Context, quizzes []types.Quiz) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range quizzes {
		questions, err := json.Marshal(q.Questions)
		if err != nil {
			return fmt.Errorf("failed to encode questions for quiz %s: %w", q.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO quizzes (id, name, questions, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			q.ID, q.Name, string(questions), q.CreatedAt, q.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to seed quiz %s: %w", q.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	c.log.Info().Int("count", len(quizzes)).Msg("quiz catalog seeded")
	return nil
}

// ListQuizzes returns summaries of every quiz in insertion order.
func (c *SQLiteCatalog) ListQuizzes(ctx context.Context) ([]types.QuizSummary, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name, questions FROM quizzes ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	defer rows.Close()

	var out []types.QuizSummary
	for rows.Next() {
		var id, name, questionsJSON string
		if err := rows.Scan(&id, &name, &questionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan quiz row: %w", err)
		}
		var questions []types.Question
		if err := json.Unmarshal([]byte(questionsJSON), &questions); err != nil {
			return nil, fmt.Errorf("corrupt questions column for quiz %s: %w", id, err)
		}
		out = append(out, types.QuizSummary{ID: id, Name: name, QuestionCount: len(questions)})
	}
	return out, rows.Err()
}

// GetQuiz returns the full quiz for id, or ErrQuizNotFound.
func (c *SQLiteCatalog) GetQuiz(ctx context.Context, id string) (*types.Quiz, error) {
	var (
		quiz          types.Quiz
		questionsJSON string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT id, name, questions, created_at, updated_at FROM quizzes WHERE id = ?`, id).
		Scan(&quiz.ID, &quiz.Name, &questionsJSON, &quiz.CreatedAt, &quiz.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, types.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(questionsJSON), &quiz.Questions); err != nil {
		return nil, fmt.Errorf("corrupt questions column for quiz %s: %w", id, err)
	}
	return &quiz, nil
}

// Close closes the underlying database.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

// SampleQuizzes returns the built-in development content.
func SampleQuizzes() []types.Quiz {
	now := time.Now()
	newQuestion := func(text string, options []string, correct int) types.Question {
		return types.Question{
			ID:                 uuid.New().String(),
			Question:           text,
			Options:            options,
			CorrectOptionIndex: correct,
		}
	}

	return []types.Quiz{
		{
			ID:   "0",
			Name: "General Knowledge Quiz",
			Questions: []types.Question{
				newQuestion("What is the capital of France?",
					[]string{"London", "Berlin", "Paris", "Madrid"}, 2),
				newQuestion("Which planet is known as the Red Planet?",
					[]string{"Venus", "Mars", "Jupiter", "Saturn"}, 1),
				newQuestion("What is the largest ocean on Earth?",
					[]string{"Atlantic Ocean", "Indian Ocean", "Arctic Ocean", "Pacific Ocean"}, 3),
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:   "1",
			Name: "Programming Basics",
			Questions: []types.Question{
				newQuestion("Which language is used primarily for styling web pages?",
					[]string{"HTML", "JavaScript", "CSS", "Python"}, 2),
				newQuestion("What does DOM stand for in web development?",
					[]string{"Document Object Model", "Data Object Management", "Digital Ordinance Module", "Desktop Object Mode"}, 0),
				newQuestion("Which of these is NOT a JavaScript framework or library?",
					[]string{"React", "Angular", "Vue", "Flask"}, 3),
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
