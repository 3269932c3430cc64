package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrAlreadyExists is returned when a student already drills a word that
// compares equal case-insensitively.
var ErrAlreadyExists = errors.New("practice word already exists")

// PracticeWord is a word a student is drilling.
type PracticeWord struct {
	ID        int64     `json:"id"`
	StudentID string    `json:"student_id"`
	Word      string    `json:"word"`
	CreatedAt time.Time `json:"created_at"`
}

const uniqueViolation = "23505"

// NormalizeWord trims surrounding whitespace before storage and comparison.
// Case is preserved in the stored row; uniqueness is enforced on lower(word)
// by the schema.
func NormalizeWord(word string) string {
	return strings.TrimSpace(word)
}

// AddWord inserts a practice word for a student. Duplicate words
// (case-insensitive, whitespace-trimmed) fail with ErrAlreadyExists.
// Uniqueness is enforced by the (student_id, lower(word)) index, so two
// concurrent adds of the same word cannot both succeed.
func (db *DB) AddWord(ctx context.Context, studentID, word string) (*PracticeWord, error) {
	w := &PracticeWord{StudentID: studentID, Word: NormalizeWord(word)}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO practice_words (student_id, word)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, w.StudentID, w.Word).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert practice word: %w", err)
	}
	return w, nil
}

// RemoveWord deletes a student's practice word by id, cascading its results.
// Returns false both when the word does not exist and when it belongs to
// another student; callers cannot distinguish the two.
func (db *DB) RemoveWord(ctx context.Context, studentID string, wordID int64) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM practice_words
		WHERE id = $1 AND student_id = $2
	`, wordID, studentID)
	if err != nil {
		return false, fmt.Errorf("delete practice word: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListWords returns a student's practice words, most recent first.
func (db *DB) ListWords(ctx context.Context, studentID string) ([]PracticeWord, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, student_id, word, created_at
		FROM practice_words
		WHERE student_id = $1
		ORDER BY created_at DESC, id DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PracticeWord
	for rows.Next() {
		var w PracticeWord
		if err := rows.Scan(&w.ID, &w.StudentID, &w.Word, &w.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	if result == nil {
		result = []PracticeWord{}
	}
	return result, rows.Err()
}
