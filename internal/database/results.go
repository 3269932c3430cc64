package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrWordNotFound is returned when a result is recorded against a word that
// does not exist or is not owned by the requesting student. The two cases
// are deliberately indistinguishable.
var ErrWordNotFound = errors.New("practice word not found")

// ResultRow is the input for recording an evaluation result.
type ResultRow struct {
	AccuracyScore      float64
	FluencyScore       float64
	CompletenessScore  float64
	PronunciationScore float64
	Words              json.RawMessage // normalized word/phoneme breakdown
}

// PracticeResult is an immutable evaluation snapshot. Rows are append-only;
// the current score for a word is the row with the greatest (created_at, id).
type PracticeResult struct {
	ID                 int64           `json:"id"`
	PracticeWordID     int64           `json:"practice_word_id"`
	AccuracyScore      float64         `json:"accuracy_score"`
	FluencyScore       float64         `json:"fluency_score"`
	CompletenessScore  float64         `json:"completeness_score"`
	PronunciationScore float64         `json:"pronunciation_score"`
	Words              json.RawMessage `json:"words,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// InsertResult appends an evaluation result to a student's practice word.
// The ownership guard is part of the INSERT itself: when the word does not
// belong to the student no row is inserted and ErrWordNotFound is returned.
func (db *DB) InsertResult(ctx context.Context, studentID string, wordID int64, row *ResultRow) (*PracticeResult, error) {
	r := &PracticeResult{
		PracticeWordID:     wordID,
		AccuracyScore:      row.AccuracyScore,
		FluencyScore:       row.FluencyScore,
		CompletenessScore:  row.CompletenessScore,
		PronunciationScore: row.PronunciationScore,
		Words:              row.Words,
	}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO practice_results (
			practice_word_id, accuracy_score, fluency_score,
			completeness_score, pronunciation_score, words
		)
		SELECT w.id, $3, $4, $5, $6, $7
		FROM practice_words w
		WHERE w.id = $1 AND w.student_id = $2
		RETURNING id, created_at
	`,
		wordID, studentID,
		row.AccuracyScore, row.FluencyScore,
		row.CompletenessScore, row.PronunciationScore, row.Words,
	).Scan(&r.ID, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert practice result: %w", err)
	}
	return r, nil
}

// LatestResultForWord returns the most recent result for a student's word,
// or nil when the word has never been attempted. Ties on created_at break
// toward the highest id (latest-inserted wins).
func (db *DB) LatestResultForWord(ctx context.Context, studentID string, wordID int64) (*PracticeResult, error) {
	var r PracticeResult
	err := db.Pool.QueryRow(ctx, `
		SELECT r.id, r.practice_word_id, r.accuracy_score, r.fluency_score,
			r.completeness_score, r.pronunciation_score, r.words, r.created_at
		FROM practice_results r
		JOIN practice_words w ON w.id = r.practice_word_id
		WHERE r.practice_word_id = $1 AND w.student_id = $2
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT 1
	`, wordID, studentID).Scan(
		&r.ID, &r.PracticeWordID, &r.AccuracyScore, &r.FluencyScore,
		&r.CompletenessScore, &r.PronunciationScore, &r.Words, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestResultPerWord returns, for every practice word the student owns, the
// single most recent result across the word's entire history, keyed by
// practice_word_id. Words with zero results are absent from the map.
// One pass via DISTINCT ON, never one query per word.
func (db *DB) LatestResultPerWord(ctx context.Context, studentID string) (map[int64]PracticeResult, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT ON (r.practice_word_id)
			r.id, r.practice_word_id, r.accuracy_score, r.fluency_score,
			r.completeness_score, r.pronunciation_score, r.words, r.created_at
		FROM practice_results r
		JOIN practice_words w ON w.id = r.practice_word_id
		WHERE w.student_id = $1
		ORDER BY r.practice_word_id, r.created_at DESC, r.id DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest := make(map[int64]PracticeResult)
	for rows.Next() {
		var r PracticeResult
		if err := rows.Scan(
			&r.ID, &r.PracticeWordID, &r.AccuracyScore, &r.FluencyScore,
			&r.CompletenessScore, &r.PronunciationScore, &r.Words, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		latest[r.PracticeWordID] = r
	}
	return latest, rows.Err()
}

// ListResults returns the full attempt history for a student's word,
// most recent first.
func (db *DB) ListResults(ctx context.Context, studentID string, wordID int64, limit, offset int) ([]PracticeResult, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT r.id, r.practice_word_id, r.accuracy_score, r.fluency_score,
			r.completeness_score, r.pronunciation_score, r.words, r.created_at
		FROM practice_results r
		JOIN practice_words w ON w.id = r.practice_word_id
		WHERE r.practice_word_id = $1 AND w.student_id = $2
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $3 OFFSET $4
	`, wordID, studentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PracticeResult
	for rows.Next() {
		var r PracticeResult
		if err := rows.Scan(
			&r.ID, &r.PracticeWordID, &r.AccuracyScore, &r.FluencyScore,
			&r.CompletenessScore, &r.PronunciationScore, &r.Words, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if result == nil {
		result = []PracticeResult{}
	}
	return result, rows.Err()
}
