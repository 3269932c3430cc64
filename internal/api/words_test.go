package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/speakdrill/internal/database"
)

type mockWordStore struct {
	words   []database.PracticeWord
	latest  map[int64]database.PracticeResult
	results []database.PracticeResult

	addErr    error
	insertErr error
	removed   bool

	gotStudent string
	gotWordID  int64
	gotRow     *database.ResultRow
	gotLimit   int
	gotOffset  int
}

func (m *mockWordStore) AddWord(ctx context.Context, studentID, word string) (*database.PracticeWord, error) {
	m.gotStudent = studentID
	if m.addErr != nil {
		return nil, m.addErr
	}
	return &database.PracticeWord{ID: 1, StudentID: studentID, Word: database.NormalizeWord(word)}, nil
}

func (m *mockWordStore) RemoveWord(ctx context.Context, studentID string, wordID int64) (bool, error) {
	m.gotStudent = studentID
	m.gotWordID = wordID
	return m.removed, nil
}

func (m *mockWordStore) ListWords(ctx context.Context, studentID string) ([]database.PracticeWord, error) {
	m.gotStudent = studentID
	return m.words, nil
}

func (m *mockWordStore) InsertResult(ctx context.Context, studentID string, wordID int64, row *database.ResultRow) (*database.PracticeResult, error) {
	m.gotStudent = studentID
	m.gotWordID = wordID
	m.gotRow = row
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	return &database.PracticeResult{
		ID:                 42,
		PracticeWordID:     wordID,
		AccuracyScore:      row.AccuracyScore,
		FluencyScore:       row.FluencyScore,
		CompletenessScore:  row.CompletenessScore,
		PronunciationScore: row.PronunciationScore,
		Words:              row.Words,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

func (m *mockWordStore) LatestResultPerWord(ctx context.Context, studentID string) (map[int64]database.PracticeResult, error) {
	if m.latest == nil {
		return map[int64]database.PracticeResult{}, nil
	}
	return m.latest, nil
}

func (m *mockWordStore) ListResults(ctx context.Context, studentID string, wordID int64, limit, offset int) ([]database.PracticeResult, error) {
	m.gotStudent = studentID
	m.gotWordID = wordID
	m.gotLimit = limit
	m.gotOffset = offset
	if m.results == nil {
		return []database.PracticeResult{}, nil
	}
	return m.results, nil
}

func wordsRouter(store *mockWordStore) http.Handler {
	h := NewWordsHandler(store, nil, zerolog.Nop())
	r := chi.NewRouter()
	r.Use(StudentID)
	h.Routes(r)
	return r
}

func TestListWordsMergesLatestResult(t *testing.T) {
	store := &mockWordStore{
		words: []database.PracticeWord{
			{ID: 2, StudentID: "student-a", Word: "squirrel"},
			{ID: 1, StudentID: "student-a", Word: "refrigerator"},
		},
		latest: map[int64]database.PracticeResult{
			1: {ID: 10, PracticeWordID: 1, PronunciationScore: 91},
		},
	}
	r := wordsRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/practice-words", nil)
	req.Header.Set("X-Student-ID", "student-a")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var out []wordWithLatest
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	// Word never attempted: latest_result is null.
	if out[0].Word != "squirrel" || out[0].LatestResult != nil {
		t.Errorf("squirrel latest = %+v, want nil", out[0].LatestResult)
	}
	if out[1].LatestResult == nil || out[1].LatestResult.PronunciationScore != 91 {
		t.Errorf("refrigerator latest = %+v, want score 91", out[1].LatestResult)
	}
}

func TestListWordsNullIsExplicit(t *testing.T) {
	store := &mockWordStore{
		words: []database.PracticeWord{{ID: 1, StudentID: "student-a", Word: "cat"}},
	}
	r := wordsRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/practice-words", nil)
	req.Header.Set("X-Student-ID", "student-a")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	v, ok := raw[0]["latest_result"]
	if !ok || string(v) != "null" {
		t.Errorf("latest_result = %s, want explicit null", v)
	}
}

func TestAddWord(t *testing.T) {
	store := &mockWordStore{}
	r := wordsRouter(store)

	rec := doJSON(t, r, http.MethodPost, "/practice-words", addWordRequest{Word: "  banana "})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var word database.PracticeWord
	json.Unmarshal(rec.Body.Bytes(), &word)
	if word.Word != "banana" {
		t.Errorf("word = %q, want trimmed banana", word.Word)
	}
	if store.gotStudent != "student-a" {
		t.Errorf("student = %q", store.gotStudent)
	}
}

func TestAddWordDuplicate(t *testing.T) {
	store := &mockWordStore{addErr: database.ErrAlreadyExists}
	r := wordsRouter(store)

	rec := doJSON(t, r, http.MethodPost, "/practice-words", addWordRequest{Word: "banana"})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestAddWordEmpty(t *testing.T) {
	r := wordsRouter(&mockWordStore{})
	rec := doJSON(t, r, http.MethodPost, "/practice-words", addWordRequest{Word: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRemoveWord(t *testing.T) {
	store := &mockWordStore{removed: true}
	r := wordsRouter(store)

	req := httptest.NewRequest(http.MethodDelete, "/practice-words/7", nil)
	req.Header.Set("X-Student-ID", "student-a")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if store.gotWordID != 7 {
		t.Errorf("wordID = %d, want 7", store.gotWordID)
	}
}

func TestRemoveWordNotFound(t *testing.T) {
	r := wordsRouter(&mockWordStore{removed: false})

	req := httptest.NewRequest(http.MethodDelete, "/practice-words/7", nil)
	req.Header.Set("X-Student-ID", "student-a")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func f(v float64) *float64 { return &v }

func TestRecordResult(t *testing.T) {
	store := &mockWordStore{}
	r := wordsRouter(store)

	rec := doJSON(t, r, http.MethodPost, "/practice-words/3/results", recordResultRequest{
		AccuracyScore:      f(80),
		FluencyScore:       f(75.5),
		CompletenessScore:  f(100),
		PronunciationScore: f(0), // zero is a legitimate score
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if store.gotWordID != 3 {
		t.Errorf("wordID = %d, want 3", store.gotWordID)
	}
	if store.gotRow.PronunciationScore != 0 {
		t.Errorf("pronunciationScore = %v, want 0", store.gotRow.PronunciationScore)
	}
}

func TestRecordResultMissingScore(t *testing.T) {
	r := wordsRouter(&mockWordStore{})

	rec := doJSON(t, r, http.MethodPost, "/practice-words/3/results", recordResultRequest{
		AccuracyScore:     f(80),
		FluencyScore:      f(75),
		CompletenessScore: f(100),
		// PronunciationScore absent
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error != "missing required score: pronunciationScore" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestRecordResultUnknownWord(t *testing.T) {
	store := &mockWordStore{insertErr: database.ErrWordNotFound}
	r := wordsRouter(store)

	rec := doJSON(t, r, http.MethodPost, "/practice-words/99/results", recordResultRequest{
		AccuracyScore:      f(80),
		FluencyScore:       f(75),
		CompletenessScore:  f(100),
		PronunciationScore: f(82),
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListResultsPagination(t *testing.T) {
	store := &mockWordStore{}
	r := wordsRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/practice-words/3/results?limit=10&offset=20", nil)
	req.Header.Set("X-Student-ID", "student-a")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if store.gotLimit != 10 || store.gotOffset != 20 {
		t.Errorf("pagination = (%d, %d), want (10, 20)", store.gotLimit, store.gotOffset)
	}
	if rec.Body.String() != "[]\n" {
		t.Errorf("empty history body = %q, want []", rec.Body.String())
	}
}

func TestListResultsBadPagination(t *testing.T) {
	r := wordsRouter(&mockWordStore{})

	req := httptest.NewRequest(http.MethodGet, "/practice-words/3/results?limit=0", nil)
	req.Header.Set("X-Student-ID", "student-a")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
