package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/speakdrill/internal/database"
	"github.com/snarg/speakdrill/internal/metrics"
	"github.com/snarg/speakdrill/internal/notify"
	"github.com/snarg/speakdrill/internal/speech"
)

// WordsHandler serves a student's practice-word list and its evaluation
// results.
type WordsHandler struct {
	store    WordStore
	notifier *notify.Publisher
	log      zerolog.Logger
}

func NewWordsHandler(store WordStore, notifier *notify.Publisher, log zerolog.Logger) *WordsHandler {
	return &WordsHandler{
		store:    store,
		notifier: notifier,
		log:      log.With().Str("handler", "words").Logger(),
	}
}

func (h *WordsHandler) Routes(r chi.Router) {
	r.Get("/practice-words", h.List)
	r.Post("/practice-words", h.Add)
	r.Delete("/practice-words/{wordID}", h.Remove)
	r.Post("/practice-words/{wordID}/results", h.RecordResult)
	r.Get("/practice-words/{wordID}/results", h.ListResults)
}

// wordWithLatest is a practice word joined with its most recent result.
// LatestResult is null for words never attempted.
type wordWithLatest struct {
	database.PracticeWord
	LatestResult *database.PracticeResult `json:"latest_result"`
}

// List handles GET /api/v1/practice-words. Each word carries the latest
// result across its entire history; deleting and re-adding a word resets
// that history via the cascade.
func (h *WordsHandler) List(w http.ResponseWriter, r *http.Request) {
	studentID := StudentFromContext(r.Context())

	words, err := h.store.ListWords(r.Context(), studentID)
	if err != nil {
		h.log.Error().Err(err).Msg("list words failed")
		WriteError(w, http.StatusInternalServerError, "failed to list practice words")
		return
	}
	latest, err := h.store.LatestResultPerWord(r.Context(), studentID)
	if err != nil {
		h.log.Error().Err(err).Msg("latest results failed")
		WriteError(w, http.StatusInternalServerError, "failed to load results")
		return
	}

	out := make([]wordWithLatest, 0, len(words))
	for _, word := range words {
		item := wordWithLatest{PracticeWord: word}
		if res, ok := latest[word.ID]; ok {
			item.LatestResult = &res
		}
		out = append(out, item)
	}
	WriteJSON(w, http.StatusOK, out)
}

type addWordRequest struct {
	Word string `json:"word"`
}

// Add handles POST /api/v1/practice-words.
func (h *WordsHandler) Add(w http.ResponseWriter, r *http.Request) {
	studentID := StudentFromContext(r.Context())

	var req addWordRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if database.NormalizeWord(req.Word) == "" {
		WriteError(w, http.StatusBadRequest, "word is required")
		return
	}

	word, err := h.store.AddWord(r.Context(), studentID, req.Word)
	if errors.Is(err, database.ErrAlreadyExists) {
		WriteError(w, http.StatusConflict, "word already in practice list")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("add word failed")
		WriteError(w, http.StatusInternalServerError, "failed to add practice word")
		return
	}
	WriteJSON(w, http.StatusCreated, word)
}

// Remove handles DELETE /api/v1/practice-words/{wordID}. Not-found and
// not-owned are the same 404.
func (h *WordsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	studentID := StudentFromContext(r.Context())

	wordID, err := PathInt64(r, "wordID")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid word id")
		return
	}

	removed, err := h.store.RemoveWord(r.Context(), studentID, wordID)
	if err != nil {
		h.log.Error().Err(err).Msg("remove word failed")
		WriteError(w, http.StatusInternalServerError, "failed to remove practice word")
		return
	}
	if !removed {
		WriteError(w, http.StatusNotFound, "practice word not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordResultRequest carries one evaluation snapshot. Scores are pointers
// so a missing field is distinguishable from a legitimate zero.
type recordResultRequest struct {
	AccuracyScore      *float64           `json:"accuracyScore"`
	FluencyScore       *float64           `json:"fluencyScore"`
	CompletenessScore  *float64           `json:"completenessScore"`
	PronunciationScore *float64           `json:"pronunciationScore"`
	Words              []speech.WordScore `json:"words,omitempty"`
}

// RecordResult handles POST /api/v1/practice-words/{wordID}/results.
func (h *WordsHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	studentID := StudentFromContext(r.Context())

	wordID, err := PathInt64(r, "wordID")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid word id")
		return
	}

	var req recordResultRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if missing := missingScores(&req); missing != "" {
		WriteError(w, http.StatusBadRequest, "missing required score: "+missing)
		return
	}

	var wordsJSON json.RawMessage
	if len(req.Words) > 0 {
		wordsJSON, err = json.Marshal(req.Words)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid words breakdown")
			return
		}
	}

	result, err := h.store.InsertResult(r.Context(), studentID, wordID, &database.ResultRow{
		AccuracyScore:      *req.AccuracyScore,
		FluencyScore:       *req.FluencyScore,
		CompletenessScore:  *req.CompletenessScore,
		PronunciationScore: *req.PronunciationScore,
		Words:              wordsJSON,
	})
	if errors.Is(err, database.ErrWordNotFound) {
		WriteError(w, http.StatusNotFound, "practice word not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("insert result failed")
		WriteError(w, http.StatusInternalServerError, "failed to record result")
		return
	}

	metrics.ResultsRecordedTotal.Inc()
	if h.notifier != nil {
		h.notifier.ResultRecorded(studentID, wordID, result.ID, req.PronunciationScore)
	}
	WriteJSON(w, http.StatusCreated, result)
}

func missingScores(req *recordResultRequest) string {
	switch {
	case req.AccuracyScore == nil:
		return "accuracyScore"
	case req.FluencyScore == nil:
		return "fluencyScore"
	case req.CompletenessScore == nil:
		return "completenessScore"
	case req.PronunciationScore == nil:
		return "pronunciationScore"
	}
	return ""
}

// ListResults handles GET /api/v1/practice-words/{wordID}/results: the full
// attempt history, most recent first, paginated.
func (h *WordsHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	studentID := StudentFromContext(r.Context())

	wordID, err := PathInt64(r, "wordID")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid word id")
		return
	}
	p, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.store.ListResults(r.Context(), studentID, wordID, p.Limit, p.Offset)
	if err != nil {
		h.log.Error().Err(err).Msg("list results failed")
		WriteError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	WriteJSON(w, http.StatusOK, results)
}
