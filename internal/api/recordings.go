package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/snarg/speakdrill/internal/session"
)

// RecordingsHandler mirrors client-side recorder state so abandoned
// sessions can be observed server-side.
type RecordingsHandler struct {
	sessions *session.Manager
}

func NewRecordingsHandler(sessions *session.Manager) *RecordingsHandler {
	return &RecordingsHandler{sessions: sessions}
}

func (h *RecordingsHandler) Routes(r chi.Router) {
	r.Post("/recordings", h.Create)
	r.Get("/recordings/{sessionID}", h.Get)
	r.Post("/recordings/{sessionID}/events", h.ApplyEvent)
}

// Create handles POST /api/v1/recordings.
func (h *RecordingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create(StudentFromContext(r.Context()))
	WriteJSON(w, http.StatusCreated, s)
}

// Get handles GET /api/v1/recordings/{sessionID}.
func (h *RecordingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s, found := h.sessions.Get(id, StudentFromContext(r.Context()))
	if !found {
		WriteError(w, http.StatusNotFound, "recording session not found")
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

type sessionEventRequest struct {
	Event session.Event `json:"event"`
}

type sessionEventResponse struct {
	session.Session
	Applied bool `json:"applied"`
}

// ApplyEvent handles POST /api/v1/recordings/{sessionID}/events. Invalid
// transitions are reported with applied=false, not an error: the client's
// recorder is the source of truth and duplicate events are expected.
func (h *RecordingsHandler) ApplyEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req sessionEventRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Event == "" {
		WriteError(w, http.StatusBadRequest, "event is required")
		return
	}

	s, applied, found := h.sessions.Apply(id, StudentFromContext(r.Context()), req.Event)
	if !found {
		WriteError(w, http.StatusNotFound, "recording session not found")
		return
	}
	WriteJSON(w, http.StatusOK, sessionEventResponse{Session: s, Applied: applied})
}
