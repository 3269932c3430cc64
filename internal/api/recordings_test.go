package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/snarg/speakdrill/internal/session"
)

func recordingsRouter(m *session.Manager) http.Handler {
	h := NewRecordingsHandler(m)
	r := chi.NewRouter()
	r.Use(StudentID)
	h.Routes(r)
	return r
}

func TestRecordingLifecycle(t *testing.T) {
	mgr := session.NewManager()
	r := recordingsRouter(mgr)

	req := httptest.NewRequest(http.MethodPost, "/recordings", nil)
	req.Header.Set("X-Student-ID", "student-a")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	var s session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.State != session.StateIdle {
		t.Errorf("state = %s, want idle", s.State)
	}

	rec = doJSON(t, r, http.MethodPost, "/recordings/"+s.ID+"/events", sessionEventRequest{Event: session.EventStart})
	if rec.Code != http.StatusOK {
		t.Fatalf("event status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp sessionEventResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.State != session.StateRecording || !resp.Applied {
		t.Errorf("after start: (%s, %v), want (recording, true)", resp.State, resp.Applied)
	}

	// Duplicate event: 200 with applied=false.
	rec = doJSON(t, r, http.MethodPost, "/recordings/"+s.ID+"/events", sessionEventRequest{Event: session.EventStart})
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || resp.Applied {
		t.Errorf("duplicate start: status=%d applied=%v, want 200 false", rec.Code, resp.Applied)
	}
}

func TestRecordingUnknownSession(t *testing.T) {
	r := recordingsRouter(session.NewManager())
	rec := doJSON(t, r, http.MethodPost, "/recordings/nope/events", sessionEventRequest{Event: session.EventStart})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
