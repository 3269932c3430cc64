package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/snarg/speakdrill/internal/database"
	"github.com/snarg/speakdrill/internal/notify"
	"github.com/snarg/speakdrill/internal/speech"
	"github.com/snarg/speakdrill/internal/storage"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	db        *database.DB
	speech    *speech.Client
	store     storage.MediaStore
	notifier  *notify.Publisher
	version   string
	startTime time.Time
}

func NewHealthHandler(db *database.DB, sp *speech.Client, store storage.MediaStore, notifier *notify.Publisher, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		speech:    sp,
		store:     store,
		notifier:  notifier,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Database check
	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	// Speech engine credentials
	if h.speech != nil && h.speech.Configured() {
		checks["speech"] = "ok"
	} else {
		checks["speech"] = "not_configured"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	// Media storage backend
	if h.store != nil {
		checks["storage"] = h.store.Type()
	}

	// Notification broker
	if h.notifier != nil {
		if h.notifier.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}
