// Package api is the HTTP surface of the service: practice-word CRUD,
// pronunciation evaluation, speech synthesis, lesson-video upload and
// recording-session tracking, all under /api/v1.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/speakdrill/internal/config"
	"github.com/snarg/speakdrill/internal/database"
	"github.com/snarg/speakdrill/internal/metrics"
	"github.com/snarg/speakdrill/internal/notify"
	"github.com/snarg/speakdrill/internal/session"
	"github.com/snarg/speakdrill/internal/speech"
	"github.com/snarg/speakdrill/internal/storage"
)

// Transcoder converts media buffers; implemented by transcode.Transcoder.
type Transcoder interface {
	ToEvaluationPCM(ctx context.Context, audio []byte, containerHint string) ([]byte, error)
	ExtractAudioTrack(ctx context.Context, video []byte) ([]byte, error)
}

// Evaluator scores recorded speech against a reference phrase; implemented
// by speech.Client.
type Evaluator interface {
	Evaluate(ctx context.Context, wavData []byte, referenceText, language string) (*speech.EvaluationResult, error)
}

// Synthesizer produces reference audio for a phrase; implemented by
// speech.Client.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, rate float64) ([]byte, error)
}

// WordStore is the practice-word persistence surface the handlers need;
// implemented by database.DB.
type WordStore interface {
	AddWord(ctx context.Context, studentID, word string) (*database.PracticeWord, error)
	RemoveWord(ctx context.Context, studentID string, wordID int64) (bool, error)
	ListWords(ctx context.Context, studentID string) ([]database.PracticeWord, error)
	InsertResult(ctx context.Context, studentID string, wordID int64, row *database.ResultRow) (*database.PracticeResult, error)
	LatestResultPerWord(ctx context.Context, studentID string) (map[int64]database.PracticeResult, error)
	ListResults(ctx context.Context, studentID string, wordID int64, limit, offset int) ([]database.PracticeResult, error)
}

// Deps bundles everything the router needs. Nil Notifier disables
// result-recorded events.
type Deps struct {
	Config      *config.Config
	DB          *database.DB
	Store       storage.MediaStore
	Transcoder  Transcoder
	Evaluator   Evaluator
	Synthesizer Synthesizer
	Sessions    *session.Manager
	Notifier    *notify.Publisher
	Speech      *speech.Client
	Version     string
	StartTime   time.Time
	Log         zerolog.Logger
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(d Deps) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(d.Log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	// Health and metrics, no auth
	health := NewHealthHandler(d.DB, d.Speech, d.Store, d.Notifier, d.Version, d.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	speechH := NewSpeechHandler(d.Transcoder, d.Evaluator, d.Synthesizer, d.Log)
	wordsH := NewWordsHandler(d.DB, d.Notifier, d.Log)
	videosH := NewVideosHandler(d.Store, d.Transcoder, d.Log)
	recordingsH := NewRecordingsHandler(d.Sessions)

	// Student-scoped routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(d.Config.AuthToken))
		r.Use(StudentID)

		speechH.Routes(r)
		wordsH.Routes(r)
		videosH.Routes(r)
		recordingsH.Routes(r)
	})

	return &Server{
		http: &http.Server{
			Addr:         d.Config.HTTPAddr,
			Handler:      r,
			ReadTimeout:  d.Config.ReadTimeout,
			WriteTimeout: d.Config.WriteTimeout,
			IdleTimeout:  d.Config.IdleTimeout,
		},
		log: d.Log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
