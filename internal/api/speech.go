package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/speakdrill/internal/metrics"
	"github.com/snarg/speakdrill/internal/speech"
	"github.com/snarg/speakdrill/internal/transcode"
)

// SpeechHandler serves pronunciation evaluation and reference-audio
// synthesis.
type SpeechHandler struct {
	transcoder  Transcoder
	evaluator   Evaluator
	synthesizer Synthesizer
	log         zerolog.Logger
}

func NewSpeechHandler(t Transcoder, e Evaluator, s Synthesizer, log zerolog.Logger) *SpeechHandler {
	return &SpeechHandler{
		transcoder:  t,
		evaluator:   e,
		synthesizer: s,
		log:         log.With().Str("handler", "speech").Logger(),
	}
}

func (h *SpeechHandler) Routes(r chi.Router) {
	r.Post("/synthesize", h.Synthesize)
	r.Post("/evaluate", h.Evaluate)
}

type synthesizeRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Rate  float64 `json:"rate,omitempty"`
}

type synthesizeResponse struct {
	Audio string `json:"audio"` // base64 WAV
}

// Synthesize handles POST /api/v1/synthesize.
func (h *SpeechHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	audio, err := h.synthesizer.Synthesize(r.Context(), req.Text, req.Voice, req.Rate)
	if err != nil {
		metrics.SynthesesTotal.WithLabelValues("error").Inc()
		h.log.Error().Err(err).Msg("synthesis failed")
		WriteErrorReason(w, http.StatusBadGateway, "synthesis failed", speech.ReasonEngineError, err.Error())
		return
	}

	metrics.SynthesesTotal.WithLabelValues("ok").Inc()
	WriteJSON(w, http.StatusOK, synthesizeResponse{
		Audio: base64.StdEncoding.EncodeToString(audio),
	})
}

type evaluateRequest struct {
	Audio         string `json:"audioData"` // base64, optionally a data URL
	ReferenceText string `json:"referenceText"`
	Language      string `json:"language,omitempty"`
	Format        string `json:"format,omitempty"` // container hint, e.g. "webm"
}

// Evaluate handles POST /api/v1/evaluate: decode the recorded audio,
// transcode it to evaluation PCM, then score it against the reference text.
func (h *SpeechHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ReferenceText) == "" {
		WriteError(w, http.StatusBadRequest, "referenceText is required")
		return
	}

	raw, err := decodeAudioPayload(req.Audio)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid audio payload: "+err.Error())
		return
	}

	pcm, err := h.transcoder.ToEvaluationPCM(r.Context(), raw, req.Format)
	if err != nil {
		h.writeTranscodeError(w, "eval_pcm", err)
		return
	}
	metrics.TranscodesTotal.WithLabelValues("eval_pcm", "ok").Inc()

	result, err := h.evaluator.Evaluate(r.Context(), pcm, req.ReferenceText, req.Language)
	if err != nil {
		var evalErr *speech.EvalError
		if errors.As(err, &evalErr) && evalErr.Reason == speech.ReasonNoSpeech {
			metrics.EvaluationsTotal.WithLabelValues("no_speech").Inc()
			WriteErrorReason(w, http.StatusUnprocessableEntity,
				"no speech detected", speech.ReasonNoSpeech, "")
			return
		}
		metrics.EvaluationsTotal.WithLabelValues("engine_error").Inc()
		h.log.Error().Err(err).Msg("evaluation failed")
		WriteErrorReason(w, http.StatusBadGateway, "evaluation failed", speech.ReasonEngineError, err.Error())
		return
	}

	metrics.EvaluationsTotal.WithLabelValues("ok").Inc()
	WriteJSON(w, http.StatusOK, result)
}

func (h *SpeechHandler) writeTranscodeError(w http.ResponseWriter, kind string, err error) {
	var tcErr *transcode.Error
	if errors.As(err, &tcErr) {
		metrics.TranscodesTotal.WithLabelValues(kind, string(tcErr.Reason)).Inc()
		switch tcErr.Reason {
		case transcode.ReasonCorruptInput, transcode.ReasonUnsupportedFormat:
			metrics.EvaluationsTotal.WithLabelValues("bad_audio").Inc()
			WriteErrorReason(w, http.StatusBadRequest,
				"cannot decode audio", string(tcErr.Reason), tcErr.Detail)
		default:
			h.log.Error().Err(err).Msg("transcode backend unavailable")
			WriteErrorReason(w, http.StatusServiceUnavailable,
				"transcoding unavailable", string(tcErr.Reason), tcErr.Detail)
		}
		return
	}
	metrics.TranscodesTotal.WithLabelValues(kind, "error").Inc()
	h.log.Error().Err(err).Msg("transcode failed")
	WriteError(w, http.StatusInternalServerError, "transcode failed")
}

// decodeAudioPayload decodes a base64 audio field, tolerating a data-URL
// prefix ("data:audio/webm;base64,....") the way browsers produce it.
func decodeAudioPayload(payload string) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("audio is required")
	}
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.Index(payload, ","); idx >= 0 {
			payload = payload[idx+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.New("not valid base64")
	}
	if len(data) == 0 {
		return nil, errors.New("audio is empty")
	}
	return data, nil
}
