package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// EvaluationResult is the normalized pronunciation-assessment outcome.
// Scores are the engine's native 0–100 floats, passed through untouched:
// a nil pointer means the engine sent no score, which is distinct from 0.
type EvaluationResult struct {
	Text               string      `json:"text"`
	AccuracyScore      *float64    `json:"accuracyScore"`
	FluencyScore       *float64    `json:"fluencyScore"`
	CompletenessScore  *float64    `json:"completenessScore"`
	PronunciationScore *float64    `json:"pronunciationScore"`
	Words              []WordScore `json:"words"`
}

// WordScore is the per-word breakdown. Phonemes is always non-nil; a word
// the engine returned without phoneme detail gets an empty slice.
type WordScore struct {
	Word          string         `json:"word"`
	AccuracyScore *float64       `json:"accuracyScore,omitempty"`
	ErrorType     string         `json:"errorType,omitempty"`
	Phonemes      []PhonemeScore `json:"phonemes"`
}

// PhonemeScore scores one phoneme in the engine's native symbol set.
type PhonemeScore struct {
	Phoneme       string   `json:"phoneme"`
	AccuracyScore *float64 `json:"accuracyScore,omitempty"`
}

// callState is the per-call protocol position: Idle → Submitted → exactly
// one terminal state. There is no retry loop here; retries are the caller's
// responsibility (single-shot recognition, not continuous streaming).
type callState int

const (
	stateIdle callState = iota
	stateSubmitted
	stateRecognized
	stateNoMatch
	stateError
)

// terminalState maps an engine recognition status to the call's terminal
// protocol state.
func terminalState(status string) callState {
	switch status {
	case "Success":
		return stateRecognized
	case "NoMatch", "InitialSilenceTimeout":
		return stateNoMatch
	default:
		return stateError
	}
}

// assessParams is the assessment configuration sent alongside the audio.
type assessParams struct {
	ReferenceText string `json:"ReferenceText"`
	GradingSystem string `json:"GradingSystem"`
	Granularity   string `json:"Granularity"`
	Dimension     string `json:"Dimension"`
}

// Raw engine response shapes (detailed format).
type assessResponse struct {
	RecognitionStatus string       `json:"RecognitionStatus"`
	DisplayText       string       `json:"DisplayText"`
	NBest             []nbestEntry `json:"NBest"`
}

type nbestEntry struct {
	Display                 string     `json:"Display"`
	PronunciationAssessment *rawScores `json:"PronunciationAssessment"`
	Words                   []rawWord  `json:"Words"`
}

type rawScores struct {
	AccuracyScore      *float64 `json:"AccuracyScore"`
	FluencyScore       *float64 `json:"FluencyScore"`
	CompletenessScore  *float64 `json:"CompletenessScore"`
	PronScore          *float64 `json:"PronScore"`
}

type rawWord struct {
	Word                    string        `json:"Word"`
	PronunciationAssessment *rawWordScore `json:"PronunciationAssessment"`
	Phonemes                []rawPhoneme  `json:"Phonemes"`
}

type rawWordScore struct {
	AccuracyScore *float64 `json:"AccuracyScore"`
	ErrorType     string   `json:"ErrorType"`
}

type rawPhoneme struct {
	Phoneme                 string        `json:"Phoneme"`
	PronunciationAssessment *rawWordScore `json:"PronunciationAssessment"`
}

// Evaluate submits evaluation PCM plus a reference phrase for single-shot
// pronunciation assessment. wavData must already conform to the transcoder's
// output contract (16 kHz mono s16le WAV); it is not re-validated here.
// Exactly one terminal outcome is reached per call.
func (c *Client) Evaluate(ctx context.Context, wavData []byte, referenceText, language string) (*EvaluationResult, error) {
	if strings.TrimSpace(referenceText) == "" {
		return nil, errors.New("reference text is required")
	}
	if language == "" {
		language = c.defaultLang
	}

	params, err := json.Marshal(assessParams{
		ReferenceText: referenceText,
		GradingSystem: "HundredMark",
		Granularity:   "Phoneme",
		Dimension:     "Comprehensive",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal assessment params: %w", err)
	}

	url := fmt.Sprintf("%s?language=%s&format=detailed", c.sttEndpoint, language)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(wavData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm; samplerate=16000")
	req.Header.Set("Pronunciation-Assessment", base64.StdEncoding.EncodeToString(params))
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &EvalError{Reason: ReasonEngineError, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &EvalError{Reason: ReasonEngineError, Detail: "read response: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &EvalError{
			Reason: ReasonEngineError,
			Detail: fmt.Sprintf("engine status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var raw assessResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &EvalError{Reason: ReasonEngineError, Detail: "decode response: " + err.Error()}
	}

	switch terminalState(raw.RecognitionStatus) {
	case stateRecognized:
	case stateNoMatch:
		return nil, &EvalError{Reason: ReasonNoSpeech}
	default:
		return nil, &EvalError{
			Reason: ReasonEngineError,
			Detail: "recognition status " + raw.RecognitionStatus,
		}
	}

	if len(raw.NBest) == 0 {
		return nil, &EvalError{Reason: ReasonEngineError, Detail: "engine returned no hypotheses"}
	}
	return normalize(&raw), nil
}

// normalize maps the engine's nested response 1:1 onto the internal shape.
// Absent fields stay absent, never zeroed, and missing phoneme detail
// becomes an empty slice, never nil and never an error.
func normalize(raw *assessResponse) *EvaluationResult {
	best := raw.NBest[0]

	text := raw.DisplayText
	if text == "" {
		text = best.Display
	}

	out := &EvaluationResult{
		Text:  text,
		Words: make([]WordScore, 0, len(best.Words)),
	}
	if s := best.PronunciationAssessment; s != nil {
		out.AccuracyScore = s.AccuracyScore
		out.FluencyScore = s.FluencyScore
		out.CompletenessScore = s.CompletenessScore
		out.PronunciationScore = s.PronScore
	}

	for _, w := range best.Words {
		ws := WordScore{
			Word:     w.Word,
			Phonemes: make([]PhonemeScore, 0, len(w.Phonemes)),
		}
		if s := w.PronunciationAssessment; s != nil {
			ws.AccuracyScore = s.AccuracyScore
			ws.ErrorType = strings.ToLower(s.ErrorType)
		}
		for _, p := range w.Phonemes {
			ps := PhonemeScore{Phoneme: p.Phoneme}
			if s := p.PronunciationAssessment; s != nil {
				ps.AccuracyScore = s.AccuracyScore
			}
			ws.Phonemes = append(ws.Phonemes, ps)
		}
		out.Words = append(out.Words, ws)
	}
	return out
}
