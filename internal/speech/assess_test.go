package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithEndpoints("test-key", srv.URL, srv.URL, "en-US-JennyNeural", "en-US", 5*time.Second)
}

func f(v float64) *float64 { return &v }

func TestEvaluateRecognized(t *testing.T) {
	var gotAssessHeader string
	var gotContentType string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAssessHeader = r.Header.Get("Pronunciation-Assessment")
		gotContentType = r.Header.Get("Content-Type")
		json.NewEncoder(w).Encode(assessResponse{
			RecognitionStatus: "Success",
			DisplayText:       "Hello world.",
			NBest: []nbestEntry{{
				PronunciationAssessment: &rawScores{
					AccuracyScore:     f(92.5),
					FluencyScore:      f(88),
					CompletenessScore: f(100),
					PronScore:         f(90.7),
				},
				Words: []rawWord{
					{
						Word: "hello",
						PronunciationAssessment: &rawWordScore{AccuracyScore: f(95), ErrorType: "None"},
						Phonemes: []rawPhoneme{
							{Phoneme: "h", PronunciationAssessment: &rawWordScore{AccuracyScore: f(98)}},
							{Phoneme: "ɛ", PronunciationAssessment: &rawWordScore{AccuracyScore: f(91)}},
						},
					},
					{
						Word: "world",
						PronunciationAssessment: &rawWordScore{AccuracyScore: f(90), ErrorType: "Mispronunciation"},
					},
				},
			}},
		})
	})

	result, err := client.Evaluate(context.Background(), []byte("fake-wav"), "hello world", "")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.Text != "Hello world." {
		t.Errorf("Text = %q, want %q", result.Text, "Hello world.")
	}
	if result.AccuracyScore == nil || *result.AccuracyScore != 92.5 {
		t.Errorf("AccuracyScore = %v, want 92.5", result.AccuracyScore)
	}
	if result.PronunciationScore == nil || *result.PronunciationScore != 90.7 {
		t.Errorf("PronunciationScore = %v, want 90.7", result.PronunciationScore)
	}
	if len(result.Words) != 2 {
		t.Fatalf("len(Words) = %d, want 2", len(result.Words))
	}
	if result.Words[0].ErrorType != "none" {
		t.Errorf("Words[0].ErrorType = %q, want %q", result.Words[0].ErrorType, "none")
	}
	if result.Words[1].ErrorType != "mispronunciation" {
		t.Errorf("Words[1].ErrorType = %q, want %q", result.Words[1].ErrorType, "mispronunciation")
	}
	if len(result.Words[0].Phonemes) != 2 {
		t.Errorf("len(Words[0].Phonemes) = %d, want 2", len(result.Words[0].Phonemes))
	}
	// Word with no phoneme detail normalizes to an empty slice, not nil.
	if result.Words[1].Phonemes == nil {
		t.Error("Words[1].Phonemes = nil, want empty slice")
	}
	if len(result.Words[1].Phonemes) != 0 {
		t.Errorf("len(Words[1].Phonemes) = %d, want 0", len(result.Words[1].Phonemes))
	}

	// Request carried the assessment config.
	raw, err := base64.StdEncoding.DecodeString(gotAssessHeader)
	if err != nil {
		t.Fatalf("Pronunciation-Assessment header not base64: %v", err)
	}
	var params assessParams
	if err := json.Unmarshal(raw, &params); err != nil {
		t.Fatalf("assessment params not JSON: %v", err)
	}
	if params.ReferenceText != "hello world" {
		t.Errorf("ReferenceText = %q, want %q", params.ReferenceText, "hello world")
	}
	if params.Granularity != "Phoneme" {
		t.Errorf("Granularity = %q, want Phoneme", params.Granularity)
	}
	if gotContentType != "audio/wav; codecs=audio/pcm; samplerate=16000" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

func TestEvaluateNoMatch(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(assessResponse{RecognitionStatus: "NoMatch"})
	})

	_, err := client.Evaluate(context.Background(), []byte("silence"), "hello world", "")
	var ee *EvalError
	if !errors.As(err, &ee) {
		t.Fatalf("error type = %T, want *EvalError", err)
	}
	if ee.Reason != ReasonNoSpeech {
		t.Errorf("Reason = %q, want %q", ee.Reason, ReasonNoSpeech)
	}
}

func TestEvaluateInitialSilenceIsNoSpeech(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(assessResponse{RecognitionStatus: "InitialSilenceTimeout"})
	})

	_, err := client.Evaluate(context.Background(), []byte("silence"), "hi", "")
	var ee *EvalError
	if !errors.As(err, &ee) || ee.Reason != ReasonNoSpeech {
		t.Errorf("got %v, want no-speech", err)
	}
}

func TestEvaluateEngineHTTPError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	})

	_, err := client.Evaluate(context.Background(), []byte("audio"), "hi", "")
	var ee *EvalError
	if !errors.As(err, &ee) {
		t.Fatalf("error type = %T, want *EvalError", err)
	}
	if ee.Reason != ReasonEngineError {
		t.Errorf("Reason = %q, want %q", ee.Reason, ReasonEngineError)
	}
	if ee.Detail == "" {
		t.Error("Detail is empty, want engine status text")
	}
}

func TestEvaluateEmptyReferenceText(t *testing.T) {
	client := NewClientWithEndpoints("k", "http://unused", "http://unused", "v", "en-US", time.Second)
	if _, err := client.Evaluate(context.Background(), []byte("audio"), "  ", ""); err == nil {
		t.Error("expected error for empty reference text")
	}
}

func TestTerminalState(t *testing.T) {
	tests := []struct {
		status string
		want   callState
	}{
		{"Success", stateRecognized},
		{"NoMatch", stateNoMatch},
		{"InitialSilenceTimeout", stateNoMatch},
		{"BabbleTimeout", stateError},
		{"Error", stateError},
		{"", stateError},
	}
	for _, tt := range tests {
		if got := terminalState(tt.status); got != tt.want {
			t.Errorf("terminalState(%q) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

// Missing scores must survive normalization as absent, never as zero.
func TestNormalizePreservesMissingScores(t *testing.T) {
	raw := &assessResponse{
		RecognitionStatus: "Success",
		DisplayText:       "cat",
		NBest: []nbestEntry{{
			// No top-level assessment block at all.
			Words: []rawWord{
				{Word: "cat"}, // no per-word assessment either
				{
					Word: "zero",
					PronunciationAssessment: &rawWordScore{AccuracyScore: f(0)},
				},
			},
		}},
	}

	result := normalize(raw)

	if result.AccuracyScore != nil {
		t.Errorf("AccuracyScore = %v, want nil", *result.AccuracyScore)
	}
	if result.Words[0].AccuracyScore != nil {
		t.Error("Words[0].AccuracyScore should stay absent")
	}
	// "scored zero" stays distinguishable from "not scored".
	if result.Words[1].AccuracyScore == nil || *result.Words[1].AccuracyScore != 0 {
		t.Errorf("Words[1].AccuracyScore = %v, want 0", result.Words[1].AccuracyScore)
	}
	if result.Words[0].Phonemes == nil || len(result.Words[0].Phonemes) != 0 {
		t.Errorf("Words[0].Phonemes = %v, want empty slice", result.Words[0].Phonemes)
	}
}

// The JSON wire shape must keep nil and 0 apart as well.
func TestWordScoreJSONRoundTrip(t *testing.T) {
	in := WordScore{Word: "cat", Phonemes: []PhonemeScore{}}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if _, present := m["accuracyScore"]; present {
		t.Error("absent accuracyScore must be omitted from JSON, not serialized as 0")
	}
	if string(m["phonemes"]) != "[]" {
		t.Errorf("phonemes = %s, want []", m["phonemes"])
	}

	in.AccuracyScore = f(0)
	b, _ = json.Marshal(in)
	json.Unmarshal(b, &m)
	if string(m["accuracyScore"]) != "0" {
		t.Errorf("accuracyScore = %s, want 0", m["accuracyScore"])
	}
}
