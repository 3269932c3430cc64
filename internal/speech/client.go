// Package speech talks to the Azure Speech service: single-shot
// pronunciation assessment of evaluation PCM, and SSML text-to-speech for
// listening playback. It shapes engine responses into stable internal
// score structures and nothing more: no rescaling, no persistence.
package speech

import (
	"fmt"
	"net/http"
	"time"
)

// Client calls the speech engine's REST endpoints. It holds process-wide,
// read-mostly configuration and is safe for concurrent use.
type Client struct {
	key          string
	sttEndpoint  string
	ttsEndpoint  string
	defaultVoice string
	defaultLang  string
	client       *http.Client
}

// NewClient creates an engine client for the given subscription region.
func NewClient(key, region, voice, language string, timeout time.Duration) *Client {
	return &Client{
		key: key,
		sttEndpoint: fmt.Sprintf(
			"https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1",
			region),
		ttsEndpoint: fmt.Sprintf(
			"https://%s.tts.speech.microsoft.com/cognitiveservices/v1",
			region),
		defaultVoice: voice,
		defaultLang:  language,
		client:       &http.Client{Timeout: timeout},
	}
}

// NewClientWithEndpoints creates a client against explicit endpoint URLs.
// Used by tests to point at a local server.
func NewClientWithEndpoints(key, sttEndpoint, ttsEndpoint, voice, language string, timeout time.Duration) *Client {
	return &Client{
		key:          key,
		sttEndpoint:  sttEndpoint,
		ttsEndpoint:  ttsEndpoint,
		defaultVoice: voice,
		defaultLang:  language,
		client:       &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client has credentials. Used by health checks.
func (c *Client) Configured() bool { return c.key != "" }
