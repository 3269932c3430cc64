package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// outputFormat matches the transcoder's evaluation contract so synthesized
// reference audio plays back with the same characteristics students record at.
const outputFormat = "riff-16khz-16bit-mono-pcm"

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Synthesize converts text to speech with the given voice at the given rate.
// rate is a multiplier on natural speaking speed (1.0 = normal); it is
// embedded as an SSML prosody percentage, never applied by local signal
// processing. Returns complete audio bytes or fails; no partial audio.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string, rate float64) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required")
	}
	if voiceID == "" {
		voiceID = c.defaultVoice
	}
	if rate == 0 {
		rate = 1.0
	}

	ssml := buildSSML(text, voiceID, c.defaultLang, rate)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ttsEndpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &SynthError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthError{Detail: "read response: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &SynthError{
			Detail: fmt.Sprintf("engine status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	if len(body) == 0 {
		return nil, &SynthError{Detail: "engine returned no audio"}
	}
	return body, nil
}

// buildSSML wraps text in a speak/voice/prosody envelope.
func buildSSML(text, voiceID, language string, rate float64) string {
	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'><voice name='%s'><prosody rate='%s'>%s</prosody></voice></speak>`,
		language, voiceID, prosodyRate(rate), ssmlEscaper.Replace(text),
	)
}

// prosodyRate converts a speed multiplier to an SSML percentage offset:
// 1.0 → "+0%", 1.5 → "+50%", 0.8 → "-20%".
func prosodyRate(rate float64) string {
	return fmt.Sprintf("%+.0f%%", (rate-1)*100)
}
