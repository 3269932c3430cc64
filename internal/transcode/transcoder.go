// Package transcode converts browser-recorded audio and uploaded video into
// the formats the rest of the pipeline requires, by piping buffers through
// an ffmpeg subprocess. No intermediate files are written: input goes to
// stdin, output is collected from stdout, and a failed run never yields a
// partial buffer.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Evaluation PCM contract: the assessment engine scores 16 kHz mono
// signed 16-bit little-endian WAV. Deviating from this invalidates scores.
const (
	EvalSampleRate = 16000
	EvalChannels   = 1
)

// extractBitrate is the MP3 bitrate for audio tracks pulled out of lesson video.
const extractBitrate = "128k"

// Transcoder shells out to ffmpeg for all conversions. The binary path is
// resolved once at startup; the value is a read-only handle safe for
// concurrent use by many in-flight requests. Every run is bounded by
// timeout so a wedged child cannot hold a handler open indefinitely.
type Transcoder struct {
	ffmpegPath string
	timeout    time.Duration
}

// NewTranscoder resolves ffmpeg from PATH. timeout <= 0 disables the
// per-run bound and leaves only the caller's context.
func NewTranscoder(timeout time.Duration) (*Transcoder, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, &Error{Reason: ReasonBackendUnavailable, Detail: "ffmpeg not found in PATH"}
	}
	return &Transcoder{ffmpegPath: path, timeout: timeout}, nil
}

// NewTranscoderWithPath uses a specific ffmpeg binary.
func NewTranscoderWithPath(path string, timeout time.Duration) *Transcoder {
	return &Transcoder{ffmpegPath: path, timeout: timeout}
}

// ToEvaluationPCM converts an opaque compressed-audio buffer (commonly a
// browser-recorded container) into mono 16 kHz s16le PCM wrapped in a WAV
// container. containerHint optionally names the input container (e.g.
// "webm", "ogg"); when empty ffmpeg probes the stream.
func (t *Transcoder) ToEvaluationPCM(ctx context.Context, audio []byte, containerHint string) ([]byte, error) {
	args := evalArgs(containerHint)
	return t.run(ctx, args, audio)
}

// ExtractAudioTrack strips the video stream from an uploaded lesson video
// and encodes the remaining audio as 128 kbps mono MP3.
func (t *Transcoder) ExtractAudioTrack(ctx context.Context, video []byte) ([]byte, error) {
	return t.run(ctx, extractArgs(), video)
}

func evalArgs(containerHint string) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if containerHint != "" {
		args = append(args, "-f", containerHint)
	}
	args = append(args,
		"-i", "pipe:0",
		"-ac", fmt.Sprintf("%d", EvalChannels),
		"-ar", fmt.Sprintf("%d", EvalSampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		"pipe:1",
	)
	return args
}

func extractArgs() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-ac", "1",
		"-b:a", extractBitrate,
		"-f", "mp3",
		"pipe:1",
	}
}

func (t *Transcoder) run(ctx context.Context, args []string, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, &Error{Reason: ReasonCorruptInput, Detail: "empty input buffer"}
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Reason: ReasonBackendUnavailable, Detail: ctx.Err().Error()}
		}
		return nil, classify(stderr.String(), err)
	}

	out := stdout.Bytes()
	if len(out) == 0 {
		return nil, &Error{Reason: ReasonCorruptInput, Detail: "backend produced no output"}
	}
	return out, nil
}

// classify maps ffmpeg stderr output to a stable failure reason.
func classify(stderr string, runErr error) *Error {
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = runErr.Error()
	}

	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "invalid data found"),
		strings.Contains(lower, "moov atom not found"),
		strings.Contains(lower, "end of file"),
		strings.Contains(lower, "header missing"):
		return &Error{Reason: ReasonCorruptInput, Detail: detail}
	case strings.Contains(lower, "decoder not found"),
		strings.Contains(lower, "unknown format"),
		strings.Contains(lower, "unknown input format"),
		strings.Contains(lower, "codec not currently supported"):
		return &Error{Reason: ReasonUnsupportedFormat, Detail: detail}
	default:
		return &Error{Reason: ReasonBackendUnavailable, Detail: detail}
	}
}
