package transcode

import "fmt"

// Reason classifies a transcoding failure. Reasons are stable tags that
// propagate unchanged to the HTTP boundary.
type Reason string

const (
	ReasonCorruptInput       Reason = "corrupt-input"
	ReasonUnsupportedFormat  Reason = "unsupported-format"
	ReasonBackendUnavailable Reason = "backend-unavailable"
)

// Error is a classified transcoding failure. Always fatal to the current
// request, never retried automatically.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("transcode: %s", e.Reason)
	}
	return fmt.Sprintf("transcode: %s: %s", e.Reason, e.Detail)
}
