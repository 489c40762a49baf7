package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error is a non-2xx reply from the pipeline. Detail carries the service's
// own explanation when the body had one.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("pipeline: %s (status %d)", e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("pipeline: status %d", e.StatusCode)
}

// AsError unwraps err to the pipeline Error inside it, if any.
func AsError(err error) (*Error, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// decodeDetail pulls the "detail" field out of an error body. The pipeline
// sends it as a plain string for most failures and as structured data for
// validation errors; structured details are kept as compact JSON.
func decodeDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(envelope.Detail)
}
