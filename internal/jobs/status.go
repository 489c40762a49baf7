package jobs

import "strings"

// Status values observed from the pipeline. The vocabulary is upstream-owned
// and open: values not listed here mean the job is still in flight. Only
// StatusCompleted and StatusFailed end a poll loop.
const (
	StatusPending    = "pending"
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusParsing    = "parsing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Normalize maps an upstream status string to its comparable form.
func Normalize(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// Terminal reports whether a status ends polling.
func Terminal(status string) bool {
	switch Normalize(status) {
	case StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Acknowledged reports whether a status confirms the pipeline has picked the
// job up, as opposed to merely having accepted the submission.
func Acknowledged(status string) bool {
	switch Normalize(status) {
	case StatusQueued, StatusProcessing, StatusParsing:
		return true
	}
	return false
}
