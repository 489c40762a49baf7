package util

import "strings"

const maxDetailLen = 500

// SanitizeDetail flattens a message destined for logs or API responses:
// newlines collapse to spaces and the result is length-capped so an
// upstream error body cannot blow up a log line.
func SanitizeDetail(msg string) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	if len(msg) > maxDetailLen {
		msg = msg[:maxDetailLen]
	}
	return msg
}

// SanitizeError applies SanitizeDetail to an error, tolerating nil.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeDetail(err.Error())
}
