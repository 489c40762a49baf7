package util

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeDetailFlattensNewlines(t *testing.T) {
	got := SanitizeDetail("line one\nline two\r\nline three")
	if strings.ContainsAny(got, "\n\r") {
		t.Fatalf("expected flattened message, got %q", got)
	}
}

func TestSanitizeDetailCapsLength(t *testing.T) {
	got := SanitizeDetail(strings.Repeat("x", 2000))
	if len(got) != maxDetailLen {
		t.Fatalf("expected length %d, got %d", maxDetailLen, len(got))
	}
}

func TestSanitizeErrorNil(t *testing.T) {
	if got := SanitizeError(nil); got != "" {
		t.Fatalf("expected empty string for nil error, got %q", got)
	}
	if got := SanitizeError(errors.New(" boom ")); got != "boom" {
		t.Fatalf("expected trimmed message, got %q", got)
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("secret-token")
	b := Fingerprint("secret-token")
	if a == "" || a != b {
		t.Fatalf("expected stable non-empty fingerprint, got %q and %q", a, b)
	}
	if Fingerprint("other") == a {
		t.Fatalf("expected distinct fingerprints for distinct inputs")
	}
	if Fingerprint("") != "" {
		t.Fatalf("expected empty fingerprint for empty input")
	}
}
