package inspect

import (
	"errors"
	"testing"
)

func TestPDFRejectsBadUploads(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"plain text", []byte("just some words")},
		{"html", []byte("<!doctype html><html></html>")},
		{"header without structure", []byte("%PDF-1.7 then nothing that parses")},
	}
	for _, tc := range cases {
		_, err := PDF(tc.data)
		if !errors.Is(err, ErrNotPDF) {
			t.Fatalf("%s: expected ErrNotPDF, got %v", tc.name, err)
		}
	}
}
