package inspect

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

var pdfHeader = []byte("%PDF-")

// ErrNotPDF marks an upload rejected before submission.
var ErrNotPDF = errors.New("not a readable PDF")

// Summary describes an accepted upload.
type Summary struct {
	Pages     int
	SizeBytes int64
}

// PDF checks that data parses as a PDF so a broken upload is rejected
// locally instead of burning an ingestion job upstream.
func PDF(data []byte) (s Summary, err error) {
	if len(data) == 0 {
		return Summary{}, fmt.Errorf("%w: empty file", ErrNotPDF)
	}
	if !bytes.HasPrefix(data, pdfHeader) {
		return Summary{}, fmt.Errorf("%w: missing %%PDF header", ErrNotPDF)
	}

	// github.com/ledongthuc/pdf panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			s = Summary{}
			err = fmt.Errorf("%w: %v", ErrNotPDF, r)
		}
	}()

	reader, rerr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if rerr != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrNotPDF, rerr)
	}
	return Summary{Pages: reader.NumPage(), SizeBytes: int64(len(data))}, nil
}
