package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer turns payloads into HTML fragments. Convert is the text-to-markup
// step applied to each field on its own, so one field the converter chokes on
// degrades to preformatted text without taking the rest of the report down.
type Renderer struct {
	Convert func(text string) (string, error)
}

// NewRenderer builds a Renderer backed by goldmark with GFM tables and
// strikethrough enabled.
func NewRenderer() *Renderer {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	return &Renderer{
		Convert: func(text string) (string, error) {
			var buf bytes.Buffer
			if err := md.Convert([]byte(text), &buf); err != nil {
				return "", err
			}
			return buf.String(), nil
		},
	}
}

// HTML renders a decoded payload. It always returns markup; conversion
// failures surface as escaped preformatted blocks rather than errors.
func (r *Renderer) HTML(v any) string {
	doc := Build(v)
	switch doc.Kind {
	case KindRaw:
		return r.fragment(doc.Raw)
	case KindDump:
		return "<h2>Analysis Result</h2>\n<pre>" + html.EscapeString(doc.Dump) + "</pre>\n"
	}

	var b strings.Builder
	if doc.Score != nil {
		fmt.Fprintf(&b, "<div class=\"score-badge score-%s\">Overall Score: %d/100</div>\n", Band(*doc.Score), *doc.Score)
	}
	for _, s := range doc.Sections {
		b.WriteString("<h2>" + html.EscapeString(s.Title) + "</h2>\n")
		b.WriteString(r.fragment(s.Body))
	}
	return b.String()
}

func (r *Renderer) fragment(text string) string {
	if r.Convert == nil {
		return "<pre>" + html.EscapeString(text) + "</pre>\n"
	}
	out, err := r.Convert(text)
	if err != nil {
		return "<pre>" + html.EscapeString(text) + "</pre>\n"
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}
