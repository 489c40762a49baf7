package report

import (
	"fmt"
	"strings"
)

// Markdown renders a decoded payload as a markdown document. Raw text blocks
// pass through untouched.
func Markdown(v any) string {
	doc := Build(v)
	switch doc.Kind {
	case KindRaw:
		return doc.Raw
	case KindDump:
		return "## Analysis Result\n\n```json\n" + doc.Dump + "\n```\n"
	}

	var b strings.Builder
	if doc.Score != nil {
		fmt.Fprintf(&b, "## Overall Score: %d/100 (%s)\n\n", *doc.Score, Band(*doc.Score))
	}
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, s.Body)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
