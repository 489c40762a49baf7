package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Kind says how a payload was classified for rendering.
type Kind int

const (
	// KindRaw is a plain text block rendered as-is.
	KindRaw Kind = iota
	// KindStructured is an object with at least one substantial named section.
	KindStructured
	// KindDump is anything else, shown as a formatted dump so the reader
	// never gets a blank report.
	KindDump
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindStructured:
		return "structured"
	default:
		return "dump"
	}
}

// Section is one named block of a structured report.
type Section struct {
	Title string
	Body  string
}

// Document is the renderable form of an analysis report.
type Document struct {
	Kind     Kind
	Raw      string
	Score    *int
	Sections []Section
	Dump     string
}

// Decode interprets a raw report payload. Valid JSON decodes to its natural
// Go shape; anything else is kept verbatim as a text block.
func Decode(raw json.RawMessage) any {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// Build classifies a decoded payload and lays out its sections in display
// order. A structured object missing both summary and technical_analysis is
// demoted to a dump: a score badge or market section alone would read as a
// broken page.
func Build(v any) Document {
	switch payload := v.(type) {
	case string:
		return Document{Kind: KindRaw, Raw: payload}
	case map[string]any:
		doc := Document{Kind: KindStructured}
		if score, ok := scoreOf(payload["overall_score"]); ok {
			doc.Score = &score
		}
		substantial := false
		if text, ok := textField(payload, "summary"); ok {
			doc.Sections = append(doc.Sections, Section{Title: "Executive Summary", Body: text})
			substantial = true
		}
		if text, ok := textField(payload, "technical_analysis"); ok {
			doc.Sections = append(doc.Sections, Section{Title: "Technical Architecture", Body: text})
			substantial = true
		}
		if text, ok := textField(payload, "market_analysis"); ok {
			doc.Sections = append(doc.Sections, Section{Title: "Market & Tokenomics", Body: text})
		}
		if !substantial {
			return Document{Kind: KindDump, Dump: dump(v)}
		}
		return doc
	default:
		return Document{Kind: KindDump, Dump: dump(v)}
	}
}

// Band maps a score to its display band. Bounds are inclusive at the bottom
// of each band.
func Band(score int) string {
	switch {
	case score >= 80:
		return "high"
	case score >= 60:
		return "medium"
	default:
		return "low"
	}
}

func scoreOf(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(math.Round(n)), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// textField treats missing, non-string, and blank values the same so a
// degenerate payload falls through to the dump path.
func textField(payload map[string]any, key string) (string, bool) {
	text, ok := payload[key].(string)
	if !ok {
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

func dump(v any) string {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(pretty)
}
