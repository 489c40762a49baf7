package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"whitepaper-console/report"
)

func main() {
	in := flag.String("in", "-", "analysis JSON file, or - for stdin")
	format := flag.String("format", "md", "output format: md or html")
	out := flag.String("out", "", "output path; stdout when empty")
	flag.Parse()

	raw, err := readInput(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(1)
	}

	v := report.Decode(json.RawMessage(raw))

	var rendered string
	switch *format {
	case "md":
		rendered = report.Markdown(v)
	case "html":
		rendered = report.NewRenderer().HTML(v)
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q (want md or html)\n", *format)
		os.Exit(2)
	}

	if *out == "" {
		fmt.Println(rendered)
		return
	}
	if err := os.WriteFile(*out, []byte(rendered), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: wrote %s\n", *out)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
