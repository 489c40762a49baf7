package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"whitepaper-console/internal/session"
)

const pollEvery = 2 * time.Second

func main() {
	base := flag.String("base", "http://localhost:8080", "API base URL")
	token := flag.String("token", "", "bearer token; a guest identity is used when empty")
	guest := flag.String("guest", "cli", "guest id sent as X-Guest-Id when no token is given")
	file := flag.String("file", "", "whitepaper PDF to upload")
	docURL := flag.String("url", "", "whitepaper URL to submit instead of a file")
	format := flag.String("format", "md", "report format: md or html")
	out := flag.String("out", "", "write the report to this path instead of stdout")
	timeout := flag.Duration("timeout", 20*time.Minute, "overall deadline for the run")
	flag.Parse()

	if (*file == "") == (*docURL == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -file or -url is required")
		os.Exit(2)
	}

	api := &client{base: strings.TrimRight(*base, "/"), token: *token, guest: *guest}
	deadline := time.Now().Add(*timeout)

	if *file != "" {
		if err := api.submitFile(*file); err != nil {
			log.Fatalf("submit: %v", err)
		}
	} else {
		if err := api.submitURL(*docURL); err != nil {
			log.Fatalf("submit: %v", err)
		}
	}

	snap, err := api.pollUntil(deadline, "ingestion", func(s session.Snapshot) session.WorkflowState {
		return s.Ingestion
	})
	if err != nil {
		log.Fatalf("ingestion: %v", err)
	}
	if snap.Ingestion.Phase == session.PhaseFailed {
		log.Fatalf("ingestion failed: %s", snap.Ingestion.Error)
	}

	if err := api.startAnalysis(); err != nil {
		log.Fatalf("analysis: %v", err)
	}
	snap, err = api.pollUntil(deadline, "analysis", func(s session.Snapshot) session.WorkflowState {
		return s.Analysis
	})
	if err != nil {
		log.Fatalf("analysis: %v", err)
	}
	if snap.Analysis.Phase == session.PhaseFailed {
		log.Fatalf("analysis failed: %s", snap.Analysis.Error)
	}

	report, err := api.fetchReport(*format)
	if err != nil {
		log.Fatalf("report: %v", err)
	}
	if *out != "" {
		if err := os.WriteFile(*out, report, 0o644); err != nil {
			log.Fatalf("write report: %v", err)
		}
		log.Printf("report written to %s", *out)
		return
	}
	fmt.Println(string(report))
}

type client struct {
	base  string
	token string
	guest string
	http  http.Client
}

func (c *client) do(method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else {
		req.Header.Set("X-Guest-Id", c.guest)
	}
	return c.http.Do(req)
}

// expect drains the response and fails unless the status matches one of want.
func expect(resp *http.Response, want ...int) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	for _, code := range want {
		if resp.StatusCode == code {
			return data, nil
		}
	}
	return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

func (c *client) submitFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	resp, err := c.do(http.MethodPost, "/api/documents", form.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	if _, err := expect(resp, http.StatusAccepted); err != nil {
		return err
	}
	log.Printf("uploaded %s", filepath.Base(path))
	return nil
}

func (c *client) submitURL(docURL string) error {
	payload, err := json.Marshal(map[string]string{"url": docURL})
	if err != nil {
		return err
	}
	resp, err := c.do(http.MethodPost, "/api/documents/url", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if _, err := expect(resp, http.StatusAccepted); err != nil {
		return err
	}
	log.Printf("submitted %s", docURL)
	return nil
}

func (c *client) startAnalysis() error {
	resp, err := c.do(http.MethodPost, "/api/analyses", "", nil)
	if err != nil {
		return err
	}
	if _, err := expect(resp, http.StatusAccepted, http.StatusOK); err != nil {
		return err
	}
	return nil
}

// pollUntil reads the session snapshot until the selected workflow leaves the
// polling phases, printing progress lines as they change.
func (c *client) pollUntil(deadline time.Time, label string, pick func(session.Snapshot) session.WorkflowState) (session.Snapshot, error) {
	var lastLine string
	for time.Now().Before(deadline) {
		resp, err := c.do(http.MethodGet, "/api/session", "", nil)
		if err != nil {
			return session.Snapshot{}, err
		}
		data, err := expect(resp, http.StatusOK)
		if err != nil {
			return session.Snapshot{}, err
		}
		var snap session.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return session.Snapshot{}, err
		}

		state := pick(snap)
		line := fmt.Sprintf("%s: %s %d%%", label, state.Phase, state.Progress)
		if state.Message != "" {
			line += " " + state.Message
		}
		if line != lastLine {
			log.Print(line)
			lastLine = line
		}

		if state.Phase == session.PhaseResolved || state.Phase == session.PhaseFailed {
			return snap, nil
		}
		time.Sleep(pollEvery)
	}
	return session.Snapshot{}, fmt.Errorf("timed out waiting for %s", label)
}

func (c *client) fetchReport(format string) ([]byte, error) {
	resp, err := c.do(http.MethodGet, "/api/analyses/report?format="+format, "", nil)
	if err != nil {
		return nil, err
	}
	return expect(resp, http.StatusOK)
}
