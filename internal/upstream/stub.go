package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stub is an in-process Pipeline used when no UPSTREAM_BASE_URL is
// configured. Jobs advance one stage per status check, so the full submit
// and poll flow works against it without a live backend. Two file name
// prefixes steer it: "fail" makes ingestion end in failure, "quick" makes
// analysis complete synchronously on generate.
type Stub struct {
	mu   sync.Mutex
	docs map[string]*stubDoc
}

type stubDoc struct {
	id             string
	fileName       string
	createdAt      time.Time
	ingestChecks   int
	ingestDone     bool
	ingestFailed   bool
	analysisActive bool
	analysisChecks int
}

func NewStub() *Stub {
	return &Stub{docs: make(map[string]*stubDoc)}
}

func (s *Stub) SubmitDocument(ctx context.Context, fileName string, data []byte) (Submission, error) {
	return s.add(fileName), nil
}

func (s *Stub) SubmitDocumentURL(ctx context.Context, sourceURL string) (Submission, error) {
	name := "document.pdf"
	if parsed, err := url.Parse(sourceURL); err == nil {
		if base := path.Base(parsed.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	return s.add(name), nil
}

func (s *Stub) add(fileName string) Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := &stubDoc{
		id:        uuid.NewString(),
		fileName:  fileName,
		createdAt: time.Now().UTC(),
	}
	s.docs[doc.id] = doc
	return Submission{DocumentID: doc.id, Status: "pending"}
}

func (s *Stub) DocumentStatus(ctx context.Context, documentID string) (DocumentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return DocumentStatus{}, &Error{StatusCode: 404, Detail: "Document not found"}
	}

	ladder := []string{"processing", "parsing", "completed"}
	if strings.HasPrefix(strings.ToLower(doc.fileName), "fail") {
		ladder = []string{"processing", "failed"}
	}
	idx := doc.ingestChecks
	if idx >= len(ladder) {
		idx = len(ladder) - 1
	}
	doc.ingestChecks++

	status := DocumentStatus{DocumentID: doc.id, Status: ladder[idx]}
	switch status.Status {
	case "completed":
		doc.ingestDone = true
	case "failed":
		doc.ingestFailed = true
		status.ErrorMessage = "Unsupported document layout"
	}
	return status, nil
}

func (s *Stub) GenerateAnalysis(ctx context.Context, documentID string) (AnalysisStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return AnalysisStatus{}, &Error{StatusCode: 404, Detail: "Document not found"}
	}
	if doc.ingestFailed {
		return AnalysisStatus{}, &Error{StatusCode: 409, Detail: "Document processing failed"}
	}
	if !doc.ingestDone {
		return AnalysisStatus{}, &Error{StatusCode: 409, Detail: "Document is still being processed"}
	}

	doc.analysisActive = true
	if strings.HasPrefix(strings.ToLower(doc.fileName), "quick") {
		doc.analysisChecks = 3
		return AnalysisStatus{DocumentID: doc.id, Status: "completed", Report: stubReport(doc.fileName)}, nil
	}
	doc.analysisChecks = 0
	return AnalysisStatus{DocumentID: doc.id, Status: "queued"}, nil
}

func (s *Stub) Analysis(ctx context.Context, documentID string) (AnalysisStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok || !doc.analysisActive {
		return AnalysisStatus{}, &Error{StatusCode: 404, Detail: "Analysis not found"}
	}

	ladder := []string{"processing", "processing", "completed"}
	idx := doc.analysisChecks
	if idx >= len(ladder) {
		idx = len(ladder) - 1
	}
	doc.analysisChecks++

	status := AnalysisStatus{DocumentID: doc.id, Status: ladder[idx]}
	if status.Status == "completed" {
		status.Report = stubReport(doc.fileName)
	}
	return status, nil
}

func (s *Stub) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DocumentSummary, 0, len(s.docs))
	for _, doc := range s.docs {
		status := "pending"
		switch {
		case doc.ingestFailed:
			status = "failed"
		case doc.ingestDone:
			status = "completed"
		case doc.ingestChecks > 0:
			status = "processing"
		}
		out = append(out, DocumentSummary{
			DocumentID: doc.id,
			FileName:   doc.fileName,
			Status:     status,
			CreatedAt:  doc.createdAt.Format(time.RFC3339),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out, nil
}

func (s *Stub) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[documentID]; !ok {
		return &Error{StatusCode: 404, Detail: "Document not found"}
	}
	delete(s.docs, documentID)
	return nil
}

func stubReport(fileName string) json.RawMessage {
	report := map[string]any{
		"overall_score": 72,
		"summary": fmt.Sprintf("%s outlines a layer-2 settlement network with a capped-supply utility token. "+
			"The writing is clear on goals but thin on failure handling and validator incentives.", fileName),
		"technical_analysis": "Consensus is delegated proof of stake with a rotating committee of 21 validators. " +
			"Finality claims of two seconds assume well-behaved networking and are not backed by benchmarks. " +
			"The bridge design reuses audited contracts, which lowers implementation risk.",
		"market_analysis": "The project targets cross-border settlement, a crowded segment with entrenched competitors. " +
			"No go-to-market partnerships are named.",
		"tokenomics": "Fixed supply of 1B tokens, 18% to the team with a 4-year vest. " +
			"Fee burn is described but the burn rate is left to governance.",
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

var _ Pipeline = (*Stub)(nil)
