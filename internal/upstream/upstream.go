package upstream

import (
	"context"
	"encoding/json"
)

// Submission acknowledges a document handed to the pipeline. Status is the
// pipeline's initial job status, usually "pending".
type Submission struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// DocumentStatus is one snapshot of an ingestion job.
type DocumentStatus struct {
	DocumentID   string `json:"document_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// AnalysisStatus is one snapshot of an analysis job. Report is present only
// once Status is "completed" and holds whatever the pipeline produced, which
// may be structured JSON or a plain string.
type AnalysisStatus struct {
	DocumentID   string          `json:"document_id"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Report       json.RawMessage `json:"report,omitempty"`
}

// DocumentSummary is one entry in the pipeline's document listing.
type DocumentSummary struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

// Pipeline is the document-analysis backend this service fronts. All calls
// are remote and may fail transiently; callers own retry policy.
type Pipeline interface {
	SubmitDocument(ctx context.Context, fileName string, data []byte) (Submission, error)
	SubmitDocumentURL(ctx context.Context, sourceURL string) (Submission, error)
	DocumentStatus(ctx context.Context, documentID string) (DocumentStatus, error)
	GenerateAnalysis(ctx context.Context, documentID string) (AnalysisStatus, error)
	Analysis(ctx context.Context, documentID string) (AnalysisStatus, error)
	ListDocuments(ctx context.Context) ([]DocumentSummary, error)
	DeleteDocument(ctx context.Context, documentID string) error
}
