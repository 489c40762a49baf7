package documents

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"whitepaper-console/internal/inspect"
	"whitepaper-console/internal/session"
	"whitepaper-console/internal/shared/telemetry"
	"whitepaper-console/internal/shared/util"
	"whitepaper-console/internal/upstream"
)

var ErrInvalidInput = errors.New("invalid input")

const defaultMaxUploadBytes = 10 << 20 // 10MB

// Uploads arrive from browsers, which sometimes tag PDFs as octet-stream or
// send no content type at all. The byte-level check is what actually decides.
var allowedContentTypes = map[string]struct{}{
	"":                         {},
	"application/pdf":          {},
	"application/octet-stream": {},
}

// Service submits documents to the pipeline and attaches the resulting
// ingestion job to the caller's session workspace.
type Service struct {
	Pipeline upstream.Pipeline
	Sessions *session.Manager

	// Inspect validates upload bytes before anything goes over the wire.
	// Defaults to inspect.PDF.
	Inspect func(data []byte) (inspect.Summary, error)

	MaxUploadBytes int64
}

func (s *Service) maxBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func (s *Service) inspectFn() func([]byte) (inspect.Summary, error) {
	if s.Inspect != nil {
		return s.Inspect
	}
	return inspect.PDF
}

// SubmitFile validates an uploaded PDF and hands it to the pipeline. The
// returned snapshot already shows the new ingestion workflow at its seed
// progress.
func (s *Service) SubmitFile(ctx context.Context, owner, token, fileName, contentType string, data []byte) (session.Snapshot, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		fileName = "document.pdf"
	}
	if int64(len(data)) > s.maxBytes() {
		return session.Snapshot{}, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.maxBytes())
	}
	normalized := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if _, ok := allowedContentTypes[normalized]; !ok {
		return session.Snapshot{}, fmt.Errorf("%w: only PDF uploads are supported, got %s", ErrInvalidInput, normalized)
	}
	summary, err := s.inspectFn()(data)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	sub, err := s.Pipeline.SubmitDocument(upstream.WithCallerToken(ctx, token), fileName, data)
	if err != nil {
		telemetry.Warn("documents.submit_failed", map[string]any{
			"owner":     owner,
			"file_name": fileName,
			"error":     util.SanitizeError(err),
		})
		return session.Snapshot{}, err
	}
	telemetry.Info("documents.submitted", map[string]any{
		"owner":       owner,
		"document_id": sub.DocumentID,
		"file_name":   fileName,
		"pages":       summary.Pages,
		"size_bytes":  summary.SizeBytes,
	})

	ws := s.Sessions.Workspace(owner, token)
	ref := session.DocumentRef{ID: sub.DocumentID, FileName: fileName, Source: "upload"}
	return ws.BeginIngest(token, ref, sub.Status), nil
}

// SubmitURL points the pipeline at a remote document.
func (s *Service) SubmitURL(ctx context.Context, owner, token, rawURL string) (session.Snapshot, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return session.Snapshot{}, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return session.Snapshot{}, fmt.Errorf("%w: url must be absolute http(s)", ErrInvalidInput)
	}

	sub, err := s.Pipeline.SubmitDocumentURL(upstream.WithCallerToken(ctx, token), rawURL)
	if err != nil {
		telemetry.Warn("documents.submit_failed", map[string]any{
			"owner": owner,
			"url":   rawURL,
			"error": util.SanitizeError(err),
		})
		return session.Snapshot{}, err
	}

	name := path.Base(parsed.Path)
	if name == "" || name == "/" || name == "." {
		name = parsed.Host
	}
	telemetry.Info("documents.submitted", map[string]any{
		"owner":       owner,
		"document_id": sub.DocumentID,
		"url":         rawURL,
	})

	ws := s.Sessions.Workspace(owner, token)
	ref := session.DocumentRef{ID: sub.DocumentID, FileName: name, Source: "url"}
	return ws.BeginIngest(token, ref, sub.Status), nil
}

// Status fetches one ingestion status directly from the pipeline, outside
// any poll loop.
func (s *Service) Status(ctx context.Context, token, documentID string) (upstream.DocumentStatus, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return upstream.DocumentStatus{}, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	return s.Pipeline.DocumentStatus(upstream.WithCallerToken(ctx, token), documentID)
}

// List returns the caller's stored documents from the pipeline.
func (s *Service) List(ctx context.Context, token string) ([]upstream.DocumentSummary, error) {
	return s.Pipeline.ListDocuments(upstream.WithCallerToken(ctx, token))
}

// Delete removes a stored document. If it was the session's current subject
// the workspace resets too.
func (s *Service) Delete(ctx context.Context, owner, token, documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	if err := s.Pipeline.DeleteDocument(upstream.WithCallerToken(ctx, token), documentID); err != nil {
		return err
	}
	if ws, ok := s.Sessions.Peek(owner); ok {
		ws.DropDocument(documentID)
	}
	telemetry.Info("documents.deleted", map[string]any{"owner": owner, "document_id": documentID})
	return nil
}
