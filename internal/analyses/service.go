package analyses

import (
	"context"
	"encoding/json"
	"errors"

	"whitepaper-console/internal/session"
)

// FailedError reports that the last analysis run ended in a terminal
// failure. Message carries the upstream detail when one was given.
type FailedError struct {
	Message string
}

func (e *FailedError) Error() string {
	if e.Message == "" {
		return "analysis failed"
	}
	return e.Message
}

// Service starts analysis jobs and hands out completed reports. All state
// lives in the caller's session workspace; this layer only adds the
// workspace lookups.
type Service struct {
	Sessions *session.Manager
}

// NewService constructs a Service.
func NewService(sessions *session.Manager) *Service {
	return &Service{Sessions: sessions}
}

// Start requests an analysis for the workspace's current document and
// begins polling for its completion.
func (s *Service) Start(ctx context.Context, owner, token string) (session.Snapshot, error) {
	ws := s.Sessions.Workspace(owner, token)
	return ws.BeginAnalysis(ctx, token)
}

// Completed returns the finished report payload and the document it was
// generated for. Callers that never created a workspace get ErrNoDocument
// rather than an implicit empty one.
func (s *Service) Completed(owner string) (session.DocumentRef, json.RawMessage, error) {
	ws, ok := s.Sessions.Peek(owner)
	if !ok {
		return session.DocumentRef{}, nil, session.ErrNoDocument
	}
	raw, err := ws.Report()
	if err != nil {
		if errors.Is(err, session.ErrNoReport) {
			if snap := ws.Snapshot(); snap.Analysis.Phase == session.PhaseFailed {
				return session.DocumentRef{}, nil, &FailedError{Message: snap.Analysis.Error}
			}
		}
		return session.DocumentRef{}, nil, err
	}
	doc, _ := ws.Document()
	return doc, raw, nil
}
