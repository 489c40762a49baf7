package upstream

import (
	"context"
	"encoding/json"
	"testing"
)

func TestStubFullFlow(t *testing.T) {
	stub := NewStub()
	ctx := context.Background()

	sub, err := stub.SubmitDocument(ctx, "whitepaper.pdf", []byte("%PDF-"))
	if err != nil {
		t.Fatalf("SubmitDocument: %v", err)
	}
	if sub.Status != "pending" {
		t.Fatalf("expected pending, got %q", sub.Status)
	}

	if _, err := stub.GenerateAnalysis(ctx, sub.DocumentID); err == nil {
		t.Fatal("expected generate to fail before ingestion completes")
	}

	for i, want := range []string{"processing", "parsing", "completed"} {
		st, err := stub.DocumentStatus(ctx, sub.DocumentID)
		if err != nil {
			t.Fatalf("DocumentStatus %d: %v", i, err)
		}
		if st.Status != want {
			t.Fatalf("check %d: expected %q, got %q", i, want, st.Status)
		}
	}

	gen, err := stub.GenerateAnalysis(ctx, sub.DocumentID)
	if err != nil {
		t.Fatalf("GenerateAnalysis: %v", err)
	}
	if gen.Status != "queued" {
		t.Fatalf("expected queued, got %q", gen.Status)
	}

	var last AnalysisStatus
	for i, want := range []string{"processing", "processing", "completed"} {
		last, err = stub.Analysis(ctx, sub.DocumentID)
		if err != nil {
			t.Fatalf("Analysis %d: %v", i, err)
		}
		if last.Status != want {
			t.Fatalf("check %d: expected %q, got %q", i, want, last.Status)
		}
	}

	var report map[string]any
	if err := json.Unmarshal(last.Report, &report); err != nil {
		t.Fatalf("report should be valid JSON: %v", err)
	}
	if _, ok := report["overall_score"]; !ok {
		t.Fatalf("expected overall_score in report, got %v", report)
	}
}

func TestStubFailurePrefix(t *testing.T) {
	stub := NewStub()
	ctx := context.Background()

	sub, _ := stub.SubmitDocument(ctx, "fail-layout.pdf", nil)

	first, _ := stub.DocumentStatus(ctx, sub.DocumentID)
	if first.Status != "processing" {
		t.Fatalf("expected processing, got %q", first.Status)
	}
	second, _ := stub.DocumentStatus(ctx, sub.DocumentID)
	if second.Status != "failed" {
		t.Fatalf("expected failed, got %q", second.Status)
	}
	if second.ErrorMessage == "" {
		t.Fatal("expected a failure message")
	}

	_, err := stub.GenerateAnalysis(ctx, sub.DocumentID)
	ue, ok := AsError(err)
	if !ok || ue.StatusCode != 409 {
		t.Fatalf("expected 409 pipeline error, got %v", err)
	}
}

func TestStubQuickPrefixCompletesAnalysisSynchronously(t *testing.T) {
	stub := NewStub()
	ctx := context.Background()

	sub, _ := stub.SubmitDocument(ctx, "quick-review.pdf", nil)
	for i := 0; i < 3; i++ {
		if _, err := stub.DocumentStatus(ctx, sub.DocumentID); err != nil {
			t.Fatalf("DocumentStatus: %v", err)
		}
	}

	gen, err := stub.GenerateAnalysis(ctx, sub.DocumentID)
	if err != nil {
		t.Fatalf("GenerateAnalysis: %v", err)
	}
	if gen.Status != "completed" {
		t.Fatalf("expected synchronous completion, got %q", gen.Status)
	}
	if len(gen.Report) == 0 {
		t.Fatal("expected a report on synchronous completion")
	}
}

func TestStubDeleteAndUnknownDocument(t *testing.T) {
	stub := NewStub()
	ctx := context.Background()

	if err := stub.DeleteDocument(ctx, "missing"); err == nil {
		t.Fatal("expected delete of unknown document to fail")
	}

	sub, _ := stub.SubmitDocument(ctx, "keep.pdf", nil)
	docs, err := stub.ListDocuments(ctx)
	if err != nil || len(docs) != 1 {
		t.Fatalf("expected 1 document, got %v (%v)", docs, err)
	}

	if err := stub.DeleteDocument(ctx, sub.DocumentID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	_, err = stub.DocumentStatus(ctx, sub.DocumentID)
	ue, ok := AsError(err)
	if !ok || ue.StatusCode != 404 {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}
