package upload_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"tailor/internal/gateway"
	"tailor/internal/logging"
	"tailor/internal/testsupport"
	"tailor/internal/upload"
)

func writePDF(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resume.pdf")
	content := bytes.Repeat([]byte("a"), size)
	copy(content, []byte("%PDF-1.4"))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write test pdf: %v", err)
	}
	return path
}

func newOrchestrator(t *testing.T, handler http.Handler) *upload.Orchestrator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(server.URL))
	return upload.New(gateway.New(cfg, logging.NewNop()), logging.NewNop())
}

func TestSelectFileRejectsNonPDF(t *testing.T) {
	o := upload.New(nil, logging.NewNop())
	path := filepath.Join(t.TempDir(), "resume.docx")
	if err := os.WriteFile(path, []byte("doc"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := o.SelectFile(path)
	if !errors.Is(err, gateway.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSelectFileRejectsOversize(t *testing.T) {
	o := upload.New(nil, logging.NewNop())
	path := writePDF(t, upload.MaxDocumentSize+1)

	_, err := o.SelectFile(path)
	if !errors.Is(err, gateway.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if o.Document() != nil {
		t.Fatal("rejected file must not be stored")
	}
}

func TestSelectFileStoresWithoutUploading(t *testing.T) {
	o := newOrchestrator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("selection must not hit the network (%s)", r.URL.Path)
	}))
	path := writePDF(t, 2048)

	doc, err := o.SelectFile(path)
	if err != nil {
		t.Fatalf("SelectFile failed: %v", err)
	}
	if doc.Path != path || doc.Size != 2048 {
		t.Fatalf("unexpected document: %#v", doc)
	}
	if doc.Accepted() {
		t.Fatal("document should not be accepted before submit")
	}
}

func TestSubmitParsesResponse(t *testing.T) {
	o := newOrchestrator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cv/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			file.Close()
			if header.Filename != "resume.pdf" {
				t.Errorf("unexpected filename %q", header.Filename)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":             true,
			"cv_data":             map[string]any{"name": "Ada Lovelace", "email": "ada@example.com"},
			"needs_clarification": true,
			"questions":           []string{"Which role at Analytical Engines was most recent?"},
			"message":             "ok",
		})
	}))

	if _, err := o.SelectFile(writePDF(t, 1024)); err != nil {
		t.Fatalf("SelectFile failed: %v", err)
	}
	doc, err := o.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !doc.Accepted() || doc.CVData.Name != "Ada Lovelace" {
		t.Fatalf("cv data not stored: %#v", doc)
	}
	if !doc.NeedsClarification || len(doc.Questions) != 1 {
		t.Fatalf("clarification state not stored: %#v", doc)
	}
}

func TestSubmitKeepsSelectionOnFailure(t *testing.T) {
	o := newOrchestrator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"error":"extraction failed","detail":"unreadable pdf"}`, http.StatusUnprocessableEntity)
	}))
	path := writePDF(t, 1024)

	if _, err := o.SelectFile(path); err != nil {
		t.Fatalf("SelectFile failed: %v", err)
	}
	_, err := o.Submit(context.Background())
	var httpErr *gateway.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected http error, got %v", err)
	}
	if httpErr.Detail != "unreadable pdf" {
		t.Fatalf("detail not extracted: %q", httpErr.Detail)
	}

	doc := o.Document()
	if doc == nil || doc.Path != path {
		t.Fatal("failed submit must keep the selection for retry")
	}
}

func TestSubmitWithoutSelectionFailsLocally(t *testing.T) {
	o := upload.New(nil, logging.NewNop())
	_, err := o.Submit(context.Background())
	if !errors.Is(err, gateway.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRemoveClearsEverything(t *testing.T) {
	o := upload.New(nil, logging.NewNop())
	if _, err := o.SelectFile(writePDF(t, 512)); err != nil {
		t.Fatalf("SelectFile failed: %v", err)
	}
	o.Remove()
	if o.Document() != nil {
		t.Fatal("Remove left a document behind")
	}
}
