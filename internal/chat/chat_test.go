package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tailor/internal/artifacts"
	"tailor/internal/chat"
	"tailor/internal/gateway"
	"tailor/internal/logging"
	"tailor/internal/session"
	"tailor/internal/testsupport"
)

type fixture struct {
	chat      *chat.Orchestrator
	sessions  *session.Manager
	artifacts *artifacts.Service
}

func newFixture(t *testing.T, messageHandler http.HandlerFunc) *fixture {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/supervisor/session/start", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":    true,
			"session_id": "sess-1",
		})
	})
	if messageHandler != nil {
		mux.HandleFunc("/supervisor/session/message", messageHandler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(server.URL))
	st := testsupport.MustOpenStore(t, cfg)
	gw := gateway.New(cfg, logging.NewNop())
	sessions := session.NewManager(gw, st, nil, logging.NewNop())
	artifactSvc := artifacts.NewService(gw, cfg, logging.NewNop())
	return &fixture{
		chat:      chat.New(gw, sessions, st, artifactSvc, logging.NewNop()),
		sessions:  sessions,
		artifacts: artifactSvc,
	}
}

func TestSendAppendsUserThenAssistant(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionID string `json:"session_id"`
			UserInput string `json:"user_input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.SessionID != "sess-1" || req.UserInput != "hello" {
			t.Errorf("unexpected request: %#v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":           true,
			"assistant_message": "Hi! Share your CV to get started.",
			"next_action":       "wait_for_input",
		})
	})
	ctx := context.Background()
	if _, _, err := fx.sessions.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	reply, err := fx.chat.Send(ctx, "  hello  ")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if reply.Role != chat.RoleAssistant || reply.Synthetic {
		t.Fatalf("unexpected reply: %#v", reply)
	}
	if fx.chat.NextAction() != "wait_for_input" {
		t.Fatalf("next action not stored: %q", fx.chat.NextAction())
	}

	history, err := fx.chat.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Role != chat.RoleUser || history[0].Content != "hello" {
		t.Fatalf("user turn wrong: %#v", history[0])
	}
	if history[1].Role != chat.RoleAssistant {
		t.Fatalf("assistant turn wrong: %#v", history[1])
	}
}

func TestSendValidatesLocally(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid sends must not reach the backend")
	})
	ctx := context.Background()

	if _, err := fx.chat.Send(ctx, "   "); !errors.Is(err, gateway.ErrValidation) {
		t.Fatalf("expected validation error for blank text, got %v", err)
	}
	// No session initialized yet.
	if _, err := fx.chat.Send(ctx, "hello"); !errors.Is(err, gateway.ErrValidation) {
		t.Fatalf("expected validation error without session, got %v", err)
	}
}

func TestSendFailureProducesSyntheticReply(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"error":"supervisor crashed"}`, http.StatusInternalServerError)
	})
	ctx := context.Background()
	if _, _, err := fx.sessions.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	reply, err := fx.chat.Send(ctx, "hello")
	if err != nil {
		t.Fatalf("transport failure must not surface as send error, got %v", err)
	}
	if !reply.Synthetic || reply.Role != chat.RoleAssistant {
		t.Fatalf("expected synthetic assistant reply: %#v", reply)
	}
	if reply.Content == "" {
		t.Fatal("synthetic reply must carry a human-readable explanation")
	}

	var httpErr *gateway.HTTPError
	if !errors.As(fx.chat.LastError(), &httpErr) {
		t.Fatalf("LastError should expose the transport cause, got %v", fx.chat.LastError())
	}

	history, err := fx.chat.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("conversation must show both turns, got %d", len(history))
	}
}

func TestSendRejectsConcurrentTurn(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":           true,
			"assistant_message": "done",
		})
	})
	ctx := context.Background()
	if _, _, err := fx.sessions.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := fx.chat.Send(ctx, "first"); err != nil {
			t.Errorf("first send failed: %v", err)
		}
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first send never reached the backend")
	}

	if _, err := fx.chat.Send(ctx, "second"); !errors.Is(err, gateway.ErrValidation) {
		close(release)
		wg.Wait()
		t.Fatalf("second send must be rejected while first is in flight, got %v", err)
	}
	close(release)
	wg.Wait()
}

func TestSendAppliesStageUpdateAndArtifacts(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":           true,
			"assistant_message": "Your tailored CV is ready.",
			"session_state": map[string]any{
				"session_stage":    "writer",
				"has_cv_data":      true,
				"has_job_data":     true,
				"ready_for_writer": true,
			},
			"generated_files": []map[string]any{
				{"filename": "ada_cv.pdf", "file_type": "cv", "download_url": "/files/ada_cv.pdf"},
			},
		})
	})
	ctx := context.Background()
	if _, _, err := fx.sessions.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	reply, err := fx.chat.Send(ctx, "generate my cv")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(reply.Attachments) != 1 || reply.Attachments[0].Filename != "ada_cv.pdf" {
		t.Fatalf("attachments not applied: %#v", reply.Attachments)
	}

	known := fx.artifacts.Known()
	if len(known) != 1 {
		t.Fatalf("artifact not registered: %#v", known)
	}

	current, err := fx.sessions.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if !current.ReadyForChat || current.Stage != session.StageChatReady {
		t.Fatalf("stage update not merged: %#v", current)
	}
}

func TestInputBuffer(t *testing.T) {
	var buffer chat.InputBuffer

	buffer.Set("hello")
	buffer.Append("world  ")
	if got := buffer.Peek(); got != "hello world" {
		t.Fatalf("unexpected buffer: %q", got)
	}
	if got := buffer.Take(); got != "hello world" {
		t.Fatalf("Take returned %q", got)
	}
	if got := buffer.Peek(); got != "" {
		t.Fatalf("buffer not cleared: %q", got)
	}

	buffer.Append("transcribed words")
	if got := buffer.Peek(); got != "transcribed words" {
		t.Fatalf("append to empty buffer: %q", got)
	}
}
