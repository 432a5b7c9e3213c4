package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"tailor/internal/bus"
	"tailor/internal/gateway"
	"tailor/internal/logging"
	"tailor/internal/session"
	"tailor/internal/store"
	"tailor/internal/testsupport"
)

func newManager(t *testing.T, handler http.Handler) (*session.Manager, *store.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(server.URL))
	st := testsupport.MustOpenStore(t, cfg)
	gw := gateway.New(cfg, logging.NewNop())
	eventBus := bus.New(logging.NewNop())
	t.Cleanup(func() { _ = eventBus.Close() })
	return session.NewManager(gw, st, eventBus, logging.NewNop()), st
}

func startHandler(calls *atomic.Int64) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/supervisor/session/start", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"session_id":      "sess-backend-1",
			"welcome_message": "Hi there!",
		})
	})
	return mux
}

func TestInitializeCreatesSessionOnce(t *testing.T) {
	var calls atomic.Int64
	mgr, _ := newManager(t, startHandler(&calls))
	ctx := context.Background()

	first, welcome, err := mgr.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if first.ID != "sess-backend-1" || first.Stage != session.StageCollectingDocument {
		t.Fatalf("unexpected session: %#v", first)
	}
	if welcome != "Hi there!" {
		t.Fatalf("welcome message not surfaced: %q", welcome)
	}

	second, welcome, err := mgr.Initialize(ctx)
	if err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("session id changed on repeat initialize: %q vs %q", second.ID, first.ID)
	}
	if welcome != "" {
		t.Fatalf("welcome should only appear on creation, got %q", welcome)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one start call, got %d", calls.Load())
	}
}

func TestInitializeRestoresPersistedSession(t *testing.T) {
	var calls atomic.Int64
	mgr, st := newManager(t, startHandler(&calls))
	ctx := context.Background()

	record := store.SessionRecord{ID: "sess-persisted", Stage: "analyzing", HasDocument: true}
	if err := st.SaveSession(ctx, record); err != nil {
		t.Fatalf("seed session failed: %v", err)
	}

	restored, _, err := mgr.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if restored.ID != "sess-persisted" || restored.Stage != session.StageAnalyzing {
		t.Fatalf("unexpected restore: %#v", restored)
	}
	if calls.Load() != 0 {
		t.Fatalf("backend should not be called when a session is persisted, got %d calls", calls.Load())
	}
}

func TestSetStageNeverRegresses(t *testing.T) {
	var calls atomic.Int64
	mgr, _ := newManager(t, startHandler(&calls))
	ctx := context.Background()

	if _, _, err := mgr.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := mgr.SetStage(ctx, session.StageAnalyzing); err != nil {
		t.Fatalf("SetStage failed: %v", err)
	}
	if err := mgr.SetStage(ctx, session.StageCollectingDocument); err != nil {
		t.Fatalf("regression request should be a no-op, got %v", err)
	}

	current, err := mgr.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if current.Stage != session.StageAnalyzing {
		t.Fatalf("stage regressed to %s", current.Stage)
	}
}

func TestApplyRemoteStateMergesForwardOnly(t *testing.T) {
	var calls atomic.Int64
	mgr, _ := newManager(t, startHandler(&calls))
	ctx := context.Background()

	if _, _, err := mgr.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	err := mgr.ApplyRemoteState(ctx, &session.RemoteState{
		HasCVData:          true,
		NeedsClarification: true,
	})
	if err != nil {
		t.Fatalf("ApplyRemoteState failed: %v", err)
	}

	current, _ := mgr.Current(ctx)
	if !current.HasDocument || !current.NeedsClarification {
		t.Fatalf("flags not merged: %#v", current)
	}
	if current.Stage != session.StageCollectingRequirements {
		t.Fatalf("stage should advance to collecting_requirements, got %s", current.Stage)
	}

	// A later update without CV data must not walk the stage back.
	if err := mgr.ApplyRemoteState(ctx, &session.RemoteState{}); err != nil {
		t.Fatalf("second ApplyRemoteState failed: %v", err)
	}
	current, _ = mgr.Current(ctx)
	if current.Stage != session.StageCollectingRequirements {
		t.Fatalf("stage regressed to %s", current.Stage)
	}
}

func TestResetClearsLocalStateDespiteRemoteFailure(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.Handle("/supervisor/session/start", startHandler(&calls))
	mux.HandleFunc("/supervisor/session/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"error":"session not found"}`, http.StatusNotFound)
	})
	mgr, st := newManager(t, mux)
	ctx := context.Background()

	if _, _, err := mgr.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := mgr.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	record, err := st.CurrentSession(ctx)
	if err != nil {
		t.Fatalf("CurrentSession failed: %v", err)
	}
	if record != nil {
		t.Fatalf("local session survived reset: %#v", record)
	}

	current, err := mgr.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if current != nil {
		t.Fatalf("manager kept a session after reset: %#v", current)
	}
}

func TestParseStageRoundTrip(t *testing.T) {
	for _, stage := range []session.Stage{
		session.StageCollectingDocument,
		session.StageCollectingRequirements,
		session.StageAnalyzing,
		session.StageChatReady,
	} {
		parsed, err := session.ParseStage(stage.String())
		if err != nil {
			t.Fatalf("ParseStage(%s) failed: %v", stage, err)
		}
		if parsed != stage {
			t.Fatalf("round trip mismatch: %s vs %s", parsed, stage)
		}
	}
	if _, err := session.ParseStage("bogus"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}
