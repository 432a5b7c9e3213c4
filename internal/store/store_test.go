package store_test

import (
	"context"
	"fmt"
	"testing"

	"tailor/internal/store"
	"tailor/internal/testsupport"
)

func TestSaveAndLoadSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	record := store.SessionRecord{
		ID:          "sess-1",
		Stage:       "collecting_document",
		HasDocument: true,
	}
	if err := st.SaveSession(ctx, record); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	loaded, err := st.CurrentSession(ctx)
	if err != nil {
		t.Fatalf("CurrentSession failed: %v", err)
	}
	if loaded == nil || loaded.ID != "sess-1" {
		t.Fatalf("unexpected session: %#v", loaded)
	}
	if !loaded.HasDocument || loaded.HasRequirements {
		t.Fatalf("flags not round-tripped: %#v", loaded)
	}
}

func TestCurrentSessionEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	loaded, err := st.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession failed: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil session, got %#v", loaded)
	}
}

func TestSaveSessionUpdatesInPlace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.SaveSession(ctx, store.SessionRecord{ID: "sess-1", Stage: "collecting_document"}); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := st.SaveSession(ctx, store.SessionRecord{ID: "sess-1", Stage: "chat_ready", ReadyForChat: true}); err != nil {
		t.Fatalf("SaveSession update failed: %v", err)
	}

	loaded, err := st.CurrentSession(ctx)
	if err != nil {
		t.Fatalf("CurrentSession failed: %v", err)
	}
	if loaded.Stage != "chat_ready" || !loaded.ReadyForChat {
		t.Fatalf("update not applied: %#v", loaded)
	}
}

func TestMessagesPreserveInsertionOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.SaveSession(ctx, store.SessionRecord{ID: "sess-1", Stage: "chat_ready"}); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		record := store.MessageRecord{
			ID:        fmt.Sprintf("msg-%d", i),
			SessionID: "sess-1",
			Role:      "user",
			Content:   fmt.Sprintf("turn %d", i),
		}
		if err := st.AppendMessage(ctx, record); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	messages, err := st.ListMessages(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}
	for i, msg := range messages {
		if msg.ID != fmt.Sprintf("msg-%d", i) {
			t.Fatalf("order violated at %d: %#v", i, msg)
		}
	}
}

func TestDeleteSessionCascadesMessages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.SaveSession(ctx, store.SessionRecord{ID: "sess-1", Stage: "chat_ready"}); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := st.AppendMessage(ctx, store.MessageRecord{ID: "msg-1", SessionID: "sess-1", Role: "user", Content: "hello"}); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if err := st.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	count, err := st.MessageCount(ctx, "sess-1")
	if err != nil {
		t.Fatalf("MessageCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected cascade delete, found %d messages", count)
	}
}
