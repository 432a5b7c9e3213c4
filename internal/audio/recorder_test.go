package audio_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"tailor/internal/audio"
	"tailor/internal/chat"
	"tailor/internal/config"
	"tailor/internal/gateway"
	"tailor/internal/logging"
	"tailor/internal/testsupport"
)

func newRecorder(t *testing.T, handler http.Handler) (*audio.Recorder, *chat.InputBuffer, *config.Config) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithBaseURL(server.URL),
		testsupport.WithStubbedCaptureBinary(t),
	)
	gw := gateway.New(cfg, logging.NewNop())
	transcriber := audio.NewTranscriber(gw, cfg, logging.NewNop())
	buffer := &chat.InputBuffer{}
	return audio.NewRecorder(cfg, transcriber, buffer, logging.NewNop()), buffer, cfg
}

func transcribeOK(text string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"text":    text,
			"message": "ok",
		})
	})
}

func TestRecordingLifecycle(t *testing.T) {
	rec, buffer, _ := newRecorder(t, transcribeOK("hello from the microphone   \n"))
	ctx := context.Background()

	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := rec.Snapshot().State; got != audio.StateRecording {
		t.Fatalf("expected recording state, got %s", got)
	}

	result, err := rec.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if result.Text != "hello from the microphone" {
		t.Fatalf("trailing whitespace not trimmed: %q", result.Text)
	}
	if buffer.Peek() != "hello from the microphone" {
		t.Fatalf("transcript not handed to chat input: %q", buffer.Peek())
	}

	snap := rec.Snapshot()
	if snap.State != audio.StateCompleted || snap.Transcript != result.Text {
		t.Fatalf("unexpected final snapshot: %#v", snap)
	}
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	rec, _, _ := newRecorder(t, transcribeOK("x"))
	ctx := context.Background()

	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := rec.Start(ctx); !errors.Is(err, gateway.ErrValidation) {
		t.Fatalf("second start must be rejected, got %v", err)
	}
	if _, err := rec.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// The device handle was released; a fresh start succeeds.
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("restart after stop failed: %v", err)
	}
	if _, err := rec.Stop(ctx); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestTranscriptionFailureReturnsToIdle(t *testing.T) {
	rec, buffer, _ := newRecorder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"error":"audio service down"}`, http.StatusBadGateway)
	}))
	ctx := context.Background()

	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_, err := rec.Stop(ctx)
	var httpErr *gateway.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected http error, got %v", err)
	}

	snap := rec.Snapshot()
	if snap.State != audio.StateError || snap.Err == nil {
		t.Fatalf("failure must store the error in a retryable state: %#v", snap)
	}
	if buffer.Peek() != "" {
		t.Fatalf("failed transcription must not touch chat input: %q", buffer.Peek())
	}

	// Still retryable.
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("restart after failure failed: %v", err)
	}
	rec.Abort()
	if got := rec.Snapshot().State; got != audio.StateIdle {
		t.Fatalf("abort must land in idle, got %s", got)
	}
}

func TestStopWithoutRecordingIsRejected(t *testing.T) {
	rec, _, _ := newRecorder(t, transcribeOK("x"))
	if _, err := rec.Stop(context.Background()); !errors.Is(err, gateway.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateClip(t *testing.T) {
	dir := t.TempDir()

	wav := filepath.Join(dir, "clip.wav")
	if err := os.WriteFile(wav, []byte("RIFFdata"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	if err := audio.ValidateClip(wav); err != nil {
		t.Fatalf("valid clip rejected: %v", err)
	}

	ogg := filepath.Join(dir, "clip.ogg")
	if err := os.WriteFile(ogg, []byte("OggS"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	if err := audio.ValidateClip(ogg); !errors.Is(err, gateway.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format error, got %v", err)
	}

	if err := audio.ValidateClip(filepath.Join(dir, "missing.wav")); !errors.Is(err, gateway.ErrValidation) {
		t.Fatalf("expected validation error for missing file, got %v", err)
	}

	big := filepath.Join(dir, "big.mp3")
	file, err := os.Create(big)
	if err != nil {
		t.Fatalf("create big clip: %v", err)
	}
	if err := file.Truncate(audio.MaxClipSize + 1); err != nil {
		t.Fatalf("truncate big clip: %v", err)
	}
	file.Close()
	if err := audio.ValidateClip(big); !errors.Is(err, gateway.ErrValidation) {
		t.Fatalf("expected validation error for oversize clip, got %v", err)
	}
}

func TestTranscribeForwardsFields(t *testing.T) {
	var gotModel, gotFormat, gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcribe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		gotPrompt = r.FormValue("prompt")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "text": "ok"})
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(server.URL))
	transcriber := audio.NewTranscriber(gateway.New(cfg, logging.NewNop()), cfg, logging.NewNop())

	clip := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(clip, []byte("RIFFdata"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	_, err := transcriber.Transcribe(context.Background(), clip, audio.TranscribeOptions{
		Prompt: "names: Ada Lovelace",
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if gotModel != cfg.Audio.TranscribeModel || gotFormat != "json" {
		t.Fatalf("model/format not forwarded: %q %q", gotModel, gotFormat)
	}
	if gotPrompt != "names: Ada Lovelace" {
		t.Fatalf("prompt not forwarded: %q", gotPrompt)
	}
}

func TestTranslateUsesTranslationEndpointAndModel(t *testing.T) {
	var gotPath, gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseMultipartForm(1 << 20)
		gotModel = r.FormValue("model")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "text": "translated"})
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(server.URL))
	transcriber := audio.NewTranscriber(gateway.New(cfg, logging.NewNop()), cfg, logging.NewNop())

	clip := filepath.Join(t.TempDir(), "clip.m4a")
	if err := os.WriteFile(clip, []byte("data"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	result, err := transcriber.Transcribe(context.Background(), clip, audio.TranscribeOptions{Translate: true})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if gotPath != "/audio/translate" || gotModel != cfg.Audio.TranslateModel {
		t.Fatalf("translation not routed correctly: %q %q", gotPath, gotModel)
	}
	if result.Text != "translated" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
}
