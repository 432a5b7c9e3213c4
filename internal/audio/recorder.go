package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"tailor/internal/chat"
	"tailor/internal/config"
	"tailor/internal/gateway"
	"tailor/internal/logging"
)

// State is the recording lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

const (
	meterInterval   = 100 * time.Millisecond
	elapsedInterval = time.Second
	stopGracePeriod = 3 * time.Second
)

// Snapshot is a point-in-time view of the recorder for display.
type Snapshot struct {
	State      State
	SessionID  string
	Elapsed    time.Duration
	Level      float64
	Transcript string
	Err        error
}

// Recorder owns the microphone while a recording session exists. Only one
// session may exist at a time, enforced in-process by state and across
// processes by a lock file.
type Recorder struct {
	cfg         *config.Config
	transcriber *Transcriber
	chatInput   *chat.InputBuffer
	logger      *slog.Logger
	lock        *flock.Flock

	mu         sync.Mutex
	state      State
	sessionID  string
	clipPath   string
	startedAt  time.Time
	elapsed    time.Duration
	level      float64
	transcript string
	lastErr    error

	cmd    *exec.Cmd
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRecorder constructs the recorder. The lock file lives in the data
// directory so concurrent tailor processes cannot share the microphone.
func NewRecorder(cfg *config.Config, transcriber *Transcriber, chatInput *chat.InputBuffer, logger *slog.Logger) *Recorder {
	return &Recorder{
		cfg:         cfg,
		transcriber: transcriber,
		chatInput:   chatInput,
		logger:      logging.NewComponentLogger(logger, "recorder"),
		lock:        flock.New(cfg.RecordingLockPath()),
		state:       StateIdle,
	}
}

// Snapshot returns the current recorder state for display.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	elapsed := r.elapsed
	if r.state == StateRecording {
		elapsed = time.Since(r.startedAt)
	}
	return Snapshot{
		State:      r.state,
		SessionID:  r.sessionID,
		Elapsed:    elapsed,
		Level:      r.level,
		Transcript: r.transcript,
		Err:        r.lastErr,
	}
}

// Start acquires exclusive microphone ownership and begins capturing.
// Starting while a session is recording or processing is rejected.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateRecording || r.state == StateProcessing {
		r.mu.Unlock()
		return fmt.Errorf("%w: a recording is already active", gateway.ErrValidation)
	}
	r.mu.Unlock()

	if err := os.MkdirAll(r.cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	held, err := r.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire recording lock: %w", err)
	}
	if !held {
		return fmt.Errorf("%w: microphone is held by another recording", gateway.ErrPermissionDenied)
	}

	sessionID := uuid.NewString()
	clipPath := filepath.Join(r.cfg.Paths.DataDir, "capture-"+sessionID+".wav")

	captureCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(captureCtx, r.cfg.Audio.CaptureBinary, captureArgs(r.cfg.Audio, clipPath)...) //nolint:gosec
	if err := cmd.Start(); err != nil {
		cancel()
		_ = r.lock.Unlock()
		return fmt.Errorf("%w: cannot start capture: %v", gateway.ErrPermissionDenied, err)
	}

	r.mu.Lock()
	r.state = StateRecording
	r.sessionID = sessionID
	r.clipPath = clipPath
	r.startedAt = time.Now()
	r.elapsed = 0
	r.level = 0
	r.transcript = ""
	r.lastErr = nil
	r.cmd = cmd
	r.cancel = cancel
	r.mu.Unlock()

	// Both periodic activities are scoped to the recording state; Stop
	// cancels the context and joins them before processing begins.
	r.wg.Add(2)
	go r.elapsedLoop(captureCtx)
	go r.meterLoop(captureCtx, clipPath)

	r.logger.Info("recording started",
		logging.String("recording_id", sessionID),
		logging.String("device", r.cfg.Audio.CaptureDevice),
	)
	return nil
}

// Stop ends capture, releases the microphone, and chains straight into
// transcription: the recognized text lands in the chat input buffer. On
// transcription failure the recorder returns to idle with the error stored
// and the chat input untouched.
func (r *Recorder) Stop(ctx context.Context) (*TranscribeResult, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: no recording in progress", gateway.ErrValidation)
	}
	r.state = StateProcessing
	r.elapsed = time.Since(r.startedAt)
	cmd := r.cmd
	cancel := r.cancel
	clipPath := r.clipPath
	sessionID := r.sessionID
	r.cmd = nil
	r.cancel = nil
	r.mu.Unlock()

	err := r.finalizeCapture(cmd, cancel)
	releaseErr := r.lock.Unlock()
	if err != nil {
		r.fail(fmt.Errorf("finalize capture: %w", err))
		return nil, err
	}
	if releaseErr != nil {
		r.logger.Warn("recording lock release failed", logging.Error(releaseErr))
	}

	if _, statErr := os.Stat(clipPath); statErr != nil {
		err := fmt.Errorf("%w: capture produced no clip: %v", gateway.ErrValidation, statErr)
		r.fail(err)
		return nil, err
	}

	result, err := r.transcriber.Transcribe(ctx, clipPath, TranscribeOptions{})
	if err != nil {
		r.fail(err)
		return nil, err
	}

	if result.Text != "" && r.chatInput != nil {
		r.chatInput.Append(result.Text)
	}

	r.mu.Lock()
	r.state = StateCompleted
	r.transcript = result.Text
	r.level = 0
	r.mu.Unlock()

	r.logger.Info("recording transcribed",
		logging.String("recording_id", sessionID),
		logging.Int("characters", len(result.Text)),
	)
	return result, nil
}

// Abort tears the recording down without transcribing. Used on component
// teardown; resource release is unconditional.
func (r *Recorder) Abort() {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return
	}
	r.state = StateIdle
	cmd := r.cmd
	cancel := r.cancel
	clipPath := r.clipPath
	sessionID := r.sessionID
	r.cmd = nil
	r.cancel = nil
	r.mu.Unlock()

	if err := r.finalizeCapture(cmd, cancel); err != nil {
		r.logger.Warn("capture teardown failed", logging.Error(err))
	}
	if err := r.lock.Unlock(); err != nil {
		r.logger.Warn("recording lock release failed", logging.Error(err))
	}
	_ = os.Remove(clipPath)
	r.logger.Info("recording aborted", logging.String("recording_id", sessionID))
}

// finalizeCapture stops the encoder gracefully and joins the periodic
// activities. An encoder that already exited cleanly is not an error.
func (r *Recorder) finalizeCapture(cmd *exec.Cmd, cancel context.CancelFunc) error {
	if cmd != nil && cmd.Process != nil {
		// Ask for a clean container finalization first; fall through to
		// the context kill if the encoder ignores it.
		_ = cmd.Process.Signal(os.Interrupt)
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case waitErr := <-done:
			cancel()
			r.wg.Wait()
			return ignoreExitError(waitErr)
		case <-time.After(stopGracePeriod):
			cancel()
			waitErr := <-done
			r.wg.Wait()
			return ignoreExitError(waitErr)
		}
	}
	cancel()
	r.wg.Wait()
	return nil
}

// ignoreExitError drops the non-zero exit status encoders report when they
// are interrupted mid-stream.
func ignoreExitError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// fail stores the error and lands in the error state, which behaves like
// idle for the next Start.
func (r *Recorder) fail(err error) {
	r.mu.Lock()
	r.state = StateError
	r.level = 0
	r.lastErr = err
	r.mu.Unlock()
}

func (r *Recorder) elapsedLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(elapsedInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.state == StateRecording {
				r.elapsed = time.Since(r.startedAt)
			}
			r.mu.Unlock()
		}
	}
}

// meterLoop samples the tail of the growing capture file and republishes a
// normalized amplitude in [0,1].
func (r *Recorder) meterLoop(ctx context.Context, clipPath string) {
	defer r.wg.Done()
	ticker := time.NewTicker(meterInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			level, err := sampleLevel(clipPath)
			if err != nil {
				continue
			}
			r.mu.Lock()
			if r.state == StateRecording {
				r.level = level
			}
			r.mu.Unlock()
		}
	}
}

// sampleLevel reads the most recent PCM window from the clip and computes
// the normalized peak amplitude.
func sampleLevel(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	const window = 4096
	size := info.Size()
	if size < 2 {
		return 0, nil
	}
	offset := size - window
	if offset < 0 {
		offset = 0
	}
	// Keep sample pairs aligned.
	offset += offset % 2
	buf := make([]byte, size-offset)
	if _, err := file.ReadAt(buf, offset); err != nil && err != io.EOF {
		return 0, err
	}

	var peak int16
	for i := 0; i+1 < len(buf); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(buf[i : i+2]))
		if sample < 0 {
			if sample == -32768 {
				sample = 32767
			} else {
				sample = -sample
			}
		}
		if sample > peak {
			peak = sample
		}
	}
	return float64(peak) / 32767, nil
}

func captureArgs(cfg config.Audio, output string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "alsa",
		"-i", cfg.CaptureDevice,
		"-ac", "1",
		"-ar", strconv.Itoa(cfg.SampleRate),
		output,
	}
}
