package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tailor/internal/bus"
	"tailor/internal/gateway"
	"tailor/internal/logging"
	"tailor/internal/store"
)

// Manager owns the current session and serializes every mutation. All
// methods are safe for concurrent use; a second call simply waits its turn,
// so observable ordering stays deterministic.
type Manager struct {
	gw       *gateway.Client
	st       *store.Store
	eventBus *bus.Bus
	logger   *slog.Logger

	mu      sync.Mutex
	current *Session
}

// NewManager constructs the session manager.
func NewManager(gw *gateway.Client, st *store.Store, eventBus *bus.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		gw:       gw,
		st:       st,
		eventBus: eventBus,
		logger:   logging.NewComponentLogger(logger, "session"),
	}
}

type startResponse struct {
	gateway.Envelope
	SessionID      string `json:"session_id"`
	WelcomeMessage string `json:"welcome_message"`
}

type stateResponse struct {
	gateway.Envelope
	SessionInfo Info `json:"session_info"`
}

// Initialize returns the current session, creating one on the backend only
// if none exists yet. Calling it again is a no-op that returns the existing
// session; the welcome message is only non-empty on first creation.
func (m *Manager) Initialize(ctx context.Context) (*Session, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current.clone(), "", nil
	}

	record, err := m.st.CurrentSession(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load session: %w", err)
	}
	if record != nil {
		m.current = fromRecord(record)
		m.logger.Debug("session restored",
			logging.String(logging.FieldSessionID, m.current.ID),
			logging.String(logging.FieldStage, m.current.Stage.String()),
		)
		return m.current.clone(), "", nil
	}

	var resp startResponse
	if err := m.gw.PostJSON(ctx, "/supervisor/session/start", struct{}{}, &resp, gateway.TimeoutDefault); err != nil {
		return nil, "", err
	}
	if !resp.Success || resp.SessionID == "" {
		return nil, "", fmt.Errorf("%w: session start refused: %s", gateway.ErrParse, resp.FailureDetail())
	}

	created := &Session{ID: resp.SessionID, Stage: StageCollectingDocument}
	if err := m.st.SaveSession(ctx, created.toRecord()); err != nil {
		return nil, "", fmt.Errorf("persist session: %w", err)
	}
	m.current = created
	m.logger.Info("session started", logging.String(logging.FieldSessionID, created.ID))

	return created.clone(), resp.WelcomeMessage, nil
}

// Current returns the active session without touching the backend, or nil
// when none has been initialized.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current.clone(), nil
	}
	record, err := m.st.CurrentSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	m.current = fromRecord(record)
	return m.current.clone(), nil
}

// FetchRemoteState re-syncs against the backend state endpoint, used after
// a reconnect. Flags and stage are merged under the forward-only rule.
func (m *Manager) FetchRemoteState(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, fmt.Errorf("%w: no active session", gateway.ErrValidation)
	}

	var resp stateResponse
	path := fmt.Sprintf("/supervisor/session/%s/state", m.current.ID)
	if err := m.gw.GetJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: state fetch refused: %s", gateway.ErrParse, resp.FailureDetail())
	}

	state := RemoteState{
		SessionStage:       resp.SessionInfo.SessionStage,
		HasCVData:          resp.SessionInfo.HasCVData,
		HasJobData:         resp.SessionInfo.HasJobData,
		HasCompanyData:     resp.SessionInfo.HasCompanyData,
		NeedsClarification: resp.SessionInfo.NeedsClarification,
		ReadyForWriter:     resp.SessionInfo.ReadyForWriter,
		CurrentAgent:       resp.SessionInfo.CurrentAgent,
	}
	if err := m.applyRemoteLocked(ctx, &state); err != nil {
		return nil, err
	}
	return m.current.clone(), nil
}

// ApplyRemoteState merges backend-pushed workflow state into the session.
// Readiness flags follow the backend; the stage only ever moves forward.
func (m *Manager) ApplyRemoteState(ctx context.Context, state *RemoteState) error {
	if state == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.applyRemoteLocked(ctx, state)
}

func (m *Manager) applyRemoteLocked(ctx context.Context, state *RemoteState) error {
	s := m.current
	s.HasDocument = s.HasDocument || state.HasCVData
	s.HasRequirements = s.HasRequirements || state.HasJobData
	s.NeedsClarification = state.NeedsClarification
	if state.ReadyForWriter {
		s.ReadyForChat = true
	}

	derived := s.derivedStage()
	if derived > s.Stage {
		return m.setStageLocked(ctx, derived)
	}
	return m.persistLocked(ctx)
}

// derivedStage computes the furthest stage the readiness flags justify.
// StageAnalyzing is never derived; only the pipeline controller enters it.
func (s *Session) derivedStage() Stage {
	switch {
	case s.ReadyForChat:
		return StageChatReady
	case s.HasDocument:
		return StageCollectingRequirements
	default:
		return StageCollectingDocument
	}
}

// SetStage advances the pipeline stage. Requests to move backward are
// ignored; only Reset regresses a session.
func (m *Manager) SetStage(ctx context.Context, stage Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return fmt.Errorf("%w: no active session", gateway.ErrValidation)
	}
	if stage <= m.current.Stage {
		return nil
	}
	return m.setStageLocked(ctx, stage)
}

func (m *Manager) setStageLocked(ctx context.Context, stage Stage) error {
	m.current.Stage = stage
	if stage == StageChatReady {
		m.current.ReadyForChat = true
	}
	if err := m.persistLocked(ctx); err != nil {
		return err
	}
	m.logger.Info("stage advanced",
		logging.String(logging.FieldSessionID, m.current.ID),
		logging.String(logging.FieldStage, stage.String()),
	)
	if m.eventBus != nil {
		m.eventBus.Publish(bus.TopicStageChanged, bus.StageChanged{
			SessionID: m.current.ID,
			Stage:     stage.String(),
		})
	}
	return nil
}

// MarkDocument records that a CV was accepted by the backend, along with
// whether it came back with clarification questions.
func (m *Manager) MarkDocument(ctx context.Context, needsClarification bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return fmt.Errorf("%w: no active session", gateway.ErrValidation)
	}
	m.current.HasDocument = true
	m.current.NeedsClarification = needsClarification
	if m.current.Stage < StageCollectingRequirements {
		return m.setStageLocked(ctx, StageCollectingRequirements)
	}
	return m.persistLocked(ctx)
}

// ClearDocument records removal of the uploaded CV. The stage does not
// regress; readiness is re-derived by the pipeline controller.
func (m *Manager) ClearDocument(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	m.current.HasDocument = false
	m.current.NeedsClarification = false
	return m.persistLocked(ctx)
}

// MarkRequirements records whether parsed job requirements are held.
func (m *Manager) MarkRequirements(ctx context.Context, has bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return fmt.Errorf("%w: no active session", gateway.ErrValidation)
	}
	m.current.HasRequirements = has
	return m.persistLocked(ctx)
}

// SetRequirementsSkipped toggles the skip flag. Skipping removes the
// requirements step from readiness checks but never the document check.
func (m *Manager) SetRequirementsSkipped(ctx context.Context, skipped bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return fmt.Errorf("%w: no active session", gateway.ErrValidation)
	}
	m.current.RequirementsSkipped = skipped
	return m.persistLocked(ctx)
}

// Reset tears the session down: the backend copy is deleted best-effort,
// the local record is removed, and the next Initialize starts fresh.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		record, err := m.st.CurrentSession(ctx)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		if record == nil {
			return nil
		}
		m.current = fromRecord(record)
	}

	path := fmt.Sprintf("/supervisor/session/%s", m.current.ID)
	if err := m.gw.Delete(ctx, path, nil); err != nil {
		m.logger.Warn("remote session delete failed",
			logging.String(logging.FieldSessionID, m.current.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "backend session expires on its own"),
		)
	}

	if err := m.st.DeleteSession(ctx, m.current.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.Info("session reset", logging.String(logging.FieldSessionID, m.current.ID))
	m.current = nil
	return nil
}

func (m *Manager) persistLocked(ctx context.Context) error {
	if err := m.st.SaveSession(ctx, m.current.toRecord()); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
