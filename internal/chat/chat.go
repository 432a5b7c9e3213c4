// Package chat drives the conversational exchange with the supervisor
// agent. Messages are append-only in send order; one turn may be in flight
// at a time, so no reordering race exists by construction. A failed turn
// still produces a visible assistant message explaining what went wrong.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tailor/internal/artifacts"
	"tailor/internal/gateway"
	"tailor/internal/logging"
	"tailor/internal/session"
	"tailor/internal/store"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.
type Message struct {
	ID          string
	Role        string
	Content     string
	CreatedAt   time.Time
	Attachments []artifacts.Artifact
	// Synthetic marks locally generated assistant turns that explain a
	// transport failure; they never came from the backend.
	Synthetic bool
}

// Orchestrator sequences chat turns for the active session.
type Orchestrator struct {
	gw        *gateway.Client
	sessions  *session.Manager
	st        *store.Store
	artifacts *artifacts.Service
	logger    *slog.Logger

	// Input is the shared pending-input buffer.
	Input InputBuffer

	mu       sync.Mutex
	sending  bool
	lastErr  error
	nextHint string
}

// New constructs the chat orchestrator.
func New(gw *gateway.Client, sessions *session.Manager, st *store.Store, artifactSvc *artifacts.Service, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		gw:        gw,
		sessions:  sessions,
		st:        st,
		artifacts: artifactSvc,
		logger:    logging.NewComponentLogger(logger, "chat"),
	}
}

type sendRequest struct {
	SessionID string `json:"session_id"`
	UserInput string `json:"user_input"`
}

type sendResponse struct {
	gateway.Envelope
	AssistantMessage string               `json:"assistant_message"`
	SessionState     *session.RemoteState `json:"session_state"`
	NextAction       string               `json:"next_action"`
	GeneratedFiles   []artifacts.Artifact `json:"generated_files"`
}

// Send submits one user turn. The user message is appended synchronously
// before any network activity, so it is visible regardless of latency. A
// transport failure returns a synthetic assistant message rather than an
// error; the underlying cause is available from LastError. The returned
// error is non-nil only for local validation failures.
func (o *Orchestrator) Send(ctx context.Context, text string) (*Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: message text required", gateway.ErrValidation)
	}

	current, err := o.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: no active session; initialize one first", gateway.ErrValidation)
	}

	o.mu.Lock()
	if o.sending {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: a turn is already in flight", gateway.ErrValidation)
	}
	o.sending = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.sending = false
		o.mu.Unlock()
	}()

	userMsg := Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   trimmed,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.persist(ctx, current.ID, userMsg); err != nil {
		return nil, err
	}

	var resp sendResponse
	callErr := o.gw.PostJSON(ctx, "/supervisor/session/message", sendRequest{
		SessionID: current.ID,
		UserInput: trimmed,
	}, &resp, gateway.TimeoutLong)

	if callErr == nil && !resp.Success && resp.AssistantMessage == "" {
		callErr = fmt.Errorf("%w: turn refused: %s", gateway.ErrParse, resp.FailureDetail())
	}

	if callErr != nil {
		o.mu.Lock()
		o.lastErr = callErr
		o.mu.Unlock()
		o.logger.Warn("turn failed",
			logging.String(logging.FieldSessionID, current.ID),
			logging.Error(callErr),
		)
		synthetic := Message{
			ID:        uuid.NewString(),
			Role:      RoleAssistant,
			Content:   gateway.Describe(callErr),
			CreatedAt: time.Now().UTC(),
			Synthetic: true,
		}
		if err := o.persist(ctx, current.ID, synthetic); err != nil {
			return nil, err
		}
		return &synthetic, nil
	}

	o.mu.Lock()
	o.lastErr = nil
	o.nextHint = resp.NextAction
	o.mu.Unlock()

	assistant := Message{
		ID:          uuid.NewString(),
		Role:        RoleAssistant,
		Content:     resp.AssistantMessage,
		CreatedAt:   time.Now().UTC(),
		Attachments: resp.GeneratedFiles,
	}
	if err := o.persist(ctx, current.ID, assistant); err != nil {
		return nil, err
	}

	if len(resp.GeneratedFiles) > 0 && o.artifacts != nil {
		o.artifacts.Record(resp.GeneratedFiles...)
	}
	if resp.SessionState != nil {
		if err := o.sessions.ApplyRemoteState(ctx, resp.SessionState); err != nil {
			o.logger.Warn("stage update not applied",
				logging.String(logging.FieldSessionID, current.ID),
				logging.Error(err),
			)
		}
	}
	return &assistant, nil
}

// LastError returns the transport error behind the most recent synthetic
// assistant message, or nil after a clean turn.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// NextAction returns the backend's suggested next step from the last turn.
func (o *Orchestrator) NextAction() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.nextHint
}

// History returns the stored conversation for the active session, oldest
// first.
func (o *Orchestrator) History(ctx context.Context) ([]Message, error) {
	current, err := o.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	records, err := o.st.ListMessages(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(records))
	for _, record := range records {
		messages = append(messages, fromRecord(record))
	}
	return messages, nil
}

func (o *Orchestrator) persist(ctx context.Context, sessionID string, msg Message) error {
	attachments := ""
	if len(msg.Attachments) > 0 {
		encoded, err := json.Marshal(msg.Attachments)
		if err == nil {
			attachments = string(encoded)
		}
	}
	record := store.MessageRecord{
		ID:          msg.ID,
		SessionID:   sessionID,
		Role:        msg.Role,
		Content:     msg.Content,
		Attachments: attachments,
		CreatedAt:   msg.CreatedAt,
	}
	if err := o.st.AppendMessage(ctx, record); err != nil {
		return fmt.Errorf("persist message: %w", err)
	}
	return nil
}

func fromRecord(record store.MessageRecord) Message {
	msg := Message{
		ID:        record.ID,
		Role:      record.Role,
		Content:   record.Content,
		CreatedAt: record.CreatedAt,
	}
	if record.Attachments != "" {
		_ = json.Unmarshal([]byte(record.Attachments), &msg.Attachments)
	}
	return msg
}
