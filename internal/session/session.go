package session

import (
	"time"

	"tailor/internal/store"
)

// Session is the client-side view of one workflow session. The ID is
// assigned by the backend and never changes for the session's lifetime.
type Session struct {
	ID                  string
	Stage               Stage
	HasDocument         bool
	HasRequirements     bool
	NeedsClarification  bool
	ReadyForChat        bool
	RequirementsSkipped bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RemoteState is the workflow state the backend embeds in chat responses
// and serves from the state endpoint.
type RemoteState struct {
	SessionStage       string `json:"session_stage"`
	HasCVData          bool   `json:"has_cv_data"`
	HasJobData         bool   `json:"has_job_data"`
	HasCompanyData     bool   `json:"has_company_data"`
	NeedsClarification bool   `json:"needs_clarification"`
	ReadyForWriter     bool   `json:"ready_for_writer"`
	CurrentAgent       string `json:"current_agent"`
}

// Info is the metadata shape returned by the session state endpoint.
type Info struct {
	SessionID          string `json:"session_id"`
	CreatedAt          string `json:"created_at"`
	LastActive         string `json:"last_active"`
	SessionStage       string `json:"session_stage"`
	CurrentAgent       string `json:"current_agent"`
	HasCVData          bool   `json:"has_cv_data"`
	HasJobData         bool   `json:"has_job_data"`
	HasCompanyData     bool   `json:"has_company_data"`
	NeedsClarification bool   `json:"needs_clarification"`
	ReadyForWriter     bool   `json:"ready_for_writer"`
	MessageCount       int    `json:"message_count"`
}

func fromRecord(record *store.SessionRecord) *Session {
	stage, err := ParseStage(record.Stage)
	if err != nil {
		stage = StageCollectingDocument
	}
	return &Session{
		ID:                  record.ID,
		Stage:               stage,
		HasDocument:         record.HasDocument,
		HasRequirements:     record.HasRequirements,
		NeedsClarification:  record.NeedsClarification,
		ReadyForChat:        record.ReadyForChat,
		RequirementsSkipped: record.RequirementsSkipped,
		CreatedAt:           record.CreatedAt,
		UpdatedAt:           record.UpdatedAt,
	}
}

func (s *Session) toRecord() store.SessionRecord {
	return store.SessionRecord{
		ID:                  s.ID,
		Stage:               s.Stage.String(),
		HasDocument:         s.HasDocument,
		HasRequirements:     s.HasRequirements,
		NeedsClarification:  s.NeedsClarification,
		ReadyForChat:        s.ReadyForChat,
		RequirementsSkipped: s.RequirementsSkipped,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

// clone returns a copy so callers never share the manager's internal state.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}
