package main

import (
	"context"
	"encoding/json"
	"fmt"

	"tailor/internal/artifacts"
	"tailor/internal/logging"
	"tailor/internal/requirements"
	"tailor/internal/upload"
)

// workspaceState is the cross-invocation snapshot of orchestrator state.
// Each CLI invocation is a fresh process, so everything the interactive
// pipeline accumulates in memory is persisted here, keyed by session.
type workspaceState struct {
	Document  *upload.Document          `json:"document,omitempty"`
	Input     requirements.Input        `json:"input"`
	Job       *requirements.JobData     `json:"job,omitempty"`
	Company   *requirements.CompanyData `json:"company,omitempty"`
	Plan      *artifacts.TailoringPlan  `json:"plan,omitempty"`
	Artifacts []artifacts.Artifact      `json:"artifacts,omitempty"`
}

func restoreWorkspace(ctx context.Context, a *app) error {
	current, err := a.sessions.Current(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	blob, err := a.store.LoadWorkspace(ctx, current.ID)
	if err != nil {
		return err
	}
	if blob == "" {
		return nil
	}

	var state workspaceState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return fmt.Errorf("decode workspace: %w", err)
	}

	a.uploads.Restore(state.Document)
	a.requirements.Restore(state.Input, state.Job, state.Company)
	a.pipeline.RestorePlan(state.Plan)
	if len(state.Artifacts) > 0 {
		a.writer.Record(state.Artifacts...)
	}
	a.logger.Debug("workspace restored",
		logging.String(logging.FieldSessionID, current.ID),
	)
	return nil
}

// saveWorkspace persists the orchestrator state after a mutating command.
// No session means nothing to key the snapshot on, which is fine.
func saveWorkspace(ctx context.Context, a *app) error {
	current, err := a.sessions.Current(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	state := workspaceState{
		Document:  a.uploads.Document(),
		Input:     a.requirements.Input(),
		Job:       a.requirements.Job(),
		Company:   a.requirements.Company(),
		Plan:      a.pipeline.Plan(),
		Artifacts: a.writer.Known(),
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode workspace: %w", err)
	}
	return a.store.SaveWorkspace(ctx, current.ID, string(blob))
}
