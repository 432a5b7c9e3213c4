// Package pipeline is the top-level composition that sequences document
// collection, requirement extraction, and alignment analysis into a
// forward-moving workflow, then unlocks chat. It derives readiness from the
// other orchestrators and makes no network calls of its own beyond
// delegating to them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tailor/internal/artifacts"
	"tailor/internal/gateway"
	"tailor/internal/logging"
	"tailor/internal/requirements"
	"tailor/internal/session"
	"tailor/internal/upload"
)

// settleDelay is the fixed pause before entering chat_ready, so the stage
// display does not flicker when upload and extraction finish back to back.
const settleDelay = 400 * time.Millisecond

// Controller sequences the pipeline stages.
type Controller struct {
	sessions *session.Manager
	uploads  *upload.Orchestrator
	reqs     *requirements.Orchestrator
	writer   *artifacts.Service
	logger   *slog.Logger

	settle time.Duration

	mu      sync.Mutex
	running bool
	plan    *artifacts.TailoringPlan
}

// Option customizes the controller.
type Option func(*Controller)

// WithSettleDelay overrides the pre-chat settle pause (used in tests).
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.settle = d
	}
}

// NewController constructs the pipeline controller.
func NewController(sessions *session.Manager, uploads *upload.Orchestrator, reqs *requirements.Orchestrator, writer *artifacts.Service, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		sessions: sessions,
		uploads:  uploads,
		reqs:     reqs,
		writer:   writer,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		settle:   settleDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CanAdvance reports whether analysis may start: a document is selected,
// no upload is in flight, and requirements are either skipped, already
// parsed, or backed by valid input. Skipping requirements never exempts
// the document step.
func (c *Controller) CanAdvance(ctx context.Context) (bool, error) {
	if c.uploads.Document() == nil || c.uploads.Busy() {
		return false, nil
	}
	current, err := c.sessions.Current(ctx)
	if err != nil {
		return false, err
	}
	skipped := current != nil && current.RequirementsSkipped
	if skipped {
		return true, nil
	}
	return c.reqs.Job() != nil || c.reqs.Input().Valid(), nil
}

// SkipRequirements removes the requirements step from the sequence and
// drops any pending input.
func (c *Controller) SkipRequirements(ctx context.Context) error {
	if _, _, err := c.sessions.Initialize(ctx); err != nil {
		return err
	}
	if err := c.sessions.SetRequirementsSkipped(ctx, true); err != nil {
		return err
	}
	c.reqs.Clear()
	c.logger.Info("requirements step skipped")
	return nil
}

// RestorePlan rehydrates a previously persisted tailoring plan.
func (c *Controller) RestorePlan(plan *artifacts.TailoringPlan) {
	c.mu.Lock()
	c.plan = plan
	c.mu.Unlock()
}

// Plan returns the tailoring plan from the last completed analysis, or nil.
func (c *Controller) Plan() *artifacts.TailoringPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}

// StartAnalysis runs the remaining pipeline steps in order: submit the
// document if not yet accepted, submit requirements unless skipped, run the
// alignment analysis, then advance to chat_ready after the settle pause.
// One run may be active at a time.
func (c *Controller) StartAnalysis(ctx context.Context) (*artifacts.TailoringPlan, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: analysis is already running", gateway.ErrValidation)
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	ok, err := c.CanAdvance(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: select a CV and provide job requirements (or skip them) first", gateway.ErrValidation)
	}

	if _, _, err := c.sessions.Initialize(ctx); err != nil {
		return nil, err
	}

	document := c.uploads.Document()
	if !document.Accepted() {
		submitted, err := c.uploads.Submit(ctx)
		if err != nil {
			return nil, err
		}
		document = submitted
		if err := c.sessions.MarkDocument(ctx, submitted.NeedsClarification); err != nil {
			return nil, err
		}
	}

	current, err := c.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}
	skipped := current != nil && current.RequirementsSkipped

	job := c.reqs.Job()
	if !skipped && job == nil {
		job, err = c.reqs.Submit(ctx)
		if err != nil {
			return nil, err
		}
		// Best effort: a submission that cannot be reflected on the
		// session is still a successful submission.
		if err := c.sessions.MarkRequirements(ctx, true); err != nil {
			c.logger.Warn("requirements not recorded on session", logging.Error(err))
		}
	}

	if err := c.sessions.SetStage(ctx, session.StageAnalyzing); err != nil {
		return nil, err
	}

	var plan *artifacts.TailoringPlan
	if !skipped {
		plan, err = c.writer.AnalyzeAlignment(ctx, document.CVData, job)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.plan = plan
		c.mu.Unlock()
	}

	select {
	case <-time.After(c.settle):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := c.sessions.SetStage(ctx, session.StageChatReady); err != nil {
		return nil, err
	}
	c.logger.Info("pipeline ready for chat",
		logging.Bool("requirements_skipped", skipped),
	)
	return plan, nil
}
