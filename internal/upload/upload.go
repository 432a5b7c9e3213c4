// Package upload manages CV selection and submission. Selection validates
// locally (PDF only, bounded size) and never touches the network; submission
// uploads the selected file and keeps it selected on failure so a retry
// needs no re-selection.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tailor/internal/gateway"
	"tailor/internal/logging"
)

// MaxDocumentSize is the local upload ceiling. Larger files are rejected
// before the gateway is involved.
const MaxDocumentSize = 10 << 20

// CVData is the structured resume shape the extractor returns.
type CVData struct {
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	Phone                string   `json:"phone"`
	Location             string   `json:"location,omitempty"`
	GitHubURL            string   `json:"github_url,omitempty"`
	LinkedInURL          string   `json:"linkedin_url,omitempty"`
	PortfolioURL         string   `json:"portfolio_url,omitempty"`
	Skills               []string `json:"skills"`
	Education            []string `json:"education"`
	Experience           []string `json:"experience"`
	Projects             []string `json:"projects"`
	LeadershipActivities []string `json:"leadership_activities,omitempty"`
}

// Document is the orchestrator's view of the selected CV.
type Document struct {
	Path               string
	Size               int64
	CVData             *CVData
	NeedsClarification bool
	Questions          []string
}

// Accepted reports whether the backend has parsed the document.
func (d *Document) Accepted() bool {
	return d != nil && d.CVData != nil
}

// Orchestrator owns the CV upload lifecycle for the active session. One
// submission may be in flight at a time.
type Orchestrator struct {
	gw     *gateway.Client
	logger *slog.Logger

	mu       sync.Mutex
	busy     bool
	document *Document
}

// New constructs the upload orchestrator.
func New(gw *gateway.Client, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		gw:     gw,
		logger: logging.NewComponentLogger(logger, "upload"),
	}
}

// SelectFile validates the file locally and stores it for submission.
// Rejection never reaches the gateway; acceptance does not upload.
func (o *Orchestrator) SelectFile(path string) (*Document, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: file path required", gateway.ErrValidation)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, fmt.Errorf("%w: only PDF documents are accepted", gateway.ErrValidation)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %v", gateway.ErrValidation, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", gateway.ErrValidation, path)
	}
	if info.Size() > MaxDocumentSize {
		return nil, fmt.Errorf("%w: file exceeds the %d MiB limit", gateway.ErrValidation, MaxDocumentSize>>20)
	}

	document := &Document{Path: path, Size: info.Size()}
	o.mu.Lock()
	o.document = document
	o.mu.Unlock()

	o.logger.Info("document selected",
		logging.String("path", path),
		logging.Int64("size", info.Size()),
	)
	copied := *document
	return &copied, nil
}

type uploadResponse struct {
	gateway.Envelope
	CVData             *CVData  `json:"cv_data"`
	NeedsClarification bool     `json:"needs_clarification"`
	Questions          []string `json:"questions"`
}

// Submit uploads the selected document. On failure the selection survives,
// so Submit can be retried without selecting the file again. Clarification
// questions from the backend are stored but never block the pipeline.
func (o *Orchestrator) Submit(ctx context.Context) (*Document, error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: an upload is already in progress", gateway.ErrValidation)
	}
	if o.document == nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: select a CV file first", gateway.ErrValidation)
	}
	path := o.document.Path
	o.busy = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", gateway.ErrValidation, path, err)
	}
	defer file.Close()

	part := gateway.MultipartFile{
		Field:    "file",
		Filename: filepath.Base(path),
		Reader:   file,
	}
	var resp uploadResponse
	if err := o.gw.PostMultipart(ctx, "/cv/upload", part, nil, &resp, gateway.TimeoutLong); err != nil {
		return nil, err
	}
	if !resp.Success || resp.CVData == nil {
		return nil, fmt.Errorf("%w: upload refused: %s", gateway.ErrParse, resp.FailureDetail())
	}

	o.mu.Lock()
	o.document.CVData = resp.CVData
	o.document.NeedsClarification = resp.NeedsClarification
	o.document.Questions = resp.Questions
	copied := *o.document
	o.mu.Unlock()

	o.logger.Info("document accepted",
		logging.Bool("needs_clarification", resp.NeedsClarification),
		logging.Int("questions", len(resp.Questions)),
	)
	return &copied, nil
}

// Busy reports whether a submission is currently in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Document returns the current selection, or nil when none.
func (o *Orchestrator) Document() *Document {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.document == nil {
		return nil
	}
	copied := *o.document
	return &copied
}

// Restore rehydrates a previously persisted selection, for CLI
// invocations that continue an earlier process's workspace.
func (o *Orchestrator) Restore(doc *Document) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if doc == nil {
		o.document = nil
		return
	}
	copied := *doc
	o.document = &copied
}

// Remove clears the selection, parsed data, and clarification state
// unconditionally.
func (o *Orchestrator) Remove() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.document = nil
}
