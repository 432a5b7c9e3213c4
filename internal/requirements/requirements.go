// Package requirements extracts structured job requirements from a posting
// URL or pasted text. Input validity is derived locally on every change;
// submission picks the URL path when both interpretations look valid.
package requirements

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"tailor/internal/bus"
	"tailor/internal/gateway"
	"tailor/internal/logging"
)

const minTextLength = 50

// Input is the raw user input plus the two independent validity flags.
type Input struct {
	Raw           string
	LooksLikeURL  bool
	LooksLikeText bool
}

// Valid reports whether either submission path is open.
func (in Input) Valid() bool {
	return in.LooksLikeURL || in.LooksLikeText
}

// JobData is the structured requirements shape returned by the extractor.
type JobData struct {
	JobTitle         string   `json:"job_title"`
	JobLevel         string   `json:"job_level"`
	RequiredSkills   []string `json:"required_skills"`
	PreferredSkills  []string `json:"preferred_skills,omitempty"`
	YearsExperience  *int     `json:"years_experience,omitempty"`
	EmploymentType   string   `json:"employment_type"`
	Location         string   `json:"location"`
	Responsibilities []string `json:"responsibilities"`
	Qualifications   []string `json:"qualifications,omitempty"`
	KeyRequirements  []string `json:"key_requirements"`
}

// CompanyData is the structured company profile from the research endpoint.
type CompanyData struct {
	CompanyName      string   `json:"company_name"`
	Industry         string   `json:"industry"`
	CompanySize      string   `json:"company_size,omitempty"`
	MissionStatement string   `json:"mission_statement,omitempty"`
	CoreValues       []string `json:"core_values"`
	RecentNews       []string `json:"recent_news,omitempty"`
	CompanyCulture   string   `json:"company_culture"`
	ProductsServices []string `json:"products_services,omitempty"`
}

// Orchestrator manages requirement extraction for the active session. One
// submission may be in flight at a time; a concurrent call fails locally.
type Orchestrator struct {
	gw       *gateway.Client
	eventBus *bus.Bus
	logger   *slog.Logger

	mu      sync.Mutex
	busy    bool
	input   Input
	job     *JobData
	company *CompanyData
}

// New constructs the requirement-extraction orchestrator.
func New(gw *gateway.Client, eventBus *bus.Bus, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		gw:       gw,
		eventBus: eventBus,
		logger:   logging.NewComponentLogger(logger, "requirements"),
	}
}

// SetRawInput stores the raw input and recomputes both validity flags.
// No transport call happens here.
func (o *Orchestrator) SetRawInput(raw string) Input {
	input := Input{
		Raw:           raw,
		LooksLikeURL:  looksLikeURL(raw),
		LooksLikeText: len(strings.TrimSpace(raw)) >= minTextLength,
	}
	o.mu.Lock()
	o.input = input
	o.mu.Unlock()
	return input
}

// Input returns the current raw input and flags.
func (o *Orchestrator) Input() Input {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.input
}

// Job returns the parsed requirements from the last successful submission,
// or nil.
func (o *Orchestrator) Job() *JobData {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.job
}

// Company returns the last researched company profile, or nil.
func (o *Orchestrator) Company() *CompanyData {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.company
}

type extractionResponse struct {
	gateway.Envelope
	JobData *JobData `json:"job_data"`
}

type researchResponse struct {
	gateway.Envelope
	CompanyData *CompanyData `json:"company_data"`
}

// Submit runs extraction over whichever path the input qualifies for, URL
// taking priority when both look valid. Invalid input fails locally and
// never reaches the gateway.
func (o *Orchestrator) Submit(ctx context.Context) (*JobData, error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: a submission is already in progress", gateway.ErrValidation)
	}
	input := o.input
	if !input.Valid() {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: enter a job posting URL or at least %d characters of description", gateway.ErrValidation, minTextLength)
	}
	o.busy = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	var resp extractionResponse
	var source string
	var err error
	if input.LooksLikeURL {
		source = "url"
		payload := struct {
			URLs []string `json:"urls"`
		}{URLs: []string{strings.TrimSpace(input.Raw)}}
		err = o.gw.PostJSON(ctx, "/job/extract/url", payload, &resp, gateway.TimeoutDefault)
	} else {
		source = "text"
		payload := struct {
			JobText string `json:"job_text"`
		}{JobText: input.Raw}
		err = o.gw.PostJSON(ctx, "/job/extract/text", payload, &resp, gateway.TimeoutDefault)
	}
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.JobData == nil {
		return nil, fmt.Errorf("%w: extraction refused: %s", gateway.ErrParse, resp.FailureDetail())
	}

	o.mu.Lock()
	o.job = resp.JobData
	o.mu.Unlock()

	o.logger.Info("requirements extracted",
		logging.String("source", source),
		logging.String("job_title", resp.JobData.JobTitle),
	)
	// Fire-and-forget: a missed notification never fails the submission.
	if o.eventBus != nil {
		o.eventBus.Publish(bus.TopicRequirementsSubmitted, bus.RequirementsSubmitted{Source: source})
	}
	return resp.JobData, nil
}

// Research fetches a structured company profile for cover-letter generation.
func (o *Orchestrator) Research(ctx context.Context, companyName string) (*CompanyData, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, fmt.Errorf("%w: company name required", gateway.ErrValidation)
	}

	payload := struct {
		CompanyName string `json:"company_name"`
	}{CompanyName: companyName}
	var resp researchResponse
	if err := o.gw.PostJSON(ctx, "/job/research-company", payload, &resp, gateway.TimeoutDefault); err != nil {
		return nil, err
	}
	if !resp.Success || resp.CompanyData == nil {
		return nil, fmt.Errorf("%w: research refused: %s", gateway.ErrParse, resp.FailureDetail())
	}

	o.mu.Lock()
	o.company = resp.CompanyData
	o.mu.Unlock()
	return resp.CompanyData, nil
}

// Restore rehydrates previously persisted extraction state.
func (o *Orchestrator) Restore(input Input, job *JobData, company *CompanyData) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.input = input
	o.job = job
	o.company = company
}

// Clear drops the raw input and any parsed data, for the skip branch and
// for reset.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.input = Input{}
	o.job = nil
	o.company = nil
}

// looksLikeURL accepts http/https URLs whose host is either dotted or
// localhost. Anything else is treated as descriptive text.
func looksLikeURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	host := parsed.Hostname()
	if host == "" {
		return false
	}
	return strings.Contains(host, ".") || host == "localhost"
}
