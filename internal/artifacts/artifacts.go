// Package artifacts tracks the downloadable files the backend generates
// (tailored CVs, cover letters), drives the writer generation endpoints,
// and retrieves finished files into the local artifact directory.
package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"tailor/internal/config"
	"tailor/internal/gateway"
	"tailor/internal/logging"
	"tailor/internal/requirements"
	"tailor/internal/upload"
)

// Artifact is one downloadable file announced by the backend.
type Artifact struct {
	Filename      string `json:"filename"`
	Kind          string `json:"file_type"`
	RetrievalPath string `json:"download_url"`
}

// TailoringPlan is the alignment analysis result used to drive generation.
type TailoringPlan struct {
	MatchingExperiences   []string `json:"matching_experiences"`
	MatchingSkills        []string `json:"matching_skills"`
	RelevantProjects      []string `json:"relevant_projects"`
	KeywordsToIncorporate []string `json:"keywords_to_incorporate"`
	ReorderingSuggestions string   `json:"reordering_suggestions"`
	EmphasisPoints        []string `json:"emphasis_points"`
	Reasoning             string   `json:"reasoning"`
}

// Service is the writer-agent client plus the artifact registry.
type Service struct {
	gw          *gateway.Client
	artifactDir string
	logger      *slog.Logger

	mu    sync.Mutex
	known []Artifact
}

// NewService constructs the artifact service.
func NewService(gw *gateway.Client, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		gw:          gw,
		artifactDir: cfg.Paths.ArtifactDir,
		logger:      logging.NewComponentLogger(logger, "artifacts"),
	}
}

type alignmentResponse struct {
	gateway.Envelope
	TailoringPlan *TailoringPlan `json:"tailoring_plan"`
}

// AnalyzeAlignment runs the CV/job alignment analysis and returns the plan.
func (s *Service) AnalyzeAlignment(ctx context.Context, cv *upload.CVData, job *requirements.JobData) (*TailoringPlan, error) {
	if cv == nil {
		return nil, fmt.Errorf("%w: no parsed CV data", gateway.ErrValidation)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: no parsed job requirements", gateway.ErrValidation)
	}

	payload := struct {
		CVData  *upload.CVData        `json:"cv_data"`
		JobData *requirements.JobData `json:"job_data"`
	}{CVData: cv, JobData: job}
	var resp alignmentResponse
	if err := s.gw.PostJSON(ctx, "/writer/analyze-alignment", payload, &resp, gateway.TimeoutDefault); err != nil {
		return nil, err
	}
	if !resp.Success || resp.TailoringPlan == nil {
		return nil, fmt.Errorf("%w: alignment analysis refused: %s", gateway.ErrParse, resp.FailureDetail())
	}
	return resp.TailoringPlan, nil
}

type generationResponse struct {
	gateway.Envelope
	PDFPath string `json:"pdf_path"`
}

// GenerateCV asks the writer for a tailored CV PDF and registers the result.
func (s *Service) GenerateCV(ctx context.Context, cv *upload.CVData, plan *TailoringPlan, outputFilename string) (*Artifact, error) {
	if err := validateOutputFilename(outputFilename); err != nil {
		return nil, err
	}
	if cv == nil || plan == nil {
		return nil, fmt.Errorf("%w: generation requires parsed CV data and a tailoring plan", gateway.ErrValidation)
	}

	payload := struct {
		CVData         *upload.CVData `json:"cv_data"`
		TailoringPlan  *TailoringPlan `json:"tailoring_plan"`
		OutputFilename string         `json:"output_filename"`
	}{CVData: cv, TailoringPlan: plan, OutputFilename: outputFilename}

	return s.generate(ctx, "/writer/generate-cv", "cv", outputFilename, payload)
}

// GenerateCoverLetter asks the writer for a cover letter PDF. Company data
// is optional enrichment from prior research.
func (s *Service) GenerateCoverLetter(ctx context.Context, cv *upload.CVData, job *requirements.JobData, company *requirements.CompanyData, outputFilename, recipient string) (*Artifact, error) {
	if err := validateOutputFilename(outputFilename); err != nil {
		return nil, err
	}
	if cv == nil || job == nil {
		return nil, fmt.Errorf("%w: generation requires parsed CV data and job requirements", gateway.ErrValidation)
	}
	if strings.TrimSpace(recipient) == "" {
		recipient = "Hiring Manager"
	}

	payload := struct {
		CVData         *upload.CVData            `json:"cv_data"`
		JobData        *requirements.JobData     `json:"job_data"`
		CompanyData    *requirements.CompanyData `json:"company_data,omitempty"`
		OutputFilename string                    `json:"output_filename"`
		RecipientInfo  string                    `json:"recipient_info"`
	}{CVData: cv, JobData: job, CompanyData: company, OutputFilename: outputFilename, RecipientInfo: recipient}

	return s.generate(ctx, "/writer/generate-cover-letter", "cover_letter", outputFilename, payload)
}

func (s *Service) generate(ctx context.Context, endpoint, kind, outputFilename string, payload any) (*Artifact, error) {
	var resp generationResponse
	if err := s.gw.PostJSON(ctx, endpoint, payload, &resp, gateway.TimeoutLong); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: generation refused: %s", gateway.ErrParse, resp.FailureDetail())
	}

	filename := outputFilename
	if resp.PDFPath != "" {
		filename = path.Base(resp.PDFPath)
	}
	artifact := Artifact{
		Filename:      filename,
		Kind:          kind,
		RetrievalPath: "/files/" + filename,
	}
	s.Record(artifact)
	s.logger.Info("artifact generated",
		logging.String("filename", artifact.Filename),
		logging.String("kind", artifact.Kind),
	)
	return &artifact, nil
}

// Record registers artifacts announced by the backend, deduplicated by
// filename with the newest metadata winning.
func (s *Service) Record(artifacts ...Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, artifact := range artifacts {
		if artifact.Filename == "" {
			continue
		}
		if artifact.RetrievalPath == "" {
			artifact.RetrievalPath = "/files/" + artifact.Filename
		}
		replaced := false
		for i := range s.known {
			if s.known[i].Filename == artifact.Filename {
				s.known[i] = artifact
				replaced = true
				break
			}
		}
		if !replaced {
			s.known = append(s.known, artifact)
		}
	}
}

// Known returns the registered artifacts in announcement order.
func (s *Service) Known() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Artifact, len(s.known))
	copy(out, s.known)
	return out
}

// Fetch downloads an artifact into the artifact directory and returns the
// local path. The filename is sanitized to its base name.
func (s *Service) Fetch(ctx context.Context, filename string) (string, error) {
	filename = path.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return "", fmt.Errorf("%w: artifact filename required", gateway.ErrValidation)
	}

	if err := os.MkdirAll(s.artifactDir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	target := filepath.Join(s.artifactDir, filename)
	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}

	if err := s.gw.Download(ctx, "/files/"+filename, file); err != nil {
		file.Close()
		_ = os.Remove(target)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("finalize artifact file: %w", err)
	}

	s.logger.Info("artifact fetched",
		logging.String("filename", filename),
		logging.String("path", target),
	)
	return target, nil
}

// Downloaded lists artifact files already present locally.
func (s *Service) Downloaded() ([]string, error) {
	entries, err := os.ReadDir(s.artifactDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func validateOutputFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: output filename required", gateway.ErrValidation)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return fmt.Errorf("%w: output filename must end in .pdf", gateway.ErrValidation)
	}
	return nil
}
