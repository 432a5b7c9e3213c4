package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tailor/internal/config"
	"tailor/internal/gateway"
	"tailor/internal/logging"
)

// MaxClipSize is the transcription upload ceiling.
const MaxClipSize = 25 << 20

// supportedFormats mirrors the backend's container allow-list. Anything
// else is rejected before the gateway is involved.
var supportedFormats = map[string]struct{}{
	".mp3":  {},
	".mp4":  {},
	".mpeg": {},
	".mpga": {},
	".m4a":  {},
	".wav":  {},
	".webm": {},
}

// TranscribeOptions tune a single transcription call.
type TranscribeOptions struct {
	// Translate routes the clip to the translation endpoint instead.
	Translate bool
	// Prompt optionally guides the model (names, spellings, context).
	Prompt string
	// Language optionally hints the spoken language (ISO 639 code).
	Language string
}

// TranscribeResult is the decoded transcription payload.
type TranscribeResult struct {
	Text     string           `json:"text"`
	Segments []map[string]any `json:"segments"`
	Words    []map[string]any `json:"words"`
}

// Transcriber sends encoded clips to the backend audio endpoints.
type Transcriber struct {
	gw     *gateway.Client
	cfg    config.Audio
	logger *slog.Logger
}

// NewTranscriber constructs a transcriber from the audio configuration.
func NewTranscriber(gw *gateway.Client, cfg *config.Config, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		gw:     gw,
		cfg:    cfg.Audio,
		logger: logging.NewComponentLogger(logger, "transcribe"),
	}
}

// ValidateClip checks the container extension and size ceiling locally.
func ValidateClip(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := supportedFormats[ext]; !ok {
		return fmt.Errorf("%w: %q is not a supported audio container", gateway.ErrUnsupportedFormat, ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: cannot read %s: %v", gateway.ErrValidation, path, err)
	}
	if info.Size() > MaxClipSize {
		return fmt.Errorf("%w: clip exceeds the %d MiB limit", gateway.ErrValidation, MaxClipSize>>20)
	}
	return nil
}

type transcriptionResponse struct {
	gateway.Envelope
	Text     string           `json:"text"`
	Segments []map[string]any `json:"segments"`
	Words    []map[string]any `json:"words"`
}

// Transcribe uploads a clip and returns the recognized text. Validation
// failures never reach the gateway.
func (t *Transcriber) Transcribe(ctx context.Context, path string, opts TranscribeOptions) (*TranscribeResult, error) {
	if err := ValidateClip(path); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", gateway.ErrValidation, path, err)
	}
	defer file.Close()

	endpoint := "/audio/transcribe"
	model := t.cfg.TranscribeModel
	if opts.Translate {
		endpoint = "/audio/translate"
		model = t.cfg.TranslateModel
	}

	fields := map[string]string{
		"model":           model,
		"response_format": "json",
	}
	if !opts.Translate {
		if language := firstNonEmpty(opts.Language, t.cfg.Language); language != "" {
			fields["language"] = language
		}
		if prompt := firstNonEmpty(opts.Prompt, t.cfg.Prompt); prompt != "" {
			fields["prompt"] = prompt
		}
	}

	part := gateway.MultipartFile{
		Field:    "file",
		Filename: filepath.Base(path),
		Reader:   file,
	}
	var resp transcriptionResponse
	if err := t.gw.PostMultipart(ctx, endpoint, part, fields, &resp, gateway.TimeoutLong); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: transcription refused: %s", gateway.ErrParse, resp.FailureDetail())
	}

	result := &TranscribeResult{
		Text:     strings.TrimRight(resp.Text, " \t\r\n"),
		Segments: resp.Segments,
		Words:    resp.Words,
	}
	t.logger.Info("clip transcribed",
		logging.String("endpoint", endpoint),
		logging.Int("characters", len(result.Text)),
	)
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
