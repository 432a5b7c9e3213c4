package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tailor/internal/config"
	"tailor/internal/logging"
)

const userAgent = "tailor/0.1.0"

// Envelope carries the fields every backend response shares. Response types
// embed it so orchestrators can check Success uniformly.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// FailureDetail returns the most specific error text in the envelope.
func (e Envelope) FailureDetail() string {
	for _, candidate := range []string{e.Detail, e.Error, e.Message} {
		if strings.TrimSpace(candidate) != "" {
			return strings.TrimSpace(candidate)
		}
	}
	return ""
}

// Client is the transport gateway. All outbound calls flow through it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	requestTimeout  time.Duration
	longCallTimeout time.Duration
}

// Option customizes the gateway client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (used in tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs a gateway client from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	client := &Client{
		baseURL:         strings.TrimRight(cfg.Backend.BaseURL, "/"),
		httpClient:      &http.Client{},
		logger:          logging.NewComponentLogger(logger, "gateway"),
		requestTimeout:  time.Duration(cfg.Backend.RequestTimeout) * time.Second,
		longCallTimeout: time.Duration(cfg.Backend.LongCallTimeout) * time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Timeout selects between the short and long per-call deadlines.
type Timeout int

const (
	// TimeoutDefault applies to simple calls.
	TimeoutDefault Timeout = iota
	// TimeoutLong applies to uploads and chat turns.
	TimeoutLong
)

func (c *Client) deadline(kind Timeout) time.Duration {
	if kind == TimeoutLong {
		return c.longCallTimeout
	}
	return c.requestTimeout
}

// PostJSON sends a JSON payload and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, path string, payload any, out any, kind Timeout) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.deadline(kind))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, out)
}

// MultipartFile describes the file part of a multipart request.
type MultipartFile struct {
	Field    string
	Filename string
	Reader   io.Reader
}

// PostMultipart sends a multipart form with one file part plus string fields
// and decodes the JSON response into out.
func (c *Client) PostMultipart(ctx context.Context, path string, file MultipartFile, fields map[string]string, out any, kind Timeout) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(file.Field, file.Filename)
	if err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file.Reader); err != nil {
		return fmt.Errorf("read upload payload: %w", err)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write multipart field %q: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.deadline(kind))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req, path, out)
}

// Download fetches a binary resource and streams it into w.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, c.longCallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return c.httpError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

// Delete issues a DELETE and decodes the JSON response into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, path, out)
}

// GetJSON fetches a JSON resource into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, path, out)
}

func (c *Client) endpoint(path string) string {
	joined, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	return joined
}

func (c *Client) do(req *http.Request, path string, out any) error {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		classified := classify(err)
		c.logger.Debug("request failed",
			logging.String("path", path),
			logging.Duration("latency", latency),
			logging.Error(classified),
		)
		return classified
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency),
	)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return c.httpError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}

// httpError decodes the shared error body shape {success, error|message, detail?}.
func (c *Client) httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var envelope Envelope
	detail := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		detail = envelope.FailureDetail()
	}
	if detail == "" {
		detail = strings.TrimSpace(string(body))
		if len(detail) > 512 {
			detail = detail[:512]
		}
	}
	return &HTTPError{Status: resp.StatusCode, Detail: detail}
}
