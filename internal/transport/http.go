package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"AgentChat/internal/backend"
	"AgentChat/internal/session"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "AgentChat/internal/transport"

// ErrUnreachable wraps failures to get any HTTP reply from the backend
var ErrUnreachable = errors.New("backend unreachable")

// APIError is a non-2xx reply from the backend
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP error %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the orchestration backend's REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTracer sets the tracer used for request spans
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithMeter sets the meter used for request duration metrics
func WithMeter(m metric.Meter) Option {
	return func(c *Client) {
		if h, err := newDurationHistogram(m); err == nil {
			c.duration = h
		}
	}
}

// NewClient creates a backend client for baseURL, e.g. http://localhost:8000
func NewClient(baseURL string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.duration == nil {
		h, err := newDurationHistogram(otel.Meter(instrumentationName))
		if err != nil {
			return nil, fmt.Errorf("failed to create duration histogram: %w", err)
		}
		c.duration = h
	}

	logger.Info("created backend client", "url", c.baseURL)
	return c, nil
}

func newDurationHistogram(m metric.Meter) (metric.Float64Histogram, error) {
	return m.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// Ask sends a one-shot query and returns the tagged response content
func (c *Client) Ask(ctx context.Context, query, lang string) (session.Content, error) {
	var resp backend.AskResponse
	if err := c.postJSON(ctx, "backend.ask", "/api/ask", backend.AskRequest{Query: query, Lang: lang}, &resp); err != nil {
		return session.Content{}, err
	}
	return resp, nil
}

// Upload sends a document as multipart field "file" and returns the backend's message
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	var resp backend.UploadResponse
	if err := c.do(ctx, "backend.upload", http.MethodPost, "/api/upload", w.FormDataContentType(), &body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// StartChat starts a turn-based agent team conversation
func (c *Client) StartChat(ctx context.Context, cfg backend.TeamConfig) (backend.StartChatResponse, error) {
	var resp backend.StartChatResponse
	err := c.postJSON(ctx, "backend.chat_start", "/api/chat/start", cfg, &resp)
	return resp, err
}

// SendChat sends a user message into a team conversation
func (c *Client) SendChat(ctx context.Context, sessionID, message string) (backend.NewMessagesResponse, error) {
	var resp backend.NewMessagesResponse
	path := fmt.Sprintf("/api/chat/%s/send", url.PathEscape(sessionID))
	err := c.postJSON(ctx, "backend.chat_send", path, backend.SendChatRequest{Message: message}, &resp)
	return resp, err
}

// StepChat advances a team conversation by one turn
func (c *Client) StepChat(ctx context.Context, sessionID string) (backend.NewMessagesResponse, error) {
	var resp backend.NewMessagesResponse
	path := fmt.Sprintf("/api/chat/%s/step", url.PathEscape(sessionID))
	err := c.postJSON(ctx, "backend.chat_step", path, nil, &resp)
	return resp, err
}

// SaveConfig persists a team configuration on the backend
func (c *Client) SaveConfig(ctx context.Context, cfg backend.TeamConfig) (backend.MessageResponse, error) {
	var resp backend.MessageResponse
	err := c.postJSON(ctx, "backend.save_config", "/api/save-config/", cfg, &resp)
	return resp, err
}

// SaveSupervisorProfile persists the supervisor profile on the backend
func (c *Client) SaveSupervisorProfile(ctx context.Context, p backend.SupervisorProfileRequest) (backend.MessageResponse, error) {
	var resp backend.MessageResponse
	err := c.postJSON(ctx, "backend.save_supervisor", "/api/save-supervisor-profile/", p, &resp)
	return resp, err
}

// RunSavedConfig runs the team configuration last saved on the backend
func (c *Client) RunSavedConfig(ctx context.Context) (backend.RunResponse, error) {
	var resp backend.RunResponse
	err := c.postJSON(ctx, "backend.run_saved", "/api/run-saved-config/", nil, &resp)
	return resp, err
}

// RunSupervisorProfile runs the saved supervisor profile alone
func (c *Client) RunSupervisorProfile(ctx context.Context) (backend.RunResponse, error) {
	var resp backend.RunResponse
	err := c.postJSON(ctx, "backend.run_supervisor", "/api/run-supervisor-profile/", nil, &resp)
	return resp, err
}

// RunCombinedConfig runs the saved supervisor together with the saved assistants
func (c *Client) RunCombinedConfig(ctx context.Context) (backend.RunResponse, error) {
	var resp backend.RunResponse
	err := c.postJSON(ctx, "backend.run_combined", "/api/run-combined-config/", nil, &resp)
	return resp, err
}

// ExampleSpec fetches an example team configuration
func (c *Client) ExampleSpec(ctx context.Context) (backend.TeamConfig, error) {
	var resp backend.TeamConfig
	err := c.do(ctx, "backend.example_spec", http.MethodGet, "/api/example-spec", "", nil, &resp)
	return resp, err
}

// RunAgent runs a list of resolved tasks
func (c *Client) RunAgent(ctx context.Context, tasks []backend.RunTask) (backend.RunAgentResponse, error) {
	var resp backend.RunAgentResponse
	err := c.postJSON(ctx, "backend.run_agent", "/api/run-agent", backend.RunAgentRequest{Tasks: tasks}, &resp)
	return resp, err
}

func (c *Client) postJSON(ctx context.Context, span, path string, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, span, http.MethodPost, path, contentType, reader, out)
}

// do sends one request, records its span and duration, and decodes a 2xx body into out
func (c *Client) do(ctx context.Context, spanName, method, path, contentType string, body io.Reader, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	requestID := uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("failed to send request: %w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("http.path", path), attribute.Int("http.status_code", resp.StatusCode)))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
		c.logger.Warn("backend returned error", "path", path, "request_id", requestID, "status", resp.StatusCode, "detail", apiErr.Detail)
		return apiErr
	}

	c.logger.Debug("backend request completed", "path", path, "request_id", requestID, "status", resp.StatusCode)
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func errorDetail(body []byte) string {
	var er backend.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Detail != "" {
		return er.Detail
	}
	return strings.TrimSpace(string(body))
}

// IsAPIError reports whether err is a backend reply rather than a connection failure
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
