package cromwell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"falcon/internal/config"
	"falcon/internal/logging"
	"falcon/internal/services"
)

const (
	defaultTimeout  = 60 * time.Second
	maxResponseSize = 32 << 20
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config describes how to reach the engine.
type Config struct {
	// BaseURL is the workflows API root, e.g. https://host/api/workflows/v1.
	BaseURL string
	Timeout time.Duration
	Auth    Authenticator
}

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for engine calls.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit caps the aggregate engine request rate of this client.
// A non-positive value leaves requests unthrottled.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := max(1, int(math.Ceil(perSecond)))
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger attaches a logger for token refresh and request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "cromwell")
	}
}

// Client issues workflow queries and hold releases against Cromwell.
// It is safe for concurrent use by the handler and all igniters.
type Client struct {
	baseURL    string
	auth       Authenticator
	httpClient HTTPDoer
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient builds a client from an explicit Config.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "cromwell", "client", "base url is required", nil)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cromwell", "client", "invalid base url", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	auth := cfg.Auth
	if auth == nil {
		auth = BasicAuth{}
	}

	c := &Client{
		baseURL:    base,
		auth:       auth,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(nil, "cromwell"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: timeout}
	}
	return c, nil
}

// NewFromConfig builds a client from the engine section of the application config.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "cromwell", "client", "config is nil", nil)
	}
	var auth Authenticator = BasicAuth{Username: cfg.Engine.Username, Password: cfg.Engine.Password}
	if cfg.Engine.UsesServiceAccount() {
		key, err := cfg.Engine.ServiceAccountKeyJSON()
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "cromwell", "client", "load service account key", err)
		}
		tokenAuth, err := NewServiceAccountAuth(key)
		if err != nil {
			return nil, err
		}
		auth = tokenAuth
	}
	base := []Option{WithRateLimit(cfg.Engine.MaxRequestsPerSecond)}
	return NewClient(Config{
		BaseURL: cfg.Engine.URL,
		Timeout: cfg.Engine.Timeout(),
		Auth:    auth,
	}, append(base, opts...)...)
}

// BaseURL returns the workflows API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Query returns the workflows matching filter in engine order.
func (c *Client) Query(ctx context.Context, filter Filter) ([]WorkflowRecord, error) {
	payload, err := json.Marshal(filter.queryBody())
	if err != nil {
		return nil, services.Wrap(services.ErrEngineProtocol, "cromwell", "query", "encode filter", err)
	}

	resp, err := c.call(ctx, "query", http.MethodPost, "/query", payload, isQueryAuthFailure)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return decodeQueryResults(resp.Body)
	case isQueryAuthFailure(resp.StatusCode):
		return nil, services.Wrap(services.ErrEngineAuth, "cromwell", "query", "credentials rejected", resp.statusError())
	case isUnavailableStatus(resp.StatusCode):
		return nil, services.Wrap(services.ErrEngineUnavailable, "cromwell", "query", "engine error", resp.statusError())
	default:
		return nil, services.Wrap(services.ErrEngineProtocol, "cromwell", "query", "unexpected response", resp.statusError())
	}
}

// Start releases the hold on workflow id so the engine begins running it.
// A workflow that is no longer on hold, or unknown to the engine, yields an
// error matching services.ErrEngineRejected.
func (c *Client) Start(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return services.Wrap(services.ErrEngineRejected, "cromwell", "start", "empty workflow id", nil)
	}

	resp, err := c.call(ctx, "start", http.MethodPost, "/"+url.PathEscape(id)+"/releaseHold", nil, isStartAuthFailure)
	if err != nil {
		return err
	}

	switch code := resp.StatusCode; {
	case code == http.StatusOK || code == http.StatusCreated:
		if msg, failed := releaseFailureMessage(resp.Body); failed {
			return services.Wrap(services.ErrEngineRejected, "cromwell", "start", msg, nil)
		}
		return nil
	case isStartAuthFailure(code):
		return services.Wrap(services.ErrEngineAuth, "cromwell", "start", "credentials rejected", resp.statusError())
	case code == http.StatusBadRequest || code == http.StatusForbidden || code == http.StatusNotFound:
		return services.Wrap(services.ErrEngineRejected, "cromwell", "start", "workflow not startable", resp.statusError())
	case isUnavailableStatus(code):
		return services.Wrap(services.ErrEngineUnavailable, "cromwell", "start", "engine error", resp.statusError())
	default:
		return services.Wrap(services.ErrEngineProtocol, "cromwell", "start", "unexpected response", resp.statusError())
	}
}

type response struct {
	StatusCode int
	Body       []byte
}

func (r *response) statusError() error {
	return &StatusError{StatusCode: r.StatusCode, Body: strings.TrimSpace(string(r.Body))}
}

// StatusError carries a non-success engine response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	if body == "" {
		return fmt.Sprintf("cromwell request: http %d", e.StatusCode)
	}
	return fmt.Sprintf("cromwell request: http %d: %s", e.StatusCode, body)
}

// call sends one request. When the engine rejects the credentials it asks the
// authenticator for fresh ones and resends exactly once.
func (c *Client) call(ctx context.Context, op, method, path string, payload []byte, authFailure func(int) bool) (*response, error) {
	resp, err := c.send(ctx, op, method, path, payload)
	if err == nil && !authFailure(resp.StatusCode) {
		return resp, nil
	}
	if err != nil && !errors.Is(err, services.ErrEngineAuth) {
		return nil, err
	}

	refreshed, refreshErr := c.auth.Refresh(ctx)
	if refreshErr != nil {
		return nil, services.Wrap(services.ErrEngineAuth, "cromwell", op, "refresh credentials", refreshErr)
	}
	if !refreshed {
		return resp, err
	}
	c.logger.Info("engine credentials refreshed",
		logging.String(logging.FieldEventType, "engine_token_refreshed"),
		logging.String("operation", op),
	)
	return c.send(ctx, op, method, path, payload)
}

func (c *Client) send(ctx context.Context, op, method, path string, payload []byte) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, services.Wrap(services.ErrEngineUnavailable, "cromwell", op, "rate limit wait", err)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, services.Wrap(services.ErrEngineProtocol, "cromwell", op, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.auth.Apply(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrEngineUnavailable, "cromwell", op, transportDetail(err), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, services.Wrap(services.ErrEngineUnavailable, "cromwell", op, "read response", err)
	}
	return &response{StatusCode: resp.StatusCode, Body: data}, nil
}

func transportDetail(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return "request timed out"
	}
	return "request failed"
}

func isQueryAuthFailure(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// Cromwell answers 403 on releaseHold for workflows that are not on hold, so
// only 401 means bad credentials there.
func isStartAuthFailure(code int) bool {
	return code == http.StatusUnauthorized
}

func isUnavailableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}

type queryResponse struct {
	Results           []queryResult `json:"results"`
	TotalResultsCount *int          `json:"totalResultsCount"`
}

type queryResult struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Status     string            `json:"status"`
	Submission string            `json:"submission"`
	Labels     map[string]string `json:"labels"`
}

func decodeQueryResults(body []byte) ([]WorkflowRecord, error) {
	var payload queryResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, services.Wrap(services.ErrEngineProtocol, "cromwell", "query", "decode response", err)
	}
	if payload.Results == nil && payload.TotalResultsCount == nil {
		return nil, services.Wrap(services.ErrEngineProtocol, "cromwell", "query", "response has no results field", nil)
	}

	records := make([]WorkflowRecord, 0, len(payload.Results))
	for i, result := range payload.Results {
		id := strings.TrimSpace(result.ID)
		if id == "" {
			return nil, services.Wrap(services.ErrEngineProtocol, "cromwell", "query", fmt.Sprintf("result %d has no id", i), nil)
		}
		record := WorkflowRecord{
			ID:     id,
			Name:   result.Name,
			Status: Status(result.Status),
			Labels: result.Labels,
		}
		if ts, err := time.Parse(time.RFC3339Nano, result.Submission); err == nil {
			record.Submission = ts
		}
		records = append(records, record)
	}
	return records, nil
}

// releaseFailureMessage detects a 200 response whose body still reports a
// failed release, such as a workflow that is not in "On Hold" state.
func releaseFailureMessage(body []byte) (string, bool) {
	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &payload) != nil {
		return "", false
	}
	switch strings.ToLower(payload.Status) {
	case "error", "fail", "failed":
		msg := strings.TrimSpace(payload.Message)
		if msg == "" {
			msg = "release refused"
		}
		return msg, true
	}
	return "", false
}
