package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/resilience"
	"github.com/kbukum/pipekit/sandbox"
)

const maxResponseBytes = 32 << 20

// HTTPPlugin calls tools exposed at POST {endpoint}/tools/{tool_id}.
// Connection failures are retried; repeated failures open a breaker.
type HTTPPlugin struct {
	id       string
	endpoint string
	client   *http.Client
	retry    resilience.RetryConfig
	breaker  *resilience.Breaker
}

// NewHTTPPlugin creates an HTTP-backed plugin.
func NewHTTPPlugin(id, endpoint string, cfg Config) *HTTPPlugin {
	cfg.ApplyDefaults()
	log := logger.WithComponent("plugin.http")

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryAttempts
	retry.RetryIf = isConnectionError

	return &HTTPPlugin{
		id:       id,
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.RequestTimeout(),
		},
		retry: retry,
		breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Name:        id,
			MaxFailures: cfg.BreakerFailures,
			Cooldown:    cfg.BreakerCooldown,
			OnStateChange: func(name string, from, to resilience.State) {
				log.Warn("plugin breaker state changed", logger.Fields(
					logger.FieldPluginID, name, "from", from.String(), "to", to.String()))
			},
		}),
	}
}

// ID returns the plugin id.
func (p *HTTPPlugin) ID() string { return p.id }

// RunTool posts payload as JSON and decodes a JSON object response.
func (p *HTTPPlugin) RunTool(ctx context.Context, toolID string, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload for %s/%s: %w", p.id, toolID, sandbox.ErrInvalidInput)
	}

	var (
		out     map[string]any
		callErr error
	)
	err = p.breaker.Execute(func() error {
		out, callErr = resilience.Retry(ctx, p.retry, func() (map[string]any, error) {
			return p.post(ctx, toolID, body)
		})
		return breakerOutcome(callErr)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("plugin %s unavailable: %w: %w", p.id, err, sandbox.ErrMissingDependency)
	}
	if callErr != nil {
		var ce *clientError
		if errors.As(callErr, &ce) {
			return nil, ce.err
		}
		return nil, callErr
	}
	return out, nil
}

func (p *HTTPPlugin) post(ctx context.Context, toolID string, body []byte) (map[string]any, error) {
	u := p.endpoint + "/tools/" + url.PathEscape(toolID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", p.id, sandbox.ErrMissingDependency)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &connectionError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response from %s/%s: %w", p.id, toolID, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("plugin %s/%s: HTTP %d: %s: %w", p.id, toolID, resp.StatusCode, snippet(data), sandbox.ErrToolRuntime)
	case resp.StatusCode >= 400:
		return nil, &clientError{err: fmt.Errorf("plugin %s/%s: HTTP %d: %s: %w", p.id, toolID, resp.StatusCode, snippet(data), sandbox.ErrInvalidInput)}
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &clientError{err: fmt.Errorf("plugin %s/%s: malformed response: %v", p.id, toolID, err)}
	}
	return out, nil
}

// connectionError marks a transport failure, the only retried kind.
type connectionError struct{ err error }

func (e *connectionError) Error() string {
	return fmt.Sprintf("connection failed: %v", e.err)
}

func (e *connectionError) Unwrap() []error {
	return []error{e.err, sandbox.ErrMissingDependency}
}

func isConnectionError(err error) bool {
	var ce *connectionError
	return errors.As(err, &ce)
}

// clientError wraps failures caused by the request itself. They do not
// count against the breaker.
type clientError struct{ err error }

func (e *clientError) Error() string { return e.err.Error() }

func breakerOutcome(err error) error {
	var ce *clientError
	if errors.As(err, &ce) {
		return nil
	}
	return err
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return strings.ReplaceAll(s, "\n", " ")
}

var _ Plugin = (*HTTPPlugin)(nil)
