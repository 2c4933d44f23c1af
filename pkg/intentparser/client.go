// Package intentparser provides a client for the intent resolution service,
// which turns a free-text utterance into a structured transaction intent.
package intentparser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harshkas4na/Protocol-Pal/pkg/logger"
	"github.com/harshkas4na/Protocol-Pal/pkg/metrics"
	"github.com/harshkas4na/Protocol-Pal/pkg/models"
)

// Resolution failures. All of them mean the upstream service, not the
// pipeline, misbehaved; callers surface them as a single resolution error.
var (
	// ErrUnreachable indicates the resolver endpoint could not be reached.
	ErrUnreachable = errors.New("intent resolver unreachable")
	// ErrTimeout indicates the resolution request exceeded its deadline.
	ErrTimeout = errors.New("intent resolution timed out")
	// ErrInvalidResponse indicates the resolver answered with something that
	// is not a structured intent.
	ErrInvalidResponse = errors.New("intent resolver returned an invalid response")
)

// Client represents an intent resolver API client.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new intent resolver client.
func New(endpoint string, timeout time.Duration, lg logger.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: createHTTPClient(),
		logger:     lg,
	}
}

type chatRequest struct {
	Messages []models.Message `json:"messages"`
}

// Resolve sends the utterance to the resolver and returns the structured
// intent it answered with. The request is aborted after the configured
// timeout; once the response headers arrive, the streamed body is read to
// completion without a further deadline since the upstream stream is bounded.
func (c *Client) Resolve(ctx context.Context, utterance string) (*models.StructuredIntent, error) {
	start := time.Now()

	payload, err := json.Marshal(chatRequest{
		Messages: []models.Message{
			{ID: uuid.NewString(), Role: "user", Content: utterance},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode resolver request: %v", err)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	timer := time.AfterFunc(c.timeout, cancel)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build resolver request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ResolverRequests.WithLabelValues("error").Inc()
		if reqCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %v", ErrTimeout, c.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	// Headers arrived; the streaming read itself is not bounded by the timeout.
	timer.Stop()
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.ErrorWithScope(logger.Resolver, "Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ResolverRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: failed to read stream: %v", ErrInvalidResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ResolverRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrInvalidResponse, resp.StatusCode, truncate(string(body), 200))
	}

	intent, err := parseIntent(body)
	if err != nil {
		metrics.ResolverRequests.WithLabelValues("invalid").Inc()
		c.logger.ErrorWithScope(logger.Resolver, "Unparseable resolver output: %s", truncate(string(body), 400))
		return nil, err
	}

	metrics.ResolverRequests.WithLabelValues("ok").Inc()
	metrics.ResolverLatency.Observe(time.Since(start).Seconds())
	c.logger.DebugWithScope(logger.Resolver, "Resolved utterance in %v (action=%s error=%q)",
		time.Since(start), intent.Action, intent.Error)

	return intent, nil
}

// parseIntent strips markdown code fences from the accumulated stream and
// decodes the remaining JSON object. Numbers are kept as json.Number so large
// token amounts survive without float rounding.
func parseIntent(body []byte) (*models.StructuredIntent, error) {
	cleaned := string(body)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()

	var intent models.StructuredIntent
	if err := dec.Decode(&intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	// Exactly one of the action path or the error discriminant must be set.
	if intent.Action == "" && intent.Error == "" {
		return nil, fmt.Errorf("%w: missing action or error field", ErrInvalidResponse)
	}
	if intent.Action != "" && intent.Action != "prepare_transaction" {
		return nil, fmt.Errorf("%w: unsupported action %q", ErrInvalidResponse, intent.Action)
	}

	return &intent, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
