// Package copilotclient is the Go consumer of the copilot NDJSON wire: it
// issues queries, frames the response stream, and returns the terminal
// structured payload.
package copilotclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/brijeshdobariya07/insightOS/internal/copilot"
	"github.com/brijeshdobariya07/insightOS/internal/model"
)

// APIError is a non-streaming failure envelope returned by the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("copilot api error (status %d): %s", e.StatusCode, e.Message)
}

// RateLimited reports whether the server asked the caller to back off.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Client talks to the copilot API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a copilot API client.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query submits a query and consumes the event stream. onToken, when
// non-nil, is invoked for each text delta in arrival order. The returned
// payload is always well formed: the server guarantees a terminal done
// event, and the framer synthesizes one from the accumulated text if the
// transport drops mid-stream.
func (c *Client) Query(ctx context.Context, req model.QueryRequest, onToken func(delta string)) (model.StructuredResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.StructuredResponse{}, fmt.Errorf("failed to marshal query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/copilot/query", bytes.NewReader(body))
	if err != nil {
		return model.StructuredResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.StructuredResponse{}, fmt.Errorf("query request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.StructuredResponse{}, decodeAPIError(resp)
	}

	framer := copilot.NewFramer(resp.Body)
	for {
		event, err := framer.Next()
		if err == io.EOF {
			// The framer always delivers a terminal done before EOF, so
			// this is unreachable on a conforming stream; degrade safely
			// anyway.
			return copilot.FallbackResponse(), nil
		}
		if err != nil {
			return model.StructuredResponse{}, err
		}

		switch event.Type {
		case model.StreamEventToken:
			if onToken != nil {
				onToken(event.Content)
			}
		case model.StreamEventDone:
			return *event.Payload, nil
		}
	}
}

// Dispatch submits one suggested action and returns the dispatch result.
func (c *Client) Dispatch(ctx context.Context, action model.SuggestedAction) (model.ActionResult, error) {
	body, err := json.Marshal(action)
	if err != nil {
		return model.ActionResult{}, fmt.Errorf("failed to marshal action: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/copilot/actions", bytes.NewReader(body))
	if err != nil {
		return model.ActionResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.ActionResult{}, fmt.Errorf("dispatch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.ActionResult{}, decodeAPIError(resp)
	}

	var result model.ActionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.ActionResult{}, fmt.Errorf("failed to decode dispatch result: %w", err)
	}
	return result, nil
}

func decodeAPIError(resp *http.Response) error {
	var envelope model.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error}
}
