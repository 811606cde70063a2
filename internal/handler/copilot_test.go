package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brijeshdobariya07/insightOS/internal/copilot"
	"github.com/brijeshdobariya07/insightOS/internal/llm"
	"github.com/brijeshdobariya07/insightOS/internal/middleware"
	"github.com/brijeshdobariya07/insightOS/internal/model"
	"github.com/brijeshdobariya07/insightOS/internal/service"
	"github.com/brijeshdobariya07/insightOS/pkg/logger"
)

type scriptedLLM struct {
	tokens []string
	err    error
}

func (f *scriptedLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: strings.Join(f.tokens, ""), Model: "fake-model"}, nil
}

func (f *scriptedLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	var content strings.Builder
	for i, token := range f.tokens {
		if err := callback(token, i); err != nil {
			return nil, err
		}
		content.WriteString(token)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: content.String(), Model: "fake-model"}, nil
}

func (f *scriptedLLM) Name() string     { return "fake" }
func (f *scriptedLLM) Models() []string { return []string{"fake-model"} }

func newTestHandler(client llm.Client) *CopilotHandler {
	log := logger.NewNop()
	svc := service.NewCopilotService("fake-model", 4096, client, service.NewSessionService(log), copilot.HostControls{
		SetStatusFilter: func(string) {},
	}, nil, log)
	return NewCopilotHandler(svc, log)
}

func authedRequest(method, target string, body []byte) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(r.Context(), middleware.SubjectKey, "alice")
	return r.WithContext(ctx)
}

func TestQueryRejectsMalformedBody(t *testing.T) {
	h := newTestHandler(&scriptedLLM{})
	w := httptest.NewRecorder()

	h.Query(w, authedRequest(http.MethodPost, "/api/v1/copilot/query", []byte("{not json")))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var envelope model.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	assert.NotEmpty(t, envelope.Error)
}

func TestQueryRejectsEmptyQuery(t *testing.T) {
	h := newTestHandler(&scriptedLLM{})
	w := httptest.NewRecorder()

	body, _ := json.Marshal(model.QueryRequest{Query: "", Context: map[string]any{}})
	h.Query(w, authedRequest(http.MethodPost, "/api/v1/copilot/query", body))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var envelope model.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	assert.NotNil(t, envelope.Details, "validation details identify the violated field")
}

func TestQueryUnconfiguredReturns503(t *testing.T) {
	log := logger.NewNop()
	svc := service.NewCopilotService("", 4096, nil, service.NewSessionService(log), copilot.HostControls{}, nil, log)
	h := NewCopilotHandler(svc, log)
	w := httptest.NewRecorder()

	body, _ := json.Marshal(model.QueryRequest{Query: "q"})
	h.Query(w, authedRequest(http.MethodPost, "/api/v1/copilot/query", body))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestQueryStreamsTokensThenDone(t *testing.T) {
	h := newTestHandler(&scriptedLLM{tokens: []string{
		`{"summary":"Revenue is stable.","insights":[],`,
		`"suggestedActions":[],"warnings":[],"confidenceScore":0.9}`,
	}})
	w := httptest.NewRecorder()

	body, _ := json.Marshal(model.QueryRequest{Query: "summarize revenue"})
	h.Query(w, authedRequest(http.MethodPost, "/api/v1/copilot/query", body))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)

	var events []model.StreamEvent
	for _, line := range lines {
		var event model.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(line), &event))
		events = append(events, event)
	}

	assert.Equal(t, model.StreamEventToken, events[0].Type)
	assert.Equal(t, model.StreamEventToken, events[1].Type)
	require.Equal(t, model.StreamEventDone, events[2].Type)
	require.NotNil(t, events[2].Payload)
	assert.Equal(t, "Revenue is stable.", events[2].Payload.Summary)
}

func TestQueryRateLimitedBeforeStreamReturns429(t *testing.T) {
	h := newTestHandler(&scriptedLLM{err: fmt.Errorf("%w: 429 from provider", llm.ErrRateLimited)})
	w := httptest.NewRecorder()

	body, _ := json.Marshal(model.QueryRequest{Query: "q"})
	h.Query(w, authedRequest(http.MethodPost, "/api/v1/copilot/query", body))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	var envelope model.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	assert.NotEmpty(t, envelope.Error)
}

func TestQueryUpstreamRefusalBeforeStreamReturns502(t *testing.T) {
	h := newTestHandler(&scriptedLLM{err: errors.New("connection refused")})
	w := httptest.NewRecorder()

	body, _ := json.Marshal(model.QueryRequest{Query: "q"})
	h.Query(w, authedRequest(http.MethodPost, "/api/v1/copilot/query", body))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestQueryFailureAfterTokensDegradesToFallbackDone(t *testing.T) {
	// Once a token is on the wire the status line is committed; the failure
	// arrives as the fallback done event on a 200 stream.
	h := newTestHandler(&scriptedLLM{
		tokens: []string{"partial "},
		err:    fmt.Errorf("%w: mid-stream", llm.ErrRateLimited),
	})
	w := httptest.NewRecorder()

	body, _ := json.Marshal(model.QueryRequest{Query: "q"})
	h.Query(w, authedRequest(http.MethodPost, "/api/v1/copilot/query", body))

	require.Equal(t, http.StatusOK, w.Code)

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)

	var done model.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &done))
	require.Equal(t, model.StreamEventDone, done.Type)
	assert.Equal(t, copilot.FallbackResponse(), *done.Payload)
}

func TestQueryNonStreamingMode(t *testing.T) {
	h := newTestHandler(&scriptedLLM{tokens: []string{
		`{"summary":"Revenue is stable.","insights":[],"suggestedActions":[],"warnings":[],"confidenceScore":0.9}`,
	}})
	w := httptest.NewRecorder()

	stream := false
	body, _ := json.Marshal(model.QueryRequest{Query: "summarize revenue", Stream: &stream})
	h.Query(w, authedRequest(http.MethodPost, "/api/v1/copilot/query", body))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp model.StructuredResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Revenue is stable.", resp.Summary)
}

func TestQueryNonStreamingRateLimited(t *testing.T) {
	h := newTestHandler(&scriptedLLM{err: fmt.Errorf("%w", llm.ErrRateLimited)})
	w := httptest.NewRecorder()

	stream := false
	body, _ := json.Marshal(model.QueryRequest{Query: "q", Stream: &stream})
	h.Query(w, authedRequest(http.MethodPost, "/api/v1/copilot/query", body))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestProviderEndpoint(t *testing.T) {
	h := newTestHandler(&scriptedLLM{})
	w := httptest.NewRecorder()

	h.Provider(w, authedRequest(http.MethodGet, "/api/v1/copilot/provider", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var info model.ProviderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "fake", info.Provider)
	assert.Equal(t, "fake-model", info.Model)
	assert.True(t, info.Configured)
}

func TestQueryConflictWhenInFlight(t *testing.T) {
	h := newTestHandler(&scriptedLLM{})

	_, err := h.service.Session("alice").Begin("already running")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	body, _ := json.Marshal(model.QueryRequest{Query: "second"})
	h.Query(w, authedRequest(http.MethodPost, "/api/v1/copilot/query", body))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestActionsReturnsDispatchResult(t *testing.T) {
	h := newTestHandler(&scriptedLLM{})
	w := httptest.NewRecorder()

	body, _ := json.Marshal(model.SuggestedAction{
		ActionType: model.ActionApplyFilter,
		Payload:    map[string]any{},
	})
	h.Actions(w, authedRequest(http.MethodPost, "/api/v1/copilot/actions", body))

	require.Equal(t, http.StatusOK, w.Code)

	var result model.ActionResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.False(t, result.Success)
	assert.Equal(t, model.ActionApplyFilter, result.ActionType)
	assert.NotEmpty(t, result.Error)
}

func TestMessagesAndReset(t *testing.T) {
	h := newTestHandler(&scriptedLLM{tokens: []string{
		`{"summary":"ok","insights":[],"suggestedActions":[],"warnings":[],"confidenceScore":0.5}`,
	}})

	body, _ := json.Marshal(model.QueryRequest{Query: "q"})
	h.Query(httptest.NewRecorder(), authedRequest(http.MethodPost, "/api/v1/copilot/query", body))

	w := httptest.NewRecorder()
	h.Messages(w, authedRequest(http.MethodGet, "/api/v1/copilot/messages", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.MessagesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "ok", resp.Messages[1].Content)
	require.NotNil(t, resp.LastResponse)
	assert.False(t, resp.InFlight)

	w = httptest.NewRecorder()
	h.Reset(w, authedRequest(http.MethodPost, "/api/v1/copilot/reset", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	h.Messages(w, authedRequest(http.MethodGet, "/api/v1/copilot/messages", nil))
	resp = model.MessagesResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Empty(t, resp.Messages)
}
