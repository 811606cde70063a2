package copilot

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brijeshdobariya07/insightOS/internal/llm"
)

func TestFallbackResponseShape(t *testing.T) {
	resp := FallbackResponse()

	assert.Equal(t, FallbackSummary, resp.Summary)
	assert.Empty(t, resp.Insights)
	assert.Empty(t, resp.SuggestedActions)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, FallbackWarning, resp.Warnings[0])
	assert.Equal(t, 0.0, resp.ConfidenceScore)
}

func TestFallbackResponseIsFreshPerCall(t *testing.T) {
	first := FallbackResponse()
	first.Warnings[0] = "mutated"

	assert.Equal(t, FallbackWarning, FallbackResponse().Warnings[0])
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "none"},
		{"config", ErrNotConfigured, "config"},
		{"wrapped config", fmt.Errorf("turn: %w", ErrNotConfigured), "config"},
		{"rate limit", fmt.Errorf("%w: 429", llm.ErrRateLimited), "rate_limit"},
		{"validation", &ValidationError{}, "validation"},
		{"other transport", errors.New("connection refused"), "upstream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureReason(tt.err))
		})
	}
}
