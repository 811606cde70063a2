package copilot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brijeshdobariya07/insightOS/internal/model"
)

func TestSessionBeginAppendsBothMessages(t *testing.T) {
	s := NewSession()

	_, err := s.Begin("summarize revenue")
	require.NoError(t, err)

	messages := s.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, "summarize revenue", messages[0].Content)
	assert.Equal(t, model.RoleAssistant, messages[1].Role)
	assert.Empty(t, messages[1].Content)
	assert.True(t, s.InFlight())
}

func TestSessionRejectsConcurrentSubmission(t *testing.T) {
	s := NewSession()

	_, err := s.Begin("first")
	require.NoError(t, err)

	_, err = s.Begin("second")
	assert.ErrorIs(t, err, ErrBusy)

	// The rejected submission must not have touched history.
	assert.Len(t, s.Messages(), 2)
}

func TestSessionTokenOrderingAndCompletion(t *testing.T) {
	s := NewSession()
	_, err := s.Begin("summarize revenue")
	require.NoError(t, err)

	s.AppendToken(`{"sum`)
	s.AppendToken(`mary":"Revenue is stable.",...}`)

	messages := s.Messages()
	assert.Equal(t, `{"summary":"Revenue is stable.",...}`, messages[1].Content)

	final := model.StructuredResponse{
		Summary:          "Revenue is stable.",
		Insights:         []model.Insight{},
		SuggestedActions: []model.SuggestedAction{},
		Warnings:         []string{},
		ConfidenceScore:  0.9,
	}
	s.Complete(final, nil)

	// Final content is the validated summary, not the raw token text.
	messages = s.Messages()
	assert.Equal(t, "Revenue is stable.", messages[1].Content)
	assert.False(t, s.InFlight())

	last := s.LastResponse()
	require.NotNil(t, last)
	assert.Equal(t, final, *last)

	// A new submission is accepted after completion.
	_, err = s.Begin("next question")
	assert.NoError(t, err)
}

func TestSessionCompleteAppliesMetadata(t *testing.T) {
	s := NewSession()
	_, err := s.Begin("q")
	require.NoError(t, err)

	modelName := "gpt-4o"
	tokensIn, tokensOut := 120, 64
	latency := int64(900)
	s.Complete(FallbackResponse(), &model.Message{
		Model:     &modelName,
		TokensIn:  &tokensIn,
		TokensOut: &tokensOut,
		LatencyMs: &latency,
	})

	messages := s.Messages()
	require.NotNil(t, messages[1].Model)
	assert.Equal(t, "gpt-4o", *messages[1].Model)
	assert.Equal(t, 64, *messages[1].TokensOut)
}

func TestSessionLastResponseIsACopy(t *testing.T) {
	s := NewSession()
	_, err := s.Begin("q")
	require.NoError(t, err)
	s.Complete(FallbackResponse(), nil)

	first := s.LastResponse()
	first.Summary = "mutated"

	assert.Equal(t, FallbackSummary, s.LastResponse().Summary)
}

func TestSessionReset(t *testing.T) {
	s := NewSession()
	_, err := s.Begin("q")
	require.NoError(t, err)
	s.Complete(FallbackResponse(), nil)

	s.Reset()

	assert.Empty(t, s.Messages())
	assert.Nil(t, s.LastResponse())
	assert.False(t, s.InFlight())
}
