package copilot

import (
	"errors"

	"github.com/brijeshdobariya07/insightOS/internal/llm"
	"github.com/brijeshdobariya07/insightOS/internal/model"
)

// FallbackSummary and FallbackWarning are the user-facing text of the one
// canonical safe response.
const (
	FallbackSummary = "Analysis is currently unavailable. Please try again."
	FallbackWarning = "The AI response could not be validated."
)

// ErrNotConfigured signals that the model identifier or provider credential
// is missing; no network call may be attempted.
var ErrNotConfigured = errors.New("copilot model or credential not configured")

// FallbackResponse returns the one constant safe response used whenever
// validation cannot succeed, configuration is absent, or the provider call
// fails. It is the trusted base case: never itself re-validated, always
// displayable as-is. A fresh value is returned on every call so no caller
// can mutate shared state.
func FallbackResponse() model.StructuredResponse {
	return model.StructuredResponse{
		Summary:          FallbackSummary,
		Insights:         []model.Insight{},
		SuggestedActions: []model.SuggestedAction{},
		Warnings:         []string{FallbackWarning},
		ConfidenceScore:  0.0,
	}
}

// FailureReason maps a pipeline error onto the fallback taxonomy used for
// metrics and the audit stream. Rate limiting is the one transport failure
// distinguished from the rest so callers can apply backoff.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotConfigured):
		return "config"
	case errors.Is(err, llm.ErrRateLimited):
		return "rate_limit"
	default:
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			return "validation"
		}
		return "upstream"
	}
}
