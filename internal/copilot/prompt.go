package copilot

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/brijeshdobariya07/insightOS/internal/model"
)

// maxQueryLength bounds the inbound query (~100KB).
const maxQueryLength = 100000

// SystemPrompt is the fixed instruction block sent with every request. It
// pins the role, the exact output schema, and the closed action vocabulary.
const SystemPrompt = `You are the analytics copilot for an operations dashboard.
Answer every request with a single JSON object and nothing else: no prose,
no markdown fences, no commentary before or after the object.

The object must have exactly these five fields:
  "summary": string - a concise answer to the user's question.
  "insights": array of {"title": string, "description": string, "severity": "low"|"medium"|"high"}.
  "suggestedActions": array of {"label": string, "actionType": string, "payload": object}.
  "warnings": array of strings.
  "confidenceScore": number between 0.0 and 1.0.

"actionType" must be one of: "APPLY_FILTER", "EXPORT_REPORT", "HIGHLIGHT_METRIC".
Never invent other action types. Use empty arrays when you have nothing to
report. Base your answer only on the dashboard context provided with the
question; if the context is insufficient, say so in the summary and lower
the confidence score.`

// ValidateQueryRequest checks the inbound query+context envelope. A non-nil
// slice describes every violated field; callers must not proceed to a
// network call when violations are present.
func ValidateQueryRequest(req *model.QueryRequest) []Violation {
	var violations []Violation

	if req.Query == "" {
		violations = append(violations, Violation{Field: "query", Message: "query cannot be empty"})
	}
	if len(req.Query) > maxQueryLength {
		violations = append(violations, Violation{Field: "query", Message: "query exceeds maximum length"})
	}
	if req.Query != "" && !utf8.ValidString(req.Query) {
		violations = append(violations, Violation{Field: "query", Message: "query must be valid UTF-8"})
	}

	return violations
}

// BuildUserMessage serializes the sanitized context followed by the literal
// query, under labeled sections so the model can tell data from instruction.
func BuildUserMessage(ctx model.CopilotContext, query string) string {
	contextJSON, err := json.Marshal(ctx)
	if err != nil {
		// CopilotContext only contains JSON-decoded values; marshal cannot
		// fail for them, but the prompt must still be buildable.
		contextJSON = []byte("{}")
	}

	return fmt.Sprintf("### DASHBOARD CONTEXT\n%s\n\n### QUESTION\n%s", contextJSON, query)
}
