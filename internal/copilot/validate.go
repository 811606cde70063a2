package copilot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brijeshdobariya07/insightOS/internal/model"
)

// Violation describes one schema violation.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the full violation list for one failed attempt.
// Validation failure is an expected, recoverable outcome, so it travels as a
// value, never a panic.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ParseAndValidate takes the full accumulated text of one model turn and
// returns the validated structured response. The strict parse is attempted
// first; on failure exactly one repair pass (strip a single outer fence,
// slice from the first '{' to the last '}') is tried against the same
// schema. No further heuristics. The repaired flag reports which path
// succeeded.
func ParseAndValidate(text string) (model.StructuredResponse, bool, error) {
	resp, directErr := validateDocument([]byte(text))
	if directErr == nil {
		return resp, false, nil
	}

	candidate, ok := repairText(text)
	if !ok {
		return model.StructuredResponse{}, false, directErr
	}

	resp, repairErr := validateDocument([]byte(candidate))
	if repairErr == nil {
		return resp, true, nil
	}

	return model.StructuredResponse{}, false, repairErr
}

// repairText recovers the common "valid JSON wrapped in prose or markdown"
// case. Returns false when no candidate object can be sliced out.
func repairText(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```") {
		if nl := strings.Index(trimmed, "\n"); nl >= 0 {
			trimmed = trimmed[nl+1:]
		} else {
			trimmed = strings.TrimPrefix(trimmed, "```")
		}
		if end := strings.LastIndex(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return "", false
	}

	return trimmed[start : end+1], true
}

var responseFields = []string{"summary", "insights", "suggestedActions", "warnings", "confidenceScore"}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// validateDocument parses data and enforces the strict schema: exactly the
// five declared top-level fields, no unknown keys at any level, declared
// enum membership, confidence within [0.0, 1.0].
func validateDocument(data []byte) (model.StructuredResponse, *ValidationError) {
	var resp model.StructuredResponse
	var violations []Violation

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return resp, &ValidationError{Violations: []Violation{
			{Field: "$", Message: "not a JSON object"},
		}}
	}

	required := make(map[string]struct{}, len(responseFields))
	for _, f := range responseFields {
		required[f] = struct{}{}
		raw, present := top[f]
		if !present {
			violations = append(violations, Violation{Field: f, Message: "required field is missing"})
			continue
		}
		// json.Unmarshal treats null as a no-op, which would let a null
		// field masquerade as present.
		if isNull(raw) {
			violations = append(violations, Violation{Field: f, Message: "must not be null"})
		}
	}
	for key := range top {
		if _, known := required[key]; !known {
			violations = append(violations, Violation{Field: key, Message: "unknown field"})
		}
	}
	if len(violations) > 0 {
		return resp, &ValidationError{Violations: violations}
	}

	if err := json.Unmarshal(top["summary"], &resp.Summary); err != nil {
		violations = append(violations, Violation{Field: "summary", Message: "must be a string"})
	}

	violations = append(violations, validateInsights(top["insights"], &resp)...)
	violations = append(violations, validateActions(top["suggestedActions"], &resp)...)

	if err := json.Unmarshal(top["warnings"], &resp.Warnings); err != nil {
		violations = append(violations, Violation{Field: "warnings", Message: "must be an array of strings"})
	}

	if err := json.Unmarshal(top["confidenceScore"], &resp.ConfidenceScore); err != nil {
		violations = append(violations, Violation{Field: "confidenceScore", Message: "must be a number"})
	} else if resp.ConfidenceScore < 0.0 || resp.ConfidenceScore > 1.0 {
		violations = append(violations, Violation{Field: "confidenceScore", Message: "must be between 0.0 and 1.0"})
	}

	if len(violations) > 0 {
		return model.StructuredResponse{}, &ValidationError{Violations: violations}
	}

	// Sequences are always present, never nil, after validation.
	if resp.Insights == nil {
		resp.Insights = []model.Insight{}
	}
	if resp.SuggestedActions == nil {
		resp.SuggestedActions = []model.SuggestedAction{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}

	return resp, nil
}

func validateInsights(raw json.RawMessage, resp *model.StructuredResponse) []Violation {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []Violation{{Field: "insights", Message: "must be an array of objects"}}
	}

	var violations []Violation
	resp.Insights = make([]model.Insight, 0, len(items))

	for i, item := range items {
		field := fmt.Sprintf("insights[%d]", i)
		violations = append(violations, rejectUnknownKeys(field, item, "title", "description", "severity")...)

		var insight model.Insight
		if err := json.Unmarshal(item["title"], &insight.Title); err != nil {
			violations = append(violations, Violation{Field: field + ".title", Message: "must be a string"})
		}
		if err := json.Unmarshal(item["description"], &insight.Description); err != nil {
			violations = append(violations, Violation{Field: field + ".description", Message: "must be a string"})
		}
		if err := json.Unmarshal(item["severity"], &insight.Severity); err != nil || !model.ValidSeverity(insight.Severity) {
			violations = append(violations, Violation{Field: field + ".severity", Message: `must be one of "low", "medium", "high"`})
		}

		resp.Insights = append(resp.Insights, insight)
	}

	return violations
}

func validateActions(raw json.RawMessage, resp *model.StructuredResponse) []Violation {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []Violation{{Field: "suggestedActions", Message: "must be an array of objects"}}
	}

	var violations []Violation
	resp.SuggestedActions = make([]model.SuggestedAction, 0, len(items))

	for i, item := range items {
		field := fmt.Sprintf("suggestedActions[%d]", i)
		violations = append(violations, rejectUnknownKeys(field, item, "label", "actionType", "payload")...)

		var action model.SuggestedAction
		if err := json.Unmarshal(item["label"], &action.Label); err != nil {
			violations = append(violations, Violation{Field: field + ".label", Message: "must be a string"})
		}
		if err := json.Unmarshal(item["actionType"], &action.ActionType); err != nil || !model.ValidActionType(action.ActionType) {
			violations = append(violations, Violation{Field: field + ".actionType", Message: `must be one of "APPLY_FILTER", "EXPORT_REPORT", "HIGHLIGHT_METRIC"`})
		}
		if err := json.Unmarshal(item["payload"], &action.Payload); err != nil || action.Payload == nil {
			violations = append(violations, Violation{Field: field + ".payload", Message: "must be an object"})
		}

		resp.SuggestedActions = append(resp.SuggestedActions, action)
	}

	return violations
}

// rejectUnknownKeys enforces the exact field set on a nested object. Missing
// required keys surface as type violations when the nil RawMessage fails to
// unmarshal, so only presence of extras is checked here, plus explicit
// missing-key reporting for clarity.
func rejectUnknownKeys(field string, item map[string]json.RawMessage, allowed ...string) []Violation {
	var violations []Violation

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = struct{}{}
		if _, present := item[key]; !present {
			violations = append(violations, Violation{Field: field + "." + key, Message: "required field is missing"})
		}
	}
	for key := range item {
		if _, known := allowedSet[key]; !known {
			violations = append(violations, Violation{Field: field + "." + key, Message: "unknown field"})
		}
	}

	return violations
}
