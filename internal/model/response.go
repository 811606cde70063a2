package model

// Severity classifies an insight.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ValidSeverity reports whether s is a declared severity.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// ActionType is the closed vocabulary of actions the dispatcher will ever
// execute. Values outside this set are a validation failure, never an
// extension point.
type ActionType string

const (
	ActionApplyFilter     ActionType = "APPLY_FILTER"
	ActionExportReport    ActionType = "EXPORT_REPORT"
	ActionHighlightMetric ActionType = "HIGHLIGHT_METRIC"
)

// ValidActionType reports whether t is a declared action type.
func ValidActionType(t ActionType) bool {
	switch t {
	case ActionApplyFilter, ActionExportReport, ActionHighlightMetric:
		return true
	}
	return false
}

// Insight is one finding inside a structured response.
type Insight struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// SuggestedAction is one action the model proposes. Payload is an open map;
// its required fields are checked per action type at dispatch time.
type SuggestedAction struct {
	Label      string         `json:"label"`
	ActionType ActionType     `json:"actionType"`
	Payload    map[string]any `json:"payload"`
}

// StructuredResponse is the canonical validated AI output. All five fields
// are always present; sequences are empty, not absent, when there is nothing
// to report. Immutable after validation.
type StructuredResponse struct {
	Summary          string            `json:"summary"`
	Insights         []Insight         `json:"insights"`
	SuggestedActions []SuggestedAction `json:"suggestedActions"`
	Warnings         []string          `json:"warnings"`
	ConfidenceScore  float64           `json:"confidenceScore"`
}

// ActionResult is the outcome record of one dispatch attempt.
type ActionResult struct {
	Success    bool       `json:"success"`
	ActionType ActionType `json:"actionType"`
	Error      string     `json:"error,omitempty"`
}
