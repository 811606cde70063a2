package model

// CopilotContext is the sanitized snapshot of dashboard state sent with each
// query. Built fresh per request, never retained.
type CopilotContext struct {
	CurrentPage            string           `json:"currentPage"`
	VisibleMetrics         map[string]any   `json:"visibleMetrics,omitempty"`
	TableSnapshot          []map[string]any `json:"tableSnapshot,omitempty"`
	TableSnapshotTruncated bool             `json:"tableSnapshotTruncated"`
}
