// Package copilot implements the AI-response pipeline: context sanitization,
// prompt assembly, stream framing, strict validation with a bounded repair
// pass, safe fallback, and the closed-vocabulary action dispatcher.
package copilot

import (
	"strings"

	"github.com/brijeshdobariya07/insightOS/internal/model"
)

// MaxSnapshotRows caps how many dashboard rows leave the trust boundary.
const MaxSnapshotRows = 20

// sensitiveFields is the fixed denylist of row keys stripped before a
// snapshot is transmitted to the model provider. Matched case-insensitively.
var sensitiveFields = map[string]struct{}{
	"email":       {},
	"phone":       {},
	"ssn":         {},
	"address":     {},
	"password":    {},
	"token":       {},
	"apikey":      {},
	"api_key":     {},
	"secret":      {},
	"credential":  {},
	"credentials": {},
}

// Sanitize builds the context object safe to transmit to the model provider.
// Rows beyond MaxSnapshotRows are dropped and the truncation flag is set;
// denylisted fields are removed from every retained row. The page identifier
// and aggregated metrics pass through unchanged. Pure and total.
func Sanitize(currentPage string, metrics map[string]any, rows []map[string]any) model.CopilotContext {
	out := model.CopilotContext{
		CurrentPage:    currentPage,
		VisibleMetrics: metrics,
	}

	if len(rows) == 0 {
		return out
	}

	kept := rows
	if len(rows) > MaxSnapshotRows {
		kept = rows[:MaxSnapshotRows]
		out.TableSnapshotTruncated = true
	}

	out.TableSnapshot = make([]map[string]any, 0, len(kept))
	for _, row := range kept {
		scrubbed := make(map[string]any, len(row))
		for key, value := range row {
			if _, denied := sensitiveFields[strings.ToLower(key)]; denied {
				continue
			}
			scrubbed[key] = value
		}
		out.TableSnapshot = append(out.TableSnapshot, scrubbed)
	}

	return out
}

// SanitizeRaw extracts the well-known snapshot fields from the open context
// map supplied by the caller and sanitizes them. Unknown fields are dropped:
// only the declared snapshot shape ever reaches the provider.
func SanitizeRaw(raw map[string]any) model.CopilotContext {
	var currentPage string
	if page, ok := raw["currentPage"].(string); ok {
		currentPage = page
	}

	var metrics map[string]any
	if m, ok := raw["visibleMetrics"].(map[string]any); ok {
		metrics = m
	}

	var rows []map[string]any
	if snapshot, ok := raw["tableSnapshot"].([]any); ok {
		for _, entry := range snapshot {
			if row, ok := entry.(map[string]any); ok {
				rows = append(rows, row)
			}
		}
	}

	return Sanitize(currentPage, metrics, rows)
}
