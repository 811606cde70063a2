package copilot

import (
	"fmt"
	"strings"

	"github.com/brijeshdobariya07/insightOS/internal/model"
)

// HostControls is the bundle of control functions the host application
// supplies for action execution. SetStatusFilter is expected for filter
// actions; HighlightMetric and ExportReport are optional.
type HostControls struct {
	SetStatusFilter func(value string)
	HighlightMetric func(key string)
	ExportReport    func()
}

// DispatchContext is the per-call bundle of one action plus the controls it
// may invoke. Not persisted.
type DispatchContext struct {
	Action   model.SuggestedAction
	Controls HostControls
}

// Dispatch maps a validated action to a host control. Each action's payload
// shape is checked before any control function is invoked; values outside
// the declared action vocabulary are an explicit dispatch failure, never a
// pass-through. Dispatch never panics and always returns a result.
func Dispatch(dc DispatchContext) model.ActionResult {
	action := dc.Action

	switch action.ActionType {
	case model.ActionApplyFilter:
		filterValue, ok := action.Payload["filterValue"].(string)
		if !ok {
			return failure(action.ActionType, "payload is missing string field filterValue")
		}
		if dc.Controls.SetStatusFilter == nil {
			return failure(action.ActionType, "filter control unavailable")
		}
		// The control's own whitelist decides ultimate acceptance.
		dc.Controls.SetStatusFilter(filterValue)
		return success(action.ActionType)

	case model.ActionExportReport:
		// The export mechanism is an external collaborator; the control is
		// best-effort and the action always succeeds.
		if dc.Controls.ExportReport != nil {
			dc.Controls.ExportReport()
		}
		return success(action.ActionType)

	case model.ActionHighlightMetric:
		metricKey, ok := action.Payload["metricKey"].(string)
		if !ok || strings.TrimSpace(metricKey) == "" {
			return failure(action.ActionType, "payload is missing non-empty string field metricKey")
		}
		if dc.Controls.HighlightMetric == nil {
			return failure(action.ActionType, "highlight control unavailable")
		}
		dc.Controls.HighlightMetric(metricKey)
		return success(action.ActionType)

	default:
		return failure(action.ActionType, fmt.Sprintf("unknown action type %q", action.ActionType))
	}
}

func success(t model.ActionType) model.ActionResult {
	return model.ActionResult{Success: true, ActionType: t}
}

func failure(t model.ActionType, msg string) model.ActionResult {
	return model.ActionResult{Success: false, ActionType: t, Error: msg}
}
