package copilot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRows(n int) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{
			"server": fmt.Sprintf("srv-%02d", i),
			"status": "healthy",
			"cpu":    42.5,
		}
	}
	return rows
}

func TestSanitizeTruncatesToRowCap(t *testing.T) {
	out := Sanitize("dashboard", nil, makeRows(35))

	require.Len(t, out.TableSnapshot, 20)
	assert.True(t, out.TableSnapshotTruncated)
}

func TestSanitizeKeepsSmallSnapshots(t *testing.T) {
	out := Sanitize("dashboard", nil, makeRows(5))

	require.Len(t, out.TableSnapshot, 5)
	assert.False(t, out.TableSnapshotTruncated)
}

func TestSanitizeStripsSensitiveFields(t *testing.T) {
	rows := []map[string]any{
		{
			"server":  "srv-01",
			"status":  "warning",
			"email":   "ops@example.com",
			"Phone":   "555-0100",
			"API_KEY": "sk-secret",
			"token":   "abc",
		},
	}

	out := Sanitize("dashboard", nil, rows)

	require.Len(t, out.TableSnapshot, 1)
	row := out.TableSnapshot[0]
	assert.Equal(t, "srv-01", row["server"])
	assert.Equal(t, "warning", row["status"])
	assert.NotContains(t, row, "email")
	assert.NotContains(t, row, "Phone")
	assert.NotContains(t, row, "API_KEY")
	assert.NotContains(t, row, "token")
}

func TestSanitizeDoesNotMutateInput(t *testing.T) {
	rows := []map[string]any{{"server": "srv-01", "email": "ops@example.com"}}

	Sanitize("dashboard", nil, rows)

	assert.Contains(t, rows[0], "email")
}

func TestSanitizePassesPageAndMetricsThrough(t *testing.T) {
	metrics := map[string]any{"Total Revenue": 48500.0}

	out := Sanitize("revenue", metrics, nil)

	assert.Equal(t, "revenue", out.CurrentPage)
	assert.Equal(t, metrics, out.VisibleMetrics)
	assert.Nil(t, out.TableSnapshot)
	assert.False(t, out.TableSnapshotTruncated)
}

func TestSanitizeRaw(t *testing.T) {
	raw := map[string]any{
		"currentPage":    "dashboard",
		"visibleMetrics": map[string]any{"Total Revenue": 48500.0},
		"tableSnapshot": []any{
			map[string]any{"server": "srv-01", "password": "hunter2"},
			"not-a-row",
		},
		"somethingElse": "dropped",
	}

	out := SanitizeRaw(raw)

	assert.Equal(t, "dashboard", out.CurrentPage)
	assert.Equal(t, 48500.0, out.VisibleMetrics["Total Revenue"])
	require.Len(t, out.TableSnapshot, 1)
	assert.NotContains(t, out.TableSnapshot[0], "password")
}
