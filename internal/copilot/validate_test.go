package copilot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brijeshdobariya07/insightOS/internal/model"
)

const validResponseJSON = `{
	"summary": "Revenue is stable.",
	"insights": [
		{"title": "Steady growth", "description": "Revenue grew 3% week over week.", "severity": "low"}
	],
	"suggestedActions": [
		{"label": "Show critical servers", "actionType": "APPLY_FILTER", "payload": {"filterValue": "critical"}}
	],
	"warnings": [],
	"confidenceScore": 0.85
}`

func TestParseAndValidateDirect(t *testing.T) {
	resp, repaired, err := ParseAndValidate(validResponseJSON)

	require.NoError(t, err)
	assert.False(t, repaired)
	assert.Equal(t, "Revenue is stable.", resp.Summary)
	require.Len(t, resp.Insights, 1)
	assert.Equal(t, model.SeverityLow, resp.Insights[0].Severity)
	require.Len(t, resp.SuggestedActions, 1)
	assert.Equal(t, model.ActionApplyFilter, resp.SuggestedActions[0].ActionType)
	assert.Equal(t, "critical", resp.SuggestedActions[0].Payload["filterValue"])
	assert.Equal(t, 0.85, resp.ConfidenceScore)
}

func TestParseAndValidateRoundTrip(t *testing.T) {
	resp, _, err := ParseAndValidate(validResponseJSON)
	require.NoError(t, err)

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	again, repaired, err := ParseAndValidate(string(data))
	require.NoError(t, err)
	assert.False(t, repaired)
	assert.Equal(t, resp, again)
}

func TestParseAndValidateRepairsFencedBlock(t *testing.T) {
	fenced := "```json\n" + validResponseJSON + "\n```"

	resp, repaired, err := ParseAndValidate(fenced)

	require.NoError(t, err)
	assert.True(t, repaired)
	assert.Equal(t, "Revenue is stable.", resp.Summary)
}

func TestParseAndValidateRepairsSurroundingProse(t *testing.T) {
	wrapped := "Sure! Here is the analysis you asked for:\n" + validResponseJSON + "\nLet me know if you need more."

	resp, repaired, err := ParseAndValidate(wrapped)

	require.NoError(t, err)
	assert.True(t, repaired)
	assert.Equal(t, "Revenue is stable.", resp.Summary)
}

func TestParseAndValidateNormalizesEmptySequences(t *testing.T) {
	resp, _, err := ParseAndValidate(`{
		"summary": "Nothing to report.",
		"insights": [],
		"suggestedActions": [],
		"warnings": [],
		"confidenceScore": 1.0
	}`)

	require.NoError(t, err)
	assert.NotNil(t, resp.Insights)
	assert.NotNil(t, resp.SuggestedActions)
	assert.NotNil(t, resp.Warnings)
	assert.Empty(t, resp.Insights)
}

func TestParseAndValidateFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{
			name:  "not JSON at all",
			input: "the model rambled with no object anywhere",
			field: "$",
		},
		{
			name:  "missing field",
			input: `{"summary":"s","insights":[],"suggestedActions":[],"warnings":[]}`,
			field: "confidenceScore",
		},
		{
			name:  "unknown top-level field",
			input: `{"summary":"s","insights":[],"suggestedActions":[],"warnings":[],"confidenceScore":0.5,"extra":1}`,
			field: "extra",
		},
		{
			name:  "confidence above bound",
			input: `{"summary":"s","insights":[],"suggestedActions":[],"warnings":[],"confidenceScore":1.5}`,
			field: "confidenceScore",
		},
		{
			name:  "confidence below bound",
			input: `{"summary":"s","insights":[],"suggestedActions":[],"warnings":[],"confidenceScore":-0.1}`,
			field: "confidenceScore",
		},
		{
			name:  "invalid severity",
			input: `{"summary":"s","insights":[{"title":"t","description":"d","severity":"extreme"}],"suggestedActions":[],"warnings":[],"confidenceScore":0.5}`,
			field: "insights[0].severity",
		},
		{
			name:  "unknown insight field",
			input: `{"summary":"s","insights":[{"title":"t","description":"d","severity":"low","score":9}],"suggestedActions":[],"warnings":[],"confidenceScore":0.5}`,
			field: "insights[0].score",
		},
		{
			name:  "action type outside closed vocabulary",
			input: `{"summary":"s","insights":[],"suggestedActions":[{"label":"l","actionType":"DELETE_EVERYTHING","payload":{}}],"warnings":[],"confidenceScore":0.5}`,
			field: "suggestedActions[0].actionType",
		},
		{
			name:  "warnings not strings",
			input: `{"summary":"s","insights":[],"suggestedActions":[],"warnings":[1,2],"confidenceScore":0.5}`,
			field: "warnings",
		},
		{
			name:  "null warnings",
			input: `{"summary":"s","insights":[],"suggestedActions":[],"warnings":null,"confidenceScore":0.5}`,
			field: "warnings",
		},
		{
			name:  "null insights",
			input: `{"summary":"s","insights":null,"suggestedActions":[],"warnings":[],"confidenceScore":0.5}`,
			field: "insights",
		},
		{
			name:  "null summary",
			input: `{"summary":null,"insights":[],"suggestedActions":[],"warnings":[],"confidenceScore":0.5}`,
			field: "summary",
		},
		{
			name:  "null confidence",
			input: `{"summary":"s","insights":[],"suggestedActions":[],"warnings":[],"confidenceScore":null}`,
			field: "confidenceScore",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseAndValidate(tt.input)
			require.Error(t, err)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)

			fields := make([]string, 0, len(vErr.Violations))
			for _, v := range vErr.Violations {
				fields = append(fields, v.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestRepairIsBoundedToOnePass(t *testing.T) {
	// A fenced block whose inner object is still invalid must fail; no
	// second round of heuristics is attempted.
	_, _, err := ParseAndValidate("```json\n{\"summary\": \"s\"}\n```")
	require.Error(t, err)
}

func TestRepairTextWithoutBraces(t *testing.T) {
	_, ok := repairText("no object here at all")
	assert.False(t, ok)
}
