package service

import (
	"testing"

	"casebrief-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantKey string
		wantErr bool
	}{
		{name: "plain object", raw: `{"holding":"Yes"}`, wantKey: "holding"},
		{name: "surrounding whitespace", raw: "\n  {\"holding\":\"Yes\"}\n", wantKey: "holding"},
		{name: "prose wrapper", raw: `Here is the brief: {"facts":"A sued B."} Hope this helps!`, wantKey: "facts"},
		{name: "code fence", raw: "```json\n{\"issue\":\"Whether...\"}\n```", wantKey: "issue"},
		{name: "nested braces", raw: `Result: {"corrections":{"title":"X"},"verified":false} end`, wantKey: "corrections"},
		{name: "array", raw: `[{"holding":"Yes"}]`, wantErr: true},
		{name: "array with prose-like object", raw: `[{"verified": true}]`, wantErr: true},
		{name: "mixed array", raw: `[1, {"holding":"Yes"}]`, wantErr: true},
		{name: "string holding an object", raw: `"{\"holding\":\"Yes\"}"`, wantErr: true},
		{name: "scalar", raw: `42`, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
		{name: "no json", raw: `I cannot help with that.`, wantErr: true},
		{name: "broken json", raw: `{"holding": "Yes"`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := ExtractObject(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnparseableOutput)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, obj, tt.wantKey)
		})
	}
}

func TestStringFields_DefaultsAndUnknownKeys(t *testing.T) {
	obj, err := ExtractObject(`{
		"ruleOfLaw": "Judicial review.",
		"facts": ["Adams appointed Marbury.", "Madison withheld the commission."],
		"issue": null,
		"holding": 1803,
		"extra": "dropped"
	}`)
	require.NoError(t, err)

	fields := StringFields(obj, models.BriefFields)
	assert.Len(t, fields, len(models.BriefFields))
	assert.Equal(t, "Judicial review.", fields["ruleOfLaw"])
	assert.Equal(t, "Adams appointed Marbury. Madison withheld the commission.", fields["facts"])
	assert.Equal(t, "", fields["issue"])
	assert.Equal(t, "1803", fields["holding"])
	assert.Equal(t, "", fields["dissent"])
	assert.NotContains(t, fields, "extra")
}
