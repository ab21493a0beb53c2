package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimprobe/internal/model"
)

func TestParseJudgments_Valid(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []model.Judgment
	}{
		{
			name:   "object",
			output: `{"reasoning": "Moodle wird genannt", "result": true}`,
			want:   []model.Judgment{{Reasoning: "Moodle wird genannt", Positive: true}},
		},
		{
			name:   "array",
			output: `[{"reasoning": "a", "result": false}, {"reasoning": "b", "result": true}]`,
			want:   []model.Judgment{{Reasoning: "a"}, {Reasoning: "b", Positive: true}},
		},
		{
			name:   "fenced",
			output: "```json\n{\"reasoning\": \"x\", \"result\": false}\n```",
			want:   []model.Judgment{{Reasoning: "x"}},
		},
		{
			name:   "extra fields ignored",
			output: `{"reasoning": "x", "result": true, "url": "https://uni-a.de"}`,
			want:   []model.Judgment{{Reasoning: "x", Positive: true}},
		},
		{
			name:   "empty array",
			output: `[]`,
			want:   []model.Judgment{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJudgments(0, tt.output)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJudgments_SchemaViolations(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"prose", "Ja, die Uni nutzt Moodle."},
		{"missing result", `{"reasoning": "x"}`},
		{"missing reasoning", `{"result": true}`},
		{"string result", `{"reasoning": "x", "result": "true"}`},
		{"null result", `{"reasoning": "x", "result": null}`},
		{"numeric reasoning", `{"reasoning": 1, "result": true}`},
		{"truncated", `{"reasoning": "x", "res`},
		{"trailing data", `{"reasoning": "x", "result": true} {"more": 1}`},
		{"array with scalar", `[{"reasoning": "x", "result": true}, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJudgments(2, tt.output)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchema))

			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, 2, schemaErr.ChunkIndex)
		})
	}
}
