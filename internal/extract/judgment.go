package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/claimprobe/internal/model"
)

// ErrSchema marks model output that does not match the judgment schema
var ErrSchema = errors.New("model output does not match judgment schema")

// SchemaError describes a schema violation for one chunk
type SchemaError struct {
	ChunkIndex int
	Reason     string
	Raw        string
}

func (e *SchemaError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("chunk %d: %s: %s (output: %q)", e.ChunkIndex, ErrSchema, e.Reason, raw)
}

// Unwrap lets errors.Is match ErrSchema
func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// rawJudgment keeps fields as raw JSON so missing and mistyped fields can
// be told apart
type rawJudgment struct {
	Reasoning json.RawMessage `json:"reasoning"`
	Result    json.RawMessage `json:"result"`
}

// ParseJudgments decodes model output into judgments. The output must be
// a JSON object or an array of objects, each with a string "reasoning"
// and a boolean "result". Markdown code fences are tolerated.
func ParseJudgments(chunkIndex int, output string) ([]model.Judgment, error) {
	body := stripFences(output)
	fail := func(reason string) error {
		return &SchemaError{ChunkIndex: chunkIndex, Reason: reason, Raw: output}
	}

	var items []json.RawMessage
	switch {
	case strings.HasPrefix(body, "["):
		if err := json.Unmarshal([]byte(body), &items); err != nil {
			return nil, fail("invalid JSON array: " + err.Error())
		}
	case strings.HasPrefix(body, "{"):
		items = []json.RawMessage{json.RawMessage(body)}
	default:
		return nil, fail("not a JSON object")
	}

	judgments := make([]model.Judgment, 0, len(items))
	for i, item := range items {
		dec := json.NewDecoder(bytes.NewReader(item))
		var raw rawJudgment
		if err := dec.Decode(&raw); err != nil {
			return nil, fail(fmt.Sprintf("item %d: invalid JSON: %v", i, err))
		}
		if dec.More() {
			return nil, fail(fmt.Sprintf("item %d: trailing data", i))
		}

		if len(raw.Reasoning) == 0 {
			return nil, fail(fmt.Sprintf("item %d: missing field %q", i, model.FieldReasoning))
		}
		if len(raw.Result) == 0 {
			return nil, fail(fmt.Sprintf("item %d: missing field %q", i, model.FieldResult))
		}

		var j model.Judgment
		if err := json.Unmarshal(raw.Reasoning, &j.Reasoning); err != nil || bytes.Equal(raw.Reasoning, []byte("null")) {
			return nil, fail(fmt.Sprintf("item %d: %q must be a string", i, model.FieldReasoning))
		}
		if err := json.Unmarshal(raw.Result, &j.Positive); err != nil || bytes.Equal(raw.Result, []byte("null")) {
			return nil, fail(fmt.Sprintf("item %d: %q must be a boolean", i, model.FieldResult))
		}
		judgments = append(judgments, j)
	}

	return judgments, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
