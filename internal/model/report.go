package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Summary strings used in persisted records
const (
	SummaryEvidenceFound   = "Evidence found"
	SummaryNoEvidenceFound = "No evidence found"
)

// Reserved record fields; axis names must not collide with these
const (
	FieldResult    = "result"
	FieldReasoning = "reasoning"
)

// VerdictRecord is the persisted, combination-level result.
// It serializes as one flat JSON object: axis fields first (in axis
// order), then "result", then "reasoning".
type VerdictRecord struct {
	Axes        Axes
	Combination Combination
	Result      bool
	Reasoning   Reasoning
}

// Reasoning explains a verdict through the URLs that were visited
type Reasoning struct {
	Summary string       `json:"summary"`
	Inputs  []URLVerdict `json:"inputs"`
}

// NewVerdictRecord builds a record from the visited URL verdicts
func NewVerdictRecord(axes Axes, combo Combination, inputs []URLVerdict) *VerdictRecord {
	result := false
	for _, in := range inputs {
		if in.Result {
			result = true
			break
		}
	}

	summary := SummaryNoEvidenceFound
	if result {
		summary = SummaryEvidenceFound
	}

	if inputs == nil {
		inputs = []URLVerdict{}
	}

	return &VerdictRecord{
		Axes:        axes,
		Combination: combo,
		Result:      result,
		Reasoning: Reasoning{
			Summary: summary,
			Inputs:  inputs,
		},
	}
}

// MarshalJSON writes the flat record layout
func (r VerdictRecord) MarshalJSON() ([]byte, error) {
	if len(r.Axes) != len(r.Combination) {
		return nil, fmt.Errorf("record has %d axes but %d values", len(r.Axes), len(r.Combination))
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, name := range r.Axes {
		if err := writeField(&buf, name, r.Combination[i]); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}

	if err := writeField(&buf, FieldResult, r.Result); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeField(&buf, FieldReasoning, r.Reasoning); err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, name string, value interface{}) error {
	key, err := json.Marshal(name)
	if err != nil {
		return fmt.Errorf("marshal field name %q: %w", name, err)
	}
	val, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal field %q: %w", name, err)
	}
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}
