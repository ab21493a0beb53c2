package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestVerdictRecord_MarshalJSON_FieldOrder(t *testing.T) {
	rec := NewVerdictRecord(
		Axes{"einrichtung", "software"},
		Combination{"Uni A", "Moodle"},
		[]URLVerdict{
			{URL: "https://a.example/1", Result: false, Reasoning: "no mention found"},
			{URL: "https://a.example/2", Result: true, Reasoning: "Moodle login page"},
		},
	)

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	got := string(data)
	if !strings.HasPrefix(got, `{"einrichtung":"Uni A","software":"Moodle","result":true,"reasoning":{`) {
		t.Errorf("unexpected layout: %s", got)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("record is not valid JSON: %v", err)
	}
	reasoning := decoded["reasoning"].(map[string]interface{})
	if reasoning["summary"] != SummaryEvidenceFound {
		t.Errorf("expected summary %q, got %v", SummaryEvidenceFound, reasoning["summary"])
	}
	if n := len(reasoning["inputs"].([]interface{})); n != 2 {
		t.Errorf("expected 2 inputs, got %d", n)
	}
}

func TestNewVerdictRecord_NoInputs(t *testing.T) {
	rec := NewVerdictRecord(Axes{"einrichtung"}, Combination{"Uni B"}, nil)

	if rec.Result {
		t.Error("expected negative result without inputs")
	}
	if rec.Reasoning.Summary != SummaryNoEvidenceFound {
		t.Errorf("expected %q, got %q", SummaryNoEvidenceFound, rec.Reasoning.Summary)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"inputs":[]`) {
		t.Errorf("expected empty inputs array, got %s", data)
	}
}

func TestVerdictRecord_MarshalJSON_Mismatch(t *testing.T) {
	rec := VerdictRecord{Axes: Axes{"a", "b"}, Combination: Combination{"x"}}
	if _, err := json.Marshal(rec); err == nil {
		t.Error("expected error for axis/value mismatch")
	}
}

func TestCombination_Complete(t *testing.T) {
	tests := []struct {
		combo Combination
		want  bool
	}{
		{Combination{"Uni A"}, true},
		{Combination{"Uni A", "Moodle"}, true},
		{Combination{"Uni A", ""}, false},
		{Combination{}, false},
	}

	for _, tt := range tests {
		if got := tt.combo.Complete(); got != tt.want {
			t.Errorf("Complete(%v) = %v, want %v", tt.combo, got, tt.want)
		}
	}
}

func TestCombination_KeyDistinct(t *testing.T) {
	a := Combination{"a b", "c"}
	b := Combination{"a", "b c"}
	if a.Key() == b.Key() {
		t.Error("keys of different combinations must differ")
	}
}
