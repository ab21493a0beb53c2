package model

// Judgment is the verdict an extraction produced for one chunk of a document
type Judgment struct {
	Reasoning string `json:"reasoning"`
	Positive  bool   `json:"result"`
}

// ExtractionError marks a chunk the extractor could not process
type ExtractionError struct {
	ChunkIndex int    `json:"index"`
	Message    string `json:"content"`
}

// Outcome is the per-chunk extraction result. Exactly one of Judgment or
// Error is set.
type Outcome struct {
	Judgment *Judgment        `json:"judgment,omitempty"`
	Error    *ExtractionError `json:"error,omitempty"`
}

// JudgmentOutcome wraps a judgment
func JudgmentOutcome(reasoning string, positive bool) Outcome {
	return Outcome{Judgment: &Judgment{Reasoning: reasoning, Positive: positive}}
}

// ErrorOutcome wraps an extraction error
func ErrorOutcome(chunkIndex int, message string) Outcome {
	return Outcome{Error: &ExtractionError{ChunkIndex: chunkIndex, Message: message}}
}

// IsError reports whether the outcome is an extraction error
func (o Outcome) IsError() bool {
	return o.Error != nil
}

// URLVerdict is the combined verdict for one visited URL
type URLVerdict struct {
	URL       string `json:"url"`
	Result    bool   `json:"result"`
	Reasoning string `json:"reasoning"`
}
