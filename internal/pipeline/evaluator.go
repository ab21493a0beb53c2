// Package pipeline evaluates one combination: search, then extract URL by
// URL until evidence turns up.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/claimprobe/internal/extract"
	"github.com/ppiankov/claimprobe/internal/investigation"
	"github.com/ppiankov/claimprobe/internal/model"
	"github.com/ppiankov/claimprobe/internal/search"
)

// Per-URL reasoning when the extractor had nothing to judge
const (
	ReasonNoContent = "no content extracted"
	ReasonNoMention = "no mention found"
)

const reasoningSep = "; "

// DefaultMaxURLs bounds the search results visited per combination
const DefaultMaxURLs = 5

// ChunkFailureError reports an extraction that returned error outcomes
type ChunkFailureError struct {
	URL    string
	Errors []model.ExtractionError
}

func (e *ChunkFailureError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ce := range e.Errors {
		msgs[i] = fmt.Sprintf("chunk %d: %s", ce.ChunkIndex, ce.Message)
	}
	return fmt.Sprintf("extraction failed for %s: %s", e.URL, strings.Join(msgs, reasoningSep))
}

// Evaluator produces the verdict record for a combination
type Evaluator struct {
	def          *investigation.Definition
	institutions map[string]model.Institution
	searcher     search.Searcher
	extractor    extract.Extractor
	maxURLs      int
	logger       *zap.Logger
}

// NewEvaluator creates an evaluator. institutions is keyed by name; the
// first combination value names the institution.
func NewEvaluator(def *investigation.Definition, institutions map[string]model.Institution, searcher search.Searcher, extractor extract.Extractor, maxURLs int, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxURLs <= 0 {
		maxURLs = DefaultMaxURLs
	}
	return &Evaluator{
		def:          def,
		institutions: institutions,
		searcher:     searcher,
		extractor:    extractor,
		maxURLs:      maxURLs,
		logger:       logger,
	}
}

// Evaluate searches for the combination and visits result URLs in order,
// stopping at the first one with a positive judgment. Any extraction
// failure fails the combination; no record is produced.
func (e *Evaluator) Evaluate(ctx context.Context, combo model.Combination) (*model.VerdictRecord, error) {
	if len(combo) != len(e.def.Axes) {
		return nil, fmt.Errorf("combination %s has %d values, want %d", combo, len(combo), len(e.def.Axes))
	}

	inst, ok := e.institutions[combo[0]]
	if !ok {
		return nil, fmt.Errorf("unknown institution %q", combo[0])
	}

	params := e.def.Params(combo, inst)
	query, err := e.def.Query(params)
	if err != nil {
		return nil, err
	}
	instruction, err := e.def.Instruction(params)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With(zap.String("combination", combo.String()))

	urls, err := e.searcher.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(urls) > e.maxURLs {
		urls = urls[:e.maxURLs]
	}
	logger.Debug("search finished", zap.String("query", query), zap.Int("urls", len(urls)))

	inputs := make([]model.URLVerdict, 0, len(urls))
	for _, url := range urls {
		verdict, err := e.judgeURL(ctx, url, instruction)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, verdict)

		if verdict.Result {
			logger.Debug("evidence found", zap.String("url", url))
			break
		}
	}

	return model.NewVerdictRecord(e.def.Axes, combo, inputs), nil
}

func (e *Evaluator) judgeURL(ctx context.Context, url, instruction string) (model.URLVerdict, error) {
	outcomes, err := e.extractor.Extract(ctx, url, instruction)
	if err != nil {
		return model.URLVerdict{}, fmt.Errorf("extract %s: %w", url, err)
	}

	var failures []model.ExtractionError
	var positives []string
	judged := 0
	for _, o := range outcomes {
		switch {
		case o.Error != nil:
			failures = append(failures, *o.Error)
		case o.Judgment != nil:
			judged++
			if o.Judgment.Positive {
				positives = append(positives, o.Judgment.Reasoning)
			}
		}
	}
	if len(failures) > 0 {
		return model.URLVerdict{}, &ChunkFailureError{URL: url, Errors: failures}
	}

	verdict := model.URLVerdict{URL: url}
	switch {
	case judged == 0:
		verdict.Reasoning = ReasonNoContent
	case len(positives) > 0:
		verdict.Result = true
		verdict.Reasoning = strings.Join(positives, reasoningSep)
	default:
		verdict.Reasoning = ReasonNoMention
	}
	return verdict, nil
}
