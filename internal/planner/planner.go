// Package planner works out which combinations still need evaluating.
package planner

import (
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/claimprobe/internal/model"
	"github.com/ppiankov/claimprobe/internal/store"
)

// Summary reports plan sizes before a run
type Summary struct {
	Total     int `json:"total"`
	Done      int `json:"done"`
	Remaining int `json:"remaining"`
}

// EnumerateAll builds the cartesian product of institution names with the
// value lists of any further axes. With no further axes every combination
// is a 1-tuple.
func EnumerateAll(names []string, variants ...[]string) []model.Combination {
	combos := make([]model.Combination, 0, len(names))
	for _, name := range names {
		combos = append(combos, model.Combination{name})
	}

	for _, values := range variants {
		next := make([]model.Combination, 0, len(combos)*len(values))
		for _, c := range combos {
			for _, v := range values {
				combo := make(model.Combination, len(c), len(c)+1)
				copy(combo, c)
				next = append(next, append(combo, v))
			}
		}
		combos = next
	}

	return combos
}

// ReadDone returns the keys of combinations already persisted at path.
// A line only counts when every axis field is a non-empty string; lines
// that do not parse are skipped with a warning.
func ReadDone(path string, axes model.Axes, logger *zap.Logger) (map[string]struct{}, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	done := make(map[string]struct{})
	err := store.Scan(path, func(lineNo int, obj map[string]json.RawMessage, err error) {
		if err != nil {
			logger.Warn("skipping malformed store line",
				zap.String("path", path),
				zap.Int("line", lineNo),
				zap.Error(err))
			return
		}

		combo, ok := comboFromLine(obj, axes)
		if !ok {
			logger.Debug("store line is not a complete record",
				zap.String("path", path),
				zap.Int("line", lineNo))
			return
		}
		done[combo.Key()] = struct{}{}
	})
	if err != nil {
		return nil, err
	}

	return done, nil
}

func comboFromLine(obj map[string]json.RawMessage, axes model.Axes) (model.Combination, bool) {
	if len(axes) == 0 {
		return nil, false
	}

	combo := make(model.Combination, len(axes))
	for i, name := range axes {
		raw, ok := obj[name]
		if !ok {
			return nil, false
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, false
		}
		combo[i] = v
	}

	return combo, combo.Complete()
}

// Plan returns all minus done, sorted by key and free of duplicates
func Plan(all []model.Combination, done map[string]struct{}) []model.Combination {
	seen := make(map[string]struct{}, len(all))
	pending := make([]model.Combination, 0, len(all))

	for _, c := range all {
		key := c.Key()
		if _, ok := done[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pending = append(pending, c)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Key() < pending[j].Key()
	})
	return pending
}

// Summarize counts how much of all is already done
func Summarize(all []model.Combination, done map[string]struct{}) Summary {
	unique := make(map[string]struct{}, len(all))
	var sum Summary
	for _, c := range all {
		key := c.Key()
		if _, ok := unique[key]; ok {
			continue
		}
		unique[key] = struct{}{}
		sum.Total++
		if _, ok := done[key]; ok {
			sum.Done++
		}
	}
	sum.Remaining = sum.Total - sum.Done
	return sum
}
