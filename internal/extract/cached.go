package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/ppiankov/claimprobe/internal/cache"
	"github.com/ppiankov/claimprobe/internal/model"
)

// CachedExtractor memoizes another Extractor by URL and instruction.
// Empty results and results containing error outcomes are not cached.
type CachedExtractor struct {
	next   Extractor
	cache  cache.Cache
	skip   bool
	logger *zap.Logger
}

// NewCachedExtractor wraps next. With skipCache set, lookups always miss
// but fresh results are still stored.
func NewCachedExtractor(next Extractor, c cache.Cache, skipCache bool, logger *zap.Logger) *CachedExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedExtractor{next: next, cache: c, skip: skipCache, logger: logger}
}

// Extract returns cached outcomes or runs the wrapped extractor
func (e *CachedExtractor) Extract(ctx context.Context, url, instruction string) ([]model.Outcome, error) {
	key := cache.Key("extract", url, instruction)

	if !e.skip {
		var outcomes []model.Outcome
		if cache.GetJSON(e.cache, key, &outcomes) {
			e.logger.Debug("extraction cache hit", zap.String("url", url))
			return outcomes, nil
		}
	}

	outcomes, err := e.next.Extract(ctx, url, instruction)
	if err != nil {
		return nil, err
	}

	if len(outcomes) == 0 {
		return outcomes, nil
	}
	for _, o := range outcomes {
		if o.IsError() {
			return outcomes, nil
		}
	}

	if err := cache.SetJSON(e.cache, key, outcomes, 0); err != nil {
		e.logger.Warn("failed to cache extraction", zap.String("url", url), zap.Error(err))
	}
	return outcomes, nil
}
