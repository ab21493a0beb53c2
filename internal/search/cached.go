package search

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/claimprobe/internal/cache"
)

// CachedSearcher memoizes another Searcher. Concurrent identical queries
// share one backend call.
type CachedSearcher struct {
	next   Searcher
	cache  cache.Cache
	skip   bool
	group  singleflight.Group
	logger *zap.Logger
}

// NewCachedSearcher wraps next. With skipCache set, lookups always miss but
// fresh results are still stored.
func NewCachedSearcher(next Searcher, c cache.Cache, skipCache bool, logger *zap.Logger) *CachedSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSearcher{next: next, cache: c, skip: skipCache, logger: logger}
}

// Query returns cached links or asks the wrapped searcher
func (s *CachedSearcher) Query(ctx context.Context, text string) ([]string, error) {
	key := cache.Key("search", text)

	if !s.skip {
		var links []string
		if cache.GetJSON(s.cache, key, &links) {
			s.logger.Debug("search cache hit", zap.String("query", text))
			return links, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		links, err := s.next.Query(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := cache.SetJSON(s.cache, key, links, 0); err != nil {
			s.logger.Warn("failed to cache search results", zap.String("query", text), zap.Error(err))
		}
		return links, nil
	})
	if err != nil {
		return nil, err
	}

	links := v.([]string)
	out := make([]string, len(links))
	copy(out, links)
	return out, nil
}
