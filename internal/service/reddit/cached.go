package reddit

import (
	"context"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/service/cache"
	"github.com/kapu/markov-kakao-bot-go/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the uncached corpus lookup.
type Fetcher interface {
	FetchCorpus(ctx context.Context, owner string) (*domain.Corpus, error)
}

// Cache stores JSON values with a TTL. *cache.CacheService satisfies it.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachedSource serves corpora from Cache and collapses concurrent fetches of
// the same owner into one upstream request. Cache failures degrade to a
// direct fetch.
type CachedSource struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

func NewCachedSource(fetcher Fetcher, c Cache, ttl time.Duration, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{
		fetcher: fetcher,
		cache:   c,
		ttl:     ttl,
		logger:  logger,
	}
}

func (s *CachedSource) FetchCorpus(ctx context.Context, owner string) (*domain.Corpus, error) {
	key := cache.CorpusKey(util.Normalize(owner))

	if s.cache != nil {
		var cached domain.Corpus
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("Corpus cache read failed", zap.String("owner", owner), zap.Error(err))
		} else if found {
			s.logger.Debug("Corpus cache hit", zap.String("owner", owner))
			return &cached, nil
		}
	}

	value, err, shared := s.group.Do(key, func() (any, error) {
		corpus, err := s.fetcher.FetchCorpus(ctx, owner)
		if err != nil {
			return nil, err
		}
		if s.cache != nil && s.ttl > 0 {
			if err := s.cache.Set(ctx, key, corpus, s.ttl); err != nil {
				s.logger.Warn("Corpus cache write failed", zap.String("owner", owner), zap.Error(err))
			}
		}
		return corpus, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("Corpus fetch shared", zap.String("owner", owner))
	}

	// Callers may not mutate a shared corpus.
	corpus := *value.(*domain.Corpus)
	corpus.Fragments = append([]string(nil), corpus.Fragments...)
	return &corpus, nil
}
