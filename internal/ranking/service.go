// Package ranking は回答数のランキングを計算する。
package ranking

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/hitoshi/stackforum/internal/metrics"
	"github.com/hitoshi/stackforum/internal/model"
)

// AuthorRanker は回答を投稿者ごとに集計する。
type AuthorRanker interface {
	RankAuthors(ctx context.Context, window *model.DateWindow) ([]model.RankedUser, error)
}

// Service はランキングを計算する。キャッシュは任意。
type Service struct {
	ranker  AuthorRanker
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewService は新しいランキングServiceを生成する。cache が nil ならキャッシュしない。
func NewService(ranker AuthorRanker, cache Cache, ttl time.Duration, logger *slog.Logger, m metrics.MetricsCollector) *Service {
	return &Service{
		ranker:  ranker,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

// GetRankedUsersList は window 内の回答数の降順でユーザーを返す。
// 同数はユーザー名の昇順。回答のない期間では空リストを返す。
func (s *Service) GetRankedUsersList(ctx context.Context, window *model.DateWindow) ([]model.RankedUser, error) {
	start := time.Now()
	windowName := windowKey(window)
	key, cacheable := s.cacheKey(ctx, windowName)

	if cacheable {
		if ranked, ok := s.fromCache(ctx, key); ok {
			s.metrics.RecordRankingRequest(metrics.OutcomeCacheHit, time.Since(start))
			return ranked, nil
		}
	}

	ranked, err := s.ranker.RankAuthors(ctx, window)
	if err != nil {
		s.logger.Error("ranking aggregation failed", "window", windowName, "error", err)
		s.metrics.RecordRankingRequest(metrics.OutcomeError, time.Since(start))
		return nil, model.NewRankingError()
	}
	if ranked == nil {
		ranked = []model.RankedUser{}
	}

	SortRanked(ranked)

	if cacheable {
		s.toCache(ctx, key, ranked)
	}
	s.metrics.RecordRankingRequest(metrics.OutcomeCacheMiss, time.Since(start))
	return ranked, nil
}

// Invalidate はキャッシュされたランキングをすべて破棄する。書き込み側がコミット後に呼び出す。
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("ranking cache invalidation failed", "error", err)
	}
}

// MarkViewer は閲覧者の行に印を付ける。スライスはその場で変更する。
func MarkViewer(ranked []model.RankedUser, viewer string) {
	if viewer == "" {
		return
	}
	for i := range ranked {
		ranked[i].IsViewer = ranked[i].Username == viewer
	}
}

// SortRanked は回答数の降順、次にユーザー名の昇順で並べる。
func SortRanked(ranked []model.RankedUser) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Username < ranked[j].Username
	})
}

// cacheKey はクエリの前にキャッシュのバージョンを読む。
// Invalidate をまたいで計算した結果は古いバージョンの下に入る。
func (s *Service) cacheKey(ctx context.Context, window string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	version, err := s.cache.Version(ctx)
	if err != nil {
		s.logger.Warn("ranking cache version read failed", "error", err)
		return "", false
	}
	return entryKey(version, window), true
}

func (s *Service) fromCache(ctx context.Context, key string) ([]model.RankedUser, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("ranking cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var ranked []model.RankedUser
	if err := json.Unmarshal(data, &ranked); err != nil {
		s.logger.Warn("ranking cache entry is corrupt", "key", key, "error", err)
		return nil, false
	}
	return ranked, true
}

func (s *Service) toCache(ctx context.Context, key string, ranked []model.RankedUser) {
	if s.ttl <= 0 {
		return
	}
	data, err := json.Marshal(ranked)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("ranking cache write failed", "key", key, "error", err)
	}
}
