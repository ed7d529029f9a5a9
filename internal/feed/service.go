// Package feed はユーザーのパーソナライズドフィードを組み立てる。
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/stackforum/internal/metrics"
	"github.com/hitoshi/stackforum/internal/model"
)

// UserFinder は閲覧ユーザーを解決する。
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// QuestionLister はフォロー中のユーザーが関わった質問を選ぶ。
type QuestionLister interface {
	ListByFollowedActivity(ctx context.Context, following []string) ([]model.Question, error)
}

// Service はフィードを集約する。読み取り専用。
type Service struct {
	users     UserFinder
	questions QuestionLister
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
}

// NewService は新しいフィードServiceを生成する。
func NewService(users UserFinder, questions QuestionLister, logger *slog.Logger, m metrics.MetricsCollector) *Service {
	return &Service{
		users:     users,
		questions: questions,
		logger:    logger,
		metrics:   m,
	}
}

// GetPersonalizedFeed は username がフォローするユーザーが質問または賛成票を投じた質問を
// 新しい順に返し、各質問に含めた理由を付ける。
// 誰もフォローしていないユーザーにはエラーではなく空のフィードを返す。
func (s *Service) GetPersonalizedFeed(ctx context.Context, username string) ([]model.FeedEntry, error) {
	start := time.Now()

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		s.logger.Error("feed user lookup failed", "username", username, "error", err)
		s.metrics.RecordFeedRequest(metrics.OutcomeError, time.Since(start))
		return nil, model.NewUserLookupError(username)
	}
	if user == nil {
		s.metrics.RecordFeedRequest(metrics.OutcomeError, time.Since(start))
		return nil, model.NewUserLookupError(username)
	}

	if len(user.Following) == 0 {
		s.metrics.RecordFeedRequest(metrics.OutcomeEmpty, time.Since(start))
		return []model.FeedEntry{}, nil
	}

	questions, err := s.questions.ListByFollowedActivity(ctx, user.Following)
	if err != nil {
		s.logger.Error("feed aggregation failed", "username", username, "error", err)
		s.metrics.RecordFeedRequest(metrics.OutcomeError, time.Since(start))
		return nil, model.NewFeedAggregationError()
	}

	entries := BuildFeed(questions, user.Following)

	outcome := metrics.OutcomeOK
	if len(entries) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	s.metrics.RecordFeedRequest(outcome, time.Since(start))
	return entries, nil
}
