package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/stackforum/internal/metrics"
	"github.com/hitoshi/stackforum/internal/middleware"
)

// HealthChecker はデータベースに到達できるかを確認する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps は NewRouter が組み立てる依存をまとめる。
type RouterDeps struct {
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RequestTimeout    time.Duration
	RateLimiter       *middleware.RateLimiter

	// Socket は /socket を提供する。接続が長時間続くため、
	// タイムアウトとアクセスログのミドルウェアの外側で動かす。
	Socket http.Handler

	FeedService         FeedServiceInterface
	RankingService      RankingServiceInterface
	SocialService       SocialServiceInterface
	NotificationService NotificationServiceInterface
	AnswerService       AnswerServiceInterface
	CommentService      CommentServiceInterface
	QuestionFinder      QuestionFinder
	VideoService        VideoServiceInterface
}

// NewRouter は全エンドポイントを持つchiルーターを構築する。
//
// ミドルウェアの順序:
//
//	RequestID → RealIP → Recovery → SecurityHeaders → CORS
//	  → Logging → Metrics → Timeout → RateLimit(General) [→ RateLimit(Write)]
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.Socket != nil {
		r.Handle("/socket", deps.Socket)
	}

	feedHandler := NewFeedHandler(deps.FeedService)
	userHandler := NewUserHandler(deps.RankingService, deps.SocialService)
	notificationHandler := NewNotificationHandler(deps.NotificationService)
	postHandler := NewPostHandler(deps.AnswerService, deps.CommentService, deps.QuestionFinder, deps.VideoService)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
		if deps.RequestTimeout > 0 {
			r.Use(chimw.Timeout(deps.RequestTimeout))
		}
		r.Use(deps.RateLimiter.GeneralMiddleware())

		write := deps.RateLimiter.WriteMiddleware()

		r.Get("/feed/getRecommendedFeed/{username}", feedHandler.GetRecommendedFeed)

		r.Route("/user", func(r chi.Router) {
			r.Get("/getUsers/ranking", userHandler.GetRanking)
			r.With(write).Post("/follow", userHandler.Follow)
			r.With(write).Post("/unfollow", userHandler.Unfollow)
		})

		r.Route("/notification", func(r chi.Router) {
			r.Get("/getNotifications/{username}", notificationHandler.GetNotifications)
			r.With(write).Patch("/toggleSeen/{id}", notificationHandler.ToggleSeen)
			r.With(write).Post("/createNotification", notificationHandler.CreateNotification)
		})

		r.With(write).Post("/answer/addAnswer", postHandler.AddAnswer)
		r.With(write).Post("/comment/addComment", postHandler.AddComment)
		r.Get("/question/getVideos/{qid}", postHandler.GetVideos)
	})

	return r
}

// healthHandler はデータベースが2秒以内にpingに応答すれば200を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
