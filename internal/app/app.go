// Package app は設定・ストレージ・サービス・トランスポートを組み立て、
// serve / worker / migrate / healthcheck の各コマンドとして起動する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/stackforum/internal/answer"
	"github.com/hitoshi/stackforum/internal/bus"
	"github.com/hitoshi/stackforum/internal/client"
	"github.com/hitoshi/stackforum/internal/comment"
	"github.com/hitoshi/stackforum/internal/config"
	"github.com/hitoshi/stackforum/internal/database"
	"github.com/hitoshi/stackforum/internal/feed"
	"github.com/hitoshi/stackforum/internal/handler"
	"github.com/hitoshi/stackforum/internal/logger"
	"github.com/hitoshi/stackforum/internal/metrics"
	"github.com/hitoshi/stackforum/internal/middleware"
	"github.com/hitoshi/stackforum/internal/notification"
	"github.com/hitoshi/stackforum/internal/ranking"
	"github.com/hitoshi/stackforum/internal/realtime"
	"github.com/hitoshi/stackforum/internal/repository"
	"github.com/hitoshi/stackforum/internal/security"
	"github.com/hitoshi/stackforum/internal/social"
	"github.com/hitoshi/stackforum/internal/video"
	"github.com/hitoshi/stackforum/internal/worker/cleanup"
)

const (
	shutdownTimeout = 30 * time.Second
	cleanupInterval = 24 * time.Hour
	rankingPrefix   = "stackforum:ranking:"
)

// Init は w にJSONロガーを設定し、Configを読み込む。
// ログレベルはConfig読み込み後に LOG_LEVEL から設定する。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run は args (os.Args[1:]) からサブコマンドを解釈して実行する。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は初期化処理を行わない
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("bus_backend", cfg.BusBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// runServe はAPIサーバーとソケットハブを起動する。
// ctx がキャンセルされるとグレースフルシャットダウンして戻る。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database connection established")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	eventBus, err := newEventBus(ctx, cfg, redisClient, log, m)
	if err != nil {
		return err
	}

	store := repository.NewPostgresStore(db)
	uow := repository.NewPostgresUnitOfWork(db)
	text := security.NewTextSanitizer()
	rich := security.NewRichTextSanitizer()

	var cache ranking.Cache
	if redisClient != nil {
		cache = ranking.NewRedisCache(redisClient, rankingPrefix)
	}

	notes := notification.NewService(store.Notifications(), store.Users(), eventBus, text, log, m)
	rankings := ranking.NewService(store.Answers(), cache, cfg.RankingCacheTTL, log, m)

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite), log)
	defer rl.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Metrics:           m,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     db,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RequestTimeout:    cfg.RequestTimeout,
		RateLimiter:       rl,
		Socket: realtime.NewHub(eventBus, realtime.Options{
			Buffer:         cfg.SocketBuffer,
			WriteTimeout:   cfg.SocketWriteTimeout,
			AllowedOrigins: []string{cfg.CORSAllowedOrigin},
		}, log, m),

		FeedService:         feed.NewService(store.Users(), store.Questions(), log, m),
		RankingService:      rankings,
		SocialService:       social.NewService(uow, notes, eventBus, rankings, log),
		NotificationService: notes,
		AnswerService:       answer.NewService(uow, notes, eventBus, rankings, rich, log),
		CommentService:      comment.NewService(uow, notes, rich, log),
		QuestionFinder:      store.Questions(),
		VideoService: video.NewService(video.Options{
			FeedURL:    cfg.VideoFeedURL,
			Timeout:    cfg.VideoTimeout,
			MaxResults: cfg.VideoMaxResults,
			MaxSize:    cfg.VideoMaxSize,
		}, security.NewSafeClient(cfg.VideoTimeout), rich, log, m),
	})

	// ソケットは長時間接続のため WriteTimeout は設定しない。
	// RESTリクエストはルーターのタイムアウトミドルウェアで制限する。
	// リクエストのcontextは ctx から派生させ、シャットダウン時にソケットも閉じる。
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// newEventBus は cfg.BusBackend に応じたバスを生成する。
// リレーはバックグラウンドでブローカーを購読し、ctx がキャンセルされるまでバックオフ付きで再起動される。
func newEventBus(ctx context.Context, cfg *config.Config, redisClient *redis.Client, log *slog.Logger, m metrics.MetricsCollector) (bus.Bus, error) {
	local := bus.NewMemoryBus(log, m)

	switch cfg.BusBackend {
	case config.BusBackendRedis:
		relay := bus.NewRedisRelay(redisClient, cfg.RedisChannel, local, log, m)
		go bus.Supervise(ctx, "redis", relay.Run, client.CalculateBackoff, log, m)
		return relay, nil
	case config.BusBackendAMQP:
		relay, err := bus.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, local, log, m)
		if err != nil {
			return nil, err
		}
		go func() {
			bus.Supervise(ctx, "amqp", relay.Run, client.CalculateBackoff, log, m)
			relay.Close()
		}()
		return relay, nil
	default:
		return local, nil
	}
}

// runWorker は ctx がキャンセルされるまで通知保持ジョブを日次で実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("worker starting",
		slog.Int("retention_days", cfg.NotificationRetentionDays),
		slog.Duration("interval", cleanupInterval),
	)

	job := cleanup.NewNotificationJob(repository.NewPostgresNotificationRepo(db), cfg.NotificationRetentionDays, slog.Default())
	job.Start(ctx, cleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate は未適用のマイグレーションをすべて適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はローカルサーバーの /health を確認する（distrolessイメージ用）。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	httpClient := &http.Client{Timeout: 5 * time.Second}

	resp, err := httpClient.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// maskDatabaseURL はデータベースURLのパスワードを伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
