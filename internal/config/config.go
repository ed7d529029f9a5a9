// Package config は環境変数からプロセスの設定を読み込む。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// イベントバスの配線が解釈するバックエンド。
const (
	BusBackendMemory = "memory"
	BusBackendRedis  = "redis"
	BusBackendAMQP   = "amqp"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に一度だけ環境変数から読み込み、以降は変更しない。
type Config struct {
	// データベース
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// サーバー
	ServerPort        string        `envconfig:"SERVER_PORT" default:"8080"`
	BaseURL           string        `envconfig:"BASE_URL" required:"true"`
	CORSAllowedOrigin string        `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`

	// ログ
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// レート制限（クライアントごとの1分あたりリクエスト数）
	RateLimitGeneral int `envconfig:"RATE_LIMIT_GENERAL" default:"120"`
	RateLimitWrite   int `envconfig:"RATE_LIMIT_WRITE" default:"30"`

	// イベントバス
	BusBackend   string `envconfig:"BUS_BACKEND" default:"memory"`
	RedisURL     string `envconfig:"REDIS_URL"`
	RedisChannel string `envconfig:"REDIS_CHANNEL" default:"stackforum:events"`
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"stackforum.events"`

	// ソケット
	SocketBuffer       int           `envconfig:"SOCKET_BUFFER" default:"64"`
	SocketWriteTimeout time.Duration `envconfig:"SOCKET_WRITE_TIMEOUT" default:"5s"`

	// ランキング
	RankingCacheTTL time.Duration `envconfig:"RANKING_CACHE_TTL" default:"30s"`

	// 関連動画
	VideoFeedURL    string        `envconfig:"VIDEO_FEED_URL"`
	VideoTimeout    time.Duration `envconfig:"VIDEO_TIMEOUT" default:"5s"`
	VideoMaxResults int           `envconfig:"VIDEO_MAX_RESULTS" default:"5"`
	VideoMaxSize    int64         `envconfig:"VIDEO_MAX_SIZE" default:"2097152"`

	// 通知
	NotificationRetentionDays int `envconfig:"NOTIFICATION_RETENTION_DAYS" default:"0"`
}

// Load は環境変数から Config を読み込む。
// 必須の変数が未設定または空の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	// envconfig は "" が設定された変数も受け付けるため明示的に確認する
	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.BusBackend = strings.ToLower(strings.TrimSpace(cfg.BusBackend))
	switch cfg.BusBackend {
	case BusBackendMemory:
	case BusBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when BUS_BACKEND=%s", cfg.BusBackend)
		}
	case BusBackendAMQP:
		if cfg.AMQPURL == "" {
			return nil, fmt.Errorf("AMQP_URL is required when BUS_BACKEND=%s", cfg.BusBackend)
		}
	default:
		return nil, fmt.Errorf("unsupported BUS_BACKEND: %q", cfg.BusBackend)
	}

	return cfg, nil
}
