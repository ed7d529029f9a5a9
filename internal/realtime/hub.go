// Package realtime はバスのイベントをWebSocketでブラウザに配信する。
package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"

	"github.com/hitoshi/stackforum/internal/bus"
	"github.com/hitoshi/stackforum/internal/metrics"
)

// Options は Hub を設定する。
type Options struct {
	// Buffer は接続ごとのキューの長さ。入りきらないイベントは捨てる。
	Buffer int
	// WriteTimeout は1フレームの書き込みの上限時間。
	WriteTimeout time.Duration
	// AllowedOrigins はクロスオリジンのアップグレードで受け付けるオリジンURLまたはホストパターン。
	AllowedOrigins []string
}

// Hub は接続をアップグレードし、バスのイベントを各接続に転送する。
type Hub struct {
	subscriber bus.Subscriber
	opts       Options
	origins    []string
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
}

// NewHub は subscriber から読み込む Hub を生成する。
func NewHub(subscriber bus.Subscriber, opts Options, logger *slog.Logger, m metrics.MetricsCollector) *Hub {
	if opts.Buffer < 1 {
		opts.Buffer = 1
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Hub{
		subscriber: subscriber,
		opts:       opts,
		origins:    originPatterns(opts.AllowedOrigins),
		logger:     logger,
		metrics:    m,
	}
}

// originPatterns は "http://localhost:3000" を "localhost:3000" に変換する。
// スキームのない値はそのままパターンとして使う。
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}

// ServeHTTP は GET /socket を処理する。クライアントの切断、書き込みの失敗、
// リクエストのcontextのキャンセル、購読の終了のいずれかで接続を終える。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()

	sub := h.subscriber.Subscribe(h.opts.Buffer)
	defer sub.Cancel()

	h.metrics.RecordSocketConnected()
	defer h.metrics.RecordSocketDisconnected()
	h.logger.Debug("socket connected", "remote_addr", r.RemoteAddr)

	// クライアントはフレームを送らない。CloseRead が制御フレームを処理し、
	// 相手が切断したら ctx をキャンセルする。
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("socket closed by peer", "remote_addr", r.RemoteAddr)
			return
		case e, ok := <-sub.C:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := h.write(ctx, conn, e); err != nil {
				h.logger.Debug("socket write failed", "remote_addr", r.RemoteAddr, "event", e.Name(), "error", err)
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, e bus.Event) error {
	frame, err := bus.Marshal(e)
	if err != nil {
		h.logger.Error("failed to encode event", "event", e.Name(), "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}
