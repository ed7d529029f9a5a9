package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/stackforum/internal/metrics"
)

// RedisRelay はRedisのpub/subチャネルを通じてAPIレプリカ間にイベントを配る。
// 配信元を含む各レプリカは Run でメッセージを受信してローカルの MemoryBus に流すため、
// イベントはレプリカごとに1回届く。
// Run が購読していない間は、配信したイベントをローカルバスにも流す。
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   *MemoryBus
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	consuming atomic.Bool
}

var _ Bus = (*RedisRelay)(nil)

// NewRedisRelay は local を使う RedisRelay を生成する。
func NewRedisRelay(client *redis.Client, channel string, local *MemoryBus, logger *slog.Logger, m metrics.MetricsCollector) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger,
		metrics: m,
	}
}

// Publish は e をチャネルに送る。Redisに到達できないとき、または
// このレプリカが購読していないときは、ローカルの購読者にも配信する。
func (r *RedisRelay) Publish(ctx context.Context, e Event) {
	data, err := Marshal(e)
	if err != nil {
		r.logger.Warn("failed to encode event", "event", e.Name(), "error", err)
		return
	}

	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.metrics.RecordRelayFailure("redis")
		r.logger.Warn("redis publish failed, delivering locally", "event", e.Name(), "error", err)
		r.local.Publish(ctx, e)
		return
	}
	if !r.consuming.Load() {
		r.local.Publish(ctx, e)
	}
}

// Consuming は Run がチャネルを購読中かどうかを返す。
func (r *RedisRelay) Consuming() bool {
	return r.consuming.Load()
}

// Subscribe はローカルバスを購読する。
func (r *RedisRelay) Subscribe(buffer int) *Subscription {
	return r.local.Subscribe(buffer)
}

// Run は ctx のキャンセルまたは購読の終了までチャネルを受信する。
// 再起動には Supervise を使う。
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.client.Subscribe(ctx, r.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.consuming.Store(true)
	defer r.consuming.Store(false)
	r.logger.Info("redis relay subscribed", "channel", r.channel)

	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis subscription to %s closed", r.channel)
			}
			e, err := Unmarshal([]byte(msg.Payload))
			if err != nil {
				r.metrics.RecordRelayFailure("redis")
				r.logger.Warn("discarding undecodable relay message", "error", err)
				continue
			}
			r.local.Publish(ctx, e)
		}
	}
}
