package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hitoshi/stackforum/internal/metrics"
)

// AMQPRelay はfanout exchangeを通じてAPIレプリカ間にイベントを配る。
// 各レプリカは専用の排他・自動削除キューで受信する。
// Run が受信していない間は、配信したイベントをローカルバスにも流す。
type AMQPRelay struct {
	url      string
	exchange string
	local    *MemoryBus
	logger   *slog.Logger
	metrics  metrics.MetricsCollector

	mu    sync.Mutex
	conn  *amqp.Connection
	pubCh *amqp.Channel

	consuming atomic.Bool
}

var _ Bus = (*AMQPRelay)(nil)

// DialAMQP はブローカーに接続し、fanout exchangeを宣言する。
func DialAMQP(url, exchange string, local *MemoryBus, logger *slog.Logger, m metrics.MetricsCollector) (*AMQPRelay, error) {
	r := &AMQPRelay{
		url:      url,
		exchange: exchange,
		local:    local,
		logger:   logger,
		metrics:  m,
	}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

// connect はブローカーに接続してexchangeを宣言する。
// 呼び出し側は mu を保持しているか、r を排他的に所有していること。
func (r *AMQPRelay) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("failed to connect to amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(r.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", r.exchange, err)
	}

	r.conn = conn
	r.pubCh = ch
	return nil
}

// connection は有効な接続を返す。ブローカーに切断されていれば再接続する。
func (r *AMQPRelay) connection() (*amqp.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil && !r.conn.IsClosed() {
		return r.conn, nil
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
	if err := r.connect(); err != nil {
		return nil, err
	}
	r.logger.Info("amqp relay reconnected", "exchange", r.exchange)
	return r.conn, nil
}

// Publish は e をexchangeに送る。ブローカー障害時はローカルにのみ配信する。
func (r *AMQPRelay) Publish(ctx context.Context, e Event) {
	data, err := Marshal(e)
	if err != nil {
		r.logger.Warn("failed to encode event", "event", e.Name(), "error", err)
		return
	}

	r.mu.Lock()
	err = r.pubCh.PublishWithContext(ctx, r.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Type:        string(e.Name()),
		Timestamp:   time.Now(),
		Body:        data,
	})
	r.mu.Unlock()

	if err != nil {
		r.metrics.RecordRelayFailure("amqp")
		r.logger.Warn("amqp publish failed, delivering locally", "event", e.Name(), "error", err)
		r.local.Publish(ctx, e)
		return
	}
	if !r.consuming.Load() {
		r.local.Publish(ctx, e)
	}
}

// Consuming は Run がリレーキューを受信中かどうかを返す。
func (r *AMQPRelay) Consuming() bool {
	return r.consuming.Load()
}

// Subscribe はローカルバスを購読する。
func (r *AMQPRelay) Subscribe(buffer int) *Subscription {
	return r.local.Subscribe(buffer)
}

// Run は専用キューをexchangeにバインドし、ctx のキャンセルまたは
// ブローカーによる配信終了まで受信する。切断された接続は次の Run で再接続する。
// 再起動には Supervise を使う。
func (r *AMQPRelay) Run(ctx context.Context) error {
	conn, err := r.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open amqp channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare relay queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", r.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind relay queue: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume relay queue: %w", err)
	}
	r.consuming.Store(true)
	defer r.consuming.Store(false)
	r.logger.Info("amqp relay consuming", "exchange", r.exchange, "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			e, err := Unmarshal(d.Body)
			if err != nil {
				r.metrics.RecordRelayFailure("amqp")
				r.logger.Warn("discarding undecodable relay message", "error", err)
				continue
			}
			r.local.Publish(ctx, e)
		}
	}
}

// Close は配信用チャネルと接続を閉じる。
func (r *AMQPRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.pubCh.Close()
	return r.conn.Close()
}
