package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/stackforum/internal/metrics"
)

// Publisher はイベントを配信する。呼び出し側から見て配信は失敗しない。
// 配信時の問題はログとメトリクスに記録する。
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Subscriber は購読者ごとに上限付きキューを持つ購読を払い出す。
type Subscriber interface {
	Subscribe(buffer int) *Subscription
}

// Bus はイベントチャネルの送信側と受信側の両方。
type Bus interface {
	Publisher
	Subscriber
}

// Subscription は Cancel が呼ばれるまで配信順にイベントを受け取る。
type Subscription struct {
	C <-chan Event

	once   sync.Once
	cancel func()
}

// Cancel は配信を止めて C を閉じる。複数回呼んでも安全。
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// MemoryBus はプロセス内の購読者にイベントを配る。
// キューが満杯の購読者はそのイベントを取りこぼすが、他の購読者には影響しない。
type MemoryBus struct {
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan Event
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus は購読者のいない MemoryBus を生成する。
func NewMemoryBus(logger *slog.Logger, m metrics.MetricsCollector) *MemoryBus {
	return &MemoryBus{
		logger:  logger,
		metrics: m,
		subs:    make(map[uint64]chan Event),
	}
}

// Publish は現在の全購読者にブロックせず e を配信する。
func (b *MemoryBus) Publish(ctx context.Context, e Event) {
	if err := e.validate(); err != nil {
		b.logger.Warn("dropping invalid event", "event", e.Name(), "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	b.metrics.RecordBusPublished(string(e.Name()))
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.metrics.RecordBusDropped(string(e.Name()))
			b.logger.Debug("subscriber queue full, event dropped", "event", e.Name(), "subscriber", id)
		}
	}
}

// Subscribe は buffer 件のキューを持つ購読者を登録する。
func (b *MemoryBus) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	return &Subscription{
		C: ch,
		cancel: func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		},
	}
}

// Subscribers は現在の購読者数を返す。
func (b *MemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
