package bus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/stackforum/internal/metrics"
)

func quickBackoff(int) time.Duration { return time.Millisecond }

// 起動時にブローカーが停止していてもリレーは再起動され続け、
// ブローカーが応答すれば受信を始める。
func TestSupervise_RestartsUntilRunSucceeds(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	m := metrics.NewCollector(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	consuming := make(chan struct{})
	run := func(ctx context.Context) error {
		if calls.Add(1) <= 3 {
			return errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
		}
		close(consuming)
		<-ctx.Done()
		return nil
	}

	done := make(chan struct{})
	go func() {
		Supervise(ctx, "redis", run, quickBackoff, logger, m)
		close(done)
	}()

	select {
	case <-consuming:
	case <-time.After(2 * time.Second):
		t.Fatalf("relay not restarted, %d attempts", calls.Load())
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Supervise did not return after cancel")
	}

	if got := calls.Load(); got != 4 {
		t.Errorf("attempts = %d, want 4", got)
	}
	if n := strings.Count(buf.String(), "event relay stopped, restarting"); n != 3 {
		t.Errorf("restart logs = %d, want 3\n%s", n, buf.String())
	}
}

// エラーなしで戻った Run も再起動される。
func TestSupervise_RestartsAfterCleanReturn(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	m := metrics.NewCollector(prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	run := func(context.Context) error {
		if calls.Add(1) == 2 {
			cancel()
		}
		return nil
	}

	Supervise(ctx, "amqp", run, quickBackoff, logger, m)

	if got := calls.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestSupervise_StopsDuringBackoff(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	m := metrics.NewCollector(prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())

	run := func(context.Context) error {
		cancel()
		return errors.New("broker gone")
	}
	done := make(chan struct{})
	go func() {
		Supervise(ctx, "redis", run, func(int) time.Duration { return time.Hour }, logger, m)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Supervise kept waiting after cancel")
	}
}

// 起動時からRedisが停止している場合、Run は失敗してリレーは受信しないが、
// イベントはこのレプリカのソケットに届く。
func TestRedisRelay_DownAtStartup(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	local, _ := newTestBus(t)
	relay := NewRedisRelay(client, "unused", local, local.logger, local.metrics)
	sub := relay.Subscribe(2)
	defer sub.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := relay.Run(ctx); err == nil {
		t.Fatal("expected Run to fail without a broker")
	}
	if relay.Consuming() {
		t.Error("relay reports consuming after a failed subscribe")
	}

	relay.Publish(ctx, storeEvent(5))
	select {
	case e := <-sub.C:
		if e.(StoreUpdate).Count != 5 {
			t.Errorf("got %#v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event lost while the relay was down")
	}
}
