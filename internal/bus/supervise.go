package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/stackforum/internal/metrics"
)

// stableRun はバックオフをリセットするまでにリレーが受信を続ける必要のある時間。
const stableRun = time.Minute

// Supervise は ctx がキャンセルされるまでリレーの受信を維持する。
// run がエラーの有無にかかわらず戻るたびに backoff(attempt) だけ待って再起動する。
// attempt は連続した短時間実行の回数で、0から数える。
func Supervise(ctx context.Context, backend string, run func(context.Context) error, backoff func(int) time.Duration, logger *slog.Logger, m metrics.MetricsCollector) {
	attempt := 0
	for {
		started := time.Now()
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) >= stableRun {
			attempt = 0
		}

		delay := backoff(attempt)
		m.RecordRelayFailure(backend)
		args := []any{"backend", backend, "attempt", attempt + 1, "retry_in", delay.String()}
		if err != nil {
			args = append(args, "error", err)
		}
		logger.Error("event relay stopped, restarting", args...)
		attempt++

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
