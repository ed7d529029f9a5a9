// Package cleanup は通知の保持期間ジョブを提供する。
// RetentionDays より古い既読の通知を毎日のバッチで削除し、
// 未読の通知は古さにかかわらず残す。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// NotificationDeleter は cutoff より前に作成された既読の通知を削除する。
type NotificationDeleter interface {
	DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationJob は保持期間を過ぎた既読の通知を削除する。
// RetentionDays <= 0 の場合はすべての通知を残す。
type NotificationJob struct {
	store         NotificationDeleter
	logger        *slog.Logger
	RetentionDays int
	now           func() time.Time
}

// NewNotificationJob は新しいNotificationJobを生成する。
func NewNotificationJob(store NotificationDeleter, retentionDays int, logger *slog.Logger) *NotificationJob {
	return &NotificationJob{
		store:         store,
		logger:        logger,
		RetentionDays: retentionDays,
		now:           time.Now,
	}
}

// Run は1回削除する。冪等で、削除対象がなくてもエラーにしない。
func (j *NotificationJob) Run(ctx context.Context) error {
	if j.RetentionDays <= 0 {
		j.logger.Debug("notification retention disabled")
		return nil
	}

	start := j.now()
	cutoff := start.AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.store.DeleteSeenBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("notification cleanup failed",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("failed to delete seen notifications: %w", err)
	}

	j.logger.Info("notification cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はジョブを即座に実行し、以降は ctx が終了するまで interval ごとに実行する。
// 失敗した実行はログに出力し、次のtickで再試行する。
func (j *NotificationJob) Start(ctx context.Context, interval time.Duration) {
	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
