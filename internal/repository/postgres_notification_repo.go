package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/stackforum/internal/model"
)

const notificationColumns = `id, username, text, seen, type, link, created_at, updated_at`

// PostgresNotificationRepo はPostgreSQLの通知リポジトリ。
type PostgresNotificationRepo struct {
	db DBTX
}

// NewPostgresNotificationRepo は新しいPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db DBTX) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// Create は通知を挿入する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.Username, n.Text, n.Seen, string(n.Type), nullableString(n.Link), n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ToggleSeen は1回の UPDATE で既読を反転する。同時のトグルでも反転は失われない。
func (r *PostgresNotificationRepo) ToggleSeen(ctx context.Context, id string, now time.Time) (*model.Notification, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE notifications SET seen = NOT seen, updated_at = $2
		 WHERE id = $1::uuid
		 RETURNING `+notificationColumns,
		id, now,
	)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle notification seen: %w", err)
	}
	return n, nil
}

// ListByUsername は通知を新しい順に返す。同時刻は id で決める。
func (r *PostgresNotificationRepo) ListByUsername(ctx context.Context, username string) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE username = $1
		 ORDER BY created_at DESC, id DESC`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return notifications, nil
}

// DeleteSeenBefore は cutoff より前に作成された既読の通知を削除する。
func (r *PostgresNotificationRepo) DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE seen = true AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete seen notifications: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func scanNotification(s scanner) (*model.Notification, error) {
	n := &model.Notification{}
	var typ string
	var link sql.NullString
	if err := s.Scan(&n.ID, &n.Username, &n.Text, &n.Seen, &typ, &link, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Type = model.NotificationType(typ)
	if link.Valid {
		n.Link = &link.String
	}
	return n, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
