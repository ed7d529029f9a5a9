// Package notification はユーザーごとの通知を記録し、バスで告知する。
package notification

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/stackforum/internal/bus"
	"github.com/hitoshi/stackforum/internal/metrics"
	"github.com/hitoshi/stackforum/internal/model"
	"github.com/hitoshi/stackforum/internal/security"
)

// Store はサービスが使う永続化層。
type Store interface {
	Create(ctx context.Context, n *model.Notification) error
	ToggleSeen(ctx context.Context, id string, now time.Time) (*model.Notification, error)
	ListByUsername(ctx context.Context, username string) ([]model.Notification, error)
}

// UserFinder は受信者が存在するかを確認する。
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// Service は保存・トグル・一覧を実装する。
type Service struct {
	store     Store
	users     UserFinder
	publisher bus.Publisher
	sanitizer security.Sanitizer
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService は新しい通知Serviceを生成する。
func NewService(
	store Store,
	users UserFinder,
	publisher bus.Publisher,
	sanitizer security.Sanitizer,
	logger *slog.Logger,
	m metrics.MetricsCollector,
) *Service {
	return &Service{
		store:     store,
		users:     users,
		publisher: publisher,
		sanitizer: sanitizer,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Prepare は in を検証し、永続化するレコードを組み立てる。ストレージには触れないため、
// ドメインの処理はトランザクションを開始する前に呼び出せる。
func (s *Service) Prepare(in model.NotificationInput) (*model.Notification, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, model.NewValidationError("username is required")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, model.NewValidationError("text is required")
	}
	if in.Type == "" {
		return nil, model.NewValidationError("type is required")
	}
	if !in.Type.Valid() {
		return nil, model.NewValidationError("unknown notification type " + string(in.Type))
	}

	text := s.sanitizer.Sanitize(in.Text)
	if text == "" {
		return nil, model.NewValidationError("text is empty after sanitizing")
	}

	var link *string
	if in.Link != nil && strings.TrimSpace(*in.Link) != "" {
		l := strings.TrimSpace(*in.Link)
		link = &l
	}

	seen := false
	if in.Seen != nil {
		seen = *in.Seen
	}

	now := s.now().UTC()
	return &model.Notification{
		ID:        uuid.New().String(),
		Username:  username,
		Text:      text,
		Seen:      seen,
		Type:      in.Type,
		Link:      link,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Announce は作成した通知を発行する。ドメインの処理はコミット後に呼び出す。
func (s *Service) Announce(ctx context.Context, n *model.Notification) {
	s.metrics.RecordNotificationCreated(string(n.Type))
	s.publisher.Publish(ctx, bus.NotificationUpdate{Type: bus.ChangeCreated, Notification: *n})
}

// Save は通知を検証して永続化し、告知する。
// 検証に失敗した場合はストアに到達しない。
func (s *Service) Save(ctx context.Context, in model.NotificationInput) (*model.Notification, error) {
	n, err := s.Prepare(in)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByUsername(ctx, n.Username)
	if err != nil {
		s.logger.Error("notification recipient lookup failed", "username", n.Username, "error", err)
		return nil, model.NewNotificationError("saving notification")
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(n.Username)
	}

	if err := s.store.Create(ctx, n); err != nil {
		s.logger.Error("failed to save notification", "username", n.Username, "type", n.Type, "error", err)
		return nil, model.NewNotificationError("saving notification")
	}

	s.Announce(ctx, n)
	return n, nil
}

// Toggle は1件の通知の既読を反転し、新しい状態を返す。
// 結果は呼び出し側だけが必要とするため、何も発行しない。
func (s *Service) Toggle(ctx context.Context, id string) (*model.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewNotificationNotFoundError(id)
	}

	n, err := s.store.ToggleSeen(ctx, id, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to toggle notification", "id", id, "error", err)
		return nil, model.NewNotificationError("updating notification")
	}
	if n == nil {
		return nil, model.NewNotificationNotFoundError(id)
	}
	return n, nil
}

// ListByUsername はユーザーの通知を新しい順に返す。
// 存在しないユーザーは空リストではなくエラーになる。
func (s *Service) ListByUsername(ctx context.Context, username string) ([]model.Notification, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		s.logger.Error("notification owner lookup failed", "username", username, "error", err)
		return nil, model.NewNotificationError("fetching notifications")
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(username)
	}

	list, err := s.store.ListByUsername(ctx, username)
	if err != nil {
		s.logger.Error("failed to list notifications", "username", username, "error", err)
		return nil, model.NewNotificationError("fetching notifications")
	}
	if list == nil {
		list = []model.Notification{}
	}

	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}
