// Package social はフォローグラフを管理する。
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/stackforum/internal/bus"
	"github.com/hitoshi/stackforum/internal/model"
	"github.com/hitoshi/stackforum/internal/repository"
)

// Notifier は通知レコードを組み立て、コミット後に告知する。
type Notifier interface {
	Prepare(in model.NotificationInput) (*model.Notification, error)
	Announce(ctx context.Context, n *model.Notification)
}

// RankingInvalidator はキャッシュされたランキングを破棄する。ランキングの行はフォロー一覧を持つ。
type RankingInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service はフォローとフォロー解除を実装する。
type Service struct {
	uow       repository.UnitOfWork
	notifier  Notifier
	publisher bus.Publisher
	rankings  RankingInvalidator
	logger    *slog.Logger
}

// NewService は新しいソーシャルServiceを生成する。rankings は nil でもよい。
func NewService(uow repository.UnitOfWork, notifier Notifier, publisher bus.Publisher, rankings RankingInvalidator, logger *slog.Logger) *Service {
	return &Service{
		uow:       uow,
		notifier:  notifier,
		publisher: publisher,
		rankings:  rankings,
		logger:    logger,
	}
}

// Follow は follower に followee をフォローさせ、followee に通知する。
// 2回目のフォローは通知せずに成功する。
// 更新後の follower のプロフィールを返す。
func (s *Service) Follow(ctx context.Context, follower, followee string) (*model.Profile, error) {
	follower, followee, err := normalize(follower, followee)
	if err != nil {
		return nil, err
	}

	var note *model.Notification
	profiles, err := s.change(ctx, "following user", follower, followee, func(st repository.Store) error {
		added, err := st.Users().AddFollow(ctx, follower, followee)
		if err != nil || !added {
			return err
		}
		link := "/user/" + follower
		note, err = s.notifier.Prepare(model.NotificationInput{
			Username: followee,
			Text:     fmt.Sprintf("%s started following you", follower),
			Type:     model.NotificationTypeFollow,
			Link:     &link,
		})
		if err != nil {
			return err
		}
		return st.Notifications().Create(ctx, note)
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, profiles)
	if note != nil {
		s.notifier.Announce(ctx, note)
	}
	return &profiles[0], nil
}

// Unfollow はフォロー関係を解除する。フォローしていない相手の解除も成功する。
// 更新後の follower のプロフィールを返す。
func (s *Service) Unfollow(ctx context.Context, follower, followee string) (*model.Profile, error) {
	follower, followee, err := normalize(follower, followee)
	if err != nil {
		return nil, err
	}

	profiles, err := s.change(ctx, "unfollowing user", follower, followee, func(st repository.Store) error {
		_, err := st.Users().RemoveFollow(ctx, follower, followee)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, profiles)
	return &profiles[0], nil
}

func normalize(follower, followee string) (string, string, error) {
	follower, followee = strings.TrimSpace(follower), strings.TrimSpace(followee)
	if follower == "" || followee == "" {
		return "", "", model.NewValidationError("follower and followee are required")
	}
	if follower == followee {
		return "", "", model.NewValidationError("users cannot follow themselves")
	}
	return follower, followee, nil
}

// change は両ユーザーの存在を確認して fn を適用し、
// コミットされた follower と followee のプロフィールを返す。
func (s *Service) change(ctx context.Context, op, follower, followee string, fn func(repository.Store) error) ([]model.Profile, error) {
	var profiles []model.Profile
	err := s.uow.Do(ctx, func(st repository.Store) error {
		for _, name := range []string{follower, followee} {
			u, err := st.Users().FindByUsername(ctx, name)
			if err != nil {
				return err
			}
			if u == nil {
				return model.NewUserNotFoundError(name)
			}
		}

		if err := fn(st); err != nil {
			return err
		}

		profiles = profiles[:0]
		for _, name := range []string{follower, followee} {
			u, err := st.Users().FindByUsername(ctx, name)
			if err != nil {
				return err
			}
			profiles = append(profiles, u.PublicProfile())
		}
		return nil
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		s.logger.Error("follow graph update failed", "op", op, "follower", follower, "followee", followee, "error", err)
		return nil, model.NewActionFailedError(op)
	}

	s.logger.Info("follow graph updated", "op", op, "follower", follower, "followee", followee)
	if s.rankings != nil {
		s.rankings.Invalidate(ctx)
	}
	return profiles, nil
}

func (s *Service) announce(ctx context.Context, profiles []model.Profile) {
	for _, p := range profiles {
		s.publisher.Publish(ctx, bus.UserUpdate{Type: bus.ChangeUpdated, User: p})
	}
}
