// Package comment は質問と回答へのコメント投稿を提供する。
package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/stackforum/internal/model"
	"github.com/hitoshi/stackforum/internal/repository"
	"github.com/hitoshi/stackforum/internal/security"
)

// Notifier は通知レコードを組み立て、コミット後に配信する。
type Notifier interface {
	Prepare(in model.NotificationInput) (*model.Notification, error)
	Announce(ctx context.Context, n *model.Notification)
}

// Service はコメント投稿フローを実装する。
type Service struct {
	uow       repository.UnitOfWork
	notifier  Notifier
	sanitizer security.Sanitizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService は新しいコメントServiceを生成する。
func NewService(uow repository.UnitOfWork, notifier Notifier, sanitizer security.Sanitizer, logger *slog.Logger) *Service {
	return &Service{
		uow:       uow,
		notifier:  notifier,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// AddComment は質問または回答の一方にコメントを付け、投稿者に通知する。
// 投稿者自身のコメントでは通知しない。
func (s *Service) AddComment(ctx context.Context, target repository.CommentTarget, in model.CommentInput) (*model.Comment, error) {
	if (target.QuestionID == "") == (target.AnswerID == "") {
		return nil, model.NewValidationError("exactly one of qid or aid is required")
	}
	by := strings.TrimSpace(in.CommentBy)
	if by == "" {
		return nil, model.NewValidationError("commentBy is required")
	}
	text := strings.TrimSpace(s.sanitizer.Sanitize(in.Text))
	if text == "" {
		return nil, model.NewValidationError("text is required")
	}
	if target.QuestionID != "" {
		if _, err := uuid.Parse(target.QuestionID); err != nil {
			return nil, model.NewQuestionNotFoundError(target.QuestionID)
		}
	} else if _, err := uuid.Parse(target.AnswerID); err != nil {
		return nil, model.NewAnswerNotFoundError(target.AnswerID)
	}

	c := &model.Comment{
		ID:              uuid.New().String(),
		Text:            text,
		CommentBy:       by,
		CommentDateTime: s.now().UTC(),
		UpVotes:         []string{},
	}

	var note *model.Notification
	err := s.uow.Do(ctx, func(st repository.Store) error {
		owner, qid, err := s.findOwner(ctx, st, target)
		if err != nil {
			return err
		}

		author, err := st.Users().FindByUsername(ctx, by)
		if err != nil {
			return err
		}
		if author == nil {
			return model.NewUserNotFoundError(by)
		}

		if err := st.Comments().Create(ctx, c, target); err != nil {
			return err
		}
		if err := st.Stats().IncrementComments(ctx, by); err != nil {
			return err
		}

		if owner == by {
			return nil
		}
		what := "question"
		if target.AnswerID != "" {
			what = "answer"
		}
		link := "/question/" + qid
		note, err = s.notifier.Prepare(model.NotificationInput{
			Username: owner,
			Text:     fmt.Sprintf("%s commented on your %s", by, what),
			Type:     model.NotificationTypeComment,
			Link:     &link,
		})
		if err != nil {
			return err
		}
		return st.Notifications().Create(ctx, note)
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		s.logger.Error("failed to add comment", "qid", target.QuestionID, "aid", target.AnswerID, "comment_by", by, "error", err)
		return nil, model.NewActionFailedError("posting comment")
	}

	s.logger.Info("comment added", "comment_id", c.ID, "comment_by", by)
	if note != nil {
		s.notifier.Announce(ctx, note)
	}
	return c, nil
}

// findOwner は対象投稿の作成者と、その投稿が属する質問を返す。
func (s *Service) findOwner(ctx context.Context, st repository.Store, target repository.CommentTarget) (string, string, error) {
	if target.QuestionID != "" {
		askedBy, err := st.Questions().FindAskedBy(ctx, target.QuestionID)
		if err != nil {
			return "", "", err
		}
		if askedBy == "" {
			return "", "", model.NewQuestionNotFoundError(target.QuestionID)
		}
		return askedBy, target.QuestionID, nil
	}

	a, err := st.Answers().FindByID(ctx, target.AnswerID)
	if err != nil {
		return "", "", err
	}
	if a == nil {
		return "", "", model.NewAnswerNotFoundError(target.AnswerID)
	}
	return a.AnsBy, a.QuestionID, nil
}
