// Package answer は質問への回答投稿と質問者への通知を提供する。
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/stackforum/internal/bus"
	"github.com/hitoshi/stackforum/internal/model"
	"github.com/hitoshi/stackforum/internal/repository"
	"github.com/hitoshi/stackforum/internal/security"
)

// Notifier は通知レコードを組み立て、コミット後に配信する。
type Notifier interface {
	Prepare(in model.NotificationInput) (*model.Notification, error)
	Announce(ctx context.Context, n *model.Notification)
}

// RankingInvalidator はキャッシュ済みのランキングを破棄する。
type RankingInvalidator interface {
	Invalidate(ctx context.Context)
}

// Service は回答投稿フローを実装する。
type Service struct {
	uow       repository.UnitOfWork
	notifier  Notifier
	publisher bus.Publisher
	rankings  RankingInvalidator
	sanitizer security.Sanitizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService は新しい回答Serviceを生成する。
// ランキングキャッシュを使わない場合 rankings は nil でよい。
func NewService(
	uow repository.UnitOfWork,
	notifier Notifier,
	publisher bus.Publisher,
	rankings RankingInvalidator,
	sanitizer security.Sanitizer,
	logger *slog.Logger,
) *Service {
	return &Service{
		uow:       uow,
		notifier:  notifier,
		publisher: publisher,
		rankings:  rankings,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// AddAnswer は回答の保存、回答者カウンタの加算、質問者への通知を
// 1トランザクションで行う。コミット後にランキングキャッシュを破棄し、イベントを配信する。
// 自分の質問への回答では通知しない。
func (s *Service) AddAnswer(ctx context.Context, qid string, in model.AnswerInput) (*model.Answer, error) {
	ansBy := strings.TrimSpace(in.AnsBy)
	if ansBy == "" {
		return nil, model.NewValidationError("ansBy is required")
	}
	text := strings.TrimSpace(s.sanitizer.Sanitize(in.Text))
	if text == "" {
		return nil, model.NewValidationError("text is required")
	}
	if _, err := uuid.Parse(qid); err != nil {
		return nil, model.NewQuestionNotFoundError(qid)
	}

	answer := &model.Answer{
		ID:          uuid.New().String(),
		QuestionID:  qid,
		Text:        text,
		AnsBy:       ansBy,
		AnsDateTime: s.now().UTC(),
		Comments:    []model.Comment{},
	}

	var note *model.Notification
	err := s.uow.Do(ctx, func(st repository.Store) error {
		askedBy, err := st.Questions().FindAskedBy(ctx, qid)
		if err != nil {
			return err
		}
		if askedBy == "" {
			return model.NewQuestionNotFoundError(qid)
		}

		author, err := st.Users().FindByUsername(ctx, ansBy)
		if err != nil {
			return err
		}
		if author == nil {
			return model.NewUserNotFoundError(ansBy)
		}

		if err := st.Answers().Create(ctx, answer); err != nil {
			return err
		}
		if err := st.Stats().IncrementAnswers(ctx, ansBy); err != nil {
			return err
		}

		if askedBy == ansBy {
			return nil
		}
		link := "/question/" + qid
		note, err = s.notifier.Prepare(model.NotificationInput{
			Username: askedBy,
			Text:     fmt.Sprintf("%s answered your question", ansBy),
			Type:     model.NotificationTypeAnswer,
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
		s.logger.Error("failed to add answer", "qid", qid, "ans_by", ansBy, "error", err)
		return nil, model.NewActionFailedError("posting answer")
	}

	s.logger.Info("answer added", "qid", qid, "answer_id", answer.ID, "ans_by", ansBy)
	if s.rankings != nil {
		s.rankings.Invalidate(ctx)
	}
	s.publisher.Publish(ctx, bus.AnswerUpdate{QID: qid, Answer: *answer})
	if note != nil {
		s.notifier.Announce(ctx, note)
	}
	return answer, nil
}
