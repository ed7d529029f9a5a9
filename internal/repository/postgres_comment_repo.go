package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/stackforum/internal/model"
)

// PostgresCommentRepo はPostgreSQLのコメントリポジトリ。
type PostgresCommentRepo struct {
	db DBTX
}

// NewPostgresCommentRepo は新しいPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db DBTX) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// Create は target のいずれか1つのIDに付くコメントを挿入する。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment, target CommentTarget) error {
	if (target.QuestionID == "") == (target.AnswerID == "") {
		return errors.New("comment target must name exactly one of question or answer")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, text, comment_by, comment_date_time, question_id, answer_id)
		 VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, NULLIF($6, '')::uuid)`,
		comment.ID, comment.Text, comment.CommentBy, comment.CommentDateTime,
		target.QuestionID, target.AnswerID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}
