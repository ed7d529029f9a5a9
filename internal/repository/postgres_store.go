package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/stackforum/internal/database"
)

// PostgresStore はすべてのリポジトリを1つの DBTX に束ねる。
type PostgresStore struct {
	users         *PostgresUserRepo
	questions     *PostgresQuestionRepo
	answers       *PostgresAnswerRepo
	comments      *PostgresCommentRepo
	notifications *PostgresNotificationRepo
	stats         *PostgresStatsRepo
}

// NewPostgresStore は db 上のストアを生成する。db はプールでもトランザクションでもよい。
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{
		users:         NewPostgresUserRepo(db),
		questions:     NewPostgresQuestionRepo(db),
		answers:       NewPostgresAnswerRepo(db),
		comments:      NewPostgresCommentRepo(db),
		notifications: NewPostgresNotificationRepo(db),
		stats:         NewPostgresStatsRepo(db),
	}
}

// Users はユーザーリポジトリを返す。
func (s *PostgresStore) Users() UserRepository { return s.users }

// Questions は質問リポジトリを返す。
func (s *PostgresStore) Questions() QuestionRepository { return s.questions }

// Answers は回答リポジトリを返す。
func (s *PostgresStore) Answers() AnswerRepository { return s.answers }

// Comments はコメントリポジトリを返す。
func (s *PostgresStore) Comments() CommentRepository { return s.comments }

// Notifications は通知リポジトリを返す。
func (s *PostgresStore) Notifications() NotificationRepository { return s.notifications }

// Stats はユーザー統計リポジトリを返す。
func (s *PostgresStore) Stats() StatsRepository { return s.stats }

// PostgresUnitOfWork は Do の呼び出しごとに個別のトランザクションで実行する。
type PostgresUnitOfWork struct {
	db *sql.DB
}

// NewPostgresUnitOfWork は新しいPostgresUnitOfWorkを生成する。
func NewPostgresUnitOfWork(db *sql.DB) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{db: db}
}

// Do はトランザクションに束ねたストアに対して fn を実行する。
func (u *PostgresUnitOfWork) Do(ctx context.Context, fn func(Store) error) error {
	return database.WithTx(ctx, u.db, func(tx *sql.Tx) error {
		return fn(NewPostgresStore(tx))
	})
}
