// Package repository は永続化のインターフェースとそのPostgreSQL実装を定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/stackforum/internal/model"
)

// DBTX は *sql.DB と *sql.Tx に共通のクエリ操作。
// 各リポジトリは単独でもユニットオブワーク内でも動作する。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepository はユーザープロフィールを読み込み、フォローグラフを変更する。
type UserRepository interface {
	// FindByUsername はフォロー一覧とフォロワー一覧を含むユーザーを返す。
	// ユーザーが存在しない場合は nil を返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindProfiles は指定ユーザーの公開プロフィールをユーザー名をキーとして返す。
	// 存在しないユーザー名はマップに含まれない。
	FindProfiles(ctx context.Context, usernames []string) (map[string]model.Profile, error)

	// AddFollow は follower -> followee を記録する。既に存在した場合は false を返す。
	AddFollow(ctx context.Context, follower, followee string) (bool, error)

	// RemoveFollow は follower -> followee を削除する。存在しなかった場合は false を返す。
	RemoveFollow(ctx context.Context, follower, followee string) (bool, error)
}

// QuestionRepository は関連をすべて設定した質問を読み込む。
type QuestionRepository interface {
	// FindByID は関連を設定した質問を返す。存在しない場合は nil。
	FindByID(ctx context.Context, id string) (*model.Question, error)

	// FindAskedBy は質問者を返す。存在しない場合は ""。
	FindAskedBy(ctx context.Context, id string) (string, error)

	// ListByFollowedActivity は指定ユーザーのいずれかが質問または賛成票を投じた質問を
	// 1回のクエリで質問日時の降順に返す。
	// 各質問は1回だけ現れ、関連はすべて設定済み。
	ListByFollowedActivity(ctx context.Context, following []string) ([]model.Question, error)
}

// AnswerRepository は回答を永続化し、投稿者ごとに集計する。
type AnswerRepository interface {
	// Create は質問に紐づく回答を挿入する。
	Create(ctx context.Context, answer *model.Answer) error

	// FindByID はコメントを含まない回答を返す。存在しない場合は nil。
	FindByID(ctx context.Context, id string) (*model.Answer, error)

	// RankAuthors は任意の期間（両端を含む）内の回答を投稿者ごとにまとめ、
	// 各投稿者の公開プロフィールを結合する。password カラムは読まない。
	RankAuthors(ctx context.Context, window *model.DateWindow) ([]model.RankedUser, error)
}

// CommentTarget はコメントを付ける投稿を指す。
type CommentTarget struct {
	QuestionID string
	AnswerID   string
}

// CommentRepository はコメントを永続化する。
type CommentRepository interface {
	// Create は target のいずれか1つのIDに付くコメントを挿入する。
	Create(ctx context.Context, comment *model.Comment, target CommentTarget) error
}

// NotificationRepository は通知を永続化する。
type NotificationRepository interface {
	// Create は通知を挿入する。
	Create(ctx context.Context, n *model.Notification) error

	// ToggleSeen は既読をアトミックに反転し、更新後のレコードを返す。
	// IDが存在しない場合は nil を返す。
	ToggleSeen(ctx context.Context, id string, now time.Time) (*model.Notification, error)

	// ListByUsername は受信者の通知を新しい順に返す。
	ListByUsername(ctx context.Context, username string) ([]model.Notification, error)

	// DeleteSeenBefore は cutoff より前に作成された既読の通知を削除し、
	// 削除した行数を返す。
	DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StatsRepository はユーザーごとの活動カウンターを管理する。
type StatsRepository interface {
	// IncrementAnswers はユーザーの回答数に1を加える。
	IncrementAnswers(ctx context.Context, username string) error

	// IncrementComments はユーザーのコメント数に1を加える。
	IncrementComments(ctx context.Context, username string) error
}

// Store は1つの接続またはトランザクションに束ねたリポジトリをまとめる。
type Store interface {
	Users() UserRepository
	Questions() QuestionRepository
	Answers() AnswerRepository
	Comments() CommentRepository
	Notifications() NotificationRepository
	Stats() StatsRepository
}

// UnitOfWork は書き込みをまとめてコミットする Store に対して fn を実行する。
// fn がエラーを返すとすべての書き込みをロールバックする。
type UnitOfWork interface {
	Do(ctx context.Context, fn func(Store) error) error
}
