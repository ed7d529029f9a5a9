package repository

import (
	"context"
	"fmt"
)

// PostgresStatsRepo はPostgreSQLの user_stats リポジトリ。
type PostgresStatsRepo struct {
	db DBTX
}

// NewPostgresStatsRepo は新しいPostgresStatsRepoを生成する。
func NewPostgresStatsRepo(db DBTX) *PostgresStatsRepo {
	return &PostgresStatsRepo{db: db}
}

// IncrementAnswers はユーザーの回答数に1を加える。行がなければ作成する。
func (r *PostgresStatsRepo) IncrementAnswers(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_stats (username, answers) VALUES ($1, 1)
		 ON CONFLICT (username) DO UPDATE SET answers = user_stats.answers + 1`,
		username,
	)
	if err != nil {
		return fmt.Errorf("failed to increment answer stats: %w", err)
	}
	return nil
}

// IncrementComments はユーザーのコメント数に1を加える。行がなければ作成する。
func (r *PostgresStatsRepo) IncrementComments(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_stats (username, comments) VALUES ($1, 1)
		 ON CONFLICT (username) DO UPDATE SET comments = user_stats.comments + 1`,
		username,
	)
	if err != nil {
		return fmt.Errorf("failed to increment comment stats: %w", err)
	}
	return nil
}
