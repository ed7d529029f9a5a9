package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/stackforum/internal/model"
)

// profileColumns は別名 u の公開プロフィールを選ぶ。password には触れない。
const profileColumns = `u.username, u.email, u.about, u.created_at,
	ARRAY(SELECT f.followee FROM follows f WHERE f.follower = u.username ORDER BY f.created_at, f.followee),
	ARRAY(SELECT f.follower FROM follows f WHERE f.followee = u.username ORDER BY f.created_at, f.follower)`

// PostgresUserRepo はPostgreSQLのユーザーリポジトリ。
type PostgresUserRepo struct {
	db DBTX
}

// NewPostgresUserRepo は新しいPostgresUserRepoを生成する。
func NewPostgresUserRepo(db DBTX) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByUsername はユーザーを返す。存在しない場合は nil。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT u.password, `+profileColumns+`
		 FROM users u WHERE u.username = $1`,
		username,
	).Scan(
		&user.Password, &user.Username, &user.Email, &user.About, &user.CreatedAt,
		pq.Array(&user.Following), pq.Array(&user.Followers),
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}

	return user, nil
}

// FindProfiles はユーザー名をキーとした公開プロフィールを返す。
func (r *PostgresUserRepo) FindProfiles(ctx context.Context, usernames []string) (map[string]model.Profile, error) {
	profiles := make(map[string]model.Profile, len(usernames))
	if len(usernames) == 0 {
		return profiles, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM users u WHERE u.username = ANY($1)`,
		pq.Array(usernames),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles[p.Username] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	return profiles, nil
}

// AddFollow は follower -> followee を記録する。
func (r *PostgresUserRepo) AddFollow(ctx context.Context, follower, followee string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (follower, followee) VALUES ($1, $2)
		 ON CONFLICT (follower, followee) DO NOTHING`,
		follower, followee,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert follow: %w", err)
	}
	return rowsAffected(result)
}

// RemoveFollow は follower -> followee を削除する。
func (r *PostgresUserRepo) RemoveFollow(ctx context.Context, follower, followee string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower = $1 AND followee = $2`,
		follower, followee,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete follow: %w", err)
	}
	return rowsAffected(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner, extra ...any) (model.Profile, error) {
	var p model.Profile
	dest := append([]any{
		&p.Username, &p.Email, &p.About, &p.CreatedAt,
		pq.Array(&p.Following), pq.Array(&p.Followers),
	}, extra...)
	if err := s.Scan(dest...); err != nil {
		return model.Profile{}, err
	}
	if p.Following == nil {
		p.Following = []string{}
	}
	if p.Followers == nil {
		p.Followers = []string{}
	}
	return p, nil
}

func rowsAffected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
