package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/stackforum/internal/model"
)

// PostgresAnswerRepo はPostgreSQLの回答リポジトリ。
type PostgresAnswerRepo struct {
	db DBTX
}

// NewPostgresAnswerRepo は新しいPostgresAnswerRepoを生成する。
func NewPostgresAnswerRepo(db DBTX) *PostgresAnswerRepo {
	return &PostgresAnswerRepo{db: db}
}

// Create は回答を挿入する。question_id カラムが質問への紐づけ。
func (r *PostgresAnswerRepo) Create(ctx context.Context, answer *model.Answer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO answers (id, question_id, text, ans_by, ans_date_time)
		 VALUES ($1, $2, $3, $4, $5)`,
		answer.ID, answer.QuestionID, answer.Text, answer.AnsBy, answer.AnsDateTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert answer: %w", err)
	}
	return nil
}

// FindByID はコメントを含まない回答を返す。存在しない場合は nil。
func (r *PostgresAnswerRepo) FindByID(ctx context.Context, id string) (*model.Answer, error) {
	a := &model.Answer{Comments: []model.Comment{}}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, question_id, text, ans_by, ans_date_time FROM answers WHERE id = $1::uuid`,
		id,
	).Scan(&a.ID, &a.QuestionID, &a.Text, &a.AnsBy, &a.AnsDateTime)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find answer by ID: %w", err)
	}
	return a, nil
}

// RankAuthors は投稿者ごとに回答を数える。window が nil なら全期間、
// それ以外は両端を含む。同数はユーザー名順。
func (r *PostgresAnswerRepo) RankAuthors(ctx context.Context, window *model.DateWindow) ([]model.RankedUser, error) {
	query := `SELECT ` + profileColumns + `, c.cnt
		FROM (
			SELECT a.ans_by, COUNT(*) AS cnt FROM answers a
			%s
			GROUP BY a.ans_by
		) c
		JOIN users u ON u.username = c.ans_by
		ORDER BY c.cnt DESC, u.username ASC`

	var rows *sql.Rows
	var err error
	if window == nil {
		rows, err = r.db.QueryContext(ctx, fmt.Sprintf(query, ""))
	} else {
		rows, err = r.db.QueryContext(ctx,
			fmt.Sprintf(query, "WHERE a.ans_date_time >= $1 AND a.ans_date_time <= $2"),
			window.Start, window.End,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate answers by author: %w", err)
	}
	defer rows.Close()

	ranked := []model.RankedUser{}
	for rows.Next() {
		var count int
		p, err := scanProfile(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranked user: %w", err)
		}
		ranked = append(ranked, model.RankedUser{Profile: p, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ranked users: %w", err)
	}

	return ranked, nil
}
