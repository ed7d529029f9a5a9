package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/stackforum/internal/model"
)

const (
	voteUp   = 1
	voteDown = -1
)

// PostgresQuestionRepo はPostgreSQLの質問リポジトリ。
// 読み込みは基本クエリを1回実行し、関連はまとめた後続クエリで設定する。
type PostgresQuestionRepo struct {
	db    DBTX
	users *PostgresUserRepo
}

// NewPostgresQuestionRepo は新しいPostgresQuestionRepoを生成する。
func NewPostgresQuestionRepo(db DBTX) *PostgresQuestionRepo {
	return &PostgresQuestionRepo{db: db, users: NewPostgresUserRepo(db)}
}

// FindByID は関連を設定した質問を返す。存在しない場合は nil。
func (r *PostgresQuestionRepo) FindByID(ctx context.Context, id string) (*model.Question, error) {
	var q model.Question
	err := r.db.QueryRowContext(ctx,
		`SELECT q.id, q.title, q.text, q.asked_by, q.ask_date_time
		 FROM questions q WHERE q.id = $1::uuid`,
		id,
	).Scan(&q.ID, &q.Title, &q.Text, &q.AskedBy, &q.AskDateTime)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find question by ID: %w", err)
	}

	questions := []model.Question{q}
	if err := r.populate(ctx, questions); err != nil {
		return nil, err
	}
	return &questions[0], nil
}

// FindAskedBy は質問者を返す。存在しない場合は ""。
func (r *PostgresQuestionRepo) FindAskedBy(ctx context.Context, id string) (string, error) {
	var askedBy string
	err := r.db.QueryRowContext(ctx,
		`SELECT asked_by FROM questions WHERE id = $1::uuid`,
		id,
	).Scan(&askedBy)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find question author: %w", err)
	}
	return askedBy, nil
}

// ListByFollowedActivity は following のいずれかが質問または賛成票を投じた質問を
// 1つの OR 条件で選ぶため、両方に当てはまる質問も1回だけ現れる。
func (r *PostgresQuestionRepo) ListByFollowedActivity(ctx context.Context, following []string) ([]model.Question, error) {
	questions := []model.Question{}
	if len(following) == 0 {
		return questions, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT q.id, q.title, q.text, q.asked_by, q.ask_date_time
		 FROM questions q
		 WHERE q.asked_by = ANY($1)
		    OR EXISTS (
		        SELECT 1 FROM question_votes v
		        WHERE v.question_id = q.id AND v.direction = 1 AND v.username = ANY($1)
		    )
		 ORDER BY q.ask_date_time DESC, q.id`,
		pq.Array(following),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query followed activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Title, &q.Text, &q.AskedBy, &q.AskDateTime); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}

	if err := r.populate(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// populate は各質問のタグ、票、閲覧、コメント付きの回答、質問へのコメント、
// 質問者のプロフィールをその場で設定する。
func (r *PostgresQuestionRepo) populate(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}

	ids := make([]string, len(questions))
	byID := make(map[string]*model.Question, len(questions))
	askers := make([]string, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		q.Tags = []model.Tag{}
		q.Answers = []model.Answer{}
		q.Comments = []model.Comment{}
		q.UpVotes = []string{}
		q.DownVotes = []string{}
		q.Views = []string{}
		ids[i] = q.ID
		byID[q.ID] = q
		askers = append(askers, q.AskedBy)
	}

	if err := r.populateTags(ctx, ids, byID); err != nil {
		return err
	}
	if err := r.populateVotes(ctx, ids, byID); err != nil {
		return err
	}
	if err := r.populateViews(ctx, ids, byID); err != nil {
		return err
	}
	if err := r.populateAnswersAndComments(ctx, ids, byID); err != nil {
		return err
	}

	profiles, err := r.users.FindProfiles(ctx, askers)
	if err != nil {
		return fmt.Errorf("failed to populate askers: %w", err)
	}
	for i := range questions {
		if p, ok := profiles[questions[i].AskedBy]; ok {
			questions[i].Asker = &p
		}
	}

	return nil
}

func (r *PostgresQuestionRepo) populateTags(ctx context.Context, ids []string, byID map[string]*model.Question) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT qt.question_id, t.id, t.name, t.description
		 FROM question_tags qt JOIN tags t ON t.id = qt.tag_id
		 WHERE qt.question_id = ANY($1::uuid[])
		 ORDER BY qt.question_id, qt.position`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var qid string
		var tag model.Tag
		if err := rows.Scan(&qid, &tag.ID, &tag.Name, &tag.Description); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		if q, ok := byID[qid]; ok {
			q.Tags = append(q.Tags, tag)
		}
	}
	return rows.Err()
}

// populateVotes は seq で票の記録順を保つ。
func (r *PostgresQuestionRepo) populateVotes(ctx context.Context, ids []string, byID map[string]*model.Question) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT question_id, username, direction FROM question_votes
		 WHERE question_id = ANY($1::uuid[])
		 ORDER BY seq`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var qid, username string
		var direction int
		if err := rows.Scan(&qid, &username, &direction); err != nil {
			return fmt.Errorf("failed to scan vote: %w", err)
		}
		q, ok := byID[qid]
		if !ok {
			continue
		}
		switch direction {
		case voteUp:
			q.UpVotes = append(q.UpVotes, username)
		case voteDown:
			q.DownVotes = append(q.DownVotes, username)
		}
	}
	return rows.Err()
}

func (r *PostgresQuestionRepo) populateViews(ctx context.Context, ids []string, byID map[string]*model.Question) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT question_id, username FROM question_views
		 WHERE question_id = ANY($1::uuid[])
		 ORDER BY seq`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to query views: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var qid, username string
		if err := rows.Scan(&qid, &username); err != nil {
			return fmt.Errorf("failed to scan view: %w", err)
		}
		if q, ok := byID[qid]; ok {
			q.Views = append(q.Views, username)
		}
	}
	return rows.Err()
}

func (r *PostgresQuestionRepo) populateAnswersAndComments(ctx context.Context, ids []string, byID map[string]*model.Question) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, question_id, text, ans_by, ans_date_time FROM answers
		 WHERE question_id = ANY($1::uuid[])
		 ORDER BY ans_date_time, id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to query answers: %w", err)
	}

	var answers []model.Answer
	for rows.Next() {
		a := model.Answer{Comments: []model.Comment{}}
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.AnsBy, &a.AnsDateTime); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate answers: %w", err)
	}
	rows.Close()

	answerIDs := make([]string, len(answers))
	answerIdx := make(map[string]int, len(answers))
	for i, a := range answers {
		answerIDs[i] = a.ID
		answerIdx[a.ID] = i
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT c.id, c.text, c.comment_by, c.comment_date_time, c.question_id, c.answer_id,
		        ARRAY(SELECT cu.username FROM comment_upvotes cu WHERE cu.comment_id = c.id ORDER BY cu.seq)
		 FROM comments c
		 WHERE c.question_id = ANY($1::uuid[]) OR c.answer_id = ANY($2::uuid[])
		 ORDER BY c.comment_date_time, c.id`,
		pq.Array(ids), pq.Array(answerIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Comment
		var questionID, answerID sql.NullString
		if err := rows.Scan(&c.ID, &c.Text, &c.CommentBy, &c.CommentDateTime, &questionID, &answerID, pq.Array(&c.UpVotes)); err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		if c.UpVotes == nil {
			c.UpVotes = []string{}
		}
		if answerID.Valid {
			if i, ok := answerIdx[answerID.String]; ok {
				answers[i].Comments = append(answers[i].Comments, c)
			}
			continue
		}
		if q, ok := byID[questionID.String]; ok {
			q.Comments = append(q.Comments, c)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate comments: %w", err)
	}

	for _, a := range answers {
		if q, ok := byID[a.QuestionID]; ok {
			q.Answers = append(q.Answers, a)
		}
	}
	return nil
}
