// Package repotest はサービスとハンドラのテスト用にインメモリの repository.Store と UnitOfWork を提供する。
// 失敗した Do はその中の書き込みをすべて破棄する。
package repotest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/stackforum/internal/model"
	"github.com/hitoshi/stackforum/internal/repository"
)

// Stats は user_stats の1行に対応する。
type Stats struct {
	Questions int
	Answers   int
	Comments  int
}

// Comment は保存済みのコメントとその対象。
type Comment struct {
	model.Comment
	Target repository.CommentTarget
}

type data struct {
	users         map[string]*model.User
	questions     map[string]*model.Question
	answers       map[string]*model.Answer
	comments      map[string]*Comment
	notifications map[string]*model.Notification
	stats         map[string]*Stats
}

func newData() *data {
	return &data{
		users:         map[string]*model.User{},
		questions:     map[string]*model.Question{},
		answers:       map[string]*model.Answer{},
		comments:      map[string]*Comment{},
		notifications: map[string]*model.Notification{},
		stats:         map[string]*Stats{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.users {
		u := *v
		u.Following = append([]string(nil), v.Following...)
		u.Followers = append([]string(nil), v.Followers...)
		c.users[k] = &u
	}
	for k, v := range d.questions {
		q := *v
		q.UpVotes = append([]string(nil), v.UpVotes...)
		c.questions[k] = &q
	}
	for k, v := range d.answers {
		a := *v
		c.answers[k] = &a
	}
	for k, v := range d.comments {
		cm := *v
		c.comments[k] = &cm
	}
	for k, v := range d.notifications {
		n := *v
		c.notifications[k] = &n
	}
	for k, v := range d.stats {
		s := *v
		c.stats[k] = &s
	}
	return c
}

// Store はインメモリの repository.Store。並行に使用できる。
type Store struct {
	mu       sync.Mutex
	data     *data
	failures map[string]error
}

var (
	_ repository.Store      = (*Store)(nil)
	_ repository.UnitOfWork = (*Store)(nil)
)

// New は空の Store を生成する。
func New() *Store {
	return &Store{data: newData(), failures: map[string]error{}}
}

// Fail は "Notifications.Create" のように指定した操作が err を返すようにする。
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Do は専用のコピーに対して fn を実行し、成功した場合だけコピーを残す。
func (s *Store) Do(_ context.Context, fn func(repository.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &view{data: s.data.clone(), failures: s.failures}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *Store) locked() *view {
	return &view{store: s}
}

func (s *Store) Users() repository.UserRepository                 { return s.locked().Users() }
func (s *Store) Questions() repository.QuestionRepository         { return s.locked().Questions() }
func (s *Store) Answers() repository.AnswerRepository             { return s.locked().Answers() }
func (s *Store) Comments() repository.CommentRepository           { return s.locked().Comments() }
func (s *Store) Notifications() repository.NotificationRepository { return s.locked().Notifications() }
func (s *Store) Stats() repository.StatsRepository                { return s.locked().Stats() }

// AddUser はユーザーを登録する。
func (s *Store) AddUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[username] = &model.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "secret-" + username,
		Following: []string{},
		Followers: []string{},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// SetFollow は follower -> followee を登録する。
func (s *Store) SetFollow(follower, followee string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	(&view{data: s.data}).addFollow(follower, followee)
}

// AddQuestion は質問を登録する。UpVotes の順序は保つ。
func (s *Store) AddQuestion(q model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := q
	cp.UpVotes = append([]string(nil), q.UpVotes...)
	s.data.questions[q.ID] = &cp
}

// AddAnswerAt は統計に触れずに回答を登録する。
func (s *Store) AddAnswerAt(id, qid, ansBy string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.answers[id] = &model.Answer{ID: id, QuestionID: qid, Text: "answer " + id, AnsBy: ansBy, AnsDateTime: at}
}

// NotificationsFor は username の保存済み通知を順不同で返す。
func (s *Store) NotificationsFor(username string) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.data.notifications {
		if n.Username == username {
			out = append(out, *n)
		}
	}
	return out
}

// StatsFor は username のカウンターを返す。
func (s *Store) StatsFor(username string) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.data.stats[username]; ok {
		return *st
	}
	return Stats{}
}

// AnswerCount は保存済みの回答数を返す。
func (s *Store) AnswerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.answers)
}

// CommentsOn は target に付いた保存済みのコメントを返す。
func (s *Store) CommentsOn(target repository.CommentTarget) []model.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Comment
	for _, c := range s.data.comments {
		if c.Target == target {
			out = append(out, c.Comment)
		}
	}
	return out
}

// view は1つのデータセット上ですべてのリポジトリを実装する。Do の外では Store のロックを取って
// 現在のデータを読み、Do の中ではロックは取得済み。
type view struct {
	data     *data
	failures map[string]error
	store    *Store
}

func (v *view) Users() repository.UserRepository                 { return userRepo{v} }
func (v *view) Questions() repository.QuestionRepository         { return questionRepo{v} }
func (v *view) Answers() repository.AnswerRepository             { return answerRepo{v} }
func (v *view) Comments() repository.CommentRepository           { return commentRepo{v} }
func (v *view) Notifications() repository.NotificationRepository { return notificationRepo{v} }
func (v *view) Stats() repository.StatsRepository                { return statsRepo{v} }

type (
	userRepo         struct{ *view }
	questionRepo     struct{ *view }
	answerRepo       struct{ *view }
	commentRepo      struct{ *view }
	notificationRepo struct{ *view }
	statsRepo        struct{ *view }
)

func (v *view) enter(op string) (func(), error) {
	unlock := func() {}
	if v.store != nil {
		v.store.mu.Lock()
		unlock = v.store.mu.Unlock
		v.data = v.store.data
		v.failures = v.store.failures
	}
	if err := v.failures[op]; err != nil {
		unlock()
		return nil, err
	}
	return unlock, nil
}

// --- ユーザー ---

func (v userRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	unlock, err := v.enter("Users.FindByUsername")
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, ok := v.data.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.Following = append([]string{}, u.Following...)
	cp.Followers = append([]string{}, u.Followers...)
	return &cp, nil
}

func (v userRepo) FindProfiles(_ context.Context, usernames []string) (map[string]model.Profile, error) {
	unlock, err := v.enter("Users.FindProfiles")
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make(map[string]model.Profile, len(usernames))
	for _, name := range usernames {
		if u, ok := v.data.users[name]; ok {
			out[name] = u.PublicProfile()
		}
	}
	return out, nil
}

func (v userRepo) AddFollow(_ context.Context, follower, followee string) (bool, error) {
	unlock, err := v.enter("Users.AddFollow")
	if err != nil {
		return false, err
	}
	defer unlock()
	return v.addFollow(follower, followee), nil
}

func (v *view) addFollow(follower, followee string) bool {
	from, to := v.data.users[follower], v.data.users[followee]
	if from == nil || to == nil {
		return false
	}
	for _, f := range from.Following {
		if f == followee {
			return false
		}
	}
	from.Following = append(from.Following, followee)
	to.Followers = append(to.Followers, follower)
	return true
}

func (v userRepo) RemoveFollow(_ context.Context, follower, followee string) (bool, error) {
	unlock, err := v.enter("Users.RemoveFollow")
	if err != nil {
		return false, err
	}
	defer unlock()

	from, to := v.data.users[follower], v.data.users[followee]
	if from == nil || to == nil {
		return false, nil
	}
	var removed bool
	from.Following, removed = without(from.Following, followee)
	to.Followers, _ = without(to.Followers, follower)
	return removed, nil
}

func without(list []string, name string) ([]string, bool) {
	out := make([]string, 0, len(list))
	found := false
	for _, s := range list {
		if s == name {
			found = true
			continue
		}
		out = append(out, s)
	}
	return out, found
}

// --- 質問 ---

func (v questionRepo) FindByID(_ context.Context, id string) (*model.Question, error) {
	unlock, err := v.enter("Questions.FindByID")
	if err != nil {
		return nil, err
	}
	defer unlock()

	q, ok := v.data.questions[id]
	if !ok {
		return nil, nil
	}
	cp := v.populate(q)
	return &cp, nil
}

func (v questionRepo) FindAskedBy(_ context.Context, id string) (string, error) {
	unlock, err := v.enter("Questions.FindAskedBy")
	if err != nil {
		return "", err
	}
	defer unlock()

	if q, ok := v.data.questions[id]; ok {
		return q.AskedBy, nil
	}
	return "", nil
}

func (v questionRepo) ListByFollowedActivity(_ context.Context, following []string) ([]model.Question, error) {
	unlock, err := v.enter("Questions.ListByFollowedActivity")
	if err != nil {
		return nil, err
	}
	defer unlock()

	set := make(map[string]bool, len(following))
	for _, f := range following {
		set[f] = true
	}
	out := []model.Question{}
	for _, q := range v.data.questions {
		match := set[q.AskedBy]
		for _, u := range q.UpVotes {
			match = match || set[u]
		}
		if match {
			out = append(out, v.populate(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AskDateTime.Equal(out[j].AskDateTime) {
			return out[i].AskDateTime.After(out[j].AskDateTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) populate(q *model.Question) model.Question {
	cp := *q
	cp.UpVotes = append([]string{}, q.UpVotes...)
	cp.DownVotes = append([]string{}, q.DownVotes...)
	cp.Views = append([]string{}, q.Views...)
	cp.Tags = append([]model.Tag{}, q.Tags...)
	cp.Comments = v.commentsOn(repository.CommentTarget{QuestionID: q.ID})
	cp.Answers = []model.Answer{}
	for _, a := range v.data.answers {
		if a.QuestionID == q.ID {
			ac := *a
			ac.Comments = v.commentsOn(repository.CommentTarget{AnswerID: a.ID})
			cp.Answers = append(cp.Answers, ac)
		}
	}
	sort.Slice(cp.Answers, func(i, j int) bool { return cp.Answers[i].AnsDateTime.Before(cp.Answers[j].AnsDateTime) })
	if u, ok := v.data.users[q.AskedBy]; ok {
		p := u.PublicProfile()
		cp.Asker = &p
	}
	return cp
}

func (v *view) commentsOn(target repository.CommentTarget) []model.Comment {
	out := []model.Comment{}
	for _, c := range v.data.comments {
		if c.Target == target {
			out = append(out, c.Comment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommentDateTime.Before(out[j].CommentDateTime) })
	return out
}

// --- 回答 ---

func (v answerRepo) Create(_ context.Context, answer *model.Answer) error {
	unlock, err := v.enter("Answers.Create")
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := v.data.questions[answer.QuestionID]; !ok {
		return errors.New("answers: question does not exist")
	}
	cp := *answer
	v.data.answers[answer.ID] = &cp
	return nil
}

func (v answerRepo) RankAuthors(_ context.Context, window *model.DateWindow) ([]model.RankedUser, error) {
	unlock, err := v.enter("Answers.RankAuthors")
	if err != nil {
		return nil, err
	}
	defer unlock()

	counts := map[string]int{}
	for _, a := range v.data.answers {
		if window.Contains(a.AnsDateTime) {
			counts[a.AnsBy]++
		}
	}
	ranked := []model.RankedUser{}
	for name, n := range counts {
		u, ok := v.data.users[name]
		if !ok {
			continue
		}
		ranked = append(ranked, model.RankedUser{Profile: u.PublicProfile(), Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Username < ranked[j].Username
	})
	return ranked, nil
}

func (v answerRepo) FindByID(_ context.Context, id string) (*model.Answer, error) {
	unlock, err := v.enter("Answers.FindByID")
	if err != nil {
		return nil, err
	}
	defer unlock()

	a, ok := v.data.answers[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	cp.Comments = []model.Comment{}
	return &cp, nil
}

// --- コメント ---

func (v commentRepo) Create(_ context.Context, comment *model.Comment, target repository.CommentTarget) error {
	unlock, err := v.enter("Comments.Create")
	if err != nil {
		return err
	}
	defer unlock()

	if (target.QuestionID == "") == (target.AnswerID == "") {
		return errors.New("comments: exactly one target is required")
	}
	cp := *comment
	v.data.comments[comment.ID] = &Comment{Comment: cp, Target: target}
	return nil
}

// --- 通知 ---

func (v notificationRepo) Create(_ context.Context, n *model.Notification) error {
	unlock, err := v.enter("Notifications.Create")
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := v.data.users[n.Username]; !ok {
		return errors.New("notifications: recipient does not exist")
	}
	cp := *n
	v.data.notifications[n.ID] = &cp
	return nil
}

func (v notificationRepo) ToggleSeen(_ context.Context, id string, now time.Time) (*model.Notification, error) {
	unlock, err := v.enter("Notifications.ToggleSeen")
	if err != nil {
		return nil, err
	}
	defer unlock()

	n, ok := v.data.notifications[id]
	if !ok {
		return nil, nil
	}
	n.Seen = !n.Seen
	n.UpdatedAt = now
	cp := *n
	return &cp, nil
}

func (v notificationRepo) ListByUsername(_ context.Context, username string) ([]model.Notification, error) {
	unlock, err := v.enter("Notifications.ListByUsername")
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := []model.Notification{}
	for _, n := range v.data.notifications {
		if n.Username == username {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (v notificationRepo) DeleteSeenBefore(_ context.Context, cutoff time.Time) (int64, error) {
	unlock, err := v.enter("Notifications.DeleteSeenBefore")
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int64
	for id, rec := range v.data.notifications {
		if rec.Seen && rec.CreatedAt.Before(cutoff) {
			delete(v.data.notifications, id)
			n++
		}
	}
	return n, nil
}

// --- 統計 ---

func (v statsRepo) IncrementAnswers(_ context.Context, username string) error {
	unlock, err := v.enter("Stats.IncrementAnswers")
	if err != nil {
		return err
	}
	defer unlock()
	v.row(username).Answers++
	return nil
}

func (v statsRepo) IncrementComments(_ context.Context, username string) error {
	unlock, err := v.enter("Stats.IncrementComments")
	if err != nil {
		return err
	}
	defer unlock()
	v.row(username).Comments++
	return nil
}

func (v statsRepo) row(username string) *Stats {
	st, ok := v.data.stats[username]
	if !ok {
		st = &Stats{}
		v.data.stats[username] = st
	}
	return st
}
