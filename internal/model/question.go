package model

import "time"

// Tag は質問に付けるトピックのラベル。
type Tag struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Comment は質問または回答に付ける短いコメント。
type Comment struct {
	ID              string    `json:"_id"`
	Text            string    `json:"text"`
	CommentBy       string    `json:"commentBy"`
	CommentDateTime time.Time `json:"commentDateTime"`
	UpVotes         []string  `json:"upVotes"`
}

// Answer は質問への回答。Comments は読み込み時に設定する。
type Answer struct {
	ID          string    `json:"_id"`
	QuestionID  string    `json:"-"`
	Text        string    `json:"text"`
	AnsBy       string    `json:"ansBy"`
	AnsDateTime time.Time `json:"ansDateTime"`
	Comments    []Comment `json:"comments"`
}

// Question は関連をすべて設定した質問ドキュメント。
// UpVotes は票を記録した順序を保つ。
type Question struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	AskedBy     string    `json:"askedBy"`
	AskDateTime time.Time `json:"askDateTime"`
	Tags        []Tag     `json:"tags"`
	Answers     []Answer  `json:"answers"`
	Comments    []Comment `json:"comments"`
	UpVotes     []string  `json:"upVotes"`
	DownVotes   []string  `json:"downVotes"`
	Views       []string  `json:"views"`
	Asker       *Profile  `json:"asker,omitempty"`
}

// AnswerInput は新しい回答のうち呼び出し側が指定する部分。
type AnswerInput struct {
	Text  string `json:"text"`
	AnsBy string `json:"ansBy"`
}

// CommentInput は新しいコメントのうち呼び出し側が指定する部分。
type CommentInput struct {
	Text      string `json:"text"`
	CommentBy string `json:"commentBy"`
}
