package model

import "time"

// NotificationType は通知のきっかけを分類する。
type NotificationType string

const (
	// NotificationTypeFollow はフォロワーが増えたユーザーに送る。
	NotificationTypeFollow NotificationType = "follow"
	// NotificationTypeAnswer は回答があったときに質問者へ送る。
	NotificationTypeAnswer NotificationType = "answer"
	// NotificationTypeComment はコメントされた投稿の投稿者に送る。
	NotificationTypeComment NotificationType = "comment"
	// NotificationTypeBadge はバッジが付与されたときに送る。
	NotificationTypeBadge NotificationType = "badge"
	// NotificationTypeMessage は新しいダイレクトメッセージで送る。
	NotificationTypeMessage NotificationType = "message"
	// NotificationTypeStore はストアと通貨のイベントで送る。
	NotificationTypeStore NotificationType = "store"
)

// Valid は t が既知の通知種別かを返す。
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeFollow, NotificationTypeAnswer, NotificationTypeComment,
		NotificationTypeBadge, NotificationTypeMessage, NotificationTypeStore:
		return true
	}
	return false
}

// Notification はユーザーごとに永続化される通知。
// Seen は明示的なトグルでのみ変わる。
type Notification struct {
	ID        string           `json:"_id"`
	Username  string           `json:"username"`
	Text      string           `json:"text"`
	Seen      bool             `json:"seen"`
	Type      NotificationType `json:"type"`
	Link      *string          `json:"link,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// NotificationInput は新しい通知のうち呼び出し側が指定する部分。
// Seen は省略時に false とするためポインタにしている。
type NotificationInput struct {
	Username string           `json:"username"`
	Text     string           `json:"text"`
	Type     NotificationType `json:"type"`
	Seen     *bool            `json:"seen,omitempty"`
	Link     *string          `json:"link,omitempty"`
}
