// Package bus はサーバー側の更新で発生したドメインイベントを接続中の全クライアントへ運ぶ。
// 配信は at-most-once のベストエフォートで、再送はしない。
package bus

import (
	"encoding/json"
	"fmt"

	"github.com/hitoshi/stackforum/internal/model"
)

// EventName はイベントのワイヤー上の名前。
type EventName string

// イベント名。
const (
	EventNotificationUpdate EventName = "notificationUpdate"
	EventUserUpdate         EventName = "userUpdate"
	EventStoreUpdate        EventName = "storeUpdate"
	EventCollectionUpdate   EventName = "collectionUpdate"
	EventAnswerUpdate       EventName = "answerUpdate"
)

// ChangeType は受信側がペイロードをローカル状態にどう反映するかを示す。
type ChangeType string

// 変更種別。
const (
	ChangeCreated  ChangeType = "created"
	ChangeUpdated  ChangeType = "updated"
	ChangeDeleted  ChangeType = "deleted"
	ChangeAddition ChangeType = "addition"
	ChangeNewCount ChangeType = "newCount"
)

// Event はバス上を流れるペイロードの閉じた集合。
// このパッケージの型だけが実装する。
type Event interface {
	Name() EventName
	validate() error
}

// NotificationUpdate は通知の作成・更新を知らせる。
type NotificationUpdate struct {
	Type         ChangeType         `json:"type"`
	Notification model.Notification `json:"notification"`
}

// UserUpdate は公開プロフィールの変更を知らせる。パスワードは含まない。
type UserUpdate struct {
	Type ChangeType    `json:"type"`
	User model.Profile `json:"user"`
}

// StoreUpdate は通貨の変化を知らせる。Addition は差分、NewCount は絶対値。
type StoreUpdate struct {
	Type     ChangeType `json:"type"`
	Username string     `json:"username"`
	Count    int        `json:"count"`
}

// CollectionUpdate は保存した質問コレクションの変更を知らせる。
type CollectionUpdate struct {
	Type       ChangeType       `json:"type"`
	Collection model.Collection `json:"collection"`
}

// AnswerUpdate は質問 QID への新しい回答を知らせる。
type AnswerUpdate struct {
	QID    string       `json:"qid"`
	Answer model.Answer `json:"answer"`
}

func (NotificationUpdate) Name() EventName { return EventNotificationUpdate }
func (UserUpdate) Name() EventName         { return EventUserUpdate }
func (StoreUpdate) Name() EventName        { return EventStoreUpdate }
func (CollectionUpdate) Name() EventName   { return EventCollectionUpdate }
func (AnswerUpdate) Name() EventName       { return EventAnswerUpdate }

func (e NotificationUpdate) validate() error {
	return checkChange(e.Name(), e.Type, ChangeCreated, ChangeUpdated)
}

func (e UserUpdate) validate() error {
	return checkChange(e.Name(), e.Type, ChangeCreated, ChangeUpdated, ChangeDeleted)
}

func (e StoreUpdate) validate() error {
	return checkChange(e.Name(), e.Type, ChangeAddition, ChangeNewCount)
}

func (e CollectionUpdate) validate() error {
	return checkChange(e.Name(), e.Type, ChangeCreated, ChangeUpdated, ChangeDeleted)
}

func (e AnswerUpdate) validate() error {
	if e.QID == "" {
		return fmt.Errorf("%s: qid is required", e.Name())
	}
	return nil
}

func checkChange(name EventName, got ChangeType, allowed ...ChangeType) error {
	for _, a := range allowed {
		if got == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported change type %q", name, got)
}

// Envelope はワイヤーフレーム {"event": name, "payload": {...}}。
type Envelope struct {
	Event   EventName       `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Encode は e を検証してエンベロープに包む。
func Encode(e Event) (Envelope, error) {
	if err := e.validate(); err != nil {
		return Envelope{}, err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s: %w", e.Name(), err)
	}
	return Envelope{Event: e.Name(), Payload: payload}, nil
}

// Marshal は e を完全なワイヤーフレームにエンコードする。
func Marshal(e Event) ([]byte, error) {
	env, err := Encode(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode はエンベロープを型付きイベントに戻す。
func Decode(env Envelope) (Event, error) {
	var e Event
	switch env.Event {
	case EventNotificationUpdate:
		var v NotificationUpdate
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Event, err)
		}
		e = v
	case EventUserUpdate:
		var v UserUpdate
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Event, err)
		}
		e = v
	case EventStoreUpdate:
		var v StoreUpdate
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Event, err)
		}
		e = v
	case EventCollectionUpdate:
		var v CollectionUpdate
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Event, err)
		}
		e = v
	case EventAnswerUpdate:
		var v AnswerUpdate
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Event, err)
		}
		e = v
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}

	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Unmarshal は完全なワイヤーフレームをデコードする。
func Unmarshal(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return Decode(env)
}
