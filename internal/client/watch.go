package client

import (
	"context"

	"github.com/hitoshi/stackforum/internal/bus"
	"github.com/hitoshi/stackforum/internal/model"
)

// Extract はイベントから変更種別とエンティティを取り出す。
// コレクションに関係しないイベントでは ok が false になる。
type Extract[T any] func(e bus.Event) (change bus.ChangeType, item T, ok bool)

// Watch は c を読み込み、成功した場合だけ s 上の name イベントと
// 再接続時の再取得を購読する。戻り値の関数は両方を解除する。
// 戻り値は nil にならないので、呼び出し側は常に defer できる。
func Watch[T any](ctx context.Context, s *Stream, c *Collection[T], name bus.EventName, extract Extract[T]) (func(), error) {
	if err := c.Load(ctx); err != nil {
		return func() {}, err
	}

	offEvents := s.Handle(name, func(e bus.Event) {
		if change, item, ok := extract(e); ok {
			c.Apply(change, item)
		}
	})
	offHook := s.OnReconnect(c.Refetch)
	return func() {
		offEvents()
		offHook()
	}, nil
}

// WatchCounter は戻り値の関数が呼ばれるまで storeUpdate イベントを c に適用する。
func WatchCounter(s *Stream, c *Counter) func() {
	return s.Handle(bus.EventStoreUpdate, func(e bus.Event) {
		if su, ok := e.(bus.StoreUpdate); ok {
			c.Apply(su)
		}
	})
}

// NotificationKey は通知の id を返す。
func NotificationKey(n model.Notification) string { return n.ID }

// NotificationsOf は閲覧ユーザー宛ての通知だけを残す。
func NotificationsOf(viewer string) Extract[model.Notification] {
	return func(e bus.Event) (bus.ChangeType, model.Notification, bool) {
		nu, ok := e.(bus.NotificationUpdate)
		if !ok || nu.Notification.Username != viewer {
			return "", model.Notification{}, false
		}
		return nu.Type, nu.Notification, true
	}
}

// CollectionKey は保存した質問コレクションの id を返す。
func CollectionKey(c model.Collection) string { return c.ID }

// CollectionsOf は閲覧ユーザーのコレクションだけを残す。
func CollectionsOf(viewer string) Extract[model.Collection] {
	return func(e bus.Event) (bus.ChangeType, model.Collection, bool) {
		cu, ok := e.(bus.CollectionUpdate)
		if !ok || cu.Collection.Username != viewer {
			return "", model.Collection{}, false
		}
		return cu.Type, cu.Collection, true
	}
}

// ProfileKey はプロフィールのユーザー名を返す。
func ProfileKey(p model.Profile) string { return p.Username }

// Profiles はすべての userUpdate を適用する。
func Profiles(e bus.Event) (bus.ChangeType, model.Profile, bool) {
	uu, ok := e.(bus.UserUpdate)
	if !ok {
		return "", model.Profile{}, false
	}
	return uu.Type, uu.User, true
}

// AnswerKey は回答の id を返す。
func AnswerKey(a model.Answer) string { return a.ID }

// AnswersOn は質問 qid に投稿された回答を追加する。
func AnswersOn(qid string) Extract[model.Answer] {
	return func(e bus.Event) (bus.ChangeType, model.Answer, bool) {
		au, ok := e.(bus.AnswerUpdate)
		if !ok || au.QID != qid {
			return "", model.Answer{}, false
		}
		return bus.ChangeCreated, au.Answer, true
	}
}
