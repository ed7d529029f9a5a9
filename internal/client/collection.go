// Package client はフォーラムのREST APIとイベントソケットに対するGoの購読レイヤー。
// コレクションはRESTで読み込み、その後はバスのイベントを適用して最新に保つ。
package client

import (
	"context"
	"sync"

	"github.com/hitoshi/stackforum/internal/bus"
)

// State は Collection のライフサイクル。
type State int

const (
	// StateUninitialized は最初の Load 前の状態。
	StateUninitialized State = iota
	// StateLoading は取得中の状態。
	StateLoading
	// StateReady は直近の取得結果に適用済みイベントを反映した状態。
	StateReady
	// StateFailed は直近の取得が失敗した状態。イベントは適用しない。
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// FetchFunc はコレクション全体を読み込む。
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Collection はローカルに保持し id で突き合わせるエンティティ集合。
// 並行利用しても安全。
type Collection[T any] struct {
	key   func(T) string
	fetch FetchFunc[T]

	mu    sync.RWMutex
	state State
	items []T
	err   error
}

// NewCollection は未初期化のコレクションを生成する。key は要素の id を返す。
func NewCollection[T any](key func(T) string, fetch FetchFunc[T]) *Collection[T] {
	return &Collection[T]{key: key, fetch: fetch}
}

// Load はコレクションを取得する。成功すると取得結果を持つ Ready になり、
// 失敗すると要素を持たない Failed になる。
func (c *Collection[T]) Load(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateLoading
	c.err = nil
	c.mu.Unlock()

	items, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		c.items = nil
		c.err = err
		return err
	}
	if items == nil {
		items = []T{}
	}
	c.state = StateReady
	c.items = items
	return nil
}

// Refetch は読み込み済みのコレクションを再取得する。
// 未初期化のコレクションには何もしない。
func (c *Collection[T]) Refetch(ctx context.Context) error {
	if c.State() == StateUninitialized {
		return nil
	}
	return c.Load(ctx)
}

// Apply は変更を1件反映し、集合が変わったかどうかを返す。
// created は id がなければ追加、updated はあれば置換、deleted は削除する。
// Ready 以外の状態では変更を無視する。
func (c *Collection[T]) Apply(change bus.ChangeType, item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady {
		return false
	}

	id := c.key(item)
	idx := -1
	for i := range c.items {
		if c.key(c.items[i]) == id {
			idx = i
			break
		}
	}

	switch change {
	case bus.ChangeCreated:
		if idx >= 0 {
			return false
		}
		c.items = append(c.items, item)
	case bus.ChangeUpdated:
		if idx < 0 {
			return false
		}
		c.items[idx] = item
	case bus.ChangeDeleted:
		if idx < 0 {
			return false
		}
		c.items = append(c.items[:idx], c.items[idx+1:]...)
	default:
		return false
	}
	return true
}

// Items は現在の集合のコピーを返す。
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// State は現在のライフサイクル状態を返す。
func (c *Collection[T]) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err は直近に失敗した取得のエラーを返す。
func (c *Collection[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}
