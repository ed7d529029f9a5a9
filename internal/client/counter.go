package client

import (
	"sync"

	"github.com/hitoshi/stackforum/internal/bus"
)

// Counter は閲覧ユーザーの通貨残高。
type Counter struct {
	viewer string

	mu    sync.RWMutex
	value int
}

// NewCounter は初期値 initial の viewer 用カウンタを生成する。
func NewCounter(viewer string, initial int) *Counter {
	return &Counter{viewer: viewer, value: initial}
}

// Apply は addition なら差分を加算し、newCount なら値を置き換える。
// 他のユーザー宛ての更新は無視する。
func (c *Counter) Apply(e bus.StoreUpdate) bool {
	if e.Username != c.viewer {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch e.Type {
	case bus.ChangeAddition:
		c.value += e.Count
	case bus.ChangeNewCount:
		c.value = e.Count
	default:
		return false
	}
	return true
}

// Value は現在の残高を返す。
func (c *Counter) Value() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}
