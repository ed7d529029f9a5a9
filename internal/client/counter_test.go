package client

import (
	"testing"

	"github.com/hitoshi/stackforum/internal/bus"
)

func TestCounter_Apply(t *testing.T) {
	c := NewCounter("alice", 10)

	steps := []struct {
		ev      bus.StoreUpdate
		changed bool
		want    int
	}{
		{bus.StoreUpdate{Type: bus.ChangeAddition, Username: "alice", Count: 5}, true, 15},
		{bus.StoreUpdate{Type: bus.ChangeAddition, Username: "alice", Count: -3}, true, 12},
		{bus.StoreUpdate{Type: bus.ChangeAddition, Username: "bob", Count: 100}, false, 12},
		{bus.StoreUpdate{Type: bus.ChangeNewCount, Username: "alice", Count: 42}, true, 42},
		{bus.StoreUpdate{Type: bus.ChangeCreated, Username: "alice", Count: 1}, false, 42},
	}
	for i, s := range steps {
		if got := c.Apply(s.ev); got != s.changed {
			t.Errorf("step %d: Apply() = %v, want %v", i, got, s.changed)
		}
		if c.Value() != s.want {
			t.Errorf("step %d: value = %d, want %d", i, c.Value(), s.want)
		}
	}
}
