package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockDeleter struct {
	mu      sync.Mutex
	calls   int
	cutoffs []time.Time
	deleted int64
	err     error
}

func (m *mockDeleter) DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.cutoffs = append(m.cutoffs, cutoff)
	return m.deleted, m.err
}

func (m *mockDeleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

var fixedNow = time.Date(2024, 7, 1, 3, 0, 0, 0, time.UTC)

func TestNotificationJob_Run_DeletesBeforeCutoff(t *testing.T) {
	var buf bytes.Buffer
	store := &mockDeleter{deleted: 4}
	job := NewNotificationJob(store, 90, newTestLogger(&buf))
	job.now = func() time.Time { return fixedNow }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if store.calls != 1 {
		t.Fatalf("DeleteSeenBefore calls = %d, want 1", store.calls)
	}
	want := time.Date(2024, 4, 2, 3, 0, 0, 0, time.UTC)
	if !store.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", store.cutoffs[0], want)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "notification cleanup completed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if n, _ := entry["deleted_count"].(float64); n != 4 {
		t.Errorf("deleted_count = %v, want 4", entry["deleted_count"])
	}
}

func TestNotificationJob_Run_DisabledByDefault(t *testing.T) {
	for _, days := range []int{0, -1} {
		store := &mockDeleter{}
		var buf bytes.Buffer
		if err := NewNotificationJob(store, days, newTestLogger(&buf)).Run(context.Background()); err != nil {
			t.Fatalf("days=%d: Run: %v", days, err)
		}
		if store.calls != 0 {
			t.Errorf("days=%d: DeleteSeenBefore was called", days)
		}
	}
}

func TestNotificationJob_Run_NothingToDelete(t *testing.T) {
	var buf bytes.Buffer
	job := NewNotificationJob(&mockDeleter{}, 30, newTestLogger(&buf))
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run with nothing to delete: %v", err)
	}
}

func TestNotificationJob_Run_StoreError(t *testing.T) {
	var buf bytes.Buffer
	store := &mockDeleter{err: errors.New("connection refused")}
	job := NewNotificationJob(store, 30, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, store.err) {
		t.Errorf("error should wrap the store error, got %v", err)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected an ERROR log line, got %s", buf.String())
	}
}

func TestNotificationJob_Start_RunsImmediatelyAndStops(t *testing.T) {
	var buf bytes.Buffer
	store := &mockDeleter{}
	job := NewNotificationJob(store, 30, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for store.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("job did not run on start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if store.callCount() != 1 {
		t.Errorf("calls = %d, want 1", store.callCount())
	}
}
