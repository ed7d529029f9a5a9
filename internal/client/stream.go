package client

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/hitoshi/stackforum/internal/bus"
)

// Handler はデコード済みイベントを1件受け取る。
type Handler func(bus.Event)

// ReconnectHook はソケット再接続後、新しいイベントを配る前に実行される。
type ReconnectHook func(ctx context.Context) error

// Stream はサーバーへのソケットを維持し、受信順に各イベントを
// その名前に登録されたハンドラへ配る。切断時はバックオフ付きで再接続し、
// 取りこぼしたイベントを再取得で回復できるよう再接続フックをすべて実行する。
type Stream struct {
	socketURL string
	logger    *slog.Logger
	backoff   func(attempt int) time.Duration

	mu       sync.Mutex
	nextID   uint64
	handlers map[bus.EventName]map[uint64]Handler
	hooks    map[uint64]ReconnectHook
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewStream は baseURL のサーバー向けストリームを生成する。
func NewStream(baseURL string, logger *slog.Logger) (*Stream, error) {
	socketURL, err := SocketURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Stream{
		socketURL: socketURL,
		logger:    logger,
		backoff:   CalculateBackoff,
		handlers:  make(map[bus.EventName]map[uint64]Handler),
		hooks:     make(map[uint64]ReconnectHook),
	}, nil
}

// SocketURL は http(s) のベースURLから ws(s)://host/socket のアドレスを導く。
func SocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("base URL must be http or https")
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/socket"
	return u.String(), nil
}

// Handle は名前が name のイベントに h を登録する。戻り値の関数で登録を解除する。
func (s *Stream) Handle(name bus.EventName, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	if s.handlers[name] == nil {
		s.handlers[name] = make(map[uint64]Handler)
	}
	s.handlers[name][id] = h

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers[name], id)
	}
}

// OnReconnect は再接続のたびに実行するフックを登録する。
func (s *Stream) OnReconnect(hook ReconnectHook) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.hooks[id] = hook

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.hooks, id)
	}
}

// Start はバックグラウンドで接続してすぐに戻る。
// 閉じたストリームは再開しない。
func (s *Stream) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Close は切断し、すべてのハンドラとフックを削除する。
// 複数回呼んでも、Start 前に呼んでも安全。
func (s *Stream) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.handlers = make(map[bus.EventName]map[uint64]Handler)
	s.hooks = make(map[uint64]ReconnectHook)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Stream) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	attempt := 0
	connected := false
	for {
		conn, _, err := websocket.Dial(ctx, s.socketURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := s.backoff(attempt)
			s.logger.Warn("socket dial failed", "url", s.socketURL, "attempt", attempt+1, "retry_in", delay.String(), "error", err)
			attempt++
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		if connected {
			s.logger.Info("socket reconnected", "url", s.socketURL)
			s.runHooks(ctx)
		}
		connected = true

		err = s.read(ctx, conn)
		conn.CloseNow()
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("socket connection lost", "url", s.socketURL, "error", err)
	}
}

func (s *Stream) read(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(1 << 20)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		e, err := bus.Unmarshal(data)
		if err != nil {
			s.logger.Warn("ignoring malformed frame", "error", err)
			continue
		}
		s.dispatch(e)
	}
}

func (s *Stream) dispatch(e bus.Event) {
	s.mu.Lock()
	hs := make([]Handler, 0, len(s.handlers[e.Name()]))
	for _, h := range s.handlers[e.Name()] {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	for _, h := range hs {
		h(e)
	}
}

func (s *Stream) runHooks(ctx context.Context) {
	s.mu.Lock()
	hooks := make([]ReconnectHook, 0, len(s.hooks))
	for _, h := range s.hooks {
		hooks = append(hooks, h)
	}
	s.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx); err != nil {
			s.logger.Warn("re-fetch after reconnect failed", "error", err)
		}
	}
}
