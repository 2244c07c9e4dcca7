package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected は未接続の状態で送信しようとしたことを示す
var ErrNotConnected = errors.New("conversation: not connected")

// Config は接続設定
type Config struct {
	URL              string
	APIKey           string
	AssistantID      string
	HandshakeTimeout time.Duration
}

// Handler はイベントを受け取る関数
type Handler func(Event)

// Registration はハンドラ登録の解除に使う
type Registration struct {
	remove func()
	once   sync.Once
}

// Remove はハンドラを解除する。複数回呼んでも安全
func (r *Registration) Remove() {
	r.once.Do(r.remove)
}

type handlerEntry struct {
	id uint64
	fn Handler
}

// Client はイベントチャネルのクライアント
type Client struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer

	mu       sync.RWMutex
	handlers map[EventType][]handlerEntry
	nextID   uint64
	conn     *websocket.Conn
	closing  bool
	done     chan struct{}

	writeMu sync.Mutex
}

// New は新しいClientを作成する
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With("component", "conversation"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		handlers: make(map[EventType][]handlerEntry),
	}
}

// On はイベント種別にハンドラを登録する
func (c *Client) On(t EventType, h Handler) *Registration {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[t] = append(c.handlers[t], handlerEntry{id: id, fn: h})
	c.mu.Unlock()

	return &Registration{remove: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		entries := c.handlers[t]
		kept := entries[:0:0]
		for _, e := range entries {
			if e.id != id {
				kept = append(kept, e)
			}
		}
		c.handlers[t] = kept
	}}
}

// Start は接続して開始要求を送り、受信ループを開始する
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return fmt.Errorf("既に接続されています")
	}
	c.mu.Unlock()

	headers := http.Header{}
	if c.cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	c.logger.Info("イベントチャネルに接続します", "url", c.cfg.URL)
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, headers)
	if err != nil {
		return fmt.Errorf("WebSocket接続に失敗: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.closing = false
	c.done = done
	c.mu.Unlock()

	if err := c.Send(startRequest{Type: "start", AssistantID: c.cfg.AssistantID}); err != nil {
		_ = conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		close(done)
		return fmt.Errorf("開始要求の送信に失敗: %w", err)
	}

	go c.readLoop(conn, done)
	return nil
}

// Send はJSONメッセージを送信する
func (c *Client) Send(v any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("メッセージの送信に失敗: %w", err)
	}
	return nil
}

// Stop は正常終了のクローズフレームを送って切断する
// 未接続の場合は何もしない
func (c *Client) Stop() error {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	if conn == nil || c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	c.writeMu.Lock()
	err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("クローズフレームの送信に失敗", "error", err)
	}

	// サーバーからのクローズ応答を待つ
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = conn.Close()
		<-done
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	ended := false
	defer func() {
		_ = conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		// call-endを受け取らずに切断された場合も通話終了として扱う
		if !ended {
			c.dispatch(Event{Type: EventCallEnd})
		}
		close(done)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.RLock()
			closing := c.closing
			c.mu.RUnlock()

			if !closing && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("受信に失敗", "error", err)
				c.dispatch(Event{Type: EventError, Error: err.Error()})
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("イベントの解析に失敗", "error", err)
			continue
		}
		if ev.Type == EventCallEnd {
			ended = true
		}
		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev Event) {
	c.mu.RLock()
	entries := make([]handlerEntry, len(c.handlers[ev.Type]))
	copy(entries, c.handlers[ev.Type])
	c.mu.RUnlock()

	c.logger.Debug("イベント受信", "type", ev.Type)
	for _, e := range entries {
		e.fn(ev)
	}
}
