package conversation

import (
	"context"
	"sync"
)

// MockClient はテスト用のチャネル実装
// Emitで任意のイベントを配信できる
type MockClient struct {
	mu       sync.Mutex
	handlers map[EventType][]handlerEntry
	nextID   uint64
	started  int
	stopped  int

	// テスト制御用
	startErr error
}

// NewMockClient は新しいMockClientを作成する
func NewMockClient() *MockClient {
	return &MockClient{handlers: make(map[EventType][]handlerEntry)}
}

// On はハンドラを登録する
func (m *MockClient) On(t EventType, h Handler) *Registration {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.handlers[t] = append(m.handlers[t], handlerEntry{id: id, fn: h})
	m.mu.Unlock()

	return &Registration{remove: func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		kept := m.handlers[t][:0:0]
		for _, e := range m.handlers[t] {
			if e.id != id {
				kept = append(kept, e)
			}
		}
		m.handlers[t] = kept
	}}
}

// Start は開始回数を記録する
func (m *MockClient) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started++
	return nil
}

// Stop は停止回数を記録する
func (m *MockClient) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	return nil
}

// SetStartError はStartが返すエラーを設定する
func (m *MockClient) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// Emit はイベントを登録済みハンドラへ配信する
func (m *MockClient) Emit(ev Event) {
	m.mu.Lock()
	entries := make([]handlerEntry, len(m.handlers[ev.Type]))
	copy(entries, m.handlers[ev.Type])
	m.mu.Unlock()

	for _, e := range entries {
		e.fn(ev)
	}
}

// Started はStartが成功した回数を返す
func (m *MockClient) Started() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Stopped はStopが呼ばれた回数を返す
func (m *MockClient) Stopped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// HandlerCount は登録済みハンドラの総数を返す
func (m *MockClient) HandlerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, hs := range m.handlers {
		n += len(hs)
	}
	return n
}
