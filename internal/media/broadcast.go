package media

import (
	"sync"
)

// Capability は購読の種類を表す
type Capability string

const (
	CapabilityStream      Capability = "stream"
	CapabilityError       Capability = "error"
	CapabilityStateChange Capability = "stateChange"
	CapabilityObserver    Capability = "observer"
)

// Subscription は購読の解除に使う値
type Subscription struct {
	capability Capability
	ids        []uint64
	b          *broadcaster
	once       sync.Once
}

// Capability は購読の種類を返す
func (s *Subscription) Capability() Capability {
	return s.capability
}

// Unsubscribe は購読を解除する。複数回呼んでも安全
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.b.remove(s.ids...)
	})
}

type streamEntry struct {
	id uint64
	fn func(*Handle)
}

type errorEntry struct {
	id uint64
	fn func(*Error)
}

type stateEntry struct {
	id uint64
	fn func(State)
}

// broadcaster は購読者を登録順に保持する
// 通知時は登録リストのスナップショットを取り、ロック外で呼び出す
type broadcaster struct {
	mu      sync.RWMutex
	nextID  uint64
	streams []streamEntry
	errs    []errorEntry
	states  []stateEntry
}

func newBroadcaster() *broadcaster {
	return &broadcaster{}
}

func (b *broadcaster) id() uint64 {
	b.nextID++
	return b.nextID
}

func (b *broadcaster) addStream(fn func(*Handle)) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.id()
	b.streams = append(b.streams, streamEntry{id: id, fn: fn})
	return id
}

func (b *broadcaster) addError(fn func(*Error)) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.id()
	b.errs = append(b.errs, errorEntry{id: id, fn: fn})
	return id
}

func (b *broadcaster) addState(fn func(State)) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.id()
	b.states = append(b.states, stateEntry{id: id, fn: fn})
	return id
}

func (b *broadcaster) remove(ids ...uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	drop := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	streams := b.streams[:0:0]
	for _, e := range b.streams {
		if _, ok := drop[e.id]; !ok {
			streams = append(streams, e)
		}
	}
	errs := b.errs[:0:0]
	for _, e := range b.errs {
		if _, ok := drop[e.id]; !ok {
			errs = append(errs, e)
		}
	}
	states := b.states[:0:0]
	for _, e := range b.states {
		if _, ok := drop[e.id]; !ok {
			states = append(states, e)
		}
	}
	b.streams, b.errs, b.states = streams, errs, states
}

// counts は種類ごとの購読者数を返す
func (b *broadcaster) counts() (streams, errs, states int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams), len(b.errs), len(b.states)
}

func (b *broadcaster) emitStream(h *Handle) {
	b.mu.RLock()
	snapshot := make([]streamEntry, len(b.streams))
	copy(snapshot, b.streams)
	b.mu.RUnlock()

	for _, e := range snapshot {
		e.fn(h)
	}
}

func (b *broadcaster) emitError(err *Error) {
	b.mu.RLock()
	snapshot := make([]errorEntry, len(b.errs))
	copy(snapshot, b.errs)
	b.mu.RUnlock()

	for _, e := range snapshot {
		e.fn(err)
	}
}

func (b *broadcaster) emitState(s State) {
	b.mu.RLock()
	snapshot := make([]stateEntry, len(b.states))
	copy(snapshot, b.states)
	b.mu.RUnlock()

	for _, e := range snapshot {
		e.fn(s)
	}
}
