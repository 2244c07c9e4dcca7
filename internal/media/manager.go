package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager はカメラ/マイクのキャプチャハンドルの唯一の所有者
type Manager struct {
	platform    Platform
	logger      *slog.Logger
	constraints Constraints

	mu          sync.RWMutex
	handle      *Handle
	cameraOn    bool
	micOn       bool
	initialized bool
	phase       Phase
	lastError   *Error

	// 非同期操作の世代。変更操作を開始するたびに進める
	generation uint64
	// 最後に開始した取得の世代
	acquireGen uint64

	subs *broadcaster
}

// Option はManagerの設定を変更する
type Option func(*Manager)

// WithLogger はログ出力先を設定する
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConstraints は取得時の条件を設定する
func WithConstraints(c Constraints) Option {
	return func(m *Manager) {
		m.constraints = c
	}
}

// NewManager は新しいManagerを作成する
func NewManager(platform Platform, opts ...Option) *Manager {
	m := &Manager{
		platform:    platform,
		logger:      slog.Default(),
		constraints: DefaultConstraints(),
		phase:       PhaseUninitialized,
		subs:        newBroadcaster(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "media")
	return m
}

// Acquire は音声と映像をまとめて取得する
// 既存のハンドルは先に解放する
func (m *Manager) Acquire(ctx context.Context) error {
	m.mu.Lock()
	old := m.handle
	m.handle = nil
	m.cameraOn = false
	m.micOn = false
	m.initialized = false
	m.phase = PhaseAcquiring
	m.generation++
	gen := m.generation
	m.acquireGen = gen
	constraints := m.constraints
	m.mu.Unlock()

	if old != nil {
		m.logger.Debug("既存ハンドルを解放", "handle", old)
		stopTracks(m.logger, old.Tracks())
	}

	tracks, err := m.platform.GetUserMedia(ctx, constraints)
	handle := NewHandle(tracks...)
	if err == nil && handle == nil {
		err = fmt.Errorf("トラックが返されませんでした: %w", ErrNoDevice)
	}

	m.mu.Lock()
	if gen != m.generation {
		// 後続の取得がなければ取得中のまま残さない
		settled := m.acquireGen == gen && m.settleLocked()
		m.mu.Unlock()

		m.logger.Info("古い取得結果を破棄", "generation", gen)
		stopTracks(m.logger, tracks)
		if settled {
			m.notify()
		}
		return ErrSuperseded
	}

	if err != nil {
		mErr := newError(OpAcquire, Classify(err), err)
		m.lastError = mErr
		m.phase = PhaseUninitialized
		m.mu.Unlock()

		// エラーと一緒に返されたトラックも止める
		stopTracks(m.logger, tracks)
		m.logger.Error("メディアの取得に失敗", "kind", mErr.Kind, "error", err)
		m.subs.emitError(mErr)
		m.notify()
		return mErr
	}

	m.handle = handle
	m.cameraOn = true
	m.micOn = true
	m.initialized = true
	m.phase = PhaseReady
	m.lastError = nil
	m.mu.Unlock()

	m.logger.Info("メディアを取得", "handle", handle)
	m.notify()
	return nil
}

// ToggleCamera はカメラのオン/オフを切り替える
func (m *Manager) ToggleCamera(ctx context.Context) error {
	return m.toggle(ctx, KindVideo)
}

// ToggleMicrophone はマイクのオン/オフを切り替える
func (m *Manager) ToggleMicrophone(ctx context.Context) error {
	return m.toggle(ctx, KindAudio)
}

// toggle は現在の実効状態をもとにオン/オフを決める
// オフはトラックを停止してハードウェアを解放し、オンは新しく取得する
func (m *Manager) toggle(ctx context.Context, kind Kind) error {
	op := OpToggleMicrophone
	if kind == KindVideo {
		op = OpToggleCamera
	}

	m.mu.Lock()
	m.generation++
	gen := m.generation

	if m.enabledLocked(kind) {
		old := m.handle
		m.handle = old.without(kind)
		m.setEnabledLocked(kind, false)
		m.mu.Unlock()

		stopTracks(m.logger, old.tracksOf(kind))
		m.logger.Info("デバイスをオフ", "kind", kind)
		m.notify()
		return nil
	}

	constraints := m.constraints.only(kind)
	m.mu.Unlock()

	tracks, err := m.platform.GetUserMedia(ctx, constraints)
	fresh, extra := splitByKind(tracks, kind)
	if err == nil && len(fresh) == 0 {
		err = fmt.Errorf("%sトラックが返されませんでした: %w", kind, ErrNoDevice)
	}
	stopTracks(m.logger, extra)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Info("古いトグル結果を破棄", "kind", kind, "generation", gen)
		stopTracks(m.logger, fresh)
		return ErrSuperseded
	}

	if err != nil {
		mErr := newError(op, Classify(err), err)
		m.lastError = mErr
		m.settleLocked()
		m.mu.Unlock()

		stopTracks(m.logger, fresh)
		m.logger.Error("デバイスをオンにできませんでした", "kind", kind, "error", err)
		m.subs.emitError(mErr)
		m.notify()
		return mErr
	}

	// 終了済みの同種トラックが残っていれば入れ替える
	stale := m.handle.tracksOf(kind)
	m.handle = m.handle.without(kind).with(fresh)
	m.setEnabledLocked(kind, true)
	m.settleLocked()
	m.mu.Unlock()

	stopTracks(m.logger, stale)
	m.logger.Info("デバイスをオン", "kind", kind)
	m.notify()
	return nil
}

// SwitchCamera は映像トラックを指定デバイスのものに差し替える
// 音声トラックはそのまま維持する
func (m *Manager) SwitchCamera(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	if m.handle == nil {
		m.mu.Unlock()
		return ErrNotAcquired
	}

	old := m.handle
	m.handle = old.without(KindVideo)
	m.generation++
	gen := m.generation
	constraints := m.constraints.only(KindVideo)
	constraints.Video.DeviceID = deviceID
	m.mu.Unlock()

	stopTracks(m.logger, old.VideoTracks())

	tracks, err := m.platform.GetUserMedia(ctx, constraints)
	fresh, extra := splitByKind(tracks, KindVideo)
	if err == nil && len(fresh) == 0 {
		err = fmt.Errorf("映像トラックが返されませんでした: %w", ErrNoDevice)
	}
	stopTracks(m.logger, extra)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Info("古い切り替え結果を破棄", "device", deviceID, "generation", gen)
		stopTracks(m.logger, fresh)
		return ErrSuperseded
	}

	if err != nil {
		mErr := newError(OpSwitchCamera, ErrorKindSwitchFailed, err)
		m.lastError = mErr
		m.cameraOn = false
		m.settleLocked()
		m.mu.Unlock()

		stopTracks(m.logger, fresh)
		m.logger.Error("カメラの切り替えに失敗", "device", deviceID, "error", err)
		m.subs.emitError(mErr)
		m.notify()
		return mErr
	}

	m.handle = m.handle.with(fresh)
	m.cameraOn = true
	m.settleLocked()
	m.mu.Unlock()

	m.logger.Info("カメラを切り替え", "device", deviceID)
	m.notify()
	return nil
}

// ForceStopAllTracks は保持している全トラックを停止して状態を初期化する
// 何も保持していない場合は何もしない。エラーやpanicを呼び出し元へ返さない
func (m *Manager) ForceStopAllTracks() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("強制解放中にpanic", "panic", r)
		}
	}()

	m.mu.Lock()
	// 実行中の取得結果は破棄させる
	m.generation++
	if m.idleLocked() {
		m.mu.Unlock()
		return
	}

	old := m.handle
	m.handle = nil
	m.cameraOn = false
	m.micOn = false
	m.initialized = false
	m.phase = PhaseReleasing
	m.mu.Unlock()

	stopTracks(m.logger, old.Tracks())

	m.mu.Lock()
	if m.phase == PhaseReleasing {
		m.phase = PhaseUninitialized
	}
	m.mu.Unlock()

	m.logger.Info("全トラックを強制停止", "handle", old)
	m.notify()
}

// Subscribe はハンドルの差し替えを購読する
// 登録時に現在のハンドル（nilを含む）で一度呼び出される
func (m *Manager) Subscribe(fn func(*Handle)) *Subscription {
	id := m.subs.addStream(fn)
	fn(m.Handle())
	return &Subscription{capability: CapabilityStream, ids: []uint64{id}, b: m.subs}
}

// SubscribeToErrors はエラーを購読する。過去のエラーは再送しない
func (m *Manager) SubscribeToErrors(fn func(*Error)) *Subscription {
	id := m.subs.addError(fn)
	return &Subscription{capability: CapabilityError, ids: []uint64{id}, b: m.subs}
}

// SubscribeToStateChanges は状態の変化を購読する
func (m *Manager) SubscribeToStateChanges(fn func(State)) *Subscription {
	id := m.subs.addState(fn)
	return &Subscription{capability: CapabilityStateChange, ids: []uint64{id}, b: m.subs}
}

// Observe はObserverを3種類すべてに登録する
// 登録時に現在のハンドルと状態で一度ずつ呼び出される
func (m *Manager) Observe(o Observer) *Subscription {
	ids := []uint64{
		m.subs.addStream(o.OnStream),
		m.subs.addError(o.OnError),
		m.subs.addState(o.OnStateChange),
	}
	s := m.State()
	o.OnStream(s.Handle)
	o.OnStateChange(s)
	return &Subscription{capability: CapabilityObserver, ids: ids, b: m.subs}
}

// SubscriberCount は種類ごとの購読者数を返す
func (m *Manager) SubscriberCount() (streams, errs, states int) {
	return m.subs.counts()
}

// IsCameraEnabled はカメラが実際に有効かを返す
func (m *Manager) IsCameraEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabledLocked(KindVideo)
}

// IsMicrophoneEnabled はマイクが実際に有効かを返す
func (m *Manager) IsMicrophoneEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabledLocked(KindAudio)
}

// IsReady は取得が完了しているかを返す
func (m *Manager) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// Handle は現在のハンドルを返す
func (m *Manager) Handle() *Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle
}

// LastError は直近のエラーを返す
func (m *Manager) LastError() *Error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// State は現在の状態のスナップショットを返す
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

// EnumerateDevices は利用可能なデバイスを列挙する
func (m *Manager) EnumerateDevices(ctx context.Context) ([]DeviceInfo, error) {
	devices, err := m.platform.EnumerateDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("デバイス列挙に失敗: %w", err)
	}
	return devices, nil
}

func (m *Manager) stateLocked() State {
	return State{
		CameraEnabled:     m.enabledLocked(KindVideo),
		MicrophoneEnabled: m.enabledLocked(KindAudio),
		Initialized:       m.initialized,
		Phase:             m.phase,
		Handle:            m.handle,
		LastError:         m.lastError,
	}
}

// enabledLocked はフラグと実際のトラック状態の両方が有効な場合のみtrueを返す
func (m *Manager) enabledLocked(kind Kind) bool {
	flag := m.micOn
	if kind == KindVideo {
		flag = m.cameraOn
	}
	return flag && m.handle.hasActive(kind)
}

func (m *Manager) setEnabledLocked(kind Kind, on bool) {
	if kind == KindVideo {
		m.cameraOn = on
	} else {
		m.micOn = on
	}
}

func (m *Manager) idleLocked() bool {
	return m.handle == nil &&
		!m.cameraOn &&
		!m.micOn &&
		!m.initialized &&
		m.phase == PhaseUninitialized
}

// settleLocked は取得中に追い越された段階を現在のハンドルに合わせて確定する
// 段階を変更した場合はtrueを返す
func (m *Manager) settleLocked() bool {
	switch {
	case m.handle != nil && (m.phase == PhaseAcquiring || m.phase == PhaseUninitialized):
		m.phase = PhaseReady
		m.initialized = true
		return true
	case m.handle == nil && m.phase == PhaseAcquiring:
		m.phase = PhaseUninitialized
		return true
	}
	return false
}

// notify は同一スナップショットでストリーム購読者と状態購読者に通知する
func (m *Manager) notify() {
	s := m.State()
	m.subs.emitStream(s.Handle)
	m.subs.emitState(s)
}

// splitByKind はトラックを指定種類とそれ以外に分ける
func splitByKind(tracks []Track, kind Kind) (match, rest []Track) {
	for _, t := range tracks {
		if t == nil {
			continue
		}
		if t.Kind() == kind {
			match = append(match, t)
		} else {
			rest = append(rest, t)
		}
	}
	return match, rest
}
