package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func newTestManager(t *testing.T) (*Manager, *MockPlatform) {
	t.Helper()
	platform := NewMockPlatform()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(platform, WithLogger(logger)), platform
}

// recorder は通知を記録する
type recorder struct {
	mu      sync.Mutex
	handles []*Handle
	errs    []*Error
	states  []State
}

func (r *recorder) OnStream(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, h)
}

func (r *recorder) OnError(err *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) OnStateChange(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) counts() (handles, errs, states int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles), len(r.errs), len(r.states)
}

func (r *recorder) lastHandle() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.handles) == 0 {
		return nil
	}
	return r.handles[len(r.handles)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timeout waiting for condition")
}

func TestManager_Acquire(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	var streams []*Handle
	sub := manager.Subscribe(func(h *Handle) { streams = append(streams, h) })
	defer sub.Unsubscribe()

	// 登録時に現在値（nil）が再送される
	if len(streams) != 1 || streams[0] != nil {
		t.Fatalf("Expected replay of nil handle, got %v", streams)
	}

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if len(streams) != 2 {
		t.Fatalf("Expected exactly one stream notification after acquire, got %d", len(streams)-1)
	}

	h := manager.Handle()
	if h == nil {
		t.Fatal("Expected handle to be set")
	}
	if streams[1] != h {
		t.Error("Expected notified handle to be the current handle")
	}
	if len(h.VideoTracks()) != 1 || len(h.AudioTracks()) != 1 {
		t.Errorf("Expected 1 video and 1 audio track, got %d/%d", len(h.VideoTracks()), len(h.AudioTracks()))
	}

	if !manager.IsCameraEnabled() {
		t.Error("Expected camera to be enabled")
	}
	if !manager.IsMicrophoneEnabled() {
		t.Error("Expected microphone to be enabled")
	}
	if !manager.IsReady() {
		t.Error("Expected manager to be ready")
	}
	if manager.State().Phase != PhaseReady {
		t.Errorf("Expected phase ready, got %s", manager.State().Phase)
	}
}

func TestManager_AcquireReplacesExisting(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	first := manager.Handle()

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}

	for _, tr := range first.Tracks() {
		if tr.ReadyState() != ReadyStateEnded {
			t.Errorf("Expected old track %s to be stopped", tr.ID())
		}
	}
	if platform.LiveTracks() != 2 {
		t.Errorf("Expected 2 live tracks, got %d", platform.LiveTracks())
	}
}

func TestManager_AcquirePermissionDenied(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(t)
	platform.FailNext(ErrPermissionDenied)

	var messages []string
	manager.SubscribeToErrors(func(e *Error) { messages = append(messages, e.Message) })

	err := manager.Acquire(ctx)
	if err == nil {
		t.Fatal("Expected Acquire to fail")
	}

	var mErr *Error
	if !errors.As(err, &mErr) {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if mErr.Kind != ErrorKindPermissionDenied {
		t.Errorf("Expected permission-denied, got %s", mErr.Kind)
	}
	if !errors.Is(err, ErrPermissionDenied) {
		t.Error("Expected error to wrap ErrPermissionDenied")
	}

	if len(messages) != 1 {
		t.Fatalf("Expected 1 error notification, got %d", len(messages))
	}
	if !strings.Contains(messages[0], "拒否") {
		t.Errorf("Expected permission message, got %q", messages[0])
	}

	if manager.IsReady() {
		t.Error("Expected manager not to be ready")
	}
	if manager.Handle() != nil {
		t.Error("Expected handle to be nil")
	}
	if manager.LastError() != mErr {
		t.Error("Expected LastError to record the failure")
	}
}

func TestManager_AcquireNoDevice(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(t)
	platform.SetDevices(nil)

	err := manager.Acquire(ctx)
	var mErr *Error
	if !errors.As(err, &mErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if mErr.Kind != ErrorKindNoDevice {
		t.Errorf("Expected no-device, got %s", mErr.Kind)
	}
}

func TestManager_ToggleCamera(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	before := manager.Handle()
	video := before.VideoTracks()[0].(*MockTrack)
	audio := before.AudioTracks()[0]

	// オフ
	if err := manager.ToggleCamera(ctx); err != nil {
		t.Fatalf("ToggleCamera(off) failed: %v", err)
	}
	if manager.IsCameraEnabled() {
		t.Error("Expected camera to be disabled")
	}
	if video.StopCount() != 1 || video.ReadyState() != ReadyStateEnded {
		t.Errorf("Expected video track to be stopped once, got count=%d state=%s", video.StopCount(), video.ReadyState())
	}
	if video.Enabled() {
		t.Error("Expected video track to be disabled before stop")
	}

	off := manager.Handle()
	if off == before {
		t.Error("Expected a new handle after toggling off")
	}
	if len(off.VideoTracks()) != 0 {
		t.Errorf("Expected no video tracks, got %d", len(off.VideoTracks()))
	}
	if off.AudioTracks()[0] != audio {
		t.Error("Expected audio track to be kept")
	}
	if !manager.IsMicrophoneEnabled() {
		t.Error("Expected microphone to stay enabled")
	}

	// オン
	if err := manager.ToggleCamera(ctx); err != nil {
		t.Fatalf("ToggleCamera(on) failed: %v", err)
	}
	if !manager.IsCameraEnabled() {
		t.Error("Expected camera to be enabled")
	}
	on := manager.Handle()
	if len(on.VideoTracks()) != 1 || on.VideoTracks()[0] == Track(video) {
		t.Error("Expected a freshly acquired video track")
	}
	if on.AudioTracks()[0] != audio {
		t.Error("Expected audio track to be kept")
	}
	if !manager.IsMicrophoneEnabled() {
		t.Error("Expected microphone to be unaffected by camera toggles")
	}
	if audio.ReadyState() != ReadyStateLive {
		t.Error("Expected audio track to stay live")
	}
}

func TestManager_SubscribersShareHandle(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	var first, second []*Handle
	subA := manager.Subscribe(func(h *Handle) { first = append(first, h) })
	defer subA.Unsubscribe()
	subB := manager.Subscribe(func(h *Handle) { second = append(second, h) })
	defer subB.Unsubscribe()

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("Expected replay and one notification each, got %d/%d", len(first), len(second))
	}
	if first[1] == nil || first[1] != second[1] {
		t.Error("Expected both subscribers to receive the same handle")
	}
	if first[1] != manager.Handle() {
		t.Error("Expected notified handle to be the current handle")
	}
}

func TestManager_EveryTrackStoppedOnce(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := manager.ToggleCamera(ctx); err != nil {
		t.Fatalf("ToggleCamera(off) failed: %v", err)
	}
	if err := manager.ToggleCamera(ctx); err != nil {
		t.Fatalf("ToggleCamera(on) failed: %v", err)
	}
	manager.ForceStopAllTracks()

	issued := platform.Issued()
	if len(issued) != 3 {
		t.Fatalf("Expected 3 issued tracks, got %d", len(issued))
	}
	for _, tr := range issued {
		if tr.StopCount() != 1 {
			t.Errorf("Expected %s track %s to be stopped once, got %d", tr.Kind(), tr.ID(), tr.StopCount())
		}
	}
}

func TestManager_ToggleMicrophone(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := manager.ToggleMicrophone(ctx); err != nil {
		t.Fatalf("ToggleMicrophone(off) failed: %v", err)
	}
	if manager.IsMicrophoneEnabled() {
		t.Error("Expected microphone to be disabled")
	}
	if len(manager.Handle().AudioTracks()) != 0 {
		t.Error("Expected audio tracks to be removed")
	}

	if err := manager.ToggleMicrophone(ctx); err != nil {
		t.Fatalf("ToggleMicrophone(on) failed: %v", err)
	}
	if !manager.IsMicrophoneEnabled() {
		t.Error("Expected microphone to be enabled")
	}

	// オン時はマイクのみを要求する
	reqs := platform.Requests()
	last := reqs[len(reqs)-1]
	if last.Video != nil || last.Audio == nil {
		t.Errorf("Expected audio-only request, got %+v", last)
	}
}

func TestManager_ToggleFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := manager.ToggleCamera(ctx); err != nil {
		t.Fatalf("ToggleCamera(off) failed: %v", err)
	}

	rec := &recorder{}
	manager.Observe(rec)
	h0, _, s0 := rec.counts()

	platform.FailNext(syscall.EBUSY)
	err := manager.ToggleCamera(ctx)

	var mErr *Error
	if !errors.As(err, &mErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if mErr.Kind != ErrorKindDeviceBusy {
		t.Errorf("Expected device-busy, got %s", mErr.Kind)
	}
	if mErr.Op != OpToggleCamera {
		t.Errorf("Expected op %s, got %s", OpToggleCamera, mErr.Op)
	}
	if manager.IsCameraEnabled() {
		t.Error("Expected camera to remain disabled")
	}
	if !manager.IsMicrophoneEnabled() {
		t.Error("Expected microphone to remain enabled")
	}

	h1, e1, s1 := rec.counts()
	if e1 != 1 {
		t.Errorf("Expected 1 error notification, got %d", e1)
	}
	if h1 != h0+1 || s1 != s0+1 {
		t.Errorf("Expected stream and state notifications on failure, got %d/%d", h1-h0, s1-s0)
	}
}

func TestManager_ToggleBothOffClearsHandle(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := manager.ToggleCamera(ctx); err != nil {
		t.Fatalf("ToggleCamera failed: %v", err)
	}
	if err := manager.ToggleMicrophone(ctx); err != nil {
		t.Fatalf("ToggleMicrophone failed: %v", err)
	}

	if manager.Handle() != nil {
		t.Errorf("Expected nil handle with zero tracks, got %v", manager.Handle())
	}
	if platform.LiveTracks() != 0 {
		t.Errorf("Expected no live tracks, got %d", platform.LiveTracks())
	}
}

func TestManager_SwitchCamera(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	before := manager.Handle()
	oldVideo := before.VideoTracks()[0]
	audio := before.AudioTracks()[0]

	if err := manager.SwitchCamera(ctx, "camera-2"); err != nil {
		t.Fatalf("SwitchCamera failed: %v", err)
	}

	after := manager.Handle()
	if after == before {
		t.Error("Expected a new handle")
	}
	videos := after.VideoTracks()
	if len(videos) != 1 || videos[0].DeviceID() != "camera-2" {
		t.Fatalf("Expected video from camera-2, got %v", videos)
	}
	if oldVideo.ReadyState() != ReadyStateEnded {
		t.Error("Expected old video track to be stopped")
	}
	if after.AudioTracks()[0] != audio {
		t.Error("Expected audio track to be kept")
	}
	if !manager.IsCameraEnabled() {
		t.Error("Expected camera to be enabled")
	}
}

func TestManager_SwitchCameraFailure(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	var got []*Error
	manager.SubscribeToErrors(func(e *Error) { got = append(got, e) })

	err := manager.SwitchCamera(ctx, "missing-camera")
	var mErr *Error
	if !errors.As(err, &mErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if mErr.Kind != ErrorKindSwitchFailed {
		t.Errorf("Expected switch-failed, got %s", mErr.Kind)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 error notification, got %d", len(got))
	}

	// 映像は失われたまま、音声は維持される
	if manager.IsCameraEnabled() {
		t.Error("Expected camera to be disabled after failed switch")
	}
	h := manager.Handle()
	if len(h.VideoTracks()) != 0 || len(h.AudioTracks()) != 1 {
		t.Errorf("Expected audio-only handle, got %v", h)
	}
}

func TestManager_SwitchCameraNotAcquired(t *testing.T) {
	manager, platform := newTestManager(t)

	err := manager.SwitchCamera(context.Background(), "camera-2")
	if !errors.Is(err, ErrNotAcquired) {
		t.Errorf("Expected ErrNotAcquired, got %v", err)
	}
	if len(platform.Requests()) != 0 {
		t.Error("Expected no platform request")
	}
}

func TestManager_ForceStopAllTracks(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	manager.ForceStopAllTracks()

	if platform.LiveTracks() != 0 {
		t.Errorf("Expected all tracks stopped, got %d live", platform.LiveTracks())
	}
	if manager.IsCameraEnabled() || manager.IsMicrophoneEnabled() || manager.IsReady() {
		t.Error("Expected all flags to be false")
	}
	if manager.State().Phase != PhaseUninitialized {
		t.Errorf("Expected phase uninitialized, got %s", manager.State().Phase)
	}

	// 後から購読してもnilを受け取る
	var replay *Handle = &Handle{}
	manager.Subscribe(func(h *Handle) { replay = h })
	if replay != nil {
		t.Errorf("Expected late subscriber to receive nil, got %v", replay)
	}
}

func TestManager_ForceStopAllTracksIdempotent(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	rec := &recorder{}
	manager.Observe(rec)
	_, _, before := rec.counts()

	manager.ForceStopAllTracks()
	_, _, afterFirst := rec.counts()
	if afterFirst != before+1 {
		t.Errorf("Expected one state notification, got %d", afterFirst-before)
	}

	manager.ForceStopAllTracks()
	_, _, afterSecond := rec.counts()
	if afterSecond != afterFirst {
		t.Errorf("Expected second call to be a no-op, got %d notifications", afterSecond-afterFirst)
	}
	if manager.IsCameraEnabled() || manager.IsMicrophoneEnabled() {
		t.Error("Expected flags to stay false")
	}
}

func TestManager_ForceStopSwallowsTrackFailures(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	issued := platform.Issued()
	issued[0].SetStopPanic(true)
	issued[1].SetStopError(errors.New("モック: 停止失敗"))

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("ForceStopAllTracks panicked: %v", r)
		}
	}()
	manager.ForceStopAllTracks()

	if manager.Handle() != nil {
		t.Error("Expected handle to be cleared")
	}
	if issued[0].StopCount() != 1 || issued[1].StopCount() != 1 {
		t.Error("Expected every track to be attempted")
	}
}

func TestManager_ForceStopRecoversSubscriberPanic(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	manager.SubscribeToStateChanges(func(State) { panic("subscriber") })

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("ForceStopAllTracks panicked: %v", r)
		}
	}()
	manager.ForceStopAllTracks()
}

func TestManager_StaleAcquireIsDiscarded(t *testing.T) {
	manager, platform := newTestManager(t)
	release := platform.Block()
	defer release()

	done := make(chan error, 1)
	go func() {
		done <- manager.Acquire(context.Background())
	}()

	waitFor(t, func() bool { return len(platform.Requests()) == 1 })

	// 取得中に画面が消えた
	manager.ForceStopAllTracks()
	release()

	err := <-done
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Expected ErrSuperseded, got %v", err)
	}
	if manager.Handle() != nil {
		t.Error("Expected stale result not to be installed")
	}
	if platform.LiveTracks() != 0 {
		t.Errorf("Expected stale tracks to be stopped, got %d live", platform.LiveTracks())
	}
	if manager.IsReady() {
		t.Error("Expected manager not to be ready")
	}
}

func TestManager_AcquireOvertakenByToggle(t *testing.T) {
	manager, platform := newTestManager(t)
	release := platform.Block()
	defer release()

	rec := &recorder{}
	sub := manager.Observe(rec)
	defer sub.Unsubscribe()

	acquired := make(chan error, 1)
	go func() { acquired <- manager.Acquire(context.Background()) }()
	waitFor(t, func() bool { return len(platform.Requests()) == 1 })

	// 取得中にカメラをオンにした
	toggled := make(chan error, 1)
	go func() { toggled <- manager.ToggleCamera(context.Background()) }()
	waitFor(t, func() bool { return len(platform.Requests()) == 2 })

	release()

	if err := <-acquired; !errors.Is(err, ErrSuperseded) {
		t.Errorf("Expected acquire to be superseded, got %v", err)
	}
	if err := <-toggled; err != nil {
		t.Fatalf("ToggleCamera failed: %v", err)
	}

	state := manager.State()
	if state.Phase != PhaseReady {
		t.Errorf("Expected phase ready, got %s", state.Phase)
	}
	if !manager.IsReady() {
		t.Error("Expected manager to be ready")
	}
	if !manager.IsCameraEnabled() {
		t.Error("Expected camera to be enabled")
	}
	if manager.IsMicrophoneEnabled() {
		t.Error("Expected microphone to stay disabled")
	}
	if platform.LiveTracks() != 1 {
		t.Errorf("Expected only the camera track to be live, got %d", platform.LiveTracks())
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	notified := false
	for _, s := range rec.states {
		if s.Phase == PhaseReady && s.Initialized {
			notified = true
		}
	}
	if !notified {
		t.Error("Expected subscribers to be notified of phase ready")
	}
}

func TestManager_PartialFailureStopsTracks(t *testing.T) {
	acquire := func(ctx context.Context, m *Manager) error { return m.Acquire(ctx) }

	tests := []struct {
		name     string
		setup    func(ctx context.Context, m *Manager) error
		run      func(ctx context.Context, m *Manager) error
		wantKind ErrorKind
		wantLive int
	}{
		{
			name:     "取得",
			run:      acquire,
			wantKind: ErrorKindDeviceBusy,
			wantLive: 0,
		},
		{
			name: "カメラをオン",
			setup: func(ctx context.Context, m *Manager) error {
				if err := m.Acquire(ctx); err != nil {
					return err
				}
				return m.ToggleCamera(ctx)
			},
			run:      func(ctx context.Context, m *Manager) error { return m.ToggleCamera(ctx) },
			wantKind: ErrorKindDeviceBusy,
			wantLive: 1,
		},
		{
			name:     "カメラ切り替え",
			setup:    acquire,
			run:      func(ctx context.Context, m *Manager) error { return m.SwitchCamera(ctx, "camera-2") },
			wantKind: ErrorKindSwitchFailed,
			wantLive: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			manager, platform := newTestManager(t)
			if tt.setup != nil {
				if err := tt.setup(ctx, manager); err != nil {
					t.Fatalf("setup failed: %v", err)
				}
			}

			// ドライバがトラックを開いたままエラーを返す
			platform.FailNextWithTracks(ErrDeviceBusy)
			assertPartialFailure(t, tt.run(ctx, manager), tt.wantKind)

			if platform.LiveTracks() != tt.wantLive {
				t.Errorf("Expected %d live tracks, got %d", tt.wantLive, platform.LiveTracks())
			}
			if manager.IsCameraEnabled() {
				t.Error("Expected camera to be disabled")
			}
		})
	}
}

func assertPartialFailure(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	var mErr *Error
	if !errors.As(err, &mErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if mErr.Kind != want {
		t.Errorf("Expected %s, got %s", want, mErr.Kind)
	}
}

func TestManager_ConcurrentAcquireKeepsLatest(t *testing.T) {
	manager, platform := newTestManager(t)
	release := platform.Block()

	first := make(chan error, 1)
	go func() { first <- manager.Acquire(context.Background()) }()
	waitFor(t, func() bool { return len(platform.Requests()) == 1 })

	second := make(chan error, 1)
	go func() { second <- manager.Acquire(context.Background()) }()
	waitFor(t, func() bool { return len(platform.Requests()) == 2 })

	release()

	if err := <-first; !errors.Is(err, ErrSuperseded) {
		t.Errorf("Expected first acquire to be superseded, got %v", err)
	}
	if err := <-second; err != nil {
		t.Errorf("Expected second acquire to succeed, got %v", err)
	}
	if platform.LiveTracks() != 2 {
		t.Errorf("Expected exactly 2 live tracks, got %d", platform.LiveTracks())
	}
}

func TestManager_DerivedStateFollowsTracks(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// デバイスが抜かれた
	video := manager.Handle().VideoTracks()[0].(*MockTrack)
	video.End()

	if manager.IsCameraEnabled() {
		t.Error("Expected camera to report disabled after track ended")
	}

	// 実効状態がオフなのでトグルはオンにする
	if err := manager.ToggleCamera(ctx); err != nil {
		t.Fatalf("ToggleCamera failed: %v", err)
	}
	if !manager.IsCameraEnabled() {
		t.Error("Expected camera to be enabled")
	}
}

func TestManager_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	calls := 0
	sub := manager.Subscribe(func(*Handle) { calls++ })
	sub.Unsubscribe()
	sub.Unsubscribe()

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected only the replay call, got %d", calls)
	}

	streams, errs, states := manager.SubscriberCount()
	if streams+errs+states != 0 {
		t.Errorf("Expected no subscribers, got %d/%d/%d", streams, errs, states)
	}
}

func TestManager_ObserveReplay(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t)

	if err := manager.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	rec := &recorder{}
	sub := manager.Observe(rec)
	defer sub.Unsubscribe()

	handles, errs, states := rec.counts()
	if handles != 1 || states != 1 || errs != 0 {
		t.Errorf("Expected 1/0/1 replay, got %d/%d/%d", handles, errs, states)
	}
	if rec.lastHandle() != manager.Handle() {
		t.Error("Expected replayed handle to be current")
	}
	if sub.Capability() != CapabilityObserver {
		t.Errorf("Expected observer capability, got %s", sub.Capability())
	}
}

func TestDefault(t *testing.T) {
	a := Default(NewMockPlatform())
	b := Default(NewMockPlatform())

	if a != b {
		t.Error("Expected Default to return the same manager")
	}
	if Instance() != a {
		t.Error("Expected Instance to return the shared manager")
	}
}
