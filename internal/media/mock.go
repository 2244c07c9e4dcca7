package media

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/google/uuid"
)

// MockTrack はテスト用のトラック実装
type MockTrack struct {
	id       string
	kind     Kind
	deviceID string
	label    string

	mu        sync.RWMutex
	enabled   bool
	state     ReadyState
	stopCount int
	frames    int

	// テスト制御用
	stopErr   error
	stopPanic bool
}

// NewMockTrack は新しいMockTrackを作成する
func NewMockTrack(kind Kind, deviceID, label string) *MockTrack {
	return &MockTrack{
		id:       uuid.NewString(),
		kind:     kind,
		deviceID: deviceID,
		label:    label,
		enabled:  true,
		state:    ReadyStateLive,
	}
}

func (t *MockTrack) ID() string       { return t.id }
func (t *MockTrack) Kind() Kind       { return t.kind }
func (t *MockTrack) DeviceID() string { return t.deviceID }
func (t *MockTrack) Label() string    { return t.label }

func (t *MockTrack) ReadyState() ReadyState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *MockTrack) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func (t *MockTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Stop はトラックを停止する
func (t *MockTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopCount++
	if t.stopPanic {
		panic("モック: トラック停止でpanic")
	}
	if t.stopErr != nil {
		return t.stopErr
	}
	t.state = ReadyStateEnded
	return nil
}

// End はデバイス側からの終了（抜去など）を再現する
func (t *MockTrack) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = ReadyStateEnded
}

// StopCount はStopが呼ばれた回数を返す
func (t *MockTrack) StopCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stopCount
}

// SetStopError はStopが返すエラーを設定する
func (t *MockTrack) SetStopError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopErr = err
}

// SetStopPanic はStopでpanicさせるかを設定する
func (t *MockTrack) SetStopPanic(p bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopPanic = p
}

// NewFrameReader は単色のテストフレームを返すリーダーを作成する
func (t *MockTrack) NewFrameReader() (FrameReader, error) {
	if t.kind != KindVideo {
		return nil, fmt.Errorf("映像トラックではありません: %s", t.id)
	}
	return mockFrameReader{t}, nil
}

type mockFrameReader struct {
	t *MockTrack
}

func (r mockFrameReader) Read() (image.Image, func(), error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	if r.t.state == ReadyStateEnded {
		return nil, func() {}, io.EOF
	}
	r.t.frames++

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	c := color.RGBA{R: uint8(r.t.frames * 10), G: 128, B: 255, A: 255}
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	return img, func() {}, nil
}

// MockPlatform はテスト用のPlatform実装
type MockPlatform struct {
	mu       sync.Mutex
	devices  []DeviceInfo
	requests []Constraints
	issued   []*MockTrack

	// テスト制御用
	failures []mockFailure
	gate     chan struct{}
}

// mockFailure はGetUserMediaの失敗内容
// partialの場合はトラックも一緒に返す
type mockFailure struct {
	err     error
	partial bool
}

// NewMockPlatform はカメラ2台・マイク1台・スピーカー1台を持つMockPlatformを作成する
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		devices: []DeviceInfo{
			{DeviceID: "camera-1", Label: "テストカメラ 1", Kind: DeviceKindVideoInput},
			{DeviceID: "camera-2", Label: "テストカメラ 2", Kind: DeviceKindVideoInput},
			{DeviceID: "mic-1", Label: "テストマイク", Kind: DeviceKindAudioInput},
			{DeviceID: "speaker-1", Label: "テストスピーカー", Kind: DeviceKindAudioOutput},
		},
	}
}

// GetUserMedia は条件に応じたMockTrackを返す
func (p *MockPlatform) GetUserMedia(ctx context.Context, c Constraints) ([]Track, error) {
	p.mu.Lock()
	p.requests = append(p.requests, c)
	gate := p.gate
	var failure mockFailure
	if len(p.failures) > 0 {
		failure = p.failures[0]
		p.failures = p.failures[1:]
	}
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failure.err != nil && !failure.partial {
		return nil, failure.err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var tracks []*MockTrack
	if c.Video != nil {
		dev, ok := p.findLocked(DeviceKindVideoInput, c.Video.DeviceID)
		if !ok {
			return nil, fmt.Errorf("カメラ %q: %w", c.Video.DeviceID, ErrNoDevice)
		}
		tracks = append(tracks, NewMockTrack(KindVideo, dev.DeviceID, dev.Label))
	}
	if c.Audio != nil {
		dev, ok := p.findLocked(DeviceKindAudioInput, c.Audio.DeviceID)
		if !ok {
			return nil, fmt.Errorf("マイク %q: %w", c.Audio.DeviceID, ErrNoDevice)
		}
		tracks = append(tracks, NewMockTrack(KindAudio, dev.DeviceID, dev.Label))
	}

	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		p.issued = append(p.issued, t)
		out = append(out, t)
	}
	return out, failure.err
}

// EnumerateDevices は登録済みのデバイスを返す
func (p *MockPlatform) EnumerateDevices(_ context.Context) ([]DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]DeviceInfo, len(p.devices))
	copy(out, p.devices)
	return out, nil
}

func (p *MockPlatform) findLocked(kind DeviceKind, id string) (DeviceInfo, bool) {
	for _, d := range p.devices {
		if d.Kind != kind {
			continue
		}
		if id == "" || d.DeviceID == id {
			return d, true
		}
	}
	return DeviceInfo{}, false
}

// SetDevices はデバイス一覧を置き換える
func (p *MockPlatform) SetDevices(devices []DeviceInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices = devices
}

// FailNext は次回以降のGetUserMediaを順に失敗させる
func (p *MockPlatform) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, err := range errs {
		p.failures = append(p.failures, mockFailure{err: err})
	}
}

// FailNextWithTracks は次回のGetUserMediaでトラックを発行したうえでエラーを返す
// 一部のデバイスだけ開けたドライバの挙動を再現する
func (p *MockPlatform) FailNextWithTracks(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, mockFailure{err: err, partial: true})
}

// Block は以降のGetUserMediaを返されたrelease関数が呼ばれるまで待機させる
func (p *MockPlatform) Block() (release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	gate := make(chan struct{})
	p.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			if p.gate == gate {
				p.gate = nil
			}
			p.mu.Unlock()
			close(gate)
		})
	}
}

// Requests は受け取った条件の一覧を返す
func (p *MockPlatform) Requests() []Constraints {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Constraints, len(p.requests))
	copy(out, p.requests)
	return out
}

// Issued はこれまでに発行したトラックを返す
func (p *MockPlatform) Issued() []*MockTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*MockTrack, len(p.issued))
	copy(out, p.issued)
	return out
}

// LiveTracks はまだ停止されていないトラック数を返す
func (p *MockPlatform) LiveTracks() int {
	n := 0
	for _, t := range p.Issued() {
		if t.ReadyState() == ReadyStateLive {
			n++
		}
	}
	return n
}

var _ io.Closer = (*MockPlatform)(nil)

// Close は全ての発行済みトラックを停止する
func (p *MockPlatform) Close() error {
	for _, t := range p.Issued() {
		t.End()
	}
	return nil
}
