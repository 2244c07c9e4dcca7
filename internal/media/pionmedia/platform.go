package pionmedia

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	"mensetsu/internal/media"
)

// Platform はmediadevicesを使ったmedia.Platform
type Platform struct {
	logger *slog.Logger

	// テスト時に差し替える
	getUserMedia     func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
	enumerateDevices func() []mediadevices.MediaDeviceInfo
}

// New は新しいPlatformを作成する
func New(logger *slog.Logger) *Platform {
	if logger == nil {
		logger = slog.Default()
	}
	return &Platform{
		logger:           logger.With("component", "pionmedia"),
		getUserMedia:     mediadevices.GetUserMedia,
		enumerateDevices: mediadevices.EnumerateDevices,
	}
}

// EnumerateDevices は登録済みドライバのデバイスを列挙する
func (p *Platform) EnumerateDevices(_ context.Context) ([]media.DeviceInfo, error) {
	devices := p.enumerateDevices()
	result := make([]media.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		result = append(result, media.DeviceInfo{
			DeviceID: d.DeviceID,
			Label:    d.Label,
			Kind:     deviceKind(d.Kind),
		})
	}
	return result, nil
}

// GetUserMedia は条件に合うトラックを取得する
// ドライバの初期化はキャンセルできないため、ctxが先に終わった場合は後から届いたトラックを閉じる
func (p *Platform) GetUserMedia(ctx context.Context, c media.Constraints) ([]media.Track, error) {
	if c.Video == nil && c.Audio == nil {
		return nil, fmt.Errorf("映像と音声のどちらも要求されていません: %w", media.ErrNoDevice)
	}

	type result struct {
		stream mediadevices.MediaStream
		err    error
	}
	done := make(chan result, 1)
	go func() {
		stream, err := p.getUserMedia(p.constraints(c))
		done <- result{stream, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("デバイスの取得に失敗: %w", r.err)
		}
		return p.wrap(r.stream), nil
	case <-ctx.Done():
		go func() {
			r := <-done
			if r.err == nil {
				for _, t := range r.stream.GetTracks() {
					_ = t.Close()
				}
				p.logger.Debug("キャンセル後に届いたトラックを閉じました")
			}
		}()
		return nil, ctx.Err()
	}
}

func (p *Platform) constraints(c media.Constraints) mediadevices.MediaStreamConstraints {
	var out mediadevices.MediaStreamConstraints

	if v := c.Video; v != nil {
		if v.FacingMode != "" {
			p.logger.Debug("FacingModeは未対応のため無視", "facing_mode", v.FacingMode)
		}
		out.Video = func(mc *mediadevices.MediaTrackConstraints) {
			mc.Width = intRange(v.Width)
			mc.Height = intRange(v.Height)
			if v.DeviceID != "" {
				mc.DeviceID = prop.StringExact(v.DeviceID)
			}
		}
	}

	if a := c.Audio; a != nil {
		out.Audio = func(mc *mediadevices.MediaTrackConstraints) {
			if a.DeviceID != "" {
				mc.DeviceID = prop.StringExact(a.DeviceID)
			}
		}
	}

	return out
}

func intRange(r media.IntRange) prop.IntConstraint {
	if r.Max > 0 {
		return prop.IntRanged{Max: r.Max, Ideal: r.Ideal}
	}
	return prop.Int(r.Ideal)
}

func (p *Platform) wrap(stream mediadevices.MediaStream) []media.Track {
	labels := make(map[string]string)
	for _, d := range p.enumerateDevices() {
		labels[d.DeviceID] = d.Label
	}

	tracks := stream.GetTracks()
	out := make([]media.Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, newTrack(t, labels[t.ID()], p.logger))
	}
	return out
}

func deviceKind(k mediadevices.MediaDeviceType) media.DeviceKind {
	switch k {
	case mediadevices.VideoInput:
		return media.DeviceKindVideoInput
	case mediadevices.AudioInput:
		return media.DeviceKindAudioInput
	default:
		return media.DeviceKindAudioOutput
	}
}

// track はmediadevices.Trackをmedia.Trackとして扱うラッパー
type track struct {
	id     string
	source mediadevices.Track
	kind   media.Kind
	label  string
	logger *slog.Logger

	mu      sync.RWMutex
	enabled bool
	ended   bool
	once    sync.Once
}

func newTrack(source mediadevices.Track, label string, logger *slog.Logger) *track {
	kind := media.KindAudio
	if source.Kind() == webrtc.RTPCodecTypeVideo {
		kind = media.KindVideo
	}

	t := &track{
		id:      uuid.NewString(),
		source:  source,
		kind:    kind,
		label:   label,
		logger:  logger,
		enabled: true,
	}
	source.OnEnded(func(err error) {
		t.mu.Lock()
		t.ended = true
		t.mu.Unlock()
		if err != nil {
			logger.Warn("トラックが終了しました", "device", source.ID(), "error", err)
		}
	})
	return t
}

func (t *track) ID() string       { return t.id }
func (t *track) Kind() media.Kind { return t.kind }
func (t *track) DeviceID() string { return t.source.ID() }
func (t *track) Label() string    { return t.label }

func (t *track) ReadyState() media.ReadyState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.ended {
		return media.ReadyStateEnded
	}
	return media.ReadyStateLive
}

func (t *track) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func (t *track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Stop はドライバを閉じてデバイスを解放する
func (t *track) Stop() error {
	var err error
	t.once.Do(func() {
		err = t.source.Close()
		t.mu.Lock()
		t.ended = true
		t.mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("トラックのクローズに失敗: %w", err)
	}
	return nil
}

// NewFrameReader は映像トラックからフレームを読み出すリーダーを作成する
func (t *track) NewFrameReader() (media.FrameReader, error) {
	vt, ok := t.source.(*mediadevices.VideoTrack)
	if !ok {
		return nil, fmt.Errorf("映像トラックではありません: %s", t.id)
	}
	return vt.NewReader(false), nil
}
