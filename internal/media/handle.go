package media

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

var handleVersion atomic.Uint64

// Handle は現在保持しているトラック群を表す不変値
// 内容が変わるたびに新しいHandleが作られる
type Handle struct {
	id      string
	version uint64
	tracks  []Track
}

// NewHandle はトラック群から新しいHandleを作成する
// トラックが0本の場合はnilを返す
func NewHandle(tracks ...Track) *Handle {
	live := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if t != nil {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}

	return &Handle{
		id:      uuid.NewString(),
		version: handleVersion.Add(1),
		tracks:  live,
	}
}

// ID はHandleの識別子を返す
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

// Version は作成順に単調増加する番号を返す
func (h *Handle) Version() uint64 {
	if h == nil {
		return 0
	}
	return h.version
}

// Tracks は全トラックのコピーを返す
func (h *Handle) Tracks() []Track {
	if h == nil {
		return nil
	}
	out := make([]Track, len(h.tracks))
	copy(out, h.tracks)
	return out
}

// VideoTracks は映像トラックを返す
func (h *Handle) VideoTracks() []Track {
	return h.tracksOf(KindVideo)
}

// AudioTracks は音声トラックを返す
func (h *Handle) AudioTracks() []Track {
	return h.tracksOf(KindAudio)
}

func (h *Handle) tracksOf(kind Kind) []Track {
	if h == nil {
		return nil
	}
	var out []Track
	for _, t := range h.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

// without は指定種類のトラックを取り除いたHandleを返す
func (h *Handle) without(kind Kind) *Handle {
	if h == nil {
		return nil
	}
	var rest []Track
	for _, t := range h.tracks {
		if t.Kind() != kind {
			rest = append(rest, t)
		}
	}
	return NewHandle(rest...)
}

// with はトラックを追加したHandleを返す
func (h *Handle) with(tracks []Track) *Handle {
	return NewHandle(append(h.Tracks(), tracks...)...)
}

// hasActive は指定種類の有効かつ動作中のトラックがあるかを返す
func (h *Handle) hasActive(kind Kind) bool {
	for _, t := range h.tracksOf(kind) {
		if t.ReadyState() == ReadyStateLive && t.Enabled() {
			return true
		}
	}
	return false
}

// String はログ出力用の文字列を返す
func (h *Handle) String() string {
	if h == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Handle{id=%s, v=%d, video=%d, audio=%d}",
		h.id, h.version, len(h.VideoTracks()), len(h.AudioTracks()))
}

// trackView はJSON出力用のトラック情報
type trackView struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	DeviceID   string     `json:"deviceId"`
	Label      string     `json:"label"`
	ReadyState ReadyState `json:"readyState"`
	Enabled    bool       `json:"enabled"`
}

// MarshalJSON はHandleをJSONに変換する
func (h *Handle) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("null"), nil
	}
	views := make([]trackView, 0, len(h.tracks))
	for _, t := range h.tracks {
		views = append(views, trackView{
			ID:         t.ID(),
			Kind:       t.Kind(),
			DeviceID:   t.DeviceID(),
			Label:      t.Label(),
			ReadyState: t.ReadyState(),
			Enabled:    t.Enabled(),
		})
	}
	return json.Marshal(struct {
		ID      string      `json:"id"`
		Version uint64      `json:"version"`
		Tracks  []trackView `json:"tracks"`
	}{h.id, h.version, views})
}

// stopTracks はトラックを無効化してから停止する
// 個々の失敗とpanicはログに記録して握りつぶす
func stopTracks(logger *slog.Logger, tracks []Track) {
	for _, t := range tracks {
		stopTrack(logger, t)
	}
}

func stopTrack(logger *slog.Logger, t Track) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("トラック停止中にpanic", "track", t.ID(), "panic", r)
		}
	}()

	if t.ReadyState() == ReadyStateEnded {
		return
	}
	t.SetEnabled(false)
	if err := t.Stop(); err != nil {
		logger.Warn("トラックの停止に失敗", "track", t.ID(), "kind", t.Kind(), "error", err)
	}
}
