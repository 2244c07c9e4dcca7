package media

import (
	"context"
	"image"
)

// Kind はトラックの種類を表す
type Kind string

const (
	KindAudio Kind = "audio" // マイク音声
	KindVideo Kind = "video" // カメラ映像
)

// ReadyState はトラックの生存状態を表す
type ReadyState string

const (
	ReadyStateLive  ReadyState = "live"  // 動作中
	ReadyStateEnded ReadyState = "ended" // 停止済み
)

// Track は単一のハードウェアソース（映像1本または音声1本）を表す
type Track interface {
	// ID はトラックの一意識別子を返す
	ID() string

	// Kind はトラックの種類を返す
	Kind() Kind

	// DeviceID は取得元デバイスのIDを返す
	DeviceID() string

	// Label はデバイスの表示名を返す
	Label() string

	// ReadyState は現在の生存状態を返す
	ReadyState() ReadyState

	// Enabled はトラックが有効かを返す
	Enabled() bool

	// SetEnabled は有効/無効を切り替える
	SetEnabled(enabled bool)

	// Stop はトラックを停止する。停止済みのトラックに対しては何もしない
	Stop() error
}

// FrameReader は映像トラックからフレームを読み出す
type FrameReader interface {
	// Read は次のフレームを返す。release はフレーム利用後に呼び出す
	Read() (img image.Image, release func(), err error)
}

// FrameSource はフレームを読み出せる映像トラックが実装する
type FrameSource interface {
	NewFrameReader() (FrameReader, error)
}

// DeviceKind はデバイスの種類を表す
type DeviceKind string

const (
	DeviceKindVideoInput  DeviceKind = "videoinput"
	DeviceKindAudioInput  DeviceKind = "audioinput"
	DeviceKindAudioOutput DeviceKind = "audiooutput"
)

// DeviceInfo は列挙されたデバイスの情報を表す
type DeviceInfo struct {
	DeviceID string     `json:"deviceId"` // 安定したデバイス識別子
	Label    string     `json:"label"`    // 表示名
	Kind     DeviceKind `json:"kind"`     // デバイス種別
}

// IntRange は希望値と上限値の組
type IntRange struct {
	Ideal int `yaml:"ideal" json:"ideal"`
	Max   int `yaml:"max" json:"max"`
}

// VideoConstraints は映像取得の条件
type VideoConstraints struct {
	Width      IntRange `yaml:"width"`
	Height     IntRange `yaml:"height"`
	FacingMode string   `yaml:"facing_mode"` // "user" = 前面カメラ
	DeviceID   string   `yaml:"device_id"`   // 空の場合は任意のデバイス
}

// AudioConstraints は音声取得の条件
type AudioConstraints struct {
	EchoCancellation bool   `yaml:"echo_cancellation"`
	NoiseSuppression bool   `yaml:"noise_suppression"`
	DeviceID         string `yaml:"device_id"`
}

// Constraints はキャプチャ要求の条件。nilの項目は要求しない
type Constraints struct {
	Video *VideoConstraints
	Audio *AudioConstraints
}

// DefaultVideoConstraints は標準の映像条件を返す（640x480希望、最大1280x720、前面カメラ）
func DefaultVideoConstraints() VideoConstraints {
	return VideoConstraints{
		Width:      IntRange{Ideal: 640, Max: 1280},
		Height:     IntRange{Ideal: 480, Max: 720},
		FacingMode: "user",
	}
}

// DefaultAudioConstraints は標準の音声条件を返す
func DefaultAudioConstraints() AudioConstraints {
	return AudioConstraints{
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// DefaultConstraints は音声+映像の標準条件を返す
func DefaultConstraints() Constraints {
	video := DefaultVideoConstraints()
	audio := DefaultAudioConstraints()
	return Constraints{Video: &video, Audio: &audio}
}

// only は指定した種類だけを要求する条件を返す
func (c Constraints) only(kind Kind) Constraints {
	switch kind {
	case KindVideo:
		if c.Video == nil {
			v := DefaultVideoConstraints()
			return Constraints{Video: &v}
		}
		v := *c.Video
		return Constraints{Video: &v}
	default:
		if c.Audio == nil {
			a := DefaultAudioConstraints()
			return Constraints{Audio: &a}
		}
		a := *c.Audio
		return Constraints{Audio: &a}
	}
}

// Platform はデバイスアクセスを提供するインターフェース
type Platform interface {
	// GetUserMedia は条件に合うトラックを取得する。権限待ちの間はブロックする
	GetUserMedia(ctx context.Context, constraints Constraints) ([]Track, error)

	// EnumerateDevices は利用可能な入出力デバイスを列挙する
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)
}

// Phase はManagerのライフサイクル段階を表す
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized" // 未取得
	PhaseAcquiring     Phase = "acquiring"     // 取得中
	PhaseReady         Phase = "ready"         // 取得済み
	PhaseReleasing     Phase = "releasing"     // 解放中
)

// State はManagerの状態のスナップショット
type State struct {
	CameraEnabled     bool    `json:"cameraEnabled"`
	MicrophoneEnabled bool    `json:"microphoneEnabled"`
	Initialized       bool    `json:"initialized"`
	Phase             Phase   `json:"phase"`
	Handle            *Handle `json:"handle"`
	LastError         *Error  `json:"lastError"`
}

// Observer は3種類の通知をまとめて受け取る購読者
type Observer interface {
	// OnStream はハンドルが差し替わった時に呼ばれる（解放時はnil）
	OnStream(handle *Handle)

	// OnError は取得・切り替えに失敗した時に呼ばれる
	OnError(err *Error)

	// OnStateChange は有効状態が再計算された時に呼ばれる
	OnStateChange(state State)
}
