package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
)

// ErrorKind はデバイス取得失敗の分類
type ErrorKind string

const (
	ErrorKindPermissionDenied ErrorKind = "permission-denied" // 権限拒否
	ErrorKindNoDevice         ErrorKind = "no-device"         // デバイスなし
	ErrorKindDeviceBusy       ErrorKind = "device-busy"       // 他アプリが使用中
	ErrorKindSwitchFailed     ErrorKind = "switch-failed"     // カメラ切り替え失敗
	ErrorKindUnknown          ErrorKind = "unknown"           // その他
)

// 操作名
const (
	OpAcquire          = "acquire"
	OpToggleCamera     = "toggle-camera"
	OpToggleMicrophone = "toggle-microphone"
	OpSwitchCamera     = "switch-camera"
)

var (
	// ErrPermissionDenied はデバイスへのアクセスが拒否されたことを示す
	ErrPermissionDenied = errors.New("media: permission denied")

	// ErrNoDevice は条件に合うデバイスがないことを示す
	ErrNoDevice = errors.New("media: no device found")

	// ErrDeviceBusy はデバイスが他で使用中であることを示す
	ErrDeviceBusy = errors.New("media: device busy")

	// ErrNotAcquired はハンドル未取得の状態で切り替えを要求したことを示す
	ErrNotAcquired = errors.New("media: stream not acquired")

	// ErrSuperseded は操作中により新しい操作が始まり結果が破棄されたことを示す
	ErrSuperseded = errors.New("media: operation superseded")
)

// Error は購読者へ通知されるデバイス操作のエラー
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Op      string    `json:"op"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON は原因エラーを文字列として含める
func (e *Error) MarshalJSON() ([]byte, error) {
	type plain Error
	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(struct {
		*plain
		Cause string `json:"cause,omitempty"`
	}{(*plain)(e), cause})
}

// Classify はプラットフォームのエラーを分類する
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}

	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, fs.ErrPermission):
		return ErrorKindPermissionDenied
	case errors.Is(err, ErrNoDevice), errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENODEV):
		return ErrorKindNoDevice
	case errors.Is(err, ErrDeviceBusy), errors.Is(err, syscall.EBUSY):
		return ErrorKindDeviceBusy
	}

	// ドライバ由来のエラーは型を持たないことが多いのでメッセージで判定する
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"), strings.Contains(msg, "not allowed"), strings.Contains(msg, "denied"):
		return ErrorKindPermissionDenied
	case strings.Contains(msg, "failed to find"), strings.Contains(msg, "not found"), strings.Contains(msg, "no such device"):
		return ErrorKindNoDevice
	case strings.Contains(msg, "busy"), strings.Contains(msg, "in use"), strings.Contains(msg, "not readable"):
		return ErrorKindDeviceBusy
	}
	return ErrorKindUnknown
}

// newError は操作と原因からユーザー向けメッセージ付きのErrorを作成する
func newError(op string, kind ErrorKind, cause error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message(op, kind, cause),
		Err:     cause,
	}
}

func message(op string, kind ErrorKind, cause error) string {
	detail := "不明なエラー"
	if cause != nil {
		detail = cause.Error()
	}

	switch kind {
	case ErrorKindPermissionDenied:
		return "カメラ/マイクへのアクセスが拒否されました。権限を許可してから再試行してください"
	case ErrorKindNoDevice:
		return "カメラまたはマイクが見つかりません。デバイスを接続してください"
	case ErrorKindDeviceBusy:
		return "カメラ/マイクは他のアプリケーションで使用中です"
	case ErrorKindSwitchFailed:
		return fmt.Sprintf("カメラの切り替えに失敗しました: %s", detail)
	}

	switch op {
	case OpToggleCamera:
		return fmt.Sprintf("カメラをオンにできませんでした: %s", detail)
	case OpToggleMicrophone:
		return fmt.Sprintf("マイクをオンにできませんでした: %s", detail)
	default:
		return fmt.Sprintf("カメラの初期化に失敗しました: %s", detail)
	}
}
