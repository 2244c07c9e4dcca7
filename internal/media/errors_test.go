package media

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"権限拒否の番兵", ErrPermissionDenied, ErrorKindPermissionDenied},
		{"EACCES", fmt.Errorf("open /dev/video0: %w", syscall.EACCES), ErrorKindPermissionDenied},
		{"EPERM", syscall.EPERM, ErrorKindPermissionDenied},
		{"デバイスなしの番兵", fmt.Errorf("wrap: %w", ErrNoDevice), ErrorKindNoDevice},
		{"ENOENT", syscall.ENOENT, ErrorKindNoDevice},
		{"ENODEV", syscall.ENODEV, ErrorKindNoDevice},
		{"ドライバのメッセージ", errors.New("failed to find the best driver that fits the constraints"), ErrorKindNoDevice},
		{"EBUSY", syscall.EBUSY, ErrorKindDeviceBusy},
		{"使用中のメッセージ", errors.New("Could not start video source: device in use"), ErrorKindDeviceBusy},
		{"NotReadable", errors.New("NotReadableError"), ErrorKindDeviceBusy},
		{"権限のメッセージ", errors.New("NotAllowedError: Permission denied"), ErrorKindPermissionDenied},
		{"その他", errors.New("boom"), ErrorKindUnknown},
		{"nil", nil, ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewError_Message(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		op       string
		kind     ErrorKind
		contains string
	}{
		{"取得の不明エラー", OpAcquire, ErrorKindUnknown, "カメラの初期化に失敗しました: boom"},
		{"カメラトグル", OpToggleCamera, ErrorKindUnknown, "カメラをオンにできませんでした: boom"},
		{"マイクトグル", OpToggleMicrophone, ErrorKindUnknown, "マイクをオンにできませんでした: boom"},
		{"切り替え", OpSwitchCamera, ErrorKindSwitchFailed, "カメラの切り替えに失敗しました: boom"},
		{"使用中", OpAcquire, ErrorKindDeviceBusy, "使用中"},
		{"デバイスなし", OpToggleCamera, ErrorKindNoDevice, "見つかりません"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newError(tt.op, tt.kind, cause)
			if !strings.Contains(e.Error(), tt.contains) {
				t.Errorf("Expected message to contain %q, got %q", tt.contains, e.Error())
			}
			if !errors.Is(e, cause) {
				t.Error("Expected error to wrap its cause")
			}
		})
	}
}
