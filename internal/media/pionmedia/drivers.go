package pionmedia

import (
	// カメラとマイクのドライバを登録する
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
)
