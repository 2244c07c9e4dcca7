// Package logging はアプリケーション全体のログ出力を初期化する
// 出力はlog/slogで行い、コンソールにはtintで色付けして表示する
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// カテゴリ
const (
	CategoryApp        = "app"
	CategoryServer     = "server"
	CategoryMedia      = "media"
	CategoryInterview  = "interview"
	CategoryTranscript = "transcript"
)

// Options はログ出力の設定
type Options struct {
	Level   string
	NoColor bool
	Output  io.Writer
}

// ParseLevel はログレベル名をslog.Levelに変換する
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("不明なログレベル: %s", s)
	}
}

// New はOptionsからロガーを作成する
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handler := tint.NewHandler(out, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    opts.NoColor,
	})
	return slog.New(handler), nil
}

// Init はロガーを作成してslogのデフォルトに設定する
func Init(opts Options) (*slog.Logger, error) {
	logger, err := New(opts)
	if err != nil {
		return nil, fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}
	slog.SetDefault(logger)
	return logger, nil
}

// For はカテゴリ付きのロガーを返す
func For(logger *slog.Logger, category string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("category", category)
}
