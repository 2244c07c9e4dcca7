// Package app は設定から各部品を組み立てる
package app

import (
	"context"
	"log/slog"

	"mensetsu/internal/backend"
	"mensetsu/internal/config"
	"mensetsu/internal/conversation"
	"mensetsu/internal/interview"
	"mensetsu/internal/lifecycle"
	"mensetsu/internal/logging"
	"mensetsu/internal/media"
	"mensetsu/internal/server"
	"mensetsu/internal/transcript"
)

// App は組み立て済みのアプリケーション
type App struct {
	Config     *config.Config
	Media      *media.Manager
	Hooks      *lifecycle.Hooks
	Transcript *transcript.Buffer
	Session    *interview.Session
	Backend    *backend.Client
	Server     *server.Server
}

// New はプラットフォームと設定から部品を組み立てる
// Managerは渡されたプラットフォームで毎回構築し、Appの全部品で共有する
// 会話チャネルのURLが空の場合は通話機能を無効にする
func New(cfg *config.Config, platform media.Platform, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	manager := media.NewManager(platform,
		media.WithConstraints(cfg.Media.Constraints()),
		media.WithLogger(logging.For(logger, logging.CategoryMedia)),
	)
	hooks := lifecycle.NewHooks(manager, logging.For(logger, logging.CategoryMedia), cfg.Media.CaptureScreens...)

	transcriptLogger := logging.For(logger, logging.CategoryTranscript)
	buf := transcript.New(
		transcript.WithSilenceTimeout(cfg.Transcript.SilenceTimeout),
		transcript.WithLogger(transcriptLogger),
		transcript.WithOnFinalize(func(m transcript.Message) {
			transcriptLogger.Debug("発話を確定", "speaker", m.Speaker, "text", m.Text)
		}),
	)

	a := &App{
		Config:     cfg,
		Media:      manager,
		Hooks:      hooks,
		Transcript: buf,
		Backend:    backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger),
	}

	if cfg.Conversation.URL != "" {
		channel := conversation.New(conversation.Config{
			URL:         cfg.Conversation.URL,
			APIKey:      cfg.Conversation.APIKey,
			AssistantID: cfg.Conversation.AssistantID,
		}, logging.For(logger, logging.CategoryInterview))
		a.Session = interview.NewSession(channel, manager, buf, hooks, logging.For(logger, logging.CategoryInterview))
	} else {
		logger.Info("会話チャネルのURLが未設定のため通話機能は無効です")
	}

	a.Server = server.New(cfg, server.Deps{
		Media:      manager,
		Hooks:      hooks,
		Session:    a.Session,
		Transcript: buf,
		Backend:    a.Backend,
		Logger:     logging.For(logger, logging.CategoryServer),
	})
	return a
}

// Run はサーバーを起動し、終了まで待つ
// 終了時にはデバイスが解放されている
func (a *App) Run(ctx context.Context) error {
	return a.Server.Start(ctx)
}
