package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mensetsu/internal/backend"
	"mensetsu/internal/config"
	"mensetsu/internal/interview"
	"mensetsu/internal/lifecycle"
	"mensetsu/internal/media"
	"mensetsu/internal/transcript"
)

// Deps はサーバーが公開する部品
// Session、Transcript、Backendは省略できる
type Deps struct {
	Media      *media.Manager
	Hooks      *lifecycle.Hooks
	Session    *interview.Session
	Transcript *transcript.Buffer
	Backend    *backend.Client
	Logger     *slog.Logger
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	deps       Deps
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server

	// 配信中のリクエストはbaseCtxの終了で打ち切る
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	if deps.Transcript == nil && deps.Session != nil {
		deps.Transcript = deps.Session.Transcript()
	}
	if deps.Hooks == nil {
		deps.Hooks = lifecycle.NewHooks(deps.Media, logger, cfg.Media.CaptureScreens...)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     cfg,
		deps:       deps,
		logger:     logger,
		engine:     engine,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	s.setupRoutes()
	return s
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	h := &handlers{
		config:     s.config,
		media:      s.deps.Media,
		hooks:      s.deps.Hooks,
		session:    s.deps.Session,
		transcript: s.deps.Transcript,
		logger:     s.logger,
	}

	s.engine.GET("/", h.root)
	s.engine.GET("/health", h.health)

	api := s.engine.Group("/api")
	api.GET("/status", h.status)
	api.POST("/navigation", h.navigate)
	api.GET("/transcript", h.transcriptState)

	m := api.Group("/media")
	m.GET("/state", h.mediaState)
	m.GET("/devices", h.devices)
	m.POST("/acquire", h.acquire)
	m.POST("/camera/toggle", h.toggleCamera)
	m.POST("/microphone/toggle", h.toggleMicrophone)
	m.POST("/camera/switch", h.switchCamera)
	m.POST("/release", h.release)
	m.GET("/events", h.events)
	m.GET("/preview", h.preview)

	if s.deps.Session != nil {
		iv := api.Group("/interview")
		iv.GET("/status", h.interviewStatus)
		iv.POST("/start", h.startCall)
		iv.POST("/end", h.endCall)
	}

	if s.deps.Backend != nil {
		s.setupBackendRoutes(api, h)
	}
}

// Start はサーバーを起動する
// ctxの終了かSIGINT/SIGTERMでグレースフルシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve は指定したリスナーでサーバーを起動する
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTPサーバーを起動しています", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルかctxの終了を待つ
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	reasonCh := make(chan string, 1)
	go func() {
		reasonCh <- s.deps.Hooks.WatchSignals(watchCtx)
	}()

	var reason string
	select {
	case reason = <-reasonCh:
		s.logger.Info("シャットダウンを開始します", "reason", reason)
	case err := <-shutdownCh:
		s.deps.Hooks.Release(lifecycle.ReasonShutdown)
		return err
	}

	return s.shutdown(reason)
}

// Shutdown はデバイスを解放してサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	return s.shutdown(lifecycle.ReasonShutdown)
}

func (s *Server) shutdown(reason string) error {
	s.logger.Info("サーバーをシャットダウンしています...")

	// 通話とデバイスはHTTPの終了より先に止める
	if s.deps.Session != nil {
		if err := s.deps.Session.Close(); err != nil {
			s.logger.Warn("通話の終了に失敗", "error", err)
		}
	}
	if s.deps.Transcript != nil {
		s.deps.Transcript.Close()
	}
	s.deps.Hooks.Release(reason)

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.cancelBase()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}

// requestLogger はリクエストをslogに記録するミドルウェア
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "リクエスト",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
