package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Releaser は保持しているデバイスを強制解放できる
type Releaser interface {
	ForceStopAllTracks()
}

// 解放理由
const (
	ReasonSignal     = "signal"
	ReasonUnload     = "unload"
	ReasonNavigation = "navigation"
	ReasonUnmount    = "unmount"
	ReasonShutdown   = "shutdown"
	ReasonCallEnd    = "call-end"
)

// Hooks は解放のきっかけをReleaserに結びつける
type Hooks struct {
	releaser Releaser
	logger   *slog.Logger

	mu             sync.Mutex
	captureScreens map[string]struct{}
	releases       map[string]int
}

// NewHooks は新しいHooksを作成する
// captureScreens はキャプチャを必要とする画面名
func NewHooks(releaser Releaser, logger *slog.Logger, captureScreens ...string) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hooks{
		releaser:       releaser,
		logger:         logger.With("component", "lifecycle"),
		captureScreens: make(map[string]struct{}),
		releases:       make(map[string]int),
	}
	for _, s := range captureScreens {
		h.captureScreens[s] = struct{}{}
	}
	return h
}

// Release は理由を記録してデバイスを解放する
func (h *Hooks) Release(reason string) {
	h.mu.Lock()
	h.releases[reason]++
	h.mu.Unlock()

	h.logger.Info("デバイスを解放します", "reason", reason)
	h.releaser.ForceStopAllTracks()
}

// Releases は理由ごとの解放回数を返す
func (h *Hooks) Releases() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]int, len(h.releases))
	for k, v := range h.releases {
		out[k] = v
	}
	return out
}

// IsCaptureScreen は画面がキャプチャを必要とするかを返す
func (h *Hooks) IsCaptureScreen(screen string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.captureScreens[screen]
	return ok
}

// Navigate は画面遷移を通知する
// キャプチャを必要とする画面から別の画面へ移る場合に解放し、trueを返す
func (h *Hooks) Navigate(from, to string) bool {
	if from == to || !h.IsCaptureScreen(from) {
		return false
	}
	h.logger.Debug("キャプチャ画面から遷移", "from", from, "to", to)
	h.Release(ReasonNavigation)
	return true
}

// WatchSignals はSIGINT/SIGTERMまたはctxの終了を待ち、解放理由を返す
// 解放は呼び出し側が後片付けの順序に合わせて行う
func (h *Hooks) WatchSignals(ctx context.Context) string {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return ReasonShutdown
	case sig := <-sigCh:
		h.logger.Info("シグナルを受信", "signal", sig)
		return ReasonSignal
	}
}
