package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"mensetsu/internal/media"
)

// Resource はSurfaceが利用する共有リソース
type Resource interface {
	Releaser
	Acquire(ctx context.Context) error
	Observe(o media.Observer) *media.Subscription
}

// Surface はカメラを表示する画面1つ分のマウント状態を表す
// 取得を行ったSurfaceがアンマウントされるとリソースを解放する
type Surface struct {
	name     string
	resource Resource
	logger   *slog.Logger

	mu          sync.Mutex
	sub         *media.Subscription
	initializer bool
	mounted     bool
	unmounted   bool
}

// NewSurface は新しいSurfaceを作成する
func NewSurface(name string, resource Resource, logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	return &Surface{
		name:     name,
		resource: resource,
		logger:   logger.With("component", "surface", "surface", name),
	}
}

// Name は画面名を返す
func (s *Surface) Name() string {
	return s.name
}

// Mount はObserverを登録する。登録時に現在の状態が再送される
func (s *Surface) Mount(o media.Observer) {
	s.mu.Lock()
	if s.mounted || s.unmounted {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	s.mu.Unlock()

	sub := s.resource.Observe(o)

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	s.logger.Debug("マウント")
}

// Acquire はリソースを取得し、このSurfaceを取得元として記録する
func (s *Surface) Acquire(ctx context.Context) error {
	s.mu.Lock()
	s.initializer = true
	s.mu.Unlock()
	return s.resource.Acquire(ctx)
}

// Initializer はこのSurfaceが取得を行ったかを返す
func (s *Surface) Initializer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializer
}

// Unmount は購読を解除し、取得元であればリソースを解放する
// 2回目以降の呼び出しは何もしない
func (s *Surface) Unmount() {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return
	}
	s.unmounted = true
	sub := s.sub
	initializer := s.initializer
	s.sub = nil
	s.mu.Unlock()

	sub.Unsubscribe()
	if initializer {
		s.logger.Info("取得元の画面が閉じられたため解放します")
		s.resource.ForceStopAllTracks()
	}
	s.logger.Debug("アンマウント")
}
