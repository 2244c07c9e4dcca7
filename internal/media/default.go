package media

import (
	"sync"
	"sync/atomic"
)

var (
	defaultOnce    sync.Once
	defaultManager atomic.Pointer[Manager]
)

// Default はプロセス全体で共有するManagerを返す
// 最初の呼び出しの引数で構築され、以降の引数は無視される
func Default(platform Platform, opts ...Option) *Manager {
	defaultOnce.Do(func() {
		defaultManager.Store(NewManager(platform, opts...))
	})
	return defaultManager.Load()
}

// Instance は構築済みの共有Managerを返す。未構築の場合はnil
func Instance() *Manager {
	return defaultManager.Load()
}
