package server

import (
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mensetsu/internal/lifecycle"
	"mensetsu/internal/media"
)

// SSEのイベント名
const (
	eventStream = "stream"
	eventState  = "state"
	eventError  = "error"
)

const eventBufferSize = 32

type sseEvent struct {
	name string
	data any
}

// sseObserver は通知をチャンネルへ流すObserver
// 通知元をブロックしないよう、溢れた通知は捨てる
type sseObserver struct {
	ch     chan sseEvent
	logger *slog.Logger
}

func newSSEObserver(logger *slog.Logger) *sseObserver {
	return &sseObserver{
		ch:     make(chan sseEvent, eventBufferSize),
		logger: logger,
	}
}

func (o *sseObserver) push(ev sseEvent) {
	select {
	case o.ch <- ev:
	default:
		o.logger.Warn("イベントを破棄しました", "event", ev.name)
	}
}

func (o *sseObserver) OnStream(h *media.Handle) { o.push(sseEvent{eventStream, h}) }
func (o *sseObserver) OnError(err *media.Error) { o.push(sseEvent{eventError, err}) }
func (o *sseObserver) OnStateChange(s media.State) {
	o.push(sseEvent{eventState, s})
}

// events はカメラを表示する画面1つ分のイベントをSSEで配信する
// ?acquire=true の場合はこの画面が取得を行い、切断時に解放する
func (h *handlers) events(c *gin.Context) {
	name := c.DefaultQuery("surface", "surface-"+uuid.NewString()[:8])
	surface := lifecycle.NewSurface(name, h.media, h.logger)
	obs := newSSEObserver(h.logger.With("surface", name))

	surface.Mount(obs)
	defer surface.Unmount()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	ctx := c.Request.Context()
	if c.Query("acquire") == "true" {
		// 失敗はerrorイベントとして届く
		_ = surface.Acquire(ctx)
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-obs.ch:
			c.SSEvent(ev.name, ev.data)
			return true
		}
	})
}
