package server

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mensetsu/internal/media"
)

const mjpegBoundary = "frame"

// previewSource は現在の映像トラックからフレームを読み出す
// ハンドルが差し替わったらリーダーを作り直す
type previewSource struct {
	manager *media.Manager
	trackID string
	reader  media.FrameReader
}

// next は次のフレームをJPEGで返す。映像がない場合はnilを返す
func (p *previewSource) next(quality int) ([]byte, error) {
	track := currentVideo(p.manager.Handle())
	if track == nil {
		p.reader, p.trackID = nil, ""
		return nil, nil
	}

	if track.ID() != p.trackID || p.reader == nil {
		src, ok := track.(media.FrameSource)
		if !ok {
			return nil, fmt.Errorf("フレームを読み出せないトラックです: %s", track.ID())
		}
		reader, err := src.NewFrameReader()
		if err != nil {
			return nil, fmt.Errorf("フレームリーダーの作成に失敗: %w", err)
		}
		p.reader, p.trackID = reader, track.ID()
	}

	img, release, err := p.reader.Read()
	if err != nil {
		// 終了したトラック。次のハンドルを待つ
		p.reader = nil
		return nil, nil
	}
	if release != nil {
		defer release()
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}

// currentVideo は有効な映像トラックを返す
func currentVideo(h *media.Handle) media.Track {
	for _, t := range h.VideoTracks() {
		if t.ReadyState() == media.ReadyStateLive && t.Enabled() {
			return t
		}
	}
	return nil
}

// preview は現在のカメラ映像をMJPEGで配信する
func (h *handlers) preview(c *gin.Context) {
	if currentVideo(h.media.Handle()) == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:     "camera_not_active",
			Message:   "カメラがアクティブではありません",
			Timestamp: time.Now(),
		})
		return
	}
	h.streamMJPEG(c)
}

// streamMJPEG はMJPEGストリームを配信する
func (h *handlers) streamMJPEG(c *gin.Context) {
	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	fps := h.config.Media.PreviewFPS
	if fps <= 0 {
		fps = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	src := &previewSource{manager: h.media}
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			return

		case <-ticker.C:
			frame, err := src.next(h.config.Media.PreviewQuality)
			if err != nil {
				h.logger.Warn("プレビューの生成に失敗", "error", err)
				return
			}
			if frame == nil {
				continue
			}

			if _, err := fmt.Fprintf(writer, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(frame)); err != nil {
				return
			}
			if _, err := writer.Write(frame); err != nil {
				return
			}
			if _, err := writer.Write([]byte("\r\n")); err != nil {
				return
			}

			// バッファをフラッシュ
			flusher.Flush()
		}
	}
}
