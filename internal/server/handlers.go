package server

import (
	"errors"
	"fmt"
	"log/slog"
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

// handlers はHTTPハンドラの実装
type handlers struct {
	config     *config.Config
	media      *media.Manager
	hooks      *lifecycle.Hooks
	session    *interview.Session
	transcript *transcript.Buffer
	logger     *slog.Logger
}

// ErrorResponse はエラー時のレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SwitchCameraRequest はカメラ切り替えの要求
type SwitchCameraRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
}

// NavigationRequest は画面遷移の通知
type NavigationRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to"`
}

// TranscriptResponse は文字起こしの現在の内容
type TranscriptResponse struct {
	Messages    []transcript.Message `json:"messages"`
	Pending     *transcript.Pending  `json:"pending"`
	CurrentText string               `json:"currentText"`
	IsTyping    bool                 `json:"isTyping"`
}

// root はルートパスのハンドラ（簡単な確認用）
func (h *handlers) root(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, `<!DOCTYPE html>
<html lang="ja">
<head>
    <meta charset="UTF-8">
    <title>Mensetsu - 面接クライアント</title>
</head>
<body>
    <h1>Mensetsu 面接クライアント</h1>
    <p>サーバーが正常に起動しています。</p>
    <p>プレビュー: <a href="/api/media/preview">/api/media/preview</a></p>
    <p>状態: <a href="/api/media/state">/api/media/state</a></p>
    <p>ヘルスチェック: <a href="/health">/health</a></p>
</body>
</html>`)
}

// health はヘルスチェックエンドポイント
func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// status はシステム状態取得エンドポイント
func (h *handlers) status(c *gin.Context) {
	streams, errs, states := h.media.SubscriberCount()
	state := h.media.State()

	resp := gin.H{
		"status": "running",
		"server": gin.H{
			"host": h.config.Server.Host,
			"port": h.config.Server.Port,
		},
		"media": gin.H{
			"phase":             state.Phase,
			"cameraEnabled":     state.CameraEnabled,
			"microphoneEnabled": state.MicrophoneEnabled,
			"subscribers": gin.H{
				"stream":      streams,
				"error":       errs,
				"stateChange": states,
			},
		},
		"releases":  h.hooks.Releases(),
		"timestamp": time.Now(),
	}
	if h.session != nil {
		resp["interview"] = h.session.Status()
	}
	c.JSON(http.StatusOK, resp)
}

// mediaState は現在の状態を返す
func (h *handlers) mediaState(c *gin.Context) {
	c.JSON(http.StatusOK, h.media.State())
}

// devices は入出力デバイスを種類ごとに返す
func (h *handlers) devices(c *gin.Context) {
	list, err := h.media.EnumerateDevices(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	grouped := map[media.DeviceKind][]media.DeviceInfo{
		media.DeviceKindVideoInput:  {},
		media.DeviceKindAudioInput:  {},
		media.DeviceKindAudioOutput: {},
	}
	for _, d := range list {
		grouped[d.Kind] = append(grouped[d.Kind], d)
	}
	c.JSON(http.StatusOK, grouped)
}

// acquire はカメラとマイクを取得する
func (h *handlers) acquire(c *gin.Context) {
	h.mutate(c, h.media.Acquire(c.Request.Context()))
}

// toggleCamera はカメラのオン/オフを切り替える
func (h *handlers) toggleCamera(c *gin.Context) {
	h.mutate(c, h.media.ToggleCamera(c.Request.Context()))
}

// toggleMicrophone はマイクのオン/オフを切り替える
func (h *handlers) toggleMicrophone(c *gin.Context) {
	h.mutate(c, h.media.ToggleMicrophone(c.Request.Context()))
}

// switchCamera は映像を別のカメラに切り替える
func (h *handlers) switchCamera(c *gin.Context) {
	var req SwitchCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	h.mutate(c, h.media.SwitchCamera(c.Request.Context(), req.DeviceID))
}

// release はクライアントの離脱に合わせてデバイスを解放する
func (h *handlers) release(c *gin.Context) {
	h.hooks.Release(lifecycle.ReasonUnload)
	c.JSON(http.StatusOK, h.media.State())
}

// navigate は画面遷移を受けて必要なら解放する
func (h *handlers) navigate(c *gin.Context) {
	var req NavigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	released := h.hooks.Navigate(req.From, req.To)
	c.JSON(http.StatusOK, gin.H{"released": released})
}

// transcriptState は確定メッセージと未確定発話を返す
func (h *handlers) transcriptState(c *gin.Context) {
	if h.transcript == nil {
		c.JSON(http.StatusOK, TranscriptResponse{Messages: []transcript.Message{}})
		return
	}
	c.JSON(http.StatusOK, TranscriptResponse{
		Messages:    h.transcript.Messages(),
		Pending:     h.transcript.Pending(),
		CurrentText: h.transcript.CurrentText(),
		IsTyping:    h.transcript.IsTyping(),
	})
}

// interviewStatus は通話の状態を返す
func (h *handlers) interviewStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Status())
}

// startCall は面接通話を開始する
func (h *handlers) startCall(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.session.Prepare(ctx); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.session.StartCall(ctx); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.session.Status())
}

// endCall は面接通話を終了する
func (h *handlers) endCall(c *gin.Context) {
	if err := h.session.EndCall(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Status())
}

// mutate は操作結果に応じて状態かエラーを返す
func (h *handlers) mutate(c *gin.Context, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.media.State())
}

func (h *handlers) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     "invalid_request",
		Message:   fmt.Sprintf("リクエストが不正です: %v", err),
		Timestamp: time.Now(),
	})
}

// respondError はエラーを分類してJSONで返す
func (h *handlers) respondError(c *gin.Context, err error) {
	code, status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("リクエストの処理に失敗", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}

// errorStatus はエラーをコードとHTTPステータスに変換する
func errorStatus(err error) (string, int) {
	var mErr *media.Error
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= http.StatusBadRequest {
			return "backend", apiErr.StatusCode
		}
		return "backend", http.StatusBadGateway
	case errors.As(err, &mErr):
		switch mErr.Kind {
		case media.ErrorKindPermissionDenied:
			return string(mErr.Kind), http.StatusForbidden
		case media.ErrorKindNoDevice:
			return string(mErr.Kind), http.StatusNotFound
		case media.ErrorKindDeviceBusy:
			return string(mErr.Kind), http.StatusConflict
		case media.ErrorKindSwitchFailed:
			return string(mErr.Kind), http.StatusBadGateway
		default:
			return string(mErr.Kind), http.StatusInternalServerError
		}
	case errors.Is(err, media.ErrNotAcquired):
		return "not-acquired", http.StatusConflict
	case errors.Is(err, media.ErrSuperseded):
		return "superseded", http.StatusConflict
	case errors.Is(err, interview.ErrCameraNotReady):
		return "camera-not-ready", http.StatusConflict
	default:
		return "internal", http.StatusInternalServerError
	}
}
