package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"mensetsu/internal/backend"
)

// backendHandlers はバックエンドAPIへの中継ハンドラ
type backendHandlers struct {
	client *backend.Client
	base   *handlers
}

func (s *Server) setupBackendRoutes(api *gin.RouterGroup, h *handlers) {
	b := &backendHandlers{client: s.deps.Backend, base: h}

	auth := api.Group("/auth")
	auth.POST("/signup", b.signup)
	auth.POST("/login", b.login)

	api.POST("/interviews", b.scheduleInterview)
	api.PATCH("/interviews/:id/score-status", b.updateInterviewStatus)
	api.GET("/users/:id/interviews", b.userInterviews)
	api.PUT("/users/interviews", b.updateUserInterview)

	api.POST("/resume", b.uploadResume)
	api.POST("/resume/questions", b.resumeQuestions)
	api.POST("/questions", b.domainQuestions)

	api.GET("/chat/welcome", b.chatWelcome)
	api.POST("/chat", b.chat)
}

// ChatRequest はチャットボットへのメッセージ
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// bind はJSONを読み取り、失敗時は400を返す
func (b *backendHandlers) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		b.base.badRequest(c, err)
		return false
	}
	return true
}

// reply は中継結果を返す
func (b *backendHandlers) reply(c *gin.Context, status int, out json.RawMessage, err error) {
	if err != nil {
		b.base.respondError(c, err)
		return
	}
	c.JSON(status, out)
}

func (b *backendHandlers) signup(c *gin.Context) {
	var req backend.SignupRequest
	if !b.bind(c, &req) {
		return
	}
	out, err := b.client.Signup(c.Request.Context(), req)
	b.reply(c, http.StatusCreated, out, err)
}

func (b *backendHandlers) login(c *gin.Context) {
	var req backend.LoginRequest
	if !b.bind(c, &req) {
		return
	}
	out, err := b.client.Login(c.Request.Context(), req)
	b.reply(c, http.StatusOK, out, err)
}

func (b *backendHandlers) scheduleInterview(c *gin.Context) {
	var req backend.ScheduleRequest
	if !b.bind(c, &req) {
		return
	}
	out, err := b.client.ScheduleInterview(c.Request.Context(), req)
	b.reply(c, http.StatusCreated, out, err)
}

func (b *backendHandlers) updateInterviewStatus(c *gin.Context) {
	var req backend.ScoreStatusRequest
	if !b.bind(c, &req) {
		return
	}
	out, err := b.client.UpdateInterviewStatus(c.Request.Context(), c.Param("id"), req)
	b.reply(c, http.StatusOK, out, err)
}

func (b *backendHandlers) userInterviews(c *gin.Context) {
	interviews, err := b.client.UserInterviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		b.base.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interviews": interviews})
}

func (b *backendHandlers) updateUserInterview(c *gin.Context) {
	var req backend.UserInterviewRequest
	if !b.bind(c, &req) {
		return
	}
	out, err := b.client.UpdateUserInterview(c.Request.Context(), req)
	b.reply(c, http.StatusOK, out, err)
}

// uploadResume はmultipartのfileフィールドをそのまま転送する
func (b *backendHandlers) uploadResume(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		b.base.badRequest(c, err)
		return
	}
	f, err := header.Open()
	if err != nil {
		b.base.respondError(c, err)
		return
	}
	defer f.Close()

	out, err := b.client.UploadResume(c.Request.Context(), header.Filename, f)
	b.reply(c, http.StatusOK, out, err)
}

func (b *backendHandlers) resumeQuestions(c *gin.Context) {
	var resume json.RawMessage
	if !b.bind(c, &resume) {
		return
	}
	out, err := b.client.ResumeQuestions(c.Request.Context(), resume)
	b.reply(c, http.StatusOK, out, err)
}

func (b *backendHandlers) domainQuestions(c *gin.Context) {
	var domain json.RawMessage
	if !b.bind(c, &domain) {
		return
	}
	out, err := b.client.DomainQuestions(c.Request.Context(), domain)
	b.reply(c, http.StatusOK, out, err)
}

func (b *backendHandlers) chatWelcome(c *gin.Context) {
	out, err := b.client.ChatWelcome(c.Request.Context())
	b.reply(c, http.StatusOK, out, err)
}

func (b *backendHandlers) chat(c *gin.Context) {
	var req ChatRequest
	if !b.bind(c, &req) {
		return
	}
	out, err := b.client.Chat(c.Request.Context(), req.Message)
	b.reply(c, http.StatusOK, out, err)
}
