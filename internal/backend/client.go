package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// エンドポイント
const (
	pathSignup           = "/auth/register"
	pathLogin            = "/auth/login"
	pathChatWelcome      = "/chatbot/welcome"
	pathChat             = "/chatbot/chat"
	pathSchedule         = "/interview-schedule"
	pathResumeParse      = "/resume/parse"
	pathResumeQuestions  = "/resume/questions"
	pathDomainQuestions  = "/generate-questions"
	pathUserInterviews   = "/users/getUserInterviews/"
	pathAddUserInterview = "/users/add-interview"
)

// Client はバックエンドAPIのクライアント
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// New は新しいClientを作成する
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   rc,
		logger: logger.With("component", "backend"),
	}
}

// Signup は新規登録する
func (c *Client) Signup(ctx context.Context, req SignupRequest) (json.RawMessage, error) {
	return c.post(ctx, pathSignup, req, http.StatusCreated)
}

// Login はログインする
func (c *Client) Login(ctx context.Context, req LoginRequest) (json.RawMessage, error) {
	return c.post(ctx, pathLogin, req, http.StatusCreated)
}

// ScheduleInterview は面接を登録する
func (c *Client) ScheduleInterview(ctx context.Context, req ScheduleRequest) (json.RawMessage, error) {
	return c.post(ctx, pathSchedule, req, http.StatusOK, http.StatusCreated)
}

// UpdateUserInterview はユーザーに面接を紐付ける
func (c *Client) UpdateUserInterview(ctx context.Context, req UserInterviewRequest) (json.RawMessage, error) {
	var out json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Put(pathAddUserInterview)
	if err := c.check(resp, err, pathAddUserInterview, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadResume は履歴書ファイルを送信して解析結果を受け取る
func (c *Client) UploadResume(ctx context.Context, filename string, r io.Reader) (json.RawMessage, error) {
	var out json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, r).
		SetResult(&out).
		Post(pathResumeParse)
	if err := c.check(resp, err, pathResumeParse, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	return out, nil
}

// ResumeQuestions は履歴書から質問を生成する
func (c *Client) ResumeQuestions(ctx context.Context, resume any) (json.RawMessage, error) {
	return c.post(ctx, pathResumeQuestions, resume, http.StatusOK, http.StatusCreated)
}

// DomainQuestions は分野から質問を生成する
func (c *Client) DomainQuestions(ctx context.Context, domain any) (json.RawMessage, error) {
	return c.post(ctx, pathDomainQuestions, domain, http.StatusOK, http.StatusCreated)
}

// UserInterviews はユーザーの面接一覧を取得する
func (c *Client) UserInterviews(ctx context.Context, userID string) ([]Interview, error) {
	var records []interviewRecord
	path := pathUserInterviews + url.PathEscape(userID)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&records).
		Get(path)
	if err := c.check(resp, err, path, http.StatusOK); err != nil {
		return nil, err
	}

	out := make([]Interview, 0, len(records))
	for _, r := range records {
		out = append(out, r.toInterview())
	}
	return out, nil
}

// UpdateInterviewStatus は面接のスコアと状態を更新する
func (c *Client) UpdateInterviewStatus(ctx context.Context, interviewID string, req ScoreStatusRequest) (json.RawMessage, error) {
	var out json.RawMessage
	path := pathSchedule + "/" + url.PathEscape(interviewID) + "/score-status"
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Patch(path)
	if err := c.check(resp, err, path, http.StatusCreated); err != nil {
		return nil, err
	}
	return out, nil
}

// ChatWelcome はチャットボットの最初のメッセージを取得する
func (c *Client) ChatWelcome(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(pathChatWelcome)
	if err := c.check(resp, err, pathChatWelcome, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// Chat はチャットボットにメッセージを送る
func (c *Client) Chat(ctx context.Context, message string) (json.RawMessage, error) {
	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"message": message}).
		SetResult(&out).
		Post(pathChat)
	if err := c.check(resp, err, pathChat, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{StatusCode: resp.StatusCode(), Endpoint: pathChat, Message: out.Message}
	}
	return out.Response, nil
}

func (c *Client) post(ctx context.Context, path string, body any, accept ...int) (json.RawMessage, error) {
	var out json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(path)
	if err := c.check(resp, err, path, accept...); err != nil {
		return nil, err
	}
	return out, nil
}

// check は送信エラーと応答コードを検査する
func (c *Client) check(resp *resty.Response, err error, path string, accept ...int) error {
	if err != nil {
		c.logger.Error("APIの呼び出しに失敗", "path", path, "error", err)
		return fmt.Errorf("%s の呼び出しに失敗: %w", path, err)
	}

	for _, code := range accept {
		if resp.StatusCode() == code {
			c.logger.Debug("API応答", "path", path, "status", resp.StatusCode())
			return nil
		}
	}

	apiErr := &APIError{StatusCode: resp.StatusCode(), Endpoint: path}
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(resp.Body(), &body) == nil {
		apiErr.Message = body.Message
	}
	c.logger.Warn("APIがエラーを返しました", "path", path, "status", resp.StatusCode(), "message", apiErr.Message)
	return apiErr
}
