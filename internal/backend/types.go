package backend

import (
	"encoding/json"
	"fmt"
)

// APIError は2xx以外の応答を表す
type APIError struct {
	StatusCode int    `json:"-"`
	Endpoint   string `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// SignupRequest は新規登録の要求
type SignupRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
}

// LoginRequest はログインの要求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ScheduleRequest は面接スケジュール登録の要求
type ScheduleRequest struct {
	AdminFirstName       string   `json:"adminFirstName"`
	AdminLastName        string   `json:"adminLastName"`
	AdminEmail           string   `json:"adminEmail"`
	ApplicantFirstName   string   `json:"applicantFirstName"`
	ApplicantLastName    string   `json:"applicantLastName"`
	ApplicantEmail       string   `json:"applicantEmail"`
	Date                 string   `json:"date"`
	Time                 string   `json:"time"`
	InterviewDomain      string   `json:"interviewDomain"`
	ScheduleType         string   `json:"scheduleType"`
	CustomQuestions      []string `json:"customQuestions,omitempty"`
	AIGeneratedQuestions []string `json:"aiGeneratedQuestions,omitempty"`
}

// UserInterviewRequest はユーザーへの面接紐付けの要求
type UserInterviewRequest struct {
	Email       string `json:"email"`
	InterviewID string `json:"interviewId"`
}

// ScoreStatusRequest は面接のスコアと状態の更新要求
type ScoreStatusRequest struct {
	Score           float64 `json:"score"`
	InterviewStatus string  `json:"interviewStatus"`
}

// interviewRecord はバックエンドが返す面接レコード
type interviewRecord struct {
	ID                   string          `json:"_id"`
	ApplicantFirstName   string          `json:"applicantFirstName"`
	ApplicantLastName    string          `json:"applicantLastName"`
	ApplicantEmail       string          `json:"applicantEmail"`
	AdminFirstName       string          `json:"adminFirstName"`
	AdminLastName        string          `json:"adminLastName"`
	Date                 string          `json:"date"`
	Time                 string          `json:"time"`
	InterviewDomain      string          `json:"interviewDomain"`
	ScheduleType         string          `json:"scheduleType"`
	InterviewStatus      string          `json:"interviewStatus"`
	Score                float64         `json:"score"`
	InterviewTranscript  json.RawMessage `json:"interviewTranscript,omitempty"`
	InterviewResult      json.RawMessage `json:"interviewResult,omitempty"`
	CreatedAt            string          `json:"createdAt"`
	CustomQuestions      []string        `json:"customQuestions,omitempty"`
	AIGeneratedQuestions []string        `json:"aiGeneratedQuestions,omitempty"`
}

// Interview は表示用に整形した面接
type Interview struct {
	ID                   string          `json:"id"`
	StudentName          string          `json:"studentName"`
	Email                string          `json:"email"`
	Date                 string          `json:"date"`
	Time                 string          `json:"time"`
	Domain               string          `json:"domain"`
	Type                 string          `json:"type"`
	Status               string          `json:"status"`
	Score                float64         `json:"score"`
	AdminName            string          `json:"adminName"`
	InterviewTranscript  json.RawMessage `json:"interviewTranscript,omitempty"`
	InterviewResult      json.RawMessage `json:"interviewResult,omitempty"`
	CreatedAt            string          `json:"createdAt"`
	CustomQuestions      []string        `json:"customQuestions,omitempty"`
	AIGeneratedQuestions []string        `json:"aiGeneratedQuestions,omitempty"`
}

func (r interviewRecord) toInterview() Interview {
	return Interview{
		ID:                   r.ID,
		StudentName:          r.ApplicantFirstName + " " + r.ApplicantLastName,
		Email:                r.ApplicantEmail,
		Date:                 r.Date,
		Time:                 r.Time,
		Domain:               r.InterviewDomain,
		Type:                 r.ScheduleType,
		Status:               r.InterviewStatus,
		Score:                r.Score,
		AdminName:            r.AdminFirstName + " " + r.AdminLastName,
		InterviewTranscript:  r.InterviewTranscript,
		InterviewResult:      r.InterviewResult,
		CreatedAt:            r.CreatedAt,
		CustomQuestions:      r.CustomQuestions,
		AIGeneratedQuestions: r.AIGeneratedQuestions,
	}
}

// chatResponse はチャットボット応答
type chatResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}
