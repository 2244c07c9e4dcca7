package conversation

// EventType はイベント種別
type EventType string

const (
	EventCallStart   EventType = "call-start"
	EventCallEnd     EventType = "call-end"
	EventSpeechStart EventType = "speech-start"
	EventSpeechEnd   EventType = "speech-end"
	EventMessage     EventType = "message"
	EventError       EventType = "error"
)

// 文字起こしの種別
const (
	TranscriptPartial = "partial"
	TranscriptFinal   = "final"
)

// Event はチャネルから届くイベント
type Event struct {
	Type    EventType `json:"type"`
	Message *Message  `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Message はmessageイベントのペイロード
type Message struct {
	Type           string `json:"type"`
	Role           string `json:"role,omitempty"`
	TranscriptType string `json:"transcriptType,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
}

// IsTranscript は文字起こしメッセージかを返す
func (m *Message) IsTranscript() bool {
	return m != nil && m.Type == "transcript"
}

// IsFinal は確定した文字起こしかを返す
func (m *Message) IsFinal() bool {
	return m != nil && m.TranscriptType == TranscriptFinal
}

// startRequest は接続直後に送る開始要求
type startRequest struct {
	Type        string `json:"type"`
	AssistantID string `json:"assistantId,omitempty"`
}
