package transcript

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultSilenceTimeout は未確定発話を確定させるまでの無音時間
const DefaultSilenceTimeout = 3 * time.Second

// Speaker は話者
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// ParseSpeaker はroleを話者に変換する。user以外はassistantとして扱う
func ParseSpeaker(role string) Speaker {
	if role == string(SpeakerUser) {
		return SpeakerUser
	}
	return SpeakerAssistant
}

// Message は確定した発話
type Message struct {
	ID         string    `json:"id"`
	Speaker    Speaker   `json:"speaker"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	IsComplete bool      `json:"isComplete"`
}

// Pending は確定前の発話
type Pending struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	StartedAt time.Time `json:"startedAt"`
}

// Timer は停止可能なタイマー
type Timer interface {
	Stop() bool
}

// AfterFunc は d 経過後に f を呼び出すタイマーを作成する
type AfterFunc func(d time.Duration, f func()) Timer

// Option はBufferの設定を変更する
type Option func(*Buffer)

// WithSilenceTimeout は無音判定の時間を設定する
func WithSilenceTimeout(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.silence = d
		}
	}
}

// WithClock は現在時刻の取得方法を設定する
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) {
		b.now = now
	}
}

// WithAfterFunc はタイマーの作成方法を設定する
func WithAfterFunc(f AfterFunc) Option {
	return func(b *Buffer) {
		b.afterFunc = f
	}
}

// WithOnFinalize は確定時のコールバックを設定する
func WithOnFinalize(fn func(Message)) Option {
	return func(b *Buffer) {
		b.onFinalize = fn
	}
}

// WithLogger はログ出力先を設定する
func WithLogger(logger *slog.Logger) Option {
	return func(b *Buffer) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Buffer は発話の集約バッファ
type Buffer struct {
	silence    time.Duration
	now        func() time.Time
	afterFunc  AfterFunc
	onFinalize func(Message)
	logger     *slog.Logger

	mu       sync.Mutex
	messages []Message
	pending  *Pending
	timer    Timer
	seq      uint64
	closed   bool
}

// New は新しいBufferを作成する
func New(opts ...Option) *Buffer {
	b := &Buffer{
		silence: DefaultSilenceTimeout,
		now:     time.Now,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "transcript")
	return b
}

// HandleUpdate は音声認識の結果を受け取る
func (b *Buffer) HandleUpdate(text string, speaker Speaker, isFinal bool) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.stopTimerLocked()

	if isFinal {
		var finalized *Message
		if strings.TrimSpace(text) != "" {
			b.pending = nil
			m := b.appendLocked(speaker, text)
			finalized = &m
		} else if b.pending != nil {
			// 空の確定イベントは未確定発話をそのまま確定させる
			finalized = b.finalizePendingLocked()
		}
		b.mu.Unlock()

		b.emit(finalized)
		return
	}

	if b.pending == nil || b.pending.Speaker != speaker {
		b.pending = &Pending{Speaker: speaker, Text: text, StartedAt: b.now()}
	} else if utf8.RuneCountInString(text) >= utf8.RuneCountInString(b.pending.Text) {
		b.pending.Text = text
	}

	b.seq++
	seq := b.seq
	b.timer = b.afterFunc(b.silence, func() { b.onSilence(seq) })
	b.mu.Unlock()
}

func (b *Buffer) onSilence(seq uint64) {
	b.mu.Lock()
	if b.closed || seq != b.seq || b.pending == nil {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	m := b.finalizePendingLocked()
	b.mu.Unlock()

	if m != nil {
		b.logger.Debug("無音のため発話を確定", "speaker", m.Speaker)
	}
	b.emit(m)
}

// finalizePendingLocked は未確定発話を確定させる。空白のみの場合は破棄する
func (b *Buffer) finalizePendingLocked() *Message {
	p := b.pending
	b.pending = nil
	if p == nil || strings.TrimSpace(p.Text) == "" {
		return nil
	}
	m := b.appendLocked(p.Speaker, p.Text)
	return &m
}

func (b *Buffer) appendLocked(speaker Speaker, text string) Message {
	m := Message{
		ID:         uuid.NewString(),
		Speaker:    speaker,
		Text:       strings.TrimSpace(text),
		Timestamp:  b.now(),
		IsComplete: true,
	}
	b.messages = append([]Message{m}, b.messages...)
	return m
}

func (b *Buffer) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.seq++
}

func (b *Buffer) emit(m *Message) {
	if m == nil || b.onFinalize == nil {
		return
	}
	b.onFinalize(*m)
}

// Messages は確定メッセージを新しい順で返す
func (b *Buffer) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Pending は未確定発話を返す。ない場合はnil
func (b *Buffer) Pending() *Pending {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return nil
	}
	p := *b.pending
	return &p
}

// CurrentText は未確定発話のテキストを返す
func (b *Buffer) CurrentText() string {
	if p := b.Pending(); p != nil {
		return p.Text
	}
	return ""
}

// IsTyping は未確定発話があるかを返す
func (b *Buffer) IsTyping() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending != nil
}

// Clear は全てのメッセージと未確定発話を破棄する
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopTimerLocked()
	b.messages = nil
	b.pending = nil
}

// Close はタイマーを停止し、以降の更新を無視する
// 未確定発話は確定させる
func (b *Buffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.stopTimerLocked()
	m := b.finalizePendingLocked()
	b.closed = true
	b.mu.Unlock()

	b.emit(m)
}
