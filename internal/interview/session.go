// Package interview 面接通話のセッションを管理する
//
// 通話チャネルのイベントを文字起こしバッファとカメラ/マイクの管理に結びつける
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mensetsu/internal/conversation"
	"mensetsu/internal/lifecycle"
	"mensetsu/internal/transcript"
)

// ErrCameraNotReady はカメラの準備ができていない状態で通話を開始しようとしたことを示す
var ErrCameraNotReady = errors.New("カメラの準備ができていません。カメラの設定を確認してください")

// Channel は通話イベントのチャネル
type Channel interface {
	On(t conversation.EventType, h conversation.Handler) *conversation.Registration
	Start(ctx context.Context) error
	Stop() error
}

// Media はセッションが参照するカメラ/マイクの状態
type Media interface {
	Acquire(ctx context.Context) error
	IsReady() bool
	IsCameraEnabled() bool
	IsMicrophoneEnabled() bool
}

// Releaser は理由付きでデバイスを解放する
type Releaser interface {
	Release(reason string)
}

// Status はセッションの状態
type Status struct {
	Connected  bool   `json:"connected"`
	Connecting bool   `json:"connecting"`
	Speaking   bool   `json:"speaking"`
	CanStart   bool   `json:"canStart"`
	LastError  string `json:"lastError,omitempty"`
}

// Session は1回の面接通話
type Session struct {
	channel    Channel
	media      Media
	transcript *transcript.Buffer
	releaser   Releaser
	logger     *slog.Logger

	mu         sync.RWMutex
	connected  bool
	connecting bool
	speaking   bool
	lastError  string
	regs       []*conversation.Registration
}

// NewSession は新しいSessionを作成し、チャネルにハンドラを登録する
func NewSession(channel Channel, media Media, buf *transcript.Buffer, releaser Releaser, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		channel:    channel,
		media:      media,
		transcript: buf,
		releaser:   releaser,
		logger:     logger.With("component", "interview"),
	}

	s.regs = []*conversation.Registration{
		channel.On(conversation.EventCallStart, s.handleCallStart),
		channel.On(conversation.EventCallEnd, s.handleCallEnd),
		channel.On(conversation.EventSpeechStart, s.handleSpeech(true)),
		channel.On(conversation.EventSpeechEnd, s.handleSpeech(false)),
		channel.On(conversation.EventMessage, s.handleMessage),
		channel.On(conversation.EventError, s.handleError),
	}
	return s
}

// Prepare は未取得であればカメラ/マイクを取得する
func (s *Session) Prepare(ctx context.Context) error {
	if s.media.IsReady() {
		return nil
	}
	if err := s.media.Acquire(ctx); err != nil {
		s.setError("カメラの初期化に失敗しました。権限を確認してください")
		return fmt.Errorf("カメラの初期化に失敗: %w", err)
	}
	return nil
}

// CanStart は通話を開始できる状態かを返す
func (s *Session) CanStart() bool {
	return s.media.IsReady() && s.media.IsCameraEnabled() && s.media.IsMicrophoneEnabled()
}

// StartCall は通話を開始する
// カメラが取得済みかつオンでなければErrCameraNotReadyを返す
func (s *Session) StartCall(ctx context.Context) error {
	if !s.media.IsReady() || !s.media.IsCameraEnabled() {
		s.setError(ErrCameraNotReady.Error())
		return ErrCameraNotReady
	}

	s.mu.Lock()
	s.connecting = true
	s.lastError = ""
	s.mu.Unlock()

	s.logger.Info("通話を開始します")
	if err := s.channel.Start(ctx); err != nil {
		s.mu.Lock()
		s.connecting = false
		s.lastError = "面接を開始できませんでした。もう一度お試しください"
		s.mu.Unlock()
		return fmt.Errorf("通話の開始に失敗: %w", err)
	}
	return nil
}

// EndCall は通話を終了する。call-endイベントで後片付けが行われる
func (s *Session) EndCall() error {
	s.logger.Info("通話を終了します")
	if err := s.channel.Stop(); err != nil {
		return fmt.Errorf("通話の終了に失敗: %w", err)
	}
	return nil
}

// Close はハンドラを解除して通話を終了する
func (s *Session) Close() error {
	s.mu.Lock()
	regs := s.regs
	s.regs = nil
	s.mu.Unlock()

	for _, r := range regs {
		r.Remove()
	}
	return s.channel.Stop()
}

// Status は現在の状態を返す
func (s *Session) Status() Status {
	canStart := s.CanStart()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Connected:  s.connected,
		Connecting: s.connecting,
		Speaking:   s.speaking,
		CanStart:   canStart,
		LastError:  s.lastError,
	}
}

// Transcript は文字起こしバッファを返す
func (s *Session) Transcript() *transcript.Buffer {
	return s.transcript
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func (s *Session) handleCallStart(conversation.Event) {
	s.mu.Lock()
	s.connected = true
	s.connecting = false
	s.lastError = ""
	s.mu.Unlock()
	s.logger.Info("通話が開始されました")
}

func (s *Session) handleCallEnd(conversation.Event) {
	s.mu.Lock()
	s.connected = false
	s.connecting = false
	s.speaking = false
	s.mu.Unlock()

	s.logger.Info("通話が終了しました。デバイスを解放します")
	s.transcript.Clear()
	s.releaser.Release(lifecycle.ReasonCallEnd)
}

func (s *Session) handleSpeech(speaking bool) conversation.Handler {
	return func(conversation.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.speaking = speaking
	}
}

func (s *Session) handleMessage(ev conversation.Event) {
	if !ev.Message.IsTranscript() {
		return
	}
	m := ev.Message
	s.transcript.HandleUpdate(m.Transcript, transcript.ParseSpeaker(m.Role), m.IsFinal())
}

func (s *Session) handleError(ev conversation.Event) {
	s.logger.Error("通話エラー", "error", ev.Error)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ev.Error
	s.connecting = false
}
