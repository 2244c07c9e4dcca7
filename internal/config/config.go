package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mensetsu/internal/media"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Media        MediaConfig        `yaml:"media"`
	Conversation ConversationConfig `yaml:"conversation"`
	Backend      BackendConfig      `yaml:"backend"`
	Transcript   TranscriptConfig   `yaml:"transcript"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // 読み込みタイムアウト
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // 書き込みタイムアウト
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // 終了待ちタイムアウト
}

// MediaConfig はカメラ/マイク関連の設定
type MediaConfig struct {
	Video media.VideoConstraints `yaml:"video"`
	Audio media.AudioConstraints `yaml:"audio"`

	// プレビュー配信
	PreviewFPS     int `yaml:"preview_fps"`     // フレームレート (fps)
	PreviewQuality int `yaml:"preview_quality"` // JPEG品質 (1-100)

	// キャプチャを必要とする画面。ここから離れると解放する
	CaptureScreens []string `yaml:"capture_screens"`
}

// ConversationConfig は音声AIチャネルの設定
type ConversationConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	AssistantID string `yaml:"assistant_id"`
}

// BackendConfig はバックエンドAPIの設定
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// TranscriptConfig は文字起こしの設定
type TranscriptConfig struct {
	SilenceTimeout time.Duration `yaml:"silence_timeout"` // 発話を確定させる無音時間
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level   string `yaml:"level"` // debug, info, warn, error
	NoColor bool   `yaml:"no_color"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0, // ストリーミング用にタイムアウト無効化
			ShutdownTimeout: 30 * time.Second,
		},
		Media: MediaConfig{
			Video:          media.DefaultVideoConstraints(),
			Audio:          media.DefaultAudioConstraints(),
			PreviewFPS:     15,
			PreviewQuality: 80,
			CaptureScreens: []string{"interview", "device-setup"},
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Transcript: TranscriptConfig{
			SilenceTimeout: 3 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load は設定を読み込む
// 優先順位はデフォルト値 < YAMLファイル < 環境変数（.envを含む）
// path が空の場合はYAMLファイルを読まない
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	// .envは存在する場合のみ読み込む。既存の環境変数は上書きしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}
	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)

	c.Media.PreviewFPS = getEnvAsIntOrDefault("PREVIEW_FPS", c.Media.PreviewFPS)
	c.Media.Video.DeviceID = getEnvOrDefault("CAMERA_DEVICE_ID", c.Media.Video.DeviceID)
	c.Media.Audio.DeviceID = getEnvOrDefault("MICROPHONE_DEVICE_ID", c.Media.Audio.DeviceID)

	c.Conversation.URL = getEnvOrDefault("CONVERSATION_URL", c.Conversation.URL)
	c.Conversation.APIKey = getEnvOrDefault("VAPI_API_KEY", c.Conversation.APIKey)
	c.Conversation.AssistantID = getEnvOrDefault("VAPI_ASSISTANT_ID", c.Conversation.AssistantID)

	c.Backend.BaseURL = getEnvOrDefault("BACKEND_URL", c.Backend.BaseURL)
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// メディア設定の検証
	if c.Media.PreviewFPS < 1 || c.Media.PreviewFPS > 60 {
		return fmt.Errorf("無効なプレビューFPS: %d", c.Media.PreviewFPS)
	}
	if c.Media.PreviewQuality < 1 || c.Media.PreviewQuality > 100 {
		return fmt.Errorf("無効なJPEG品質: %d", c.Media.PreviewQuality)
	}
	for name, r := range map[string]media.IntRange{"幅": c.Media.Video.Width, "高さ": c.Media.Video.Height} {
		if r.Ideal < 0 || r.Max < 0 || (r.Max > 0 && r.Ideal > r.Max) {
			return fmt.Errorf("無効な映像の%s: ideal=%d max=%d", name, r.Ideal, r.Max)
		}
	}

	if c.Transcript.SilenceTimeout <= 0 {
		return fmt.Errorf("無効な無音時間: %s", c.Transcript.SilenceTimeout)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("無効なログレベル: %s", c.Log.Level)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Constraints はキャプチャ要求の条件を返す
func (m MediaConfig) Constraints() media.Constraints {
	video := m.Video
	audio := m.Audio
	return media.Constraints{Video: &video, Audio: &audio}
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
