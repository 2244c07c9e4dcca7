package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	// 設定を読み込む
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}

	// メディア設定の検証
	if cfg.Media.Video.Width.Ideal != 640 || cfg.Media.Video.Width.Max != 1280 {
		t.Errorf("映像幅のデフォルトが不正です: %+v", cfg.Media.Video.Width)
	}
	if cfg.Media.Video.FacingMode != "user" {
		t.Errorf("FacingModeのデフォルトが不正です: %s", cfg.Media.Video.FacingMode)
	}
	if !cfg.Media.Audio.EchoCancellation || !cfg.Media.Audio.NoiseSuppression {
		t.Error("音声処理のデフォルトが無効です")
	}
	if cfg.Transcript.SilenceTimeout != 3*time.Second {
		t.Errorf("無音時間のデフォルトが不正です: %s", cfg.Transcript.SilenceTimeout)
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{
			name:      "正常な設定",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name:      "無効なポート番号",
			modify:    func(c *Config) { c.Server.Port = 99999 },
			expectErr: true,
		},
		{
			name:      "プレビューFPSが0",
			modify:    func(c *Config) { c.Media.PreviewFPS = 0 },
			expectErr: true,
		},
		{
			name:      "JPEG品質が範囲外",
			modify:    func(c *Config) { c.Media.PreviewQuality = 101 },
			expectErr: true,
		},
		{
			name:      "希望幅が上限を超える",
			modify:    func(c *Config) { c.Media.Video.Width.Ideal = 1920 },
			expectErr: true,
		},
		{
			name:      "無音時間が0",
			modify:    func(c *Config) { c.Transcript.SilenceTimeout = 0 },
			expectErr: true,
		},
		{
			name:      "不明なログレベル",
			modify:    func(c *Config) { c.Log.Level = "trace" },
			expectErr: true,
		},
		{
			name:      "大文字のログレベル",
			modify:    func(c *Config) { c.Log.Level = "DEBUG" },
			expectErr: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	actual := cfg.ServerAddress()

	if actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestLoadFile はYAMLファイルからの読み込みをテストする
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9000
media:
  video:
    width: {ideal: 320, max: 640}
    device_id: camera-2
  preview_fps: 5
conversation:
  url: wss://example.com/ws
  assistant_id: asst-1
transcript:
  silence_timeout: 1500ms
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("ファイルの作成に失敗しました: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("ポートが反映されていません: %d", cfg.Server.Port)
	}
	// ファイルにない項目はデフォルトのまま
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("ホストのデフォルトが失われました: %s", cfg.Server.Host)
	}
	if cfg.Media.Video.Width.Ideal != 320 || cfg.Media.Video.DeviceID != "camera-2" {
		t.Errorf("映像設定が反映されていません: %+v", cfg.Media.Video)
	}
	if cfg.Media.Video.Height.Ideal != 480 {
		t.Errorf("映像高さのデフォルトが失われました: %+v", cfg.Media.Video.Height)
	}
	if cfg.Media.PreviewFPS != 5 {
		t.Errorf("プレビューFPSが反映されていません: %d", cfg.Media.PreviewFPS)
	}
	if cfg.Conversation.URL != "wss://example.com/ws" || cfg.Conversation.AssistantID != "asst-1" {
		t.Errorf("会話設定が反映されていません: %+v", cfg.Conversation)
	}
	if cfg.Transcript.SilenceTimeout != 1500*time.Millisecond {
		t.Errorf("無音時間が反映されていません: %s", cfg.Transcript.SilenceTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("ログレベルが反映されていません: %s", cfg.Log.Level)
	}
}

// TestLoadFileErrors は不正なファイルの扱いをテストする
func TestLoadFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("存在しないファイルでエラーが期待されました")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("server: [1, 2"), 0o600); err != nil {
		t.Fatalf("ファイルの作成に失敗しました: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("不正なYAMLでエラーが期待されました")
	}

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("server:\n  port: 0\n"), 0o600); err != nil {
		t.Fatalf("ファイルの作成に失敗しました: %v", err)
	}
	if _, err := Load(invalid); err == nil {
		t.Error("検証エラーが期待されました")
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
// 注意: このテストは環境変数を変更するため、parallelは使わない
func TestEnvironmentVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  host: file.example.com\n  port: 7000\n"), 0o600); err != nil {
		t.Fatalf("ファイルの作成に失敗しました: %v", err)
	}

	// 環境変数はファイルより優先される
	t.Setenv("SERVER_HOST", "test.example.com")
	t.Setenv("PORT", "9999")
	t.Setenv("VAPI_API_KEY", "key-123")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("環境変数のホストが反映されていません: %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: %d", cfg.Server.Port)
	}
	if cfg.Conversation.APIKey != "key-123" {
		t.Errorf("APIキーが反映されていません: %s", cfg.Conversation.APIKey)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("ログレベルが反映されていません: %s", cfg.Log.Level)
	}
}

// TestInvalidPortEnv は数値でない環境変数を無視することをテストする
func TestInvalidPortEnv(t *testing.T) {
	t.Setenv("PORT", "abc")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("デフォルトのポートが期待されました: %d", cfg.Server.Port)
	}
}

// TestMediaConstraints は取得条件の生成をテストする
func TestMediaConstraints(t *testing.T) {
	cfg := Default()
	c := cfg.Media.Constraints()

	if c.Video == nil || c.Audio == nil {
		t.Fatal("映像と音声の両方が必要です")
	}
	c.Video.DeviceID = "changed"
	if cfg.Media.Video.DeviceID != "" {
		t.Error("条件の変更が設定に影響しました")
	}
}
