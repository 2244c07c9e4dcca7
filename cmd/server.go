// Package main はMensetsuサーバーコマンドの実装です
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mensetsu/internal/app"
	"mensetsu/internal/config"
	"mensetsu/internal/logging"
	"mensetsu/internal/media"
	"mensetsu/internal/media/pionmedia"
)

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mensetsu",
		Short: "Mensetsu 面接クライアント",
		Long:  "カメラ/マイクを共有管理し、プレビュー・状態・面接通話をHTTPで提供するサーバーです。",
	}

	// 共通フラグ
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "設定ファイル (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(devicesCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig は設定を読み込み、フラグで上書きする
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func serveCommand() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "サーバーを起動する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("設定の読み込みに失敗: %w", err)
			}

			// コマンドラインオプションで設定を上書き
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("設定の検証に失敗: %w", err)
			}

			logger, err := logging.Init(logging.Options{Level: cfg.Log.Level, NoColor: cfg.Log.NoColor})
			if err != nil {
				return err
			}

			logger.Info("Mensetsu サーバーを起動します", "addr", cfg.ServerAddress())
			a := app.New(cfg, pionmedia.New(logger), logger)
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "サーバーのポート (デフォルト: 8080)")
	return cmd
}

func devicesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "利用可能なカメラ/マイクを一覧表示する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("設定の読み込みに失敗: %w", err)
			}
			logger, err := logging.Init(logging.Options{Level: cfg.Log.Level, NoColor: cfg.Log.NoColor})
			if err != nil {
				return err
			}

			manager := media.NewManager(pionmedia.New(logger), media.WithLogger(logger))
			devices, err := manager.EnumerateDevices(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(devices)
			}

			if len(devices) == 0 {
				fmt.Fprintln(out, "デバイスが見つかりません")
				return nil
			}
			for _, d := range devices {
				fmt.Fprintf(out, "%-12s %-40s %s\n", d.Kind, d.DeviceID, d.Label)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "JSONで出力する")
	return cmd
}
