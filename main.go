package main

import (
	"context"
	"log"

	"mensetsu/internal/app"
	"mensetsu/internal/config"
	"mensetsu/internal/logging"
	"mensetsu/internal/media/pionmedia"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	logger, err := logging.Init(logging.Options{Level: cfg.Log.Level, NoColor: cfg.Log.NoColor})
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗しました: %v", err)
	}

	a := app.New(cfg, pionmedia.New(logger), logger)

	// サーバーを起動。SIGINT/SIGTERMでデバイスを解放して終了する
	if err := a.Run(context.Background()); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
