// 認証サービスのエントリポイント。
// ユーザー登録、ログインによるアクセストークンの発行、トークンの検証を提供する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/overclockart/internal/auth"
	"github.com/nao1215/overclockart/internal/config"
	"github.com/nao1215/overclockart/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(config.PathFromEnv(), config.Default("auth", "5003"))
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := auth.NewServer(ctx, cfg, logger.With(zap.String("service", "auth")))
	if err != nil {
		logger.Fatal("認証サービスの初期化に失敗", zap.Error(err))
	}

	logger.Info("認証サービスを起動します", zap.String("port", cfg.Server.Port))
	if err := server.Run(ctx); err != nil {
		logger.Fatal("認証サービスが異常終了しました", zap.Error(err))
	}
}
