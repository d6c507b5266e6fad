// 注文サービスのエントリポイント。
// 注文の作成、取得、ユーザーごとの一覧を提供する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/overclockart/internal/config"
	"github.com/nao1215/overclockart/internal/order"
	"github.com/nao1215/overclockart/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(config.PathFromEnv(), config.Default("order", "5002"))
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

	server, err := order.NewServer(ctx, cfg, logger.With(zap.String("service", "order")))
	if err != nil {
		logger.Fatal("注文サービスの初期化に失敗", zap.Error(err))
	}

	logger.Info("注文サービスを起動します", zap.String("port", cfg.Server.Port))
	if err := server.Run(ctx); err != nil {
		logger.Fatal("注文サービスが異常終了しました", zap.Error(err))
	}
}
