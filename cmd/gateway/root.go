package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/overclockart/internal/config"
	"github.com/nao1215/overclockart/internal/gateway"
	"github.com/nao1215/overclockart/internal/metrics"
	"github.com/nao1215/overclockart/pkg/logging"
	"github.com/nao1215/overclockart/pkg/token"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// defaultPort はgatewayのデフォルトのリッスンポート。
const defaultPort = "8000"

// newRootCmd はgatewayのルートコマンドを生成する。サブコマンド無しではserveと同じ動作をする。
func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "gateway",
		Short: "OverclocKart API Gateway",
		Long: `OverclocKart API Gateway はcatalog、order、authの各サービスの前段に立ち、
アクセストークンの検証、ロールの確認、入力検証を行ってからリクエストを転送する。

設定は次の順に読み込まれ、後のものが優先される。
  1. デフォルト値
  2. 設定ファイル（--config または CONFIG_FILE）
  3. 環境変数（PORT, JWT_SECRET, CATALOG_URL など）`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "設定ファイルのパス（省略時はCONFIG_FILE）")

	root.AddCommand(newServeCmd(&configFile), newTokenCmd(&configFile))
	return root
}

// newServeCmd はサーバーを起動するコマンドを生成する。
func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "gatewayを起動する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configFile)
		},
	}
}

// newTokenCmd は開発用のアクセストークンを発行するコマンドを生成する。
// authサービスを経ずにgatewayの動作を確認するために使用する。
func newTokenCmd(configFile *string) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "開発用のアクセストークンを発行する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			r, err := token.ParseRole(role)
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = cfg.Auth.TokenTTL()
			}

			signed, err := token.NewCodec(cfg.Auth.JWTSecret).Issue(subject, r, ttl)
			if err != nil {
				return fmt.Errorf("トークンの発行に失敗: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), signed)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "ユーザー名")
	cmd.Flags().StringVar(&role, "role", string(token.RoleUser), "ロール（user または admin）")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "有効期間（省略時はACCESS_TOKEN_EXPIRE_MINUTES）")
	_ = cmd.MarkFlagRequired("sub")

	return cmd
}

// loadConfig はgatewayの設定を読み込む。pathが空の場合はCONFIG_FILEを使用する。
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.PathFromEnv()
	}
	cfg, err := config.Load(path, config.Default("gateway", defaultPort))
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	return cfg, nil
}

// runServe はgatewayを起動し、SIGINTまたはSIGTERMを受け取るまでリクエストを処理する。
func runServe(parent context.Context, configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", "gateway"))

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := gateway.NewServer(cfg, logger, metrics.NewRegistry())
	if err != nil {
		return fmt.Errorf("gatewayの初期化に失敗: %w", err)
	}

	logger.Info("gatewayを起動します",
		zap.String("port", cfg.Server.Port),
		zap.String("catalog", cfg.Upstreams.Catalog),
		zap.String("order", cfg.Upstreams.Order),
		zap.String("auth", cfg.Upstreams.Auth),
	)
	return server.Run(ctx)
}
