package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/overclockart/internal/config"
	"github.com/nao1215/overclockart/internal/metrics"
	"github.com/nao1215/overclockart/pkg/httpclient"
	"github.com/nao1215/overclockart/pkg/httpserver"
	"github.com/nao1215/overclockart/pkg/middleware"
	"github.com/nao1215/overclockart/pkg/token"
	"go.uber.org/zap"
)

// Server はAPI GatewayのHTTPサーバー。
// 構築後は状態を変更しないため、複数のgoroutineから同時にリクエストを処理できる。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// shutdownTimeout はグレースフルシャットダウンの待機時間。
	shutdownTimeout time.Duration
	// logger は構造化ロガー。
	logger *zap.Logger
	// codec はアクセストークンの検証に使用する。
	codec *token.Codec
	// metrics はリクエストと転送のメトリクス。
	metrics *metrics.Registry
	// catalog はcatalogサービスのクライアント。
	catalog *httpclient.Client
	// order はorderサービスのクライアント。
	order *httpclient.Client
	// auth はauthサービスのクライアント。
	auth *httpclient.Client
	// rules はルート定義。
	rules []Rule
}

// NewServer は新しいGatewayサーバーを生成する。
// ルート定義が不正な場合はエラーを返す。
func NewServer(cfg *config.Config, logger *zap.Logger, reg *metrics.Registry) (*Server, error) {
	timeout := httpclient.WithTimeout(cfg.Upstreams.Timeout)

	s := &Server{
		router:          gin.New(),
		port:            cfg.Server.Port,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
		logger:          logger,
		codec:           token.NewCodec(cfg.Auth.JWTSecret),
		metrics:         reg,
		catalog:         httpclient.New("catalog", cfg.Upstreams.Catalog, timeout),
		order:           httpclient.New("order", cfg.Upstreams.Order, timeout),
		auth:            httpclient.New("auth", cfg.Upstreams.Auth, timeout),
	}

	s.rules = s.routes()
	if err := validateRules(s.rules); err != nil {
		return nil, fmt.Errorf("ルート定義が不正です: %w", err)
	}

	s.router.Use(
		middleware.RequestID(),
		middleware.Observe(logger, reg),
		middleware.Recovery(logger),
		middleware.CORS(cfg.Server.AllowedOrigins),
	)
	s.setupRoutes()

	return s, nil
}

// Handler はgatewayのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまでリクエストを処理する。
func (s *Server) Run(ctx context.Context) error {
	return httpserver.Serve(ctx, s.logger, ":"+s.port, s.router, s.shutdownTimeout)
}

// setupRoutes はルート定義をルーターに登録する。
func (s *Server) setupRoutes() {
	preflight := make(map[string]struct{})
	for _, rule := range s.rules {
		s.router.Handle(rule.Method, rule.Path, s.pipeline(rule, s.authenticate, authorize), rule.handler)

		// プリフライトもルートテンプレートで記録されるようにOPTIONSを登録する。
		if _, ok := preflight[rule.Path]; !ok {
			preflight[rule.Path] = struct{}{}
			s.router.OPTIONS(rule.Path, func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})
		}
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
}
