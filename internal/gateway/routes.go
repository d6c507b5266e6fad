package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/overclockart/pkg/token"
)

// Rule はgatewayが公開する1つのルート。プロセスの生存期間中は変更しない。
type Rule struct {
	// Method はHTTPメソッド。
	Method string `json:"method"`
	// Path はルートテンプレート（例: /orders/:id）。メトリクスのラベルにも使用する。
	Path string `json:"path"`
	// Public は認証なしでアクセスできるかどうか。
	Public bool `json:"public"`
	// Role はアクセスに必要なロール。空の場合はロールを問わない。
	Role token.Role `json:"role,omitempty"`
	// Upstream は転送先サービスの名前。gateway自身が応答する場合は空。
	Upstream string `json:"upstream,omitempty"`
	// Summary はルートの説明。
	Summary string `json:"summary"`

	handler gin.HandlerFunc
}

// routes はgatewayのルート定義を返す。
func (s *Server) routes() []Rule {
	return []Rule{
		{Method: http.MethodGet, Path: "/health", Public: true, Summary: "ヘルスチェック", handler: s.handleHealth()},
		{Method: http.MethodGet, Path: "/metrics", Public: true, Summary: "Prometheus形式のメトリクス", handler: gin.WrapH(s.metrics.Handler())},
		{Method: http.MethodGet, Path: "/docs", Public: true, Summary: "ルート一覧", handler: s.handleDocs()},

		{Method: http.MethodPost, Path: "/auth/register", Public: true, Upstream: s.auth.Name(), Summary: "ユーザー登録", handler: s.handleRegister()},
		{Method: http.MethodPost, Path: "/auth/login", Public: true, Upstream: s.auth.Name(), Summary: "ログインしてアクセストークンを取得", handler: s.handleLogin()},

		{Method: http.MethodGet, Path: "/products", Public: true, Upstream: s.catalog.Name(), Summary: "商品一覧", handler: s.handleListProducts()},
		{Method: http.MethodGet, Path: "/products/:id", Public: true, Upstream: s.catalog.Name(), Summary: "商品の取得", handler: s.handleGetProduct()},
		{Method: http.MethodPost, Path: "/products", Role: token.RoleAdmin, Upstream: s.catalog.Name(), Summary: "商品の登録", handler: s.handleCreateProduct()},

		{Method: http.MethodGet, Path: "/orders", Upstream: s.order.Name(), Summary: "自分の注文一覧", handler: s.handleListOrders()},
		{Method: http.MethodGet, Path: "/orders/:id", Upstream: s.order.Name(), Summary: "注文の取得", handler: s.handleGetOrder()},
		{Method: http.MethodPost, Path: "/orders", Upstream: s.order.Name(), Summary: "注文の作成", handler: s.handleCreateOrder()},
	}
}

// validateRules はルート定義の整合性を検証する。
// 同じメソッドとパスの組が複数ある場合はどちらを使うか決まらないためエラーにする。
func validateRules(rules []Rule) error {
	type key struct{ method, path string }
	seen := make(map[key]struct{}, len(rules))

	var errs []error
	for _, r := range rules {
		k := key{r.Method, r.Path}
		if _, ok := seen[k]; ok {
			errs = append(errs, fmt.Errorf("ルートが重複しています: %s %s", r.Method, r.Path))
		}
		seen[k] = struct{}{}

		if r.handler == nil {
			errs = append(errs, fmt.Errorf("ハンドラがありません: %s %s", r.Method, r.Path))
		}
		if r.Public && r.Role != "" {
			errs = append(errs, fmt.Errorf("公開ルートにロールは指定できません: %s %s", r.Method, r.Path))
		}
		if r.Role != "" {
			if _, err := token.ParseRole(string(r.Role)); err != nil {
				errs = append(errs, fmt.Errorf("不明なロールです: %s %s: %w", r.Method, r.Path, err))
			}
		}
	}
	return errors.Join(errs...)
}

// handleHealth はヘルスチェックのハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	}
}

// handleDocs はルート一覧を返すハンドラを返す。
func (s *Server) handleDocs() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"routes": s.rules})
	}
}
