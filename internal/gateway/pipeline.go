package gateway

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/overclockart/pkg/middleware"
	"github.com/nao1215/overclockart/pkg/token"
	"go.uber.org/zap"
)

// Stage はパイプラインの1段階。nilを返すと次の段階へ進み、*Errorを返すとその場で終了する。
type Stage func(c *gin.Context, rule Rule) *Error

// pipeline はstagesを順に実行し、すべて通過した場合にルートのハンドラへ進むハンドラを返す。
func (s *Server) pipeline(rule Rule, stages ...Stage) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, stage := range stages {
			if err := stage(c, rule); err != nil {
				s.logger.Info("リクエストを拒否しました",
					zap.String("method", c.Request.Method),
					zap.String("route", rule.Path),
					zap.String("kind", string(err.Kind)),
					zap.String("request_id", middleware.GetRequestID(c)),
				)
				abortWithError(c, err)
				return
			}
		}
		c.Next()
	}
}

// authenticate はBearerトークンを検証し、認証済みユーザー情報をコンテキストに設定する。
// プリフライトと公開ルートは検証せずに通過させる。
func (s *Server) authenticate(c *gin.Context, rule Rule) *Error {
	if c.Request.Method == http.MethodOptions || rule.Public {
		return nil
	}

	raw, err := middleware.BearerToken(c)
	if err != nil {
		return Unauthorized("missing credential")
	}

	id, err := s.codec.Validate(raw)
	if err != nil {
		s.logger.Debug("トークンの検証に失敗しました",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		return Unauthorized("invalid or expired credential")
	}

	middleware.SetIdentity(c, id)
	return nil
}

// authorize はルートに必要なロールを確認する。
// ロールを要求するルートに認証済みユーザー情報が無い場合はルート定義の誤りとしてパニックする。
func authorize(c *gin.Context, rule Rule) *Error {
	if rule.Role == "" || c.Request.Method == http.MethodOptions {
		return nil
	}
	id, ok := middleware.GetIdentity(c)
	if !ok {
		panic(fmt.Sprintf("ロールを要求するルートに認証済みユーザー情報がありません: %s %s", rule.Method, rule.Path))
	}
	return RequireRole(id, rule.Role)
}

// RequireRole はユーザーのロールがroleと一致しない場合にForbiddenを返す。
func RequireRole(id token.Identity, role token.Role) *Error {
	if id.Role != role {
		return Forbidden(fmt.Sprintf("%s role required", role))
	}
	return nil
}
