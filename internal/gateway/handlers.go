package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/overclockart/internal/metrics"
	"github.com/nao1215/overclockart/pkg/httpclient"
	"github.com/nao1215/overclockart/pkg/middleware"
	"go.uber.org/zap"
)

// handleRegister はユーザー登録をauthサービスに転送するハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := bindBody(c, &req); err != nil {
			abortWithError(c, err)
			return
		}
		relay[registerResponse](s, c, s.auth, s.envelope(c, http.MethodPost, "/register", req, false))
	}
}

// handleLogin はログインをauthサービスに転送するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := bindBody(c, &req); err != nil {
			abortWithError(c, err)
			return
		}
		relay[tokenResponse](s, c, s.auth, s.envelope(c, http.MethodPost, "/login", req, false))
	}
}

// handleListProducts は商品一覧をcatalogサービスから取得するハンドラを返す。
func (s *Server) handleListProducts() gin.HandlerFunc {
	return func(c *gin.Context) {
		relay[[]product](s, c, s.catalog, s.envelope(c, http.MethodGet, "/catalog", nil, false))
	}
}

// handleGetProduct は商品をcatalogサービスから取得するハンドラを返す。
func (s *Server) handleGetProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, bad := positiveID(c, "id")
		if bad != nil {
			abortWithError(c, bad)
			return
		}
		relay[product](s, c, s.catalog, s.envelope(c, http.MethodGet, fmt.Sprintf("/catalog/%d", id), nil, false))
	}
}

// handleCreateProduct は商品の登録をcatalogサービスに転送するハンドラを返す。
func (s *Server) handleCreateProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req productRequest
		if err := bindBody(c, &req); err != nil {
			abortWithError(c, err)
			return
		}
		relay[product](s, c, s.catalog, s.envelope(c, http.MethodPost, "/catalog", req, false))
	}
}

// handleListOrders はユーザー自身の注文一覧をorderサービスから取得するハンドラを返す。
// 一覧は常に配列で返す。
func (s *Server) handleListOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		relay[[]order](s, c, s.order, s.envelope(c, http.MethodGet, "/orders", nil, true))
	}
}

// handleGetOrder は注文をorderサービスから取得するハンドラを返す。
func (s *Server) handleGetOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, bad := positiveID(c, "id")
		if bad != nil {
			abortWithError(c, bad)
			return
		}
		relay[order](s, c, s.order, s.envelope(c, http.MethodGet, fmt.Sprintf("/order/%d", id), nil, false))
	}
}

// handleCreateOrder は注文の作成をorderサービスに転送するハンドラを返す。
func (s *Server) handleCreateOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orderRequest
		if err := bindBody(c, &req); err != nil {
			abortWithError(c, err)
			return
		}
		relay[order](s, c, s.order, s.envelope(c, http.MethodPost, "/order", req, true))
	}
}

// envelope は転送するリクエストを組み立てる。
// withUserがtrueの場合のみ、認証済みユーザー名をX-Userヘッダーで伝播する。
func (s *Server) envelope(c *gin.Context, method, path string, body any, withUser bool) httpclient.Request {
	req := httpclient.Request{
		Method: method,
		Path:   path,
		Header: http.Header{},
	}
	if body != nil {
		// 検証済みの構造体なのでエンコードは失敗しない。
		req.Body, _ = json.Marshal(body)
	}
	if withUser {
		if id, ok := middleware.GetIdentity(c); ok {
			req.Header.Set(httpclient.HeaderUser, id.Subject)
		}
	}
	return req
}

// relay はリクエストを転送し、結果をクライアント向けに変換して返す。
//   - 到達できない場合は502を返す。
//   - 非2xxはステータスとボディをそのまま返す。
//   - 2xxはボディをOutとして読み込み、Outの形に整えて返す。
func relay[Out any](s *Server, c *gin.Context, client *httpclient.Client, req httpclient.Request) {
	requestID := middleware.GetRequestID(c)

	resp, err := client.Forward(c.Request.Context(), req)
	switch {
	case errors.Is(err, httpclient.ErrUnreachable):
		s.metrics.ObserveUpstream(client.Name(), metrics.UpstreamUnreachable)
		s.logger.Warn("転送先に到達できません",
			zap.String("upstream", client.Name()),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		abortWithError(c, BadGateway(client.Name()+" service unavailable"))
		return
	case errors.Is(err, httpclient.ErrResponseTooLarge):
		s.metrics.ObserveUpstream(client.Name(), metrics.UpstreamInvalidResponse)
		s.logger.Error("転送先のレスポンスが大きすぎます",
			zap.String("upstream", client.Name()),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		abortWithError(c, BadGateway("invalid response from "+client.Name()+" service"))
		return
	case err != nil:
		// 送信前に失敗しているため転送先の呼び出しとしては記録しない。
		s.logger.Error("転送するリクエストの組み立てに失敗しました",
			zap.String("upstream", client.Name()),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		abortWithError(c, Internal(middleware.InternalErrorMessage))
		return
	}
	s.metrics.ObserveUpstream(client.Name(), strconv.Itoa(resp.StatusCode))

	if !resp.IsSuccess() {
		s.logger.Info("転送先がエラーを返しました",
			zap.String("upstream", client.Name()),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(upstreamKind(resp.StatusCode))),
			zap.String("request_id", requestID),
		)
		passThrough(c, resp)
		return
	}

	var out Out
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		s.logger.Error("転送先のレスポンスが不正です",
			zap.String("upstream", client.Name()),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		abortWithError(c, BadGateway("invalid response from "+client.Name()+" service"))
		return
	}
	c.JSON(resp.StatusCode, out)
}

// passThrough は転送先の非2xxレスポンスをそのまま返す。
// ボディが空の場合はステータスに対応するメッセージをJSONで返す。
func passThrough(c *gin.Context, resp *httpclient.Response) {
	if len(resp.Body) == 0 {
		c.AbortWithStatusJSON(resp.StatusCode, gin.H{"error": http.StatusText(resp.StatusCode)})
		return
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
	c.Abort()
}
