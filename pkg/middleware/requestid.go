package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/overclockart/pkg/httpclient"
)

// contextKeyRequestID はGinコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID = "request_id"

// MaxRequestIDLength はクライアントが指定できるリクエストIDの最大長。
const MaxRequestIDLength = 64

// RequestID はリクエストごとに一意なIDを付与するGinミドルウェアを返す。
// クライアントが指定したX-Request-IDはvalidRequestIDを満たす場合のみ使い、それ以外はUUIDを生成する。
// IDはレスポンスヘッダーとリクエストのコンテキストに設定され、転送先サービスにも伝播される。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(httpclient.HeaderRequestID)
		if !validRequestID(id) {
			id = uuid.New().String()
		}

		c.Set(contextKeyRequestID, id)
		c.Header(httpclient.HeaderRequestID, id)
		c.Request = c.Request.WithContext(httpclient.WithRequestID(c.Request.Context(), id))

		c.Next()
	}
}

// validRequestID はクライアントが指定したリクエストIDを受け入れてよいかを返す。
// 英数字と「-」「_」「.」「:」のみからなる1〜MaxRequestIDLength文字を受け入れる。
func validRequestID(id string) bool {
	if id == "" || len(id) > MaxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch b := id[i]; {
		case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		case b == '-', b == '_', b == '.', b == ':':
		default:
			return false
		}
	}
	return true
}

// GetRequestID はGinコンテキストからリクエストIDを取得する。
func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get(contextKeyRequestID); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
