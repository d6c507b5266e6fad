package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/overclockart/pkg/httpclient"
)

var (
	// corsMethods はブラウザに許可するHTTPメソッド。gatewayはGETとPOSTのみを公開する。
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	// corsHeaders はブラウザが送信してよいリクエストヘッダー。
	corsHeaders = strings.Join([]string{"Authorization", "Content-Type", httpclient.HeaderRequestID}, ", ")
)

// corsMaxAge はプリフライト結果をブラウザがキャッシュしてよい秒数。
const corsMaxAge = "86400"

// CORS は許可リストにあるオリジンからのクロスオリジンリクエストを受け付けるGinミドルウェアを返す。
// 許可リストにないオリジンにはCORSヘッダーを付与しない。
// プリフライト（OPTIONS）はオリジンによらず認証を経ずに204で応答し、後続のハンドラは実行しない。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); allowed[origin] {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Expose-Headers", httpclient.HeaderRequestID)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			h.Add("Vary", "Origin")
		}

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}
