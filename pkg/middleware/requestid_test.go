package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/overclockart/pkg/httpclient"
)

// TestRequestID はRequestIDミドルウェアを検証する。
func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("指定が無い場合はUUIDが生成されコンテキストとヘッダーに設定されること", func(t *testing.T) {
		t.Parallel()

		var fromGin, fromCtx string
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			fromGin = GetRequestID(c)
			fromCtx = httpclient.RequestIDFrom(c.Request.Context())
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		if _, err := uuid.Parse(fromGin); err != nil {
			t.Errorf("GetRequestID() = %q はUUIDであるべき: %v", fromGin, err)
		}
		if fromCtx != fromGin {
			t.Errorf("RequestIDFrom() = %q, want %q", fromCtx, fromGin)
		}
		if got := w.Header().Get(httpclient.HeaderRequestID); got != fromGin {
			t.Errorf("X-Request-ID = %q, want %q", got, fromGin)
		}
	})

	t.Run("クライアントが指定したIDが引き継がれること", func(t *testing.T) {
		t.Parallel()

		var got string
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			got = GetRequestID(c)
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(httpclient.HeaderRequestID, "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got != "req-123" {
			t.Errorf("GetRequestID() = %q, want %q", got, "req-123")
		}
		if h := w.Header().Get(httpclient.HeaderRequestID); h != "req-123" {
			t.Errorf("X-Request-ID = %q, want %q", h, "req-123")
		}
	})

	t.Run("不正なIDは破棄され新しいUUIDが生成されること", func(t *testing.T) {
		t.Parallel()

		for _, tt := range []struct{ name, id string }{
			{name: "長すぎる", id: strings.Repeat("a", MaxRequestIDLength+1)},
			{name: "空白を含む", id: "req 123"},
			{name: "記号を含む", id: "req<script>"},
			{name: "非ASCII", id: "リクエスト"},
		} {
			name, id := tt.name, tt.id
			var got string
			router := gin.New()
			router.Use(RequestID())
			router.GET("/test", func(c *gin.Context) {
				got = GetRequestID(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(httpclient.HeaderRequestID, id)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if _, err := uuid.Parse(got); err != nil {
				t.Errorf("%s: GetRequestID() = %q はUUIDであるべき", name, got)
			}
			if h := w.Header().Get(httpclient.HeaderRequestID); h != got {
				t.Errorf("%s: X-Request-ID = %q, want %q", name, h, got)
			}
		}
	})

	t.Run("最大長ちょうどのIDは引き継がれること", func(t *testing.T) {
		t.Parallel()

		id := strings.Repeat("a", MaxRequestIDLength)
		var got string
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			got = GetRequestID(c)
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(httpclient.HeaderRequestID, id)
		router.ServeHTTP(httptest.NewRecorder(), req)

		if got != id {
			t.Errorf("GetRequestID() = %q, want %q", got, id)
		}
	})

	t.Run("ミドルウェアを経ていない場合は空文字が返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if got := GetRequestID(c); got != "" {
			t.Errorf("GetRequestID() = %q, want empty string", got)
		}
	})
}
