package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newCORSRouter はCORSミドルウェアと/productsのハンドラを持つテスト用ルーターを生成する。
// handlerCalledにはハンドラが呼ばれたかどうかが記録される。
func newCORSRouter(origins []string, handlerCalled *bool) *gin.Engine {
	router := gin.New()
	router.Use(CORS(origins))
	handler := func(c *gin.Context) {
		*handlerCalled = true
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/products", handler)
	router.OPTIONS("/products", handler)
	return router
}

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	t.Run("許可されたオリジンからのリクエストにCORSヘッダーが設定されること", func(t *testing.T) {
		t.Parallel()

		var called bool
		router := newCORSRouter([]string{"http://localhost:3000", "https://shop.example"}, &called)

		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if !called {
			t.Error("GETリクエストでハンドラーが呼ばれるべき")
		}

		wantHeaders := map[string]string{
			"Access-Control-Allow-Origin":   "http://localhost:3000",
			"Access-Control-Allow-Methods":  "GET, POST, OPTIONS",
			"Access-Control-Allow-Headers":  "Authorization, Content-Type, X-Request-ID",
			"Access-Control-Expose-Headers": "X-Request-ID",
			"Access-Control-Max-Age":        "86400",
			"Vary":                          "Origin",
		}
		for key, want := range wantHeaders {
			if got := w.Header().Get(key); got != want {
				t.Errorf("%s = %q, want %q", key, got, want)
			}
		}
	})

	t.Run("許可リストの2番目のオリジンでも正しくCORSヘッダーが設定されること", func(t *testing.T) {
		t.Parallel()

		var called bool
		router := newCORSRouter([]string{"http://localhost:3000", "https://shop.example"}, &called)

		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		req.Header.Set("Origin", "https://shop.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://shop.example")
		}
	})

	t.Run("許可されていないオリジンにはCORSヘッダーが設定されないこと", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name    string
			origins []string
			origin  string
		}{
			{name: "未許可のオリジン", origins: []string{"http://localhost:3000"}, origin: "https://evil.example"},
			{name: "Originヘッダーなし", origins: []string{"http://localhost:3000"}, origin: ""},
			{name: "空の許可リスト", origins: []string{}, origin: "http://localhost:3000"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				var called bool
				router := newCORSRouter(tt.origins, &called)

				req := httptest.NewRequest(http.MethodGet, "/products", nil)
				if tt.origin != "" {
					req.Header.Set("Origin", tt.origin)
				}
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)

				if w.Code != http.StatusOK {
					t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
				}
				if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
					t.Errorf("Access-Control-Allow-Origin = %q, want empty string", got)
				}
			})
		}
	})

	t.Run("OPTIONSリクエストで204が返りハンドラーが呼ばれないこと", func(t *testing.T) {
		t.Parallel()

		for _, origin := range []string{"http://localhost:3000", "https://evil.example"} {
			var called bool
			router := newCORSRouter([]string{"http://localhost:3000"}, &called)

			req := httptest.NewRequest(http.MethodOptions, "/products", nil)
			req.Header.Set("Origin", origin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusNoContent {
				t.Errorf("origin=%s: ステータスコード = %d, want %d", origin, w.Code, http.StatusNoContent)
			}
			if called {
				t.Errorf("origin=%s: OPTIONSリクエストでハンドラーが呼ばれるべきではない", origin)
			}
		}
	})
}
