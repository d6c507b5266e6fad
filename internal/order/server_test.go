package order

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/overclockart/internal/config"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer はテスト用の注文サーバーを生成する。
// catalogURLには商品の存在確認に使用するcatalogサービスのURLを指定する。
func newTestServer(t *testing.T, catalogURL string) *Server {
	t.Helper()

	cfg := config.Default("order", "0")
	cfg.Database.Path = filepath.Join(t.TempDir(), "order.db")
	cfg.Upstreams.Catalog = catalogURL
	cfg.Upstreams.Timeout = 2 * time.Second

	s, err := NewServer(context.Background(), &cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewServer()でエラーが発生: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// newCatalog はproductIDの商品だけが存在するモックcatalogサービスを起動する。
// 受け取ったX-Request-IDはlastRequestIDに記録する。
func newCatalog(t *testing.T, productID string, lastRequestID *atomic.Value) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lastRequestID != nil {
			lastRequestID.Store(r.Header.Get("X-Request-ID"))
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/catalog/"+productID {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"product not found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":`+productID+`,"name":"SSD","price":129.99}`)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// doRequest はサーバーにリクエストを送信する。userが空でなければX-Userヘッダーを付与する。
func doRequest(s *Server, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// TestCreate は注文の作成を検証する。
func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("存在する商品の注文が作成されること", func(t *testing.T) {
		t.Parallel()

		var requestID atomic.Value
		s := newTestServer(t, newCatalog(t, "1", &requestID))

		req := httptest.NewRequest(http.MethodPost, "/order", strings.NewReader(`{"product_id":1,"quantity":2}`))
		req.Header.Set("X-User", "bob")
		req.Header.Set("X-Request-ID", "req-42")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
		}
		var got orderResponse
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		want := orderResponse{ID: got.ID, ProductID: 1, Quantity: 2, Status: "created", User: "bob"}
		if got.ID <= 0 || got != want {
			t.Errorf("注文 = %+v, want %+v", got, want)
		}
		if id, _ := requestID.Load().(string); id != "req-42" {
			t.Errorf("catalogに伝播したX-Request-ID = %q, want %q", id, "req-42")
		}
	})

	t.Run("存在しない商品の注文には404が返ること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, newCatalog(t, "1", nil))
		w := doRequest(s, http.MethodPost, "/order", "bob", `{"product_id":99999,"quantity":1}`)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}

		list := doRequest(s, http.MethodGet, "/orders", "bob", "")
		if got := strings.TrimSpace(list.Body.String()); got != "[]" {
			t.Errorf("注文が作成されるべきではない: %s", got)
		}
	})

	t.Run("catalogに到達できない場合は502が返ること", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		s := newTestServer(t, url)
		w := doRequest(s, http.MethodPost, "/order", "bob", `{"product_id":1,"quantity":1}`)
		if w.Code != http.StatusBadGateway {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadGateway)
		}
	})

	t.Run("不正なリクエストには400が返ること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, newCatalog(t, "1", nil))
		tests := []struct {
			name string
			user string
			body string
		}{
			{name: "X-Userが無い", user: "", body: `{"product_id":1,"quantity":1}`},
			{name: "X-Userの前後に空白", user: " bob", body: `{"product_id":1,"quantity":1}`},
			{name: "数量が無い", user: "bob", body: `{"product_id":1}`},
			{name: "商品IDが無い", user: "bob", body: `{"quantity":1}`},
			{name: "数量が負", user: "bob", body: `{"product_id":1,"quantity":-1}`},
		}
		for _, tt := range tests {
			if w := doRequest(s, http.MethodPost, "/order", tt.user, tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("%s: ステータスコード = %d, want %d", tt.name, w.Code, http.StatusBadRequest)
			}
		}
	})
}

// TestGetAndList は注文の取得と一覧を検証する。
func TestGetAndList(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, newCatalog(t, "1", nil))
	for _, user := range []string{"bob", "alice", "bob"} {
		if w := doRequest(s, http.MethodPost, "/order", user, `{"product_id":1,"quantity":1}`); w.Code != http.StatusCreated {
			t.Fatalf("注文の作成に失敗: %d", w.Code)
		}
	}

	t.Run("一覧はユーザーの注文だけを返すこと", func(t *testing.T) {
		var orders []orderResponse
		if err := json.Unmarshal(doRequest(s, http.MethodGet, "/orders", "bob", "").Body.Bytes(), &orders); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if len(orders) != 2 {
			t.Fatalf("注文数 = %d, want 2", len(orders))
		}
		for _, o := range orders {
			if o.User != "bob" {
				t.Errorf("他のユーザーの注文が含まれている: %+v", o)
			}
		}
	})

	t.Run("一覧にはX-Userが必要であること", func(t *testing.T) {
		if w := doRequest(s, http.MethodGet, "/orders", "", ""); w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("前後に空白のあるX-Userは別のユーザーとして扱われず400になること", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/orders", "bob ", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d: %s", w.Code, http.StatusBadRequest, w.Body.String())
		}
	})

	t.Run("IDで注文を取得できること", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/order/2", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var o orderResponse
		if err := json.Unmarshal(w.Body.Bytes(), &o); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if o.ID != 2 || o.User != "alice" {
			t.Errorf("注文 = %+v", o)
		}
	})

	t.Run("存在しない注文には404が返ること", func(t *testing.T) {
		for _, path := range []string{"/order/99999", "/order/abc"} {
			if w := doRequest(s, http.MethodGet, path, "", ""); w.Code != http.StatusNotFound {
				t.Errorf("%s: ステータスコード = %d, want %d", path, w.Code, http.StatusNotFound)
			}
		}
	})
}
