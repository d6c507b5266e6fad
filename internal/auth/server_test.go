package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/overclockart/internal/config"
	"github.com/nao1215/overclockart/pkg/token"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testJWTSecret はテスト用のトークン署名秘密鍵。
const testJWTSecret = "test-secret-key"

// newTestServer はテスト用の認証サーバーを生成する。
func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default("auth", "0")
	cfg.Database.Path = filepath.Join(t.TempDir(), "auth.db")
	cfg.Auth.JWTSecret = testJWTSecret

	s, err := NewServer(context.Background(), &cfg, zaptest.NewLogger(t), WithBcryptCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("NewServer()でエラーが発生: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// doRequest はサーバーにリクエストを送信する。
func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// login はログインしてアクセストークンを返す。
func login(t *testing.T, s *Server, username, password string) string {
	t.Helper()

	w := doRequest(s, http.MethodPost, "/login", `{"username":"`+username+`","password":"`+password+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("ログインに失敗: %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	if body.TokenType != "bearer" {
		t.Errorf("token_type = %q, want %q", body.TokenType, "bearer")
	}
	return body.AccessToken
}

// TestRegister はユーザー登録を検証する。
func TestRegister(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	t.Run("新しいユーザーが登録できること", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/register", `{"username":"bob","password":"pw"}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
		}
	})

	t.Run("同じユーザー名は409になること", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/register", `{"username":"bob","password":"other"}`)
		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusConflict)
		}
	})

	t.Run("不正なリクエストは400になること", func(t *testing.T) {
		for _, body := range []string{
			`{"username":"carol"}`,
			`{"password":"pw"}`,
			`{"username":"carol","password":"pw","role":"root"}`,
			`{"username":" carol","password":"pw"}`,
			`{"username":"carol ","password":"pw"}`,
			`{"username":"eve\nx","password":"pw"}`,
			`{"username":"carol","password":"` + strings.Repeat("p", 80) + `"}`,
			`not json`,
		} {
			if w := doRequest(s, http.MethodPost, "/register", body); w.Code != http.StatusBadRequest {
				t.Errorf("body=%s: ステータスコード = %d, want %d", body, w.Code, http.StatusBadRequest)
			}
		}
	})

	t.Run("72バイトを超えるマルチバイトのパスワードは400になること", func(t *testing.T) {
		// 30文字（90バイト）なので文字数の検証は通り、bcryptが拒否する。
		w := doRequest(s, http.MethodPost, "/register", `{"username":"dave","password":"`+strings.Repeat("あ", 30)+`"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコード = %d, want %d: %s", w.Code, http.StatusBadRequest, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), "password") {
			t.Errorf("body = %s, passwordについてのエラーであるべき", w.Body.String())
		}
	})

	t.Run("不正なリクエストではユーザーが登録されないこと", func(t *testing.T) {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM users WHERE username <> 'bob'").Scan(&n); err != nil {
			t.Fatalf("ユーザー数の取得に失敗: %v", err)
		}
		if n != 0 {
			t.Errorf("bob以外のユーザー数 = %d, want 0", n)
		}
	})

	t.Run("パスワードは平文で保存されないこと", func(t *testing.T) {
		var hash string
		if err := s.db.QueryRow("SELECT password_hash FROM users WHERE username = 'bob'").Scan(&hash); err != nil {
			t.Fatalf("ユーザーの取得に失敗: %v", err)
		}
		if hash == "pw" {
			t.Error("パスワードが平文で保存されている")
		}
	})
}

// TestLogin はログインとトークンの発行を検証する。
func TestLogin(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	doRequest(s, http.MethodPost, "/register", `{"username":"bob","password":"pw"}`)
	doRequest(s, http.MethodPost, "/register", `{"username":"alice","password":"secret","role":"admin"}`)

	t.Run("発行されたトークンにユーザー名とロールが含まれること", func(t *testing.T) {
		codec := token.NewCodec(testJWTSecret)
		for _, tt := range []struct {
			username, password string
			role               token.Role
		}{
			{username: "bob", password: "pw", role: token.RoleUser},
			{username: "alice", password: "secret", role: token.RoleAdmin},
		} {
			id, err := codec.Validate(login(t, s, tt.username, tt.password))
			if err != nil {
				t.Fatalf("%s: トークンの検証に失敗: %v", tt.username, err)
			}
			if id.Subject != tt.username || id.Role != tt.role {
				t.Errorf("Identity = %+v, want subject=%s role=%s", id, tt.username, tt.role)
			}
		}
	})

	t.Run("パスワードが違う場合や未登録の場合は401になること", func(t *testing.T) {
		for _, body := range []string{
			`{"username":"bob","password":"wrong"}`,
			`{"username":"nobody","password":"pw"}`,
		} {
			if w := doRequest(s, http.MethodPost, "/login", body); w.Code != http.StatusUnauthorized {
				t.Errorf("body=%s: ステータスコード = %d, want %d", body, w.Code, http.StatusUnauthorized)
			}
		}
	})
}

// TestVerify はトークンの検証エンドポイントを検証する。
func TestVerify(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	doRequest(s, http.MethodPost, "/register", `{"username":"bob","password":"pw"}`)
	tok := login(t, s, "bob", "pw")

	t.Run("有効なトークンのクレームが返ること", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/verify?token="+url.QueryEscape(tok), "")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var claims map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &claims); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if claims["sub"] != "bob" || claims["role"] != "user" {
			t.Errorf("claims = %v", claims)
		}
		if exp, ok := claims["exp"].(float64); !ok || exp <= 0 {
			t.Errorf("exp = %v", claims["exp"])
		}
	})

	t.Run("無効なトークンは401になること", func(t *testing.T) {
		for _, q := range []string{"", "?token=garbage", "?token=" + url.QueryEscape(tok+"x")} {
			if w := doRequest(s, http.MethodGet, "/verify"+q, ""); w.Code != http.StatusUnauthorized {
				t.Errorf("query=%q: ステータスコード = %d, want %d", q, w.Code, http.StatusUnauthorized)
			}
		}
	})
}
