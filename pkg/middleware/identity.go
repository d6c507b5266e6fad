package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/overclockart/pkg/httpclient"
	"github.com/nao1215/overclockart/pkg/token"
)

// ErrMissingCredential はAuthorizationヘッダーが無い、またはBearer形式でないことを表す。
var ErrMissingCredential = errors.New("認証情報がありません")

// contextKeyIdentity はGinコンテキストに認証済みユーザー情報を格納するためのキー。
const contextKeyIdentity = "identity"

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func BearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingCredential
	}

	scheme, tokenString, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingCredential
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", ErrMissingCredential
	}
	return tokenString, nil
}

// SetIdentity は認証済みユーザー情報をGinコンテキストに設定する。
// 転送先への伝播はルートごとに明示的に行うため、ここではヘッダーを設定しない。
func SetIdentity(c *gin.Context, id token.Identity) {
	c.Set(contextKeyIdentity, id)
}

// GetIdentity はGinコンテキストから認証済みユーザー情報を取得する。
// 認証を経ていないリクエストではfalseを返す。
func GetIdentity(c *gin.Context) (token.Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return token.Identity{}, false
	}
	id, ok := v.(token.Identity)
	return id, ok
}

// GetUser はX-Userヘッダーからgatewayが伝播したユーザー名を取得する。
// 内部サービスで使用する。値は加工せず、ユーザー名として不正な値は空文字列として扱う。
func GetUser(c *gin.Context) string {
	user := c.GetHeader(httpclient.HeaderUser)
	if !token.ValidSubject(user) {
		return ""
	}
	return user
}
