package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Kind はクライアントに返すエラーの分類。
type Kind string

const (
	// KindBadRequest は入力が不正であることを表す。
	KindBadRequest Kind = "bad_request"
	// KindUnauthorized は認証情報が無い、または無効であることを表す。
	KindUnauthorized Kind = "unauthorized"
	// KindForbidden はロールが不足していることを表す。
	KindForbidden Kind = "forbidden"
	// KindNotFound は転送先がリソースの不在を返したことを表す。
	KindNotFound Kind = "not_found"
	// KindConflict は転送先が重複を返したことを表す。
	KindConflict Kind = "conflict"
	// KindBadGateway は転送先に到達できない、または応答が不正であることを表す。
	KindBadGateway Kind = "bad_gateway"
	// KindUpstream は転送先がその他の非2xxを返したことを表す。
	KindUpstream Kind = "upstream_error"
	// KindInternal はgateway自身の不具合を表す。
	KindInternal Kind = "internal"
)

// Error はgatewayがその場で返すエラーレスポンス。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// Status はHTTPステータスコード。
	Status int
	// Message はクライアントに返すメッセージ。
	Message string
	// Fields は不正な入力フィールドのJSON名。KindBadRequestの場合のみ設定する。
	Fields []string
}

// Error はエラーメッセージを返す。
func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// BadRequest は入力が不正であることを表すエラーを生成する。
func BadRequest(message string, fields ...string) *Error {
	return &Error{Kind: KindBadRequest, Status: http.StatusBadRequest, Message: message, Fields: fields}
}

// Unauthorized は認証に失敗したことを表すエラーを生成する。
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: message}
}

// Forbidden はロールが不足していることを表すエラーを生成する。
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Status: http.StatusForbidden, Message: message}
}

// BadGateway は転送先との通信に失敗したことを表すエラーを生成する。
func BadGateway(message string) *Error {
	return &Error{Kind: KindBadGateway, Status: http.StatusBadGateway, Message: message}
}

// Internal はgateway内部でリクエストを処理できなかったことを表すエラーを生成する。
func Internal(message string) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: message}
}

// upstreamKind は転送先が返した非2xxステータスを分類する。
func upstreamKind(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	default:
		return KindUpstream
	}
}

// abortWithError はエラーをJSONで返し、後続のハンドラを中断する。
func abortWithError(c *gin.Context, e *Error) {
	body := gin.H{"error": e.Message}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	_ = c.Error(e)
	c.AbortWithStatusJSON(e.Status, body)
}
