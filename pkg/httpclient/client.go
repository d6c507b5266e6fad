package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/http/httpguts"
)

// ErrUnreachable は転送先サービスにHTTPレベルで到達できなかったことを表す。
// 接続拒否、タイムアウト、名前解決失敗などが該当し、非2xxレスポンスは含まない。
var ErrUnreachable = errors.New("転送先サービスに到達できません")

// ErrInvalidRequest は送信前のリクエストが不正であることを表す。
// 転送先の状態とは無関係であり、ErrUnreachableとは区別する。
var ErrInvalidRequest = errors.New("転送するリクエストが不正です")

// ErrResponseTooLarge はレスポンスボディが上限を超えたことを表す。
var ErrResponseTooLarge = errors.New("レスポンスボディが大きすぎます")

// HeaderUser はサービス間で認証済みユーザー名を伝播するためのHTTPヘッダーキー。
const HeaderUser = "X-User"

// HeaderRequestID はサービス間でリクエストIDを伝播するためのHTTPヘッダーキー。
const HeaderRequestID = "X-Request-ID"

// defaultTimeout は1回の呼び出しのデフォルトのタイムアウト。
const defaultTimeout = 30 * time.Second

// DefaultMaxResponseBytes は読み込むレスポンスボディの上限（10MiB）。
// 商品一覧や注文一覧のJSONはこれより十分に小さい。
const DefaultMaxResponseBytes int64 = 10 << 20

// Client はサービス間通信用のHTTPクライアント。
// コネクションはリクエスト間で再利用され、複数のgoroutineから同時に使用できる。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// name は接続先サービスの名前。ログとメトリクスに使用する。
	name string
	// baseURL は接続先サービスのベースURL。
	baseURL string
	// maxResponseBytes は読み込むレスポンスボディの上限。
	maxResponseBytes int64
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithTimeout は1回の呼び出しのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxResponseBytes はレスポンスボディの上限を設定する。
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) { c.maxResponseBytes = n }
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://catalog:5001"）を指定する。
func New(name, baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		name:             name,
		baseURL:          baseURL,
		maxResponseBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name は接続先サービスの名前を返す。
func (c *Client) Name() string {
	return c.name
}

// Request は転送するリクエストの内容。リクエストごとに生成され、呼び出し後は破棄される。
type Request struct {
	// Method はHTTPメソッド。
	Method string
	// Path はベースURLに続くパス。
	Path string
	// Body はリクエストボディ。nilの場合はボディなしで送信する。
	Body []byte
	// Header は転送するヘッダー。ここに含めたものだけが転送される。
	Header http.Header
}

// Response は転送先サービスのレスポンス。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// ContentType はレスポンスのContent-Type。
	ContentType string
	// Body はレスポンスボディ。
	Body []byte
}

// IsSuccess はステータスコードが2xxかどうかを返す。
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Forward はリクエストを転送先サービスに送信し、ステータスとボディを返す。
// 非2xxレスポンスもエラーにはせずResponseとして返す。
// 転送先に到達できない場合はErrUnreachable、送信前にリクエストが不正と分かった場合は
// ErrInvalidRequest、ボディが上限を超えた場合はErrResponseTooLargeをラップしたエラーを返す。
func (c *Client) Forward(ctx context.Context, r Request) (*Response, error) {
	var bodyReader io.Reader
	if r.Body != nil {
		bodyReader = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, c.baseURL+r.Path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for key, values := range r.Header {
		if !httpguts.ValidHeaderFieldName(key) {
			return nil, fmt.Errorf("%w: 不正なヘッダー名: %q", ErrInvalidRequest, key)
		}
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return nil, fmt.Errorf("%w: ヘッダー%sの値が不正です", ErrInvalidRequest, key)
			}
			req.Header.Add(key, v)
		}
	}
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	propagate(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: service=%s: %v", ErrUnreachable, c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: service=%s: レスポンスの読み取りに失敗: %v", ErrUnreachable, c.name, err)
	}
	if int64(len(body)) > c.maxResponseBytes {
		return nil, fmt.Errorf("%w: service=%s: limit=%d", ErrResponseTooLarge, c.name, c.maxResponseBytes)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// StatusError は転送先サービスが非2xxを返したことを表す。
type StatusError struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Body はレスポンスボディ。
	Body []byte
}

// Error はエラーメッセージを返す。
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.StatusCode, string(e.Body))
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
// 非2xxレスポンスは*StatusErrorとして返す。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var payload []byte
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		payload = jsonBody
	}

	resp, err := c.Forward(ctx, Request{Method: method, Path: path, Body: payload})
	if err != nil {
		return err
	}

	if !resp.IsSuccess() {
		return &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// propagate はコンテキストに設定されたリクエストIDをヘッダーに設定する。
// Requestで明示的に指定されたヘッダーは上書きしない。
func propagate(ctx context.Context, req *http.Request) {
	id, ok := ctx.Value(contextKeyRequestID).(string)
	if ok && id != "" && httpguts.ValidHeaderFieldValue(id) && req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, id)
	}
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFrom はコンテキストからリクエストIDを取得する。
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
