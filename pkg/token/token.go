package token

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンの署名・形式・有効期限のいずれかが不正であることを表す。
var ErrInvalidToken = errors.New("トークンが無効です")

// Role はユーザーのロールを表す。
type Role string

const (
	// RoleUser は一般ユーザー。
	RoleUser Role = "user"
	// RoleAdmin は管理者。商品登録などの管理操作を行える。
	RoleAdmin Role = "admin"
)

// ParseRole は文字列をRoleに変換する。既知のロール以外はエラーを返す。
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("未知のロールです: %q", s)
	}
}

// MaxSubjectLength はユーザー名の最大バイト数。
const MaxSubjectLength = 64

// ValidSubject はユーザー名として使用できる文字列かどうかを返す。
// ユーザー名はX-Userヘッダーでそのまま伝播されるため、前後の空白と制御文字を許可しない。
func ValidSubject(s string) bool {
	if s == "" || len(s) > MaxSubjectLength || !utf8.ValidString(s) {
		return false
	}
	if strings.TrimSpace(s) != s {
		return false
	}
	return strings.IndexFunc(s, unicode.IsControl) < 0
}

// Identity は検証済みトークンから得られる認証済みユーザーの情報。
type Identity struct {
	// Subject はユーザー名。
	Subject string
	// Role はユーザーのロール。
	Role Role
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time
}

// claims はトークンのペイロード。
type claims struct {
	jwt.RegisteredClaims
	// Role はユーザーのロール。
	Role string `json:"role"`
}

// defaultIssuer はトークンの発行者名。
const defaultIssuer = "overclockart-auth"

// Codec はトークンの発行と検証を行う。
// 生成後は不変であり、複数のgoroutineから同時に使用できる。
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option はCodecの設定を変更する。
type Option func(*Codec)

// WithClock は現在時刻の取得関数を差し替える。テストで使用する。
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithIssuer は発行者名を変更する。
func WithIssuer(issuer string) Option {
	return func(c *Codec) { c.issuer = issuer }
}

// NewCodec は署名鍵を指定してCodecを生成する。
func NewCodec(secret string, opts ...Option) *Codec {
	c := &Codec{
		secret: []byte(secret),
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue はsubjectとroleを含むトークンを発行する。有効期限は現在時刻+ttl。
func (c *Codec) Issue(subject string, role Role, ttl time.Duration) (string, error) {
	if !ValidSubject(subject) {
		return "", fmt.Errorf("subjectが不正です: %q", subject)
	}
	if _, err := ParseRole(string(role)); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("有効期間は正の値である必要があります: %v", ttl)
	}

	now := c.now()
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.issuer,
		},
		Role: string(role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Validate はトークンを検証してIdentityを返す。
// 不正なトークンに対しては常にErrInvalidTokenをラップしたエラーを返す。
func (c *Codec) Validate(tokenString string) (Identity, error) {
	cl := &claims{}
	_, err := jwt.ParseWithClaims(tokenString, cl, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !ValidSubject(cl.Subject) {
		return Identity{}, fmt.Errorf("%w: subjectが不正です: %q", ErrInvalidToken, cl.Subject)
	}
	role, err := ParseRole(cl.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return Identity{
		Subject:   cl.Subject,
		Role:      role,
		ExpiresAt: cl.ExpiresAt.Time,
	}, nil
}
