// Package config は全サービス共通の設定を読み込む。
//
// 設定はデフォルト値、YAMLファイル、環境変数の順に読み込まれ、
// 後から読み込んだものが優先される。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config は設定全体を表す。
type Config struct {
	// Server はHTTPサーバーの設定。
	Server ServerConfig `koanf:"server"`
	// Auth はトークンの設定。
	Auth AuthConfig `koanf:"auth"`
	// Upstreams はgatewayの転送先サービスの設定。
	Upstreams UpstreamsConfig `koanf:"upstreams"`
	// Database はSQLiteの設定。
	Database DatabaseConfig `koanf:"database"`
	// Log はログの設定。
	Log LogConfig `koanf:"log"`
}

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はリッスンポート。
	Port string `koanf:"port"`
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string `koanf:"allowed_origins"`
	// ShutdownTimeout はグレースフルシャットダウンの待機時間。
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AuthConfig はトークンの設定。
type AuthConfig struct {
	// JWTSecret はトークン署名用の秘密鍵。変更すると発行済みトークンはすべて無効になる。
	JWTSecret string `koanf:"jwt_secret"`
	// TokenTTLMinutes はトークンの有効期間（分）。
	TokenTTLMinutes int `koanf:"token_ttl_minutes"`
}

// TokenTTL はトークンの有効期間を返す。
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

// UpstreamsConfig は転送先サービスのベースURL。
type UpstreamsConfig struct {
	// Catalog はcatalogサービスのベースURL。
	Catalog string `koanf:"catalog"`
	// Order はorderサービスのベースURL。
	Order string `koanf:"order"`
	// Auth はauthサービスのベースURL。
	Auth string `koanf:"auth"`
	// Timeout は1回の転送にかける最大時間。
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig はSQLiteの設定。
type DatabaseConfig struct {
	// Path はデータベースファイルのパス。
	Path string `koanf:"path"`
}

// LogConfig はログの設定。
type LogConfig struct {
	// Level はログレベル。
	Level string `koanf:"level"`
}

// envKeys は環境変数名と設定キーの対応表。
var envKeys = map[string]string{
	"PORT":                        "server.port",
	"FRONTEND_URL":                "server.allowed_origins",
	"SHUTDOWN_TIMEOUT":            "server.shutdown_timeout",
	"JWT_SECRET":                  "auth.jwt_secret",
	"ACCESS_TOKEN_EXPIRE_MINUTES": "auth.token_ttl_minutes",
	"CATALOG_URL":                 "upstreams.catalog",
	"ORDER_URL":                   "upstreams.order",
	"AUTH_URL":                    "upstreams.auth",
	"UPSTREAM_TIMEOUT":            "upstreams.timeout",
	"DB_PATH":                     "database.path",
	"LOG_LEVEL":                   "log.level",
}

// envValue は環境変数を設定キーと値に変換する。対応表にない環境変数は無視する。
func envValue(name, value string) (string, any) {
	key, ok := envKeys[name]
	if !ok {
		return "", nil
	}
	if key == "server.allowed_origins" {
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return key, origins
	}
	return key, value
}

// Default はサービス名ごとのデフォルト設定を返す。
func Default(service, port string) Config {
	return Config{
		Server: ServerConfig{
			Port:            port,
			AllowedOrigins:  []string{"http://localhost:3000"},
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:       "dev-secret-key",
			TokenTTLMinutes: 60,
		},
		Upstreams: UpstreamsConfig{
			Catalog: "http://localhost:5001",
			Order:   "http://localhost:5002",
			Auth:    "http://localhost:5003",
			Timeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Path: fmt.Sprintf("/data/%s.db", service),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load はデフォルト値にYAMLファイル（pathが空でなければ）と環境変数を重ねて設定を読み込む。
func Load(path string, defaults Config) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	cfg := defaults
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("設定の展開に失敗: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PathFromEnv は環境変数CONFIG_FILEから設定ファイルのパスを返す。
func PathFromEnv() string {
	return os.Getenv("CONFIG_FILE")
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.portが空です"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secretが空です"))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl_minutesは正の値である必要があります: %d", c.Auth.TokenTTLMinutes))
	}
	if c.Upstreams.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("upstreams.timeoutは正の値である必要があります: %v", c.Upstreams.Timeout))
	}
	for name, raw := range map[string]string{
		"upstreams.catalog": c.Upstreams.Catalog,
		"upstreams.order":   c.Upstreams.Order,
		"upstreams.auth":    c.Upstreams.Auth,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%sが不正なURLです: %q", name, raw))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}
	return nil
}
