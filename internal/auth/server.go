package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/overclockart/internal/config"
	"github.com/nao1215/overclockart/pkg/database"
	"github.com/nao1215/overclockart/pkg/httpserver"
	"github.com/nao1215/overclockart/pkg/middleware"
	"github.com/nao1215/overclockart/pkg/token"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Server は認証サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// shutdownTimeout はグレースフルシャットダウンの待機時間。
	shutdownTimeout time.Duration
	// logger は構造化ロガー。
	logger *zap.Logger
	// db はSQLiteデータベース接続。
	db *sql.DB
	// codec はアクセストークンの発行と検証に使用する。
	codec *token.Codec
	// tokenTTL はアクセストークンの有効期間。
	tokenTTL time.Duration
	// bcryptCost はパスワードハッシュのコスト。
	bcryptCost int
}

// Option はServerの設定を変更する。
type Option func(*Server)

// WithBcryptCost はパスワードハッシュのコストを変更する。テストで使用する。
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.bcryptCost = cost }
}

// NewServer は新しい認証サーバーを生成する。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	db, err := database.OpenSQLite(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Observe(logger, nil), middleware.Recovery(logger))

	s := &Server{
		router:          router,
		port:            cfg.Server.Port,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
		logger:          logger,
		db:              db,
		codec:           token.NewCodec(cfg.Auth.JWTSecret),
		tokenTTL:        cfg.Auth.TokenTTL(),
		bcryptCost:      bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()

	return s, nil
}

// Handler は認証サービスのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとデータベースを閉じて戻る。
func (s *Server) Run(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	return httpserver.Serve(ctx, s.logger, ":"+s.port, s.router, s.shutdownTimeout)
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.POST("/register", s.handleRegister())
	s.router.POST("/login", s.handleLogin())
	s.router.GET("/verify", s.handleVerify())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "auth"})
	})
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	// Username はユーザー名。X-Userヘッダーで伝播されるため前後の空白と制御文字を許可しない。
	Username string `json:"username" binding:"required,username"`
	// Password はパスワード。bcryptが扱えるのは72バイトまで。
	Password string `json:"password" binding:"required,max=72"`
	// Role はロール。省略時はuser。
	Role string `json:"role" binding:"omitempty,oneof=user admin"`
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Username はユーザー名。
	Username string `json:"username" binding:"required"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// handleRegister はユーザーを登録するハンドラを返す。
// ユーザー名が既に使われている場合は409を返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
			return
		}
		role := token.RoleUser
		if req.Role != "" {
			role = token.Role(req.Role)
		}

		ctx := c.Request.Context()
		exists, err := s.userExists(ctx, req.Username)
		if err != nil {
			s.internalError(c, "ユーザーの確認に失敗しました", err)
			return
		}
		if exists {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			// maxタグは文字数で数えるため、マルチバイト文字ではここに到達する。
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: password must be at most 72 bytes"})
			return
		}
		if err != nil {
			s.internalError(c, "パスワードのハッシュ化に失敗しました", err)
			return
		}

		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO users (username, role, password_hash) VALUES (?, ?, ?)",
			req.Username, string(role), string(hash)); err != nil {
			// 確認から登録までの間に同名のユーザーが登録された場合。
			if exists, _ := s.userExists(ctx, req.Username); exists {
				c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
				return
			}
			s.internalError(c, "ユーザーの登録に失敗しました", err)
			return
		}

		s.logger.Info("ユーザーを登録しました",
			zap.String("username", req.Username),
			zap.String("role", string(role)),
		)
		c.JSON(http.StatusCreated, gin.H{"message": "registered successfully"})
	}
}

// handleLogin はユーザー名とパスワードを確認してアクセストークンを発行するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
			return
		}

		var hash, role string
		err := s.db.QueryRowContext(c.Request.Context(),
			"SELECT password_hash, role FROM users WHERE username = ?", req.Username).
			Scan(&hash, &role)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			s.internalError(c, "ユーザーの取得に失敗しました", err)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		accessToken, err := s.codec.Issue(req.Username, token.Role(role), s.tokenTTL)
		if err != nil {
			s.internalError(c, "トークンの発行に失敗しました", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token": accessToken,
			"token_type":   "bearer",
		})
	}
}

// handleVerify はクエリパラメータのトークンを検証してクレームを返すハンドラを返す。
func (s *Server) handleVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.codec.Validate(c.Query("token"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"sub":  id.Subject,
			"role": id.Role,
			"exp":  id.ExpiresAt.Unix(),
		})
	}
}

// userExists はユーザー名が登録済みかどうかを返す。
func (s *Server) userExists(ctx context.Context, username string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// internalError はエラーをログに出力し、500を返す。msgはログにのみ出力する。
func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg,
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": middleware.InternalErrorMessage})
}
