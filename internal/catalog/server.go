package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/overclockart/internal/config"
	"github.com/nao1215/overclockart/pkg/database"
	"github.com/nao1215/overclockart/pkg/httpserver"
	"github.com/nao1215/overclockart/pkg/middleware"
	"go.uber.org/zap"
)

// Server は商品カタログサービスのHTTPサーバー。
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
}

// NewServer は新しい商品カタログサーバーを生成する。
// SQLiteデータベースを開き、マイグレーションを適用する。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
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
	}
	s.setupRoutes()

	return s, nil
}

// Handler は商品カタログサービスのHTTPハンドラを返す。
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
	s.router.GET("/catalog", s.handleList())
	s.router.GET("/catalog/:id", s.handleGet())
	s.router.POST("/catalog", s.handleCreate())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "catalog"})
	})
}

// createProductRequest は商品登録リクエストのJSON構造。
type createProductRequest struct {
	// Name は商品名。
	Name string `json:"name" binding:"required"`
	// Price は価格。
	Price *float64 `json:"price" binding:"required,gt=0"`
}

// productResponse は商品のJSONレスポンス構造。
type productResponse struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// handleList は商品一覧を返すハンドラを返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := s.db.QueryContext(c.Request.Context(), "SELECT id, name, price FROM products ORDER BY id")
		if err != nil {
			s.internalError(c, "商品一覧の取得に失敗しました", err)
			return
		}
		defer func() { _ = rows.Close() }()

		products := make([]productResponse, 0)
		for rows.Next() {
			var p productResponse
			if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
				s.internalError(c, "商品一覧の取得に失敗しました", err)
				return
			}
			products = append(products, p)
		}
		if err := rows.Err(); err != nil {
			s.internalError(c, "商品一覧の取得に失敗しました", err)
			return
		}

		c.JSON(http.StatusOK, products)
	}
}

// handleGet は商品を1件返すハンドラを返す。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}

		p, err := s.findProduct(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		if err != nil {
			s.internalError(c, "商品の取得に失敗しました", err)
			return
		}

		c.JSON(http.StatusOK, p)
	}
}

// handleCreate は商品を登録するハンドラを返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing data"})
			return
		}

		res, err := s.db.ExecContext(c.Request.Context(),
			"INSERT INTO products (name, price) VALUES (?, ?)", req.Name, *req.Price)
		if err != nil {
			s.internalError(c, "商品の登録に失敗しました", err)
			return
		}
		id, err := res.LastInsertId()
		if err != nil {
			s.internalError(c, "商品の登録に失敗しました", err)
			return
		}

		c.JSON(http.StatusCreated, productResponse{ID: id, Name: req.Name, Price: *req.Price})
	}
}

// findProduct はIDで商品を検索する。存在しない場合はsql.ErrNoRowsを返す。
func (s *Server) findProduct(ctx context.Context, id int64) (productResponse, error) {
	var p productResponse
	err := s.db.QueryRowContext(ctx, "SELECT id, name, price FROM products WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &p.Price)
	return p, err
}

// internalError はエラーをログに出力し、500を返す。msgはログにのみ出力する。
func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg,
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": middleware.InternalErrorMessage})
}
