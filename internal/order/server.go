package order

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
	"github.com/nao1215/overclockart/pkg/httpclient"
	"github.com/nao1215/overclockart/pkg/httpserver"
	"github.com/nao1215/overclockart/pkg/middleware"
	"go.uber.org/zap"
)

// statusCreated は作成直後の注文状態。
const statusCreated = "created"

// Server は注文サービスのHTTPサーバー。
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
	// catalog は商品の存在確認に使用するcatalogサービスのクライアント。
	catalog *httpclient.Client
}

// NewServer は新しい注文サーバーを生成する。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	db, err := database.OpenSQLite(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
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
		catalog:         httpclient.New("catalog", cfg.Upstreams.Catalog, httpclient.WithTimeout(cfg.Upstreams.Timeout)),
	}
	s.setupRoutes()

	return s, nil
}

// Handler は注文サービスのHTTPハンドラを返す。
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
	s.router.POST("/order", s.handleCreate())
	s.router.GET("/order/:id", s.handleGet())
	s.router.GET("/orders", s.handleList())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "order"})
	})
}

// createOrderRequest は注文作成リクエストのJSON構造。
type createOrderRequest struct {
	// ProductID は注文する商品のID。
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	// Quantity は数量。
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// orderResponse は注文のJSONレスポンス構造。
type orderResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status"`
	User      string `json:"user"`
}

// handleCreate は注文を作成するハンドラを返す。
// 商品がcatalogに存在しない場合は404、catalogに到達できない場合は502を返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.GetUser(c)
		if user == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-User header is required"})
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing order data"})
			return
		}

		if err := s.checkProduct(c.Request.Context(), req.ProductID); err != nil {
			var statusErr *httpclient.StatusError
			switch {
			case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			default:
				s.logger.Warn("商品の確認に失敗しました",
					zap.Int64("product_id", req.ProductID),
					zap.String("request_id", middleware.GetRequestID(c)),
					zap.Error(err),
				)
				c.JSON(http.StatusBadGateway, gin.H{"error": "catalog service unavailable"})
			}
			return
		}

		res, err := s.db.ExecContext(c.Request.Context(),
			"INSERT INTO orders (username, product_id, quantity, status) VALUES (?, ?, ?, ?)",
			user, req.ProductID, req.Quantity, statusCreated)
		if err != nil {
			s.internalError(c, "注文の作成に失敗しました", err)
			return
		}
		id, err := res.LastInsertId()
		if err != nil {
			s.internalError(c, "注文の作成に失敗しました", err)
			return
		}

		c.JSON(http.StatusCreated, orderResponse{
			ID:        id,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Status:    statusCreated,
			User:      user,
		})
	}
}

// handleGet は注文を1件返すハンドラを返す。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}

		var o orderResponse
		err = s.db.QueryRowContext(c.Request.Context(),
			"SELECT id, product_id, quantity, status, username FROM orders WHERE id = ?", id).
			Scan(&o.ID, &o.ProductID, &o.Quantity, &o.Status, &o.User)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if err != nil {
			s.internalError(c, "注文の取得に失敗しました", err)
			return
		}

		c.JSON(http.StatusOK, o)
	}
}

// handleList はX-Userのユーザーの注文一覧を返すハンドラを返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.GetUser(c)
		if user == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-User header is required"})
			return
		}

		rows, err := s.db.QueryContext(c.Request.Context(),
			"SELECT id, product_id, quantity, status, username FROM orders WHERE username = ? ORDER BY id", user)
		if err != nil {
			s.internalError(c, "注文一覧の取得に失敗しました", err)
			return
		}
		defer func() { _ = rows.Close() }()

		orders := make([]orderResponse, 0)
		for rows.Next() {
			var o orderResponse
			if err := rows.Scan(&o.ID, &o.ProductID, &o.Quantity, &o.Status, &o.User); err != nil {
				s.internalError(c, "注文一覧の取得に失敗しました", err)
				return
			}
			orders = append(orders, o)
		}
		if err := rows.Err(); err != nil {
			s.internalError(c, "注文一覧の取得に失敗しました", err)
			return
		}

		c.JSON(http.StatusOK, orders)
	}
}

// checkProduct はcatalogサービスに商品の存在を問い合わせる。
func (s *Server) checkProduct(ctx context.Context, productID int64) error {
	var product struct {
		ID int64 `json:"id"`
	}
	return s.catalog.GetJSON(ctx, fmt.Sprintf("/catalog/%d", productID), &product)
}

// internalError はエラーをログに出力し、500を返す。msgはログにのみ出力する。
func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg,
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": middleware.InternalErrorMessage})
}
