// Package httpserver はHTTPサーバーの起動とグレースフルシャットダウンを提供する。
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// readHeaderTimeout はリクエストヘッダーの読み取りにかける最大時間。
const readHeaderTimeout = 10 * time.Second

// Serve はaddrでhandlerを公開し、ctxがキャンセルされるまでリクエストを処理する。
// キャンセル後は処理中のリクエストの完了をshutdownTimeoutまで待ってから戻る。
func Serve(ctx context.Context, logger *zap.Logger, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("リッスンに失敗: addr=%s: %w", addr, err)
	}
	return ServeListener(ctx, logger, ln, handler, shutdownTimeout)
}

// ServeListener は作成済みのリスナーでhandlerを公開する。動作はServeと同じ。
func ServeListener(ctx context.Context, logger *zap.Logger, ln net.Listener, handler http.Handler, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTPサーバーを起動します", zap.String("addr", ln.Addr().String()))
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーが停止しました: %w", err)
	case <-ctx.Done():
	}

	logger.Info("HTTPサーバーを停止します", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("グレースフルシャットダウンに失敗: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTPサーバーが停止しました: %w", err)
	}
	logger.Info("HTTPサーバーを停止しました")
	return nil
}
