package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteUnmatched はどのルートにも一致しなかったリクエストのルートラベル。
const RouteUnmatched = "unmatched"

// Recorder はリクエストの完了を記録する。
// 複数のgoroutineから同時に呼び出されるため、実装はスレッドセーフである必要がある。
type Recorder interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Observe はリクエストの開始と終了をログに出力し、終了時にrecorderへ記録するGinミドルウェアを返す。
// 後続のミドルウェアが中断した場合やパニックした場合も、終了ログと記録はちょうど1回行われる。
// ルートはパスではなくルートテンプレート（例: /orders/:id）で記録する。recorderはnilでもよい。
func Observe(logger *zap.Logger, recorder Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		requestID := GetRequestID(c)

		logger.Info("リクエスト開始",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
		)

		defer func() {
			route := c.FullPath()
			if route == "" {
				route = RouteUnmatched
			}
			status := c.Writer.Status()
			elapsed := time.Since(start)

			fields := []zap.Field{
				zap.String("method", method),
				zap.String("path", path),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("latency", elapsed),
				zap.String("request_id", requestID),
			}
			if id, ok := GetIdentity(c); ok {
				fields = append(fields, zap.String("user", id.Subject))
			}
			if len(c.Errors) > 0 {
				fields = append(fields, zap.String("errors", c.Errors.String()))
			}
			logger.Info("リクエスト完了", fields...)

			if recorder != nil {
				recorder.ObserveRequest(method, route, status, elapsed)
			}
		}()

		c.Next()
	}
}
