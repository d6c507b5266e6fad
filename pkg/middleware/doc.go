// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// リクエストID付与、アクセスログとメトリクス記録、パニックリカバリ、
// CORS設定、認証済みユーザー情報の受け渡しなど、全サービスで共通して
// 使用するミドルウェアを含む。
package middleware
