// Package catalog は商品カタログサービスの内部実装を提供する。
//
// 商品の一覧、取得、登録をSQLiteで管理する。gatewayからのみ呼び出され、
// 認証は行わない。スキーマは埋め込みのマイグレーションで作成する。
package catalog
