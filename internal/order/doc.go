// Package order は注文サービスの内部実装を提供する。
//
// 注文の作成、取得、ユーザーごとの一覧をSQLiteで管理する。注文者はgatewayが
// 伝播するX-Userヘッダーで識別し、注文作成時にはcatalogサービスに商品の
// 存在を問い合わせる。
package order
