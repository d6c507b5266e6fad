// Package gateway はOverclocKartのAPI Gatewayを提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として
// 機能する。リクエストごとに次の順で処理する。
//
//  1. RequestID、Observe（アクセスログとメトリクス）、Recovery、CORS
//  2. パイプライン: 認証（Bearerトークンの検証）、ロールの確認
//  3. ルートごとのハンドラ: 入力検証、転送、レスポンスの変換
//
// パイプラインの各ステージはnilを返すと次へ進み、*Errorを返すとその場で
// レスポンスを返して終了する。転送先の非2xxレスポンスはステータスとボディを
// そのまま返し、転送先に到達できない場合は502を返す。
package gateway
