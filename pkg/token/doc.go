// Package token は署名付きの認証トークン（JWT）の発行と検証を提供する。
//
// authサービスがログイン時にトークンを発行し、gatewayが各リクエストで
// 検証する。検証結果はIdentityとして一度だけ生成され、以降は再パースしない。
package token
