// Package auth は認証サービスの内部実装を提供する。
//
// ユーザー登録、ログインによるアクセストークンの発行、トークンの検証を担当する。
// パスワードはbcryptでハッシュ化してSQLiteに保存する。
package auth
