// Package database はサービスが使用するSQLiteデータベースへの接続を提供する。
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// SQLiteドライバ（cgo不要）
	_ "modernc.org/sqlite"
)

// OpenSQLite はpathのSQLiteデータベースを開き、接続を確認する。
// WALモードとビジータイムアウトを設定し、書き込みの競合でエラーにならないよう接続を1つに制限する。
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("データベースディレクトリの作成に失敗: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースに接続できません: path=%s: %w", path, err)
	}
	return db, nil
}
