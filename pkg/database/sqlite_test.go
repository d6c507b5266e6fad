package database

import (
	"context"
	"path/filepath"
	"testing"
)

// TestOpenSQLite はSQLiteデータベースの接続を検証する。
func TestOpenSQLite(t *testing.T) {
	t.Parallel()

	t.Run("存在しないディレクトリも作成して開けること", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "catalog.db")
		db, err := OpenSQLite(context.Background(), path)
		if err != nil {
			t.Fatalf("OpenSQLite()でエラーが発生: %v", err)
		}
		defer db.Close()

		var mode string
		if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("journal_modeの取得に失敗: %v", err)
		}
		if mode != "wal" {
			t.Errorf("journal_mode = %q, want %q", mode, "wal")
		}
	})
}
