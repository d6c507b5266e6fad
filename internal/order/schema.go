package order

import (
	"context"
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS orders (
    -- 注文ID
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    -- 注文したユーザー名
    username TEXT NOT NULL,
    -- 商品ID
    product_id INTEGER NOT NULL,
    -- 数量
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    -- 注文状態
    status TEXT NOT NULL DEFAULT 'created',
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_orders_username
    ON orders(username);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
