// API Gatewayのエントリポイント。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
//
//	gateway serve                          # サーバーを起動する
//	gateway token --sub bob --role admin   # 開発用のアクセストークンを発行する
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
