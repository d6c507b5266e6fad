// Package e2e はgatewayと各サービスをプロセス内で起動し、利用者の操作を通しで検証する。
package e2e
