// Command neurabot はオンボーディングとダッシュボードのAPIサーバー、
// 期限切れセッションを削除するワーカー、マイグレーションを起動する。
//
// 使い方:
//
//	neurabot [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/neurabot/neurabot/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
