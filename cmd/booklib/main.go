// booklib はGoogleログインとトークン認証で保護された蔵書APIサーバー。
//
// 使い方:
//
//	booklib [serve|migrate|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/booklib/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
