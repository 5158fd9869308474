// Command lambda はAPI Gateway (HTTP API) 経由で同じルーターをAWS Lambdaとして公開する。
// ストアへの接続は各呼び出しの先頭で行い、接続済みなら再利用する。
package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/hitoshi/foodshare/internal/app"
	"github.com/hitoshi/foodshare/internal/serverless"
)

func main() {
	cfg, err := app.Init(os.Stdout)
	if err != nil {
		slog.Error("initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.Build(cfg, slog.Default())
	if err != nil {
		slog.Error("failed to build application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	h := serverless.NewHandler(application.Handler, application, slog.Default())
	lambda.Start(h.Handle)
}
