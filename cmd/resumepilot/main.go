package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/moxuanyu/resumepilot/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env 可选，缺失时静默使用系统环境变量。
	_ = godotenv.Load()

	cli.Execute(ctx)
}
