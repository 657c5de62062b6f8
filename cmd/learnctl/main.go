package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/p-n-ai/pai-learn/internal/app"
	"github.com/p-n-ai/pai-learn/internal/cli"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
)

func main() {
	level := os.Getenv("LEARN_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	slog.SetDefault(app.NewLogger(config.LogConfig{Level: level, Format: "text"}, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
