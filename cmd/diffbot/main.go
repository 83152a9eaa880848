// diffbot - a chat bot that records the difference of two numbers.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ashureev/diffbot/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(cli.GetExitCode(err))
	}
}
