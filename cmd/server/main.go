package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"contactbook/backend/internal/app"
)

func main() {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	server, err := app.NewServer(cfg)
	if err != nil {
		slog.Error("start server", "err", err)
		os.Exit(1)
	}
	defer server.Close()

	if err := server.ListenAndServe(); err != nil {
		slog.Error("serve", "err", err)
		os.Exit(1)
	}
}
