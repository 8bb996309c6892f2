package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"contactbook/backend/internal/app"
)

func main() {
	_ = godotenv.Load()

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

	if err := server.InitFirstAdmin(context.Background(), cfg.AdminInitName, cfg.AdminInitEmail, cfg.AdminInitPass); err != nil {
		slog.Error("admin init", "err", err)
		os.Exit(1)
	}

	fmt.Println("admin init completed")
}
