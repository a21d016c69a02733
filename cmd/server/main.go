package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/agencysync/internal/buildinfo"
	"github.com/dmitrijs2005/agencysync/internal/logging"
	"github.com/dmitrijs2005/agencysync/internal/server"
	"github.com/dmitrijs2005/agencysync/internal/server/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "init failed", "err", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "server stopped", "err", err)
		os.Exit(1)
	}
}
