package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/agencysync/internal/buildinfo"
	"github.com/dmitrijs2005/agencysync/internal/client/cli"
	"github.com/dmitrijs2005/agencysync/internal/client/config"
	"github.com/dmitrijs2005/agencysync/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	// Logs go to stderr so they do not interleave with the REPL on stdout.
	logger := logging.NewTextLogger(os.Stderr, slog.LevelInfo)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
