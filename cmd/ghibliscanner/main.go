package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"

	"GhibliScanner/internal/app"
	"GhibliScanner/internal/cli"
	"GhibliScanner/internal/config"
	"GhibliScanner/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	root := cli.NewRootCommand(func(ctx context.Context) (cli.Service, error) {
		application, err := app.New(ctx, cfg, logger, app.Options{})
		if err != nil {
			return nil, err
		}
		return application, nil
	})

	if err := fang.Execute(ctx, root); err != nil {
		logger.Debug("command failed", "error", err)
		os.Exit(1)
	}
}
