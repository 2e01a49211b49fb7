// Command panel drives the control panel's operations from a terminal. Each
// subcommand mounts one surface, triggers it and renders the settled result.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/andrearcaina/uofthacks-2026/internal/config"
	"github.com/andrearcaina/uofthacks-2026/internal/logging"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := newRootCmd(cfg, logger).Execute(); err != nil {
		logger.Debug("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
