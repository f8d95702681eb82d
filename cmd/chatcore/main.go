package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"chatcore/internal/app"
	"chatcore/pkg/config"
	"chatcore/pkg/logger"
	"chatcore/pkg/shutdown"
)

// version is injected at build time.
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	addr, journalPath, cfgPath, setFlags := config.ParseCommandFlags()
	cfgPath = config.ResolveConfigPath(cfgPath, setFlags["config"])

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if setFlags["config"] {
			fmt.Fprintf(os.Stderr, "chatcore: %v\n", err)
			os.Exit(1)
		}
		// no config file present; env and flags may carry enough
		cfg = &config.Config{}
	}
	config.LoadEnvOverrides(cfg)
	if setFlags["addr"] {
		if h, p, err := net.SplitHostPort(addr); err == nil {
			cfg.Gateway.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Gateway.Port = pi
			}
		} else {
			cfg.Gateway.Address = addr
		}
	}
	if setFlags["journal"] {
		cfg.Journal.Enabled = true
		cfg.Journal.Path = journalPath
	}

	logger.Init(cfg.Logging.Level)

	a, err := app.New(cfg, version)
	if err != nil {
		logger.Error("startup_failed", "error", err)
		fmt.Fprintf(os.Stderr, "chatcore: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		logger.Error("engine_exited", "error", err)
		os.Exit(1)
	}
	logger.Info("engine_stopped")
}
