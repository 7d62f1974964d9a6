// Package main is the entry point for sonarfleetd, the sonar device
// fleet manager daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sonarhub/sonarfleetd/internal/buildinfo"
	"github.com/sonarhub/sonarfleetd/internal/config"
	"github.com/sonarhub/sonarfleetd/internal/facade"
	"github.com/sonarhub/sonarfleetd/internal/httpserver"
	"github.com/sonarhub/sonarfleetd/internal/manager"
	"github.com/sonarhub/sonarfleetd/internal/wsregistry"
)

// shutdownGrace bounds how long in-flight requests and the manager's
// own device teardown get before the process exits regardless.
const shutdownGrace = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "serve":
			runServe(logger, *configPath)
		case "version":
			fmt.Println(buildinfo.String())
			for k, v := range buildinfo.BuildInfo() {
				fmt.Printf("  %-12s %s\n", k+":", v)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
		return
	}

	runServe(logger, *configPath)
}

func runServe(logger *slog.Logger, configPath string) {
	logger.Info("starting sonarfleetd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "branch", buildinfo.GitBranch, "built", buildinfo.BuildTime)

	cfgPath, err := config.FindConfig(configPath)
	var cfg *config.Config
	if err != nil {
		logger.Warn("no config file found, using defaults", "error", err)
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			logger.Error("failed to load config", "path", cfgPath, "error", err)
			os.Exit(1)
		}
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"listen_port", cfg.Listen.Port,
		"discovery_network", cfg.Discovery.Network,
		"discovery_serial", cfg.Discovery.Serial,
		"bridge_configured", cfg.Bridge.Configured(),
	)

	registry := wsregistry.New(logger)

	bridgeBaseURL := ""
	if cfg.Bridge.Configured() {
		bridgeBaseURL = cfg.Bridge.BaseURL
	}
	mgr := manager.New(manager.Options{
		NetworkDiscovery: cfg.Discovery.Network,
		SerialDiscovery:  cfg.Discovery.Serial,
		SkipSerialPorts:  cfg.Discovery.SkipSerialPorts,
		BridgeBaseURL:    bridgeBaseURL,
	}, registry, logger)

	f := facade.New(mgr, registry, logger)
	srv := httpserver.New(cfg.Listen.Address, cfg.Listen.Port, f, registry, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()

		_ = srv.Shutdown(shutdownCtx)
		mgr.Shutdown(shutdownCtx)
	}()

	if err := srv.Start(ctx); err != nil {
		if ctx.Err() == nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("sonarfleetd stopped")
}
