// Package main runs the HUD tracker pipeline headless: capture, detection,
// and progress persistence. Overlay rendering attaches through the slot
// consumer callback and the progress store's change notifications.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"

	"hud-tracker/internal/app"
	"hud-tracker/internal/config"
	"hud-tracker/internal/slot"
	"hud-tracker/internal/version"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "configuration file")
	verbose := flag.Bool("v", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("hud-tracker %s (%s, built %s)\n",
			version.Version, version.GitCommit, version.BuildTime)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)
	slog.SetDefault(logger)

	logger.Info("starting hud-tracker", "version", version.Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading configuration", "error", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("building pipeline", "error", err)
		os.Exit(1)
	}

	a.OnSlots(func(slots []slot.VisibleSlot) {
		for _, s := range slots {
			if s.Occupied {
				logger.Debug("slot",
					"item", s.ItemName, "confidence", s.Confidence,
					"x", int(s.ScreenRect.X), "y", int(s.ScreenRect.Y))
			}
		}
	})

	a.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
	for s := range sig {
		if s == syscall.SIGHUP {
			// Content drops ship new catalogs; SIGHUP picks them up
			// without a restart.
			if err := a.RefreshCatalog(); err != nil {
				logger.Error("catalog refresh", "error", err)
			}
			continue
		}
		logger.Info("shutting down", "signal", s)
		break
	}

	a.Stop()
}
