package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"bracket/internal/app"
	brcfg "bracket/internal/config"
	"bracket/internal/logger"
)

func main() {
	var (
		cfgFlag     = flag.String("config", "", "path to config file (default $BRACKET_CONFIG or configs/config.yaml)")
		printConfig = flag.Bool("print-config", false, "print the effective config and exit")
	)
	flag.Parse()

	cfgPath := strings.TrimSpace(*cfgFlag)
	if cfgPath == "" {
		cfgPath = os.Getenv("BRACKET_CONFIG")
	}
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := brcfg.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *printConfig {
		out, err := cfg.Render()
		if err != nil {
			log.Fatalf("marshal config failed: %v", err)
		}
		fmt.Print(string(out))
		return
	}

	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("init log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ config loaded (env=%s, broker=%s, store=%s)", cfg.App.Env, cfg.Broker.Name, cfg.Store.Kind)

	if err := brcfg.WatchLogLevel(cfgPath); err != nil {
		logger.Warnf("config watch disabled: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("init app failed: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
