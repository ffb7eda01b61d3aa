// Command chessduel-server runs the real-time chess game server: it
// accepts two websocket players per challenge, arbitrates the game and
// reports the result back to the application server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/hailam/chessduel/internal/appservice"
	"github.com/hailam/chessduel/internal/config"
	"github.com/hailam/chessduel/internal/game"
	"github.com/hailam/chessduel/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	listenAddr := flag.String("listen", "", "listen address (overrides config)")
	appURL := flag.String("app-url", "", "application service GraphQL URL (overrides config)")
	flag.Parse()

	if err := run(*configPath, *listenAddr, *appURL); err != nil {
		fmt.Fprintln(os.Stderr, "chessduel-server:", err)
		os.Exit(1)
	}
}

func run(configPath, listenAddr, appURL string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if appURL != "" {
		cfg.AppServiceURL = appURL
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("bad log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	opts := badger.DefaultOptions(cfg.CacheDir)
	if cfg.CacheDir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening challenge cache: %w", err)
	}
	defer db.Close()

	client := appservice.NewClient(cfg.AppServiceURL, log)
	challenges := appservice.NewChallengeCache(db, client, cfg.ChallengeTTL.Duration, log)
	registry := game.NewRegistry(log, client)
	handler := server.NewHandler(log, challenges, registry)
	srv := server.New(cfg.ListenAddr, log, handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"addr":    cfg.ListenAddr,
		"app_url": cfg.AppServiceURL,
	}).Info("chessduel server starting")

	if err := srv.Run(ctx); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
