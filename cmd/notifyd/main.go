// Command notifyd serves per-user notification feeds over HTTP. Each
// authenticated user gets a poller that aggregates pending complaints and
// meeting requests from the childcare REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nhle/daycare-notify/internal/api"
	"github.com/nhle/daycare-notify/internal/logging"
	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/notify"
	"github.com/nhle/daycare-notify/internal/readstate"
	"github.com/nhle/daycare-notify/internal/server"
	"github.com/nhle/daycare-notify/internal/source/complaint"
	"github.com/nhle/daycare-notify/internal/source/meeting"
	"github.com/nhle/daycare-notify/internal/store"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "notifyd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret is required")
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := store.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("opening read-state storage: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Warn("Closing storage failed", "error", err)
		}
	}()

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Token,
		api.WithRetry(uint(cfg.API.MaxRetries), time.Second),
		api.WithLogger(logger),
		api.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second}),
	)
	interval := time.Duration(cfg.Poll.IntervalSec) * time.Second

	factory := func(ctx context.Context, userID string, role model.Recipient) (*notify.Service, error) {
		userLogger := logger.With("user_id", userID, "role", role)
		reads := readstate.Open(ctx, kv, readstate.Key(userID), userLogger)
		return notify.NewService(
			notify.ServiceConfig{Role: role, Interval: interval},
			reads,
			userLogger,
			complaint.NewAdapter(client, userLogger),
			meeting.NewAdapter(client, userLogger),
		), nil
	}

	sessions := server.NewSessions(ctx, factory, logger)
	srv := server.NewServer(cfg.Server.Port, cfg.Server.JWTSecret, sessions, logger)
	return srv.Run(ctx)
}
