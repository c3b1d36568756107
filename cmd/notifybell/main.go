// Command notifybell is a terminal notification bell for teachers and
// supervisors. It polls the childcare REST API and lists pending
// complaints and meeting requests with their read state.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/daycare-notify/internal/api"
	"github.com/nhle/daycare-notify/internal/app"
	"github.com/nhle/daycare-notify/internal/credential"
	"github.com/nhle/daycare-notify/internal/logging"
	"github.com/nhle/daycare-notify/internal/model"
	"github.com/nhle/daycare-notify/internal/notify"
	"github.com/nhle/daycare-notify/internal/readstate"
	"github.com/nhle/daycare-notify/internal/source/complaint"
	"github.com/nhle/daycare-notify/internal/source/meeting"
	"github.com/nhle/daycare-notify/internal/store"
	"github.com/nhle/daycare-notify/internal/ui/setup"
)

const stopTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "notifybell: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	values := setup.Values{
		BaseURL: cfg.API.BaseURL,
		Role:    cfg.Recipient.Role,
		UserID:  cfg.Recipient.UserID,
		Token:   resolveToken(cfg),
	}
	if values.Missing() {
		if err := firstRun(configPath, cfg, &values); err != nil {
			return err
		}
	}

	role, err := model.ParseRecipient(values.Role)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs go to a file.
	logDir := filepath.Dir(configPath)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("creating log directory %s: %w", logDir, err)
	}
	logPath := filepath.Join(logDir, "notifybell.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", logPath, err)
	}
	defer logFile.Close()
	logger := logging.New(logFile, cfg.Log.Level, cfg.Log.Format).With("user_id", values.UserID, "role", role)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := store.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("opening read-state storage: %w", err)
	}
	defer kv.Close()

	client := api.NewClient(values.BaseURL, values.Token,
		api.WithRetry(uint(cfg.API.MaxRetries), time.Second),
		api.WithLogger(logger),
		api.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second}),
	)

	svc := notify.NewService(
		notify.ServiceConfig{Role: role, Interval: time.Duration(cfg.Poll.IntervalSec) * time.Second},
		readstate.Open(ctx, kv, readstate.Key(values.UserID), logger),
		logger,
		complaint.NewAdapter(client, logger),
		meeting.NewAdapter(client, logger),
	)

	// Subscribe before starting so the first refresh is not missed.
	p := tea.NewProgram(app.New(svc), tea.WithAltScreen())
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting poller: %w", err)
	}

	_, runErr := p.Run()

	svc.Stop()
	select {
	case <-svc.Done():
	case <-time.After(stopTimeout):
		logger.Warn("Poller did not stop in time")
	}

	if runErr != nil {
		return fmt.Errorf("running terminal UI: %w", runErr)
	}
	return nil
}

// resolveToken prefers the configured token and falls back to the keyring.
// An empty result sends the user through the setup form.
func resolveToken(cfg *model.AppConfig) string {
	if cfg.API.Token != "" {
		return cfg.API.Token
	}
	token, err := credential.Get(credential.APITokenKey)
	if err != nil {
		return ""
	}
	return token
}

// firstRun prompts for missing settings, then saves them. The token goes
// to the keyring, never to the config file.
func firstRun(configPath string, cfg *model.AppConfig, values *setup.Values) error {
	if err := setup.Run(values); err != nil {
		return err
	}

	if err := credential.Set(credential.APITokenKey, values.Token); err != nil {
		fmt.Fprintf(os.Stderr, "notifybell: token not saved to keyring: %v\n", err)
	}

	cfg.API.BaseURL = values.BaseURL
	cfg.API.Token = ""
	cfg.Recipient.Role = values.Role
	cfg.Recipient.UserID = values.UserID
	return model.SaveConfig(configPath, cfg)
}
