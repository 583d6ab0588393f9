package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bnema/tgpanel/internal/adapters/remote"
	tomlrepo "github.com/bnema/tgpanel/internal/adapters/repo/toml"
	"github.com/bnema/tgpanel/internal/application"
	"github.com/bnema/tgpanel/internal/config"
	"github.com/bnema/tgpanel/internal/logging"
	"github.com/spf13/viper"
)

type app struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   remote.AccountRegistry
	chats      remote.ChatStore
	engine     remote.JobEngine
	history    remote.RunHistoryStore
	onboarding *tomlrepo.Repository
	accounts   *application.AccountDirectory
	location   *time.Location
	now        func() time.Time
}

func wireApp() (*app, error) {
	v := viper.New()

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	repo, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire onboarding repository: %w", err)
	}

	client := remote.Client{
		BaseURL:          cfg.API.BaseURL,
		HTTPClient:       &http.Client{},
		RequestTimeout:   cfg.API.Timeout,
		MaxResponseBytes: cfg.API.MaxResponseBytes,
		Logger:           logger,
	}
	registry := remote.AccountRegistry{Client: client}

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		chats:      remote.ChatStore{Client: client},
		engine:     remote.JobEngine{Client: client},
		history:    remote.RunHistoryStore{Client: client},
		onboarding: repo,
		accounts:   application.NewAccountDirectory(registry, logger),
		location:   time.Local,
		now:        time.Now,
	}, nil
}

func (a *app) newOnboarding() *application.Onboarding {
	return application.NewOnboarding(a.registry, a.accounts.Callbacks(), a.logger)
}

func (a *app) newScheduler() *application.Scheduler {
	return application.NewScheduler(a.engine, application.SchedulerOptions{
		StatusInterval: a.cfg.Poll.StatusInterval,
		StopSettle:     a.cfg.Poll.StopSettle,
		Logger:         a.logger,
	})
}

func (a *app) newHistoryFeed(limit int) *application.HistoryFeed {
	return application.NewHistoryFeed(a.history, application.HistoryOptions{
		Interval: a.cfg.Poll.HistoryInterval,
		Limit:    limit,
		Logger:   a.logger,
	})
}

func (a *app) newChatSelector() *application.ChatSelector {
	return application.NewChatSelector(a.registry, a.chats, a.logger)
}
