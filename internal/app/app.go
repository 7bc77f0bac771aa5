// Package app wires the bot together: config, logging, storage, the
// telegram adapter, the mailing dispatcher, the giveaway lifecycle, and
// the command handlers.
package app

import (
	"context"
	"fmt"

	"rafflebot/internal/botui"
	"rafflebot/internal/config"
	"rafflebot/internal/giveaway"
	"rafflebot/internal/mailing"
	"rafflebot/internal/storage"
	"rafflebot/internal/texts"
	"rafflebot/internal/transport/telegram"
	"rafflebot/pkg/logx"
)

type App struct {
	cfgPath string
	cfg     *config.Config

	logs *logx.Service
	log  logx.Logger

	store     *storage.Store
	adapter   *telegram.Adapter
	mailer    *mailing.Service
	giveaways *giveaway.Service
	ui        *botui.Bot
}

func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.FileEnabled,
			Path:    cfg.Logging.FilePath,
		},
	})
	base := log
	log = base.With(logx.String("comp", "app"))

	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeoutDuration(),
	}, base.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeoutDuration(),
	}, base.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	cat, err := texts.Load()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("texts: %w", err)
	}

	mailer := mailing.NewService(adapter, base.With(logx.String("comp", "mailing")))

	rates := cfg.Mailing.Rates()
	giveaways := giveaway.New(giveaway.Config{
		ChannelID:  cfg.Telegram.ChannelID,
		JoinURL:    cfg.Telegram.JoinURL,
		SweepEvery: cfg.Giveaway.SweepInterval(),
		WinnerRate: mailing.RateConfig{
			PerSecond:  rates.AnnounceRPS,
			Burst:      rates.Burst,
			MaxRetries: rates.MaxRetries,
		},
	}, store, mailer, adapter, adapter, cat, base.With(logx.String("comp", "giveaway")))

	ui := botui.New(cfg, adapter.Bot(), store, mailer, giveaways, cat, base.With(logx.String("comp", "botui")))

	return &App{
		cfgPath:   cfgPath,
		cfg:       cfg,
		logs:      logSvc,
		log:       log,
		store:     store,
		adapter:   adapter,
		mailer:    mailer,
		giveaways: giveaways,
		ui:        ui,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.ui.Register(ctx)
	a.giveaways.Start(ctx)
	a.adapter.Start(ctx)

	// Reload logging on config edits. Other sections need a restart.
	go func() {
		err := config.Watch(ctx, a.cfgPath, a.logs.Logger().With(logx.String("comp", "config")), func(next *config.Config) {
			a.logs.Apply(logx.Config{
				Level:   next.Logging.Level,
				Console: next.Logging.Console,
				File: logx.FileConfig{
					Enabled: next.Logging.FileEnabled,
					Path:    next.Logging.FilePath,
				},
			})
			a.log.Info("logging config reloaded", logx.String("level", next.Logging.Level))
		})
		if err != nil && ctx.Err() == nil {
			a.log.Warn("config watcher stopped", logx.Err(err))
		}
	}()

	a.log.Info("bot started",
		logx.Int("admins", len(a.cfg.Telegram.AdminIDs)),
		logx.Int64("channel", a.cfg.Telegram.ChannelID))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.giveaways.Stop()
	a.adapter.Stop()
	err := a.store.Close()
	_ = a.logs.Close()
	return err
}
