// Package main is the entrypoint for the tubedrop chat bots.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kiranshivaraju/tubedrop/internal/bot/discord"
	"github.com/kiranshivaraju/tubedrop/internal/bot/telegram"
	"github.com/kiranshivaraju/tubedrop/internal/cache"
	"github.com/kiranshivaraju/tubedrop/internal/config"
	"github.com/kiranshivaraju/tubedrop/internal/delivery"
	"github.com/kiranshivaraju/tubedrop/internal/fetcher"
	"github.com/kiranshivaraju/tubedrop/internal/jobs"
	"github.com/kiranshivaraju/tubedrop/internal/retention"
	"github.com/kiranshivaraju/tubedrop/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("bot failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireBot(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "fetcher", cfg.Fetcher.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := fetcher.NewFetcher(cfg.Fetcher)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	if err := fetcher.CheckDependencies(f); err != nil {
		return fmt.Errorf("check fetcher: %w", err)
	}

	opts := jobs.Options{
		DownloadDir:   cfg.Jobs.DownloadDir,
		SourcePattern: cfg.Jobs.SourcePattern,
		StatusTTL:     cfg.Jobs.StatusTTL,
		Disabled:      !cfg.Jobs.DownloadEnabled,
	}

	// History and status mirroring are optional for the bots.
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		opts.History = store.NewPostgresStore(pool)
		slog.Info("download history enabled")
	}
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		opts.Mirror = redisCache
		slog.Info("status mirroring enabled")
	}

	mode := jobs.Mode(cfg.Jobs.Mode)
	if mode == "" {
		mode = jobs.ModeExclusive
	}
	svc, err := jobs.NewService(f, jobs.NewAdmission(mode), opts)
	if err != nil {
		return fmt.Errorf("create job service: %w", err)
	}

	if cfg.Retention.Schedule != "" {
		sweeper := retention.NewSweeper(cfg.Jobs.DownloadDir, cfg.Retention.MaxAge, slog.Default())
		if err := sweeper.Start(cfg.Retention.Schedule); err != nil {
			return fmt.Errorf("start retention sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	dispatchOpts := delivery.Options{
		EditInterval:  cfg.Bot.EditInterval,
		KeepArtifacts: cfg.Bot.KeepArtifacts,
	}
	var dispatchers []*delivery.Dispatcher
	errCh := make(chan error, 1)

	if cfg.Telegram.Token != "" {
		d, closeFn, err := startTelegram(ctx, cfg.Telegram, svc, dispatchOpts, errCh)
		if err != nil {
			return fmt.Errorf("start telegram: %w", err)
		}
		defer closeFn()
		dispatchers = append(dispatchers, d)
	}
	if cfg.Discord.Token != "" {
		d, closeFn, err := startDiscord(cfg.Discord, svc, dispatchOpts)
		if err != nil {
			return fmt.Errorf("start discord: %w", err)
		}
		defer closeFn()
		dispatchers = append(dispatchers, d)
	}
	slog.Info("bots running", "mode", mode, "download_dir", cfg.Jobs.DownloadDir)

	var runErr error
	select {
	case runErr = <-errCh:
		slog.Error("bot stopped unexpectedly", "error", runErr)
	case <-ctx.Done():
		slog.Info("shutdown signal received, cancelling jobs...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("job shutdown: %w", err)
	}
	if err := waitDispatchers(shutdownCtx, dispatchers); err != nil {
		return fmt.Errorf("delivery shutdown: %w", err)
	}

	if runErr != nil {
		return runErr
	}
	slog.Info("bots stopped gracefully")
	return nil
}

func startTelegram(ctx context.Context, cfg config.TelegramConfig, svc *jobs.Service, opts delivery.Options, errCh chan<- error) (*delivery.Dispatcher, func(), error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("telegram authorized", "username", api.Self.UserName)

	opts.Logger = slog.Default().With("frontend", "telegram")
	d := delivery.NewDispatcher(svc, telegram.NewMessenger(api), opts)
	bot := telegram.NewBot(api, d, cfg.AllowedUsers, slog.Default())

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	go func() {
		if err := bot.Run(ctx, updates); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
	return d, api.StopReceivingUpdates, nil
}

func startDiscord(cfg config.DiscordConfig, svc *jobs.Service, opts delivery.Options) (*delivery.Dispatcher, func(), error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	opts.Logger = slog.Default().With("frontend", "discord")
	d := delivery.NewDispatcher(svc, discord.NewMessenger(s), opts)
	bot := discord.NewBot(s, d, cfg.AllowedUsers, slog.Default())
	s.AddHandler(bot.HandleInteraction)

	if err := s.Open(); err != nil {
		return nil, nil, fmt.Errorf("open gateway: %w", err)
	}
	if err := discord.Register(s, cfg.AppID, cfg.GuildID); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("register commands: %w", err)
	}
	slog.Info("discord connected", "app_id", cfg.AppID, "guild_id", cfg.GuildID)

	return d, func() {
		if err := s.Close(); err != nil {
			slog.Warn("close discord session", "error", err)
		}
	}, nil
}

// waitDispatchers waits for in-flight status edits and uploads to finish.
func waitDispatchers(ctx context.Context, dispatchers []*delivery.Dispatcher) error {
	done := make(chan struct{})
	go func() {
		for _, d := range dispatchers {
			d.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("timed out waiting for deliveries")
	}
}
