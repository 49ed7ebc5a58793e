// Package main contains the entrypoint for the holidaybot service: the HTTP
// API, the Telegram bot and the scheduler in one process.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	tgbot "github.com/go-telegram/bot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/edgard/holidaybot/internal/api"
	"github.com/edgard/holidaybot/internal/bot"
	"github.com/edgard/holidaybot/internal/bot/handlers"
	"github.com/edgard/holidaybot/internal/bot/tasks"
	"github.com/edgard/holidaybot/internal/card"
	"github.com/edgard/holidaybot/internal/cards"
	"github.com/edgard/holidaybot/internal/config"
	"github.com/edgard/holidaybot/internal/database"
	"github.com/edgard/holidaybot/internal/holiday"
	"github.com/edgard/holidaybot/internal/imagecache"
	"github.com/edgard/holidaybot/internal/imagesource"
	"github.com/edgard/holidaybot/internal/logger"
	"github.com/edgard/holidaybot/internal/metrics"
	"github.com/edgard/holidaybot/internal/query"
	"github.com/edgard/holidaybot/internal/subscription"
	"github.com/edgard/holidaybot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.DSN)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	holidays := holiday.NewService(
		holiday.NewCalendScraper(cfg.Holidays.BaseURL, cfg.Holidays.Timeout),
		holiday.ServiceConfig{
			BannedParts: cfg.Holidays.BannedParts,
			Timeout:     cfg.Holidays.Timeout,
			MemoSize:    cfg.Holidays.MemoSize,
			MemoTTL:     cfg.Holidays.MemoTTL,
			MinYear:     cfg.Holidays.MinYear,
		},
		log,
	)

	source, err := imagesource.New(ctx, cfg.Images, log)
	if err != nil {
		log.Error("Failed to initialize image source", "provider", cfg.Images.Provider, "error", err)
		return 1
	}

	cache, err := imagecache.New(store, source, cfg.Images.CacheDir, collector, log)
	if err != nil {
		log.Error("Failed to initialize image cache", "dir", cfg.Images.CacheDir, "error", err)
		return 1
	}

	compositor, err := card.New(card.Config{StickersDir: cfg.Card.StickersDir, FontPath: cfg.Card.FontPath}, log)
	if err != nil {
		log.Error("Failed to initialize card compositor", "error", err)
		return 1
	}

	maker := cards.NewMaker(holidays, cache, compositor, cfg.Images.QueryFill, collector, log)

	pipeline, err := query.New(store, maker, query.Config{
		ArtifactsDir:   cfg.Queries.ArtifactsDir,
		MaxRetries:     cfg.Queries.MaxRetries,
		Workers:        cfg.Queries.Workers,
		AttemptTimeout: cfg.Queries.AttemptTimeout,
		RetryBackoff:   cfg.Queries.RetryBackoff,
	}, collector, log)
	if err != nil {
		log.Error("Failed to initialize query pipeline", "error", err)
		return 1
	}
	if resumed, err := pipeline.Resume(ctx); err != nil {
		log.Warn("Failed to resume pending queries", "error", err)
	} else if resumed > 0 {
		log.Info("Resumed pending queries", "count", resumed)
	}

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, tgbot.WithMiddlewares(logger.Middleware(log)))
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		pipeline.Close()
		return 1
	}
	if me, err := tg.GetMe(ctx); err != nil {
		log.Warn("Failed to get bot info", "error", err)
	} else {
		log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)
	}

	loc := cfg.Scheduler.Location()
	gs, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithLogger(logger.NewGocronLogger(log)),
	)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		pipeline.Close()
		return 1
	}

	daily := subscription.NewDaily(gs, store, maker, telegram.NewSender(tg), subscription.Config{
		Location:    loc,
		WindowStart: cfg.Scheduler.WindowStart,
		WindowEnd:   cfg.Scheduler.WindowEnd,
		RetryDelay:  cfg.Scheduler.RetryDelay,
		RunTimeout:  cfg.Scheduler.RunTimeout,
	}, collector, log)
	if restored, err := daily.Restore(ctx); err != nil {
		log.Warn("Failed to restore daily subscriptions", "error", err)
	} else {
		log.Info("Restored daily subscriptions", "count", restored)
	}

	hDeps := handlers.HandlerDeps{
		Logger:        log,
		Config:        cfg,
		Subscriptions: daily,
		Cards:         maker,
	}
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		pipeline.Close()
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Holidays: holidays,
		Cache:    cache,
		Config:   cfg,
	}
	sched := bot.NewScheduler(gs, log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))

	router := api.NewRouter(api.RouterDeps{
		Logger:   log,
		Holidays: holidays,
		Picker:   maker,
		Queries:  pipeline,
		Health:   store,
		Metrics:  metrics.Handler(registry),
	})
	server := api.NewServer(cfg.HTTP, router)

	app := bot.NewBot(log, tg, sched, server, pipeline, cfg.HTTP.ShutdownTimeout)

	log.Info("Starting holidaybot...", "http_addr", cfg.HTTP.Addr, "image_provider", cfg.Images.Provider)
	runErr := app.Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("holidaybot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("holidaybot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
