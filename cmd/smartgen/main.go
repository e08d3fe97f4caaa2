package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/smartgenbot/smartgen/internal/bot"
	"github.com/smartgenbot/smartgen/internal/config"
	"github.com/smartgenbot/smartgen/internal/logger"
	"github.com/smartgenbot/smartgen/internal/media"
	"github.com/smartgenbot/smartgen/internal/stats"
	"github.com/smartgenbot/smartgen/internal/web"
	"github.com/smartgenbot/smartgen/internal/wizard"
)

func main() {
	// .env is optional, real deployments use environment variables
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic("invalid config: " + err.Error())
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting smartgen bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	for _, dir := range []string{cfg.SessionDir, cfg.DownloadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create working directory")
		}
	}

	statsRepo, err := stats.Open(cfg.StatsDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open stats database")
	}

	hub := web.NewHub()
	go hub.Run()
	reporter := web.NewEventReporter(hub, statsRepo, log.Component("events"))

	b, sender, err := bot.New(cfg.BotToken, cfg.HandlerWorkers, log.Component("bot"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to authorize bot")
	}

	wiz := wizard.New(sender, cfg.SessionDir, log.Component("wizard"))
	wiz.SetReporter(reporter)

	runner := media.NewRunner(cfg.YtdlpPath, cfg.CookiesPath, cfg.VideoMaxHeight, log.Component("ytdlp"))
	pipeline := media.NewPipeline(runner, cfg.DownloadDir, cfg.MaxFileSize, cfg.MaxDurationS, log.Component("media"))
	mediaHandler := media.NewHandler(pipeline, b.MediaChat(), cfg.MediaWorkers, log.Component("media"))
	mediaHandler.SetReporter(reporter)

	b.Attach(wiz, mediaHandler)

	server := web.NewServer(&web.Config{Port: cfg.HTTPPort}, hub, statsRepo, wiz.Registry(), log.Component("web"))
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("http server listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	b.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	log.Info().Msg("smartgen stopped")
}
