package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gateprobe/config"
	"gateprobe/internal/auth"
	"gateprobe/internal/feed"
	"gateprobe/internal/session"
	"gateprobe/internal/track"
	"gateprobe/internal/trigger"
	"gateprobe/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	creds := auth.Credentials{
		APIKey:    strings.TrimSpace(os.Getenv("GATEIO_API_KEY")),
		APISecret: strings.TrimSpace(os.Getenv("GATEIO_API_SECRET")),
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		// Fail before any connection attempt rather than at login time.
		log.Error("GATEIO_API_KEY and GATEIO_API_SECRET must be set")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Probe.Name,
		"version": cfg.Probe.Version,
		"pair":    cfg.Exchange.Pair(),
	}).Info("starting gateprobe")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudwatchEnabled {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	tracker := track.New()
	prices := &feed.Cell{}

	sess := session.New(cfg, creds, tracker, session.Dial)
	marketFeed := feed.New(cfg, prices, session.Dial)
	orderTrigger := trigger.New(ctx, cfg, creds, sess, tracker, prices, session.Dial)
	marketFeed.OnUpdate = orderTrigger.Evaluate

	// Both loops run until cancellation; an early return means one of
	// them hit a failure its reconnect loop could not absorb.
	failed := make(chan error, 2)
	go func() { failed <- sess.Run(ctx) }()
	go func() { failed <- marketFeed.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	remaining := 2
	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-failed:
		remaining--
		log.WithError(err).Error("connection supervisor stopped")
	}

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		orderTrigger.Wait()
		for i := 0; i < remaining; i++ {
			<-failed
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(cfg.Timing.ShutdownTimeout()):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("gateprobe stopped")
}
