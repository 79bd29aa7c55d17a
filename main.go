package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/courtmatch/internal/catalog"
	"github.com/mauv0809/courtmatch/internal/config"
	"github.com/mauv0809/courtmatch/internal/database"
	"github.com/mauv0809/courtmatch/internal/events"
	server "github.com/mauv0809/courtmatch/internal/http"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
	"github.com/mauv0809/courtmatch/internal/metrics"
	"github.com/mauv0809/courtmatch/internal/notifier/slack"
	"github.com/mauv0809/courtmatch/internal/processor"
	"github.com/mauv0809/courtmatch/internal/pubsub"
	"github.com/mauv0809/courtmatch/internal/scheduler"
)

func main() {
	// Start profiling timer
	startTime := time.Now()
	log.SetFormatter(log.JSONFormatter)
	cfg := config.Load()
	db, dbTeardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken)
	dbInitDuration := time.Since(startTime)
	log.Info("Database initialization time recorded", "duration_ms", dbInitDuration.Milliseconds())
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer func() {
		log.Info("Closing database connection")
		dbTeardown()
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	catalogStore := catalog.New(db)
	queueStore := matchmaking.NewStore(db, cfg.Queue.EntryTTL)
	metricsSvc := metrics.NewService()
	metricsHandler := metrics.NewMetricsHandler()
	broker := events.NewBroker()
	defer broker.Close()

	// Without a Slack token every notification is logged as a dry run.
	dryRun := cfg.Slack.Token == ""
	notifier := slack.NewNotifier(cfg.Slack.Token, cfg.Slack.ChannelID, metricsSvc)
	proc := processor.New(queueStore, catalogStore, notifier, dryRun)
	go proc.Run(ctx)

	publishers := events.Fanout{broker, proc}
	var pubsubClient pubsub.PubSubClient
	if cfg.ProjectID != "" {
		pubsubClient, err = pubsub.New(ctx, cfg.ProjectID)
		if err != nil {
			log.Fatalf("Failed to initialize pubsub: %s", err)
		}
		defer pubsubClient.Close()
		publishers = append(publishers, events.NewPubSubPublisher(pubsubClient))
	} else {
		log.Warn("GCP_PROJECT not set, events stay in process")
	}

	svc := matchmaking.NewService(queueStore, catalogStore, publishers, metricsSvc, cfg.Queue.MaxMatchRetries)

	sweeps, err := scheduler.Start(svc, cfg.Queue.SweepInterval)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %s", err)
	}

	s := server.NewServer(
		svc,
		catalogStore,
		broker,
		notifier,
		metricsSvc,
		metricsHandler,
		cfg,
		pubsubClient,
	)

	// --- Record startup time ---
	startupDuration := time.Since(startTime)
	metricsSvc.SetStartupTime(startupDuration.Seconds())
	log.Info("Startup time recorded", "duration_ms", startupDuration.Milliseconds())

	// --- Graceful shutdown setup ---
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info("Server started", "port", cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		} else {
			log.Info("Server gracefully stopped")
		}
	}

	if err := sweeps.Shutdown(); err != nil {
		log.Error("Scheduler shutdown failed", "error", err)
	}
	log.Info("Server process shutting down")
}
