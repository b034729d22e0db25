package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/backstage/services/simulator/internal/api"
	"example.com/backstage/services/simulator/internal/core"
	"example.com/backstage/services/simulator/internal/infrastructure"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the access-control simulator API server",
	Long:  `Launches the HTTP server for device lifecycle management and transaction queries, and resumes generation for devices persisted as active.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer() error {
	logger.Info("Initializing Access Simulator Service...")

	// --- Infrastructure Setup ---
	logger.Info("Connecting to database...")
	db, err := infrastructure.NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	var cache *infrastructure.Cache
	if cfg.Redis.Addr != "" {
		logger.Info("Connecting to cache...")
		cache, err = infrastructure.NewCache(cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Cache unavailable, continuing without it")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	var publishers []core.Publisher

	if cfg.MQTT.BrokerURL != "" {
		logger.Info("Connecting to MQTT broker...")
		mqttPub, err := infrastructure.NewMQTTPublisher(cfg.MQTT, logger)
		if err == nil {
			err = mqttPub.Connect()
		}
		if err != nil {
			logger.WithError(err).Warn("MQTT broker unavailable, continuing without it")
		} else {
			defer mqttPub.Close()
			publishers = append(publishers, mqttPub)
		}
	}

	if cfg.ServiceBus.ConnectionString != "" {
		logger.Info("Connecting to messaging service...")
		messaging, err := infrastructure.NewMessaging(cfg.ServiceBus)
		if err != nil {
			logger.WithError(err).Warn("Messaging service unavailable, continuing without it")
		} else {
			defer messaging.Close()
			publishers = append(publishers, messaging)
		}
	}

	// --- Service Layer Setup ---
	store := core.NewRepository(db.DB)
	source := core.NewEventSource(
		cfg.Generator.Usernames,
		cfg.Generator.EventTypes,
		cfg.Generator.MinDelay,
		cfg.Generator.MaxDelay,
	)
	generator := core.NewGenerator(store, source, publishers, logger)
	devices := core.NewDeviceService(store, generator, cache, logger)

	services := &core.ServiceRegistry{
		Devices:   devices,
		Generator: generator,
		Source:    source,
	}

	// The registry is process-local, so a restart leaves devices persisted
	// as active without a live chain. Reconcile before accepting traffic.
	if err := devices.ReconcileActive(context.Background()); err != nil {
		return fmt.Errorf("failed to reconcile active devices: %w", err)
	}

	// --- API Layer Setup ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	handlers := api.NewAPIHandlers(services)
	api.SetupRoutes(router, handlers, logger)

	// --- HTTP Server ---
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful Shutdown ---
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Infof("Access Simulator API listening on %s", serverAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-shutdownChan

	logger.Warn("Shutdown signal received, initiating graceful shutdown...")

	// Quiesce every generation chain before anything that could close the
	// store underneath an in-flight write.
	generator.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	} else {
		logger.Info("Server stopped gracefully")
	}

	logger.Info("Access Simulator Service shutdown complete")
	return nil
}
