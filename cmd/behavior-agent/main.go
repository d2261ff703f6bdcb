package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkallio/vigil-platform/internal/behavior"
	"github.com/pkallio/vigil-platform/pkg/config"
	"github.com/pkallio/vigil-platform/pkg/health"
	"github.com/pkallio/vigil-platform/pkg/mqtt"
	"github.com/pkallio/vigil-platform/pkg/postgres"
	"github.com/pkallio/vigil-platform/pkg/redis"
)

func main() {
	cfg := config.NewConfig()
	cfg.ServiceName = "behavior-agent"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Behavior Agent",
		"mqtt", cfg.MQTTAddress(),
		"redis", cfg.RedisAddress(),
		"postgres", fmt.Sprintf("%s:%d/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB),
		"patterns", cfg.PatternsPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize clients
	mqttClient := mqtt.NewClient(cfg, logger)
	redisClient := redis.NewClient(cfg, logger)

	pgClient := postgres.NewClient(cfg, logger)
	if err := pgClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	agent, err := behavior.NewAgent(mqttClient, redisClient, pgClient, cfg, logger)
	if err != nil {
		logger.Error("Failed to create agent", "error", err)
		os.Exit(1)
	}

	// Health endpoints
	checker := health.NewChecker(mqttClient, redisClient, logger)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", checker.HandlerFunc())
	healthMux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HealthPort)
		logger.Info("Health server listening", "addr", addr)
		if err := http.ListenAndServe(addr, healthMux); err != nil {
			logger.Error("Health server failed", "error", err)
		}
	}()

	// Behavior API
	api := behavior.NewAPI(agent.Analyzer(), agent.Patterns(), agent.Archive(), logger)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("API server listening", "addr", addr)
		if err := http.ListenAndServe(addr, api.Routes()); err != nil {
			logger.Error("API server failed", "error", err)
		}
	}()

	// Start agent
	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			agentErr <- err
		}
	}()

	// Wait for shutdown
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	cancel()
	agent.Stop()
	logger.Info("Behavior agent stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
