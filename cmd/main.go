/*
Package main is the entry point for the Campus Connect server.

It is responsible for loading configuration, initializing the global logging system,
wiring the campus directory (PostgreSQL or the in-memory demo set) and avatar storage,
starting the session Manager and the HTTP server, and gracefully handling operating system
interrupt signals (SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"campusconnect/internal/app/chat"
	"campusconnect/internal/app/db"
	"campusconnect/internal/app/storage"
	"campusconnect/internal/app/user"
	"campusconnect/internal/configs"
	"campusconnect/internal/handler"
	"campusconnect/internal/pkg/logx"
)

func main() {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("demo_seed", cfg.DemoSeed).
		Dur("handshake_delay", cfg.Simulator.HandshakeDelay).
		Dur("echo_delay", cfg.Simulator.EchoDelay).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Campus directory
	var directory user.Directory
	if cfg.DatabaseDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to initialize directory database")
		}
		defer pool.Close()

		directory = user.NewPostgresDirectory(pool)
		logx.Info("Using PostgreSQL campus directory")
	} else {
		directory = user.NewMemoryDirectory(user.DemoUsers()...)
		logx.Info("DATABASE_URL not set, using in-memory demo directory")
	}

	// Avatar storage
	var presigner storage.Presigner
	if cfg.S3BucketName != "" {
		presigner, err = storage.NewPresigner(storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize avatar storage")
		}
	}

	// Initialize session Manager
	manager := chat.NewManager(directory, chat.ManagerConfig{
		Session: chat.SessionConfig{
			Simulator:   cfg.Simulator,
			IdleTimeout: cfg.SessionIdleTimeout,
		},
		DemoSeed: cfg.DemoSeed,
	})

	deps := &handler.AppDeps{
		Manager:   manager,
		Config:    cfg,
		Directory: directory,
		Avatars:   storage.NewAvatarResolver(presigner),
		Limits:    handler.NewRateLimits(),
	}

	// Setup HTTP server and routes
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Campus Connect Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	manager.Shutdown()
	deps.Limits.Stop()

	logx.Info("Server gracefully stopped.")
}
