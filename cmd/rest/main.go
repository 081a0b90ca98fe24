package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"gorm.io/gorm"

	"ai-tutor-be/internal/bootstrap"
	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/internal/server"
	"ai-tutor-be/internal/tracer"
	"ai-tutor-be/pkg/database"
)

// Exit codes: 0 clean shutdown, 1 configuration error, 2 runtime failure.
const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Load configuration
	cfg := config.Load()

	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 2. Initialize database
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.App.LogLevel)
		if err != nil {
			log.Printf("Unable to connect to GORM DB: %v", err)
			return exitConfig
		}
		if err := migrate(db); err != nil {
			log.Printf("Migration failed: %v", err)
			return exitConfig
		}
		gormDB = db
	} else if cfg.App.AllowMemoryStore {
		color.Yellow("⚠ No database configured; running on the in-memory store")
	} else {
		log.Printf("DB_CONNECTION_STRING is empty and ALLOW_MEMORY_STORE is off")
		return exitConfig
	}

	// 3. Bootstrap dependencies
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Logger.Sync() //nolint:errcheck

	// 4. Background services
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := container.RoutingWatcher.Start(); err != nil {
		log.Printf("Routing watcher failed to start: %v", err)
		return exitConfig
	}
	defer container.RoutingWatcher.Close()

	go container.Prober.Run(ctx)

	if container.Preload != nil {
		color.Cyan("🚀 Preloading model backends")
		warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		container.Preload(warmCtx)
		cancel()
	}

	// 5. Serve
	srv := server.New(cfg, container)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		log.Printf("Server stopped: %v", err)
		return exitRuntime
	case <-ctx.Done():
		color.Cyan("Shutting down")
		if err := srv.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
			return exitRuntime
		}
		if container.NatsPublisher != nil {
			container.NatsPublisher.Close()
		}
		return exitOK
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.UserKey{},
		&model.QuotaRecord{},
		&model.Document{},
		&model.PassageEmbedding{},
	)
}
