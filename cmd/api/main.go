package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/auth"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/config"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/database"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/kvstore"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/repository"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/server"
	"github.com/GiuseppeVizzari/todo-app-phi/internal/service"
)

func gracefulShutdown(apiServer *http.Server, sessions *service.Sessions, dbService database.Service, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The server has 5 seconds to finish the requests it is currently handling.
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		log.Error("Server forced to shutdown", "err", err)
	}

	sessions.Close()

	if dbService != nil {
		if err := dbService.Close(); err != nil {
			log.Error("Error closing database connection pool", "err", err)
		} else {
			log.Info("Database connection pool closed")
		}
	}

	log.Info("Server exiting")
	done <- true
}

// newRepository wires the configured persistence gateway.
func newRepository(cfg config.Config) (repository.TodoRepository, database.Service, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		dbService, err := database.New(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Running database auto-migration")
		if err := repository.Migrate(dbService.GetDB()); err != nil {
			_ = dbService.Close()
			return nil, nil, fmt.Errorf("auto-migrate: %w", err)
		}
		return repository.NewGormTodoRepository(dbService.GetDB()), dbService, nil
	case config.BackendFile:
		file, err := kvstore.NewFile(cfg.DataFile)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Using local data file", "path", file.Path())
		return repository.NewKeyValueRepository(file), nil, nil
	default:
		return repository.NewMemoryRepository(), nil, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration", "err", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	repo, dbService, err := newRepository(cfg)
	if err != nil {
		log.Fatal("Failed to set up persistence", "backend", cfg.Backend, "err", err)
	}

	sessions := service.NewSessions(repo, cfg.QueueSize, service.WithLogger(log.Default()))
	todoService := service.NewTodoService(sessions)
	apiServer := server.NewServer(cfg.Port, todoService, dbService, auth.NewResolver(cfg.Auth))

	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, sessions, dbService, done)

	log.Info("Starting server", "addr", apiServer.Addr, "backend", cfg.Backend)
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("HTTP server ListenAndServe error", "err", err)
		os.Exit(1)
	}

	<-done
	log.Info("Graceful shutdown complete")
}
