// Package main provides taskdockd, the reference sync server. It holds
// the authoritative task state and answers mutation batches from
// taskdock clients.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskdock/taskdock/internal/config"
	"github.com/taskdock/taskdock/internal/db"
	"github.com/taskdock/taskdock/internal/logging"
	"github.com/taskdock/taskdock/internal/server"
)

func main() {
	logging.Init(os.Stdout, logging.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load config", err, nil)
		os.Exit(1)
	}

	database, err := db.Open(cfg.Database.Dir, "taskdockd.db")
	if err != nil {
		logging.Error("Failed to open database", err, nil)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.NewMigrator(database.DB, server.Migrations).Up(); err != nil {
		logging.Error("Failed to migrate database", err, nil)
		os.Exit(1)
	}

	handler := server.NewHandler(server.NewStore(database.DB))
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logging.Info("Sync server listening", map[string]interface{}{
			"address": cfg.Server.Address(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed", err, nil)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logging.Info("Shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", err, nil)
		os.Exit(1)
	}
	logging.Info("Server stopped", nil)
}
