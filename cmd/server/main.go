// Package main provides the entry point for the ahlt graph server.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/ahlt-platform/ahlt/domain/graph"
	"github.com/ahlt-platform/ahlt/domain/health"
	"github.com/ahlt-platform/ahlt/domain/transfer"
	"github.com/ahlt-platform/ahlt/domain/workflow"
	"github.com/ahlt-platform/ahlt/internal/config"
	"github.com/ahlt-platform/ahlt/internal/database"
	"github.com/ahlt-platform/ahlt/internal/migrate"
	"github.com/ahlt-platform/ahlt/internal/server"
	"github.com/ahlt-platform/ahlt/pkg/logger"
)

func main() {
	// Load .env files if present (for local development).
	// Load() won't overwrite existing vars, Overload() will.
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		server.Module,

		// Domain modules
		health.Module,
		graph.Module,
		workflow.Module,
		transfer.Module,
	).Run()
}
