// Package tasks implements the bot's scheduled background tasks, their
// dependencies, and registration.
package tasks

import (
	"log/slog"

	"github.com/edgard/bocik/internal/config"
	"github.com/edgard/bocik/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
