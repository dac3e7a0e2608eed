// Package handlers contains the Discord event and slash-command handlers,
// along with their registration logic.
package handlers

import (
	"log/slog"

	"github.com/edgard/bocik/internal/archive"
	"github.com/edgard/bocik/internal/config"
	"github.com/edgard/bocik/internal/moderation"
	"github.com/edgard/bocik/internal/relay"
	"github.com/edgard/bocik/internal/trigger"
)

// HandlerDeps provides dependencies for Discord handlers.
type HandlerDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Archive    *archive.Store
	Notifier   *relay.Notifier
	Triggers   trigger.Table
	Moderation *moderation.Manager
}
