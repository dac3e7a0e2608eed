package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for moderation audit log operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveModerationAction inserts a new audit record.
	SaveModerationAction(ctx context.Context, action *ModerationAction) error

	// GetRecentModerationActions retrieves the most recent 'limit' audit
	// records for a guild, newest first.
	GetRecentModerationActions(ctx context.Context, guildID string, limit int) ([]ModerationAction, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveModerationAction inserts a new audit record.
func (s *sqlxStore) SaveModerationAction(ctx context.Context, action *ModerationAction) error {
	if action == nil {
		return fmt.Errorf("cannot save nil moderation action")
	}
	if action.GuildID == "" {
		return fmt.Errorf("moderation action must have a guild_id")
	}
	if action.TargetID == "" {
		return fmt.Errorf("moderation action must have a target_id")
	}
	if action.Action != ActionMute && action.Action != ActionUnmute {
		return fmt.Errorf("unknown moderation action %q", action.Action)
	}

	action.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO moderation_actions (created_at, guild_id, target_id, moderator_id, action, reason)
        VALUES (:created_at, :guild_id, :target_id, :moderator_id, :action, :reason);
    `

	result, err := s.db.NamedExecContext(ctx, query, action)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving moderation action",
			"guild_id", action.GuildID, "target_id", action.TargetID, "action", action.Action, "error", err)
		return fmt.Errorf("failed to save moderation action (guild %s, target %s): %w",
			action.GuildID, action.TargetID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		action.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving moderation action",
			"guild_id", action.GuildID, "target_id", action.TargetID, "error", err)
	}

	s.logger.DebugContext(ctx, "Moderation action saved",
		"guild_id", action.GuildID, "target_id", action.TargetID, "action", action.Action, "id", action.ID)
	return nil
}

// GetRecentModerationActions retrieves the most recent audit records for a guild.
func (s *sqlxStore) GetRecentModerationActions(ctx context.Context, guildID string, limit int) ([]ModerationAction, error) {
	if guildID == "" {
		return nil, fmt.Errorf("guild_id cannot be empty")
	}

	if limit <= 0 {
		limit = 20
		s.logger.DebugContext(ctx, "Invalid limit provided, using default", "guild_id", guildID, "default_limit", limit)
	} else if limit > 100 {
		limit = 100
		s.logger.DebugContext(ctx, "Limit exceeded maximum value, capping", "guild_id", guildID, "capped_limit", limit)
	}

	var actions []ModerationAction
	query := `
        SELECT id, created_at, guild_id, target_id, moderator_id, action, reason
        FROM moderation_actions
        WHERE guild_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ?;
    `

	err := s.db.SelectContext(ctx, &actions, query, guildID, limit)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching moderation actions",
			"guild_id", guildID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting moderation actions", "guild_id", guildID, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get moderation actions for guild %s: %w", guildID, err)
	}

	return actions, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
