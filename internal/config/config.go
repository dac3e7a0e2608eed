// Package config provides configuration loading, validation, and defaults
// for the bot. Values come from a YAML file with BOT_* environment
// variable overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration parameters for all
// components: logging, the Discord connection, the DM archive, the
// notification relay, moderation, triggers, database, and scheduled tasks.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Discord    DiscordConfig    `mapstructure:"discord"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Messages   MessagesConfig   `mapstructure:"messages"`
	Triggers   []TriggerConfig  `mapstructure:"triggers" validate:"dive"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DiscordConfig holds the gateway credentials.
type DiscordConfig struct {
	Token string `mapstructure:"token" validate:"required"`
}

// ArchiveConfig locates the per-author DM log directory.
type ArchiveConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// RelayConfig points at the optional notification webhook. An empty URL
// (or the example placeholder) disables the relay.
type RelayConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=1s,max=1m"`
}

// ModerationConfig names the role used to silence users.
type ModerationConfig struct {
	MutedRoleName string `mapstructure:"muted_role_name" validate:"required"`
}

// DatabaseConfig locates the moderation audit database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TriggerConfig is one auto-response entry. The order of entries in the
// config file is the match precedence.
type TriggerConfig struct {
	Phrase   string `mapstructure:"phrase"   validate:"required"`
	Response string `mapstructure:"response" validate:"required"`
}

// MessagesConfig holds the user-visible reply strings.
type MessagesConfig struct {
	DMConfirmation  string `mapstructure:"dm_confirmation"`
	MuteSuccess     string `mapstructure:"mute_success"`
	UnmuteSuccess   string `mapstructure:"unmute_success"`
	AlreadyMuted    string `mapstructure:"already_muted"`
	NotMuted        string `mapstructure:"not_muted"`
	NoMutedRole     string `mapstructure:"no_muted_role"`
	BotMissingPerms string `mapstructure:"bot_missing_perms"`
	CannotGrantRole string `mapstructure:"cannot_grant_role"`
	NotAuthorized   string `mapstructure:"not_authorized"`
	GeneralError    string `mapstructure:"general_error"`
	MutedNotice     string `mapstructure:"muted_notice"`
	UnmutedNotice   string `mapstructure:"unmuted_notice"`
	NoReason        string `mapstructure:"no_reason"`
	ModLogHeader    string `mapstructure:"modlog_header"`
	ModLogEmpty     string `mapstructure:"modlog_empty"`
}

// SchedulerConfig configures background tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables one scheduled task and sets its cron schedule
// (six-field, with seconds).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// LoadConfig reads configuration from the given YAML file, applies
// defaults and BOT_* environment overrides, and validates the result.
// A missing file is allowed; a malformed one is not.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		// Missing file is fine; env vars and defaults still apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("archive.dir", "dm_logs")
	v.SetDefault("relay.timeout", 10*time.Second)
	v.SetDefault("moderation.muted_role_name", "Muted")
	v.SetDefault("database.path", "storage.db")

	v.SetDefault("messages.dm_confirmation", "✅ Twoja wiadomość została zapisana i przekazana!")
	v.SetDefault("messages.mute_success", "🔇 Użytkownik %s został wyciszony. Powód: %s")
	v.SetDefault("messages.unmute_success", "🔊 Użytkownik %s został odciszony.")
	v.SetDefault("messages.already_muted", "⚠️ %s już ma rolę %s!")
	v.SetDefault("messages.not_muted", "⚠️ %s nie ma roli %s!")
	v.SetDefault("messages.no_muted_role", "⚠️ Rola %s nie istnieje na tym serwerze.")
	v.SetDefault("messages.bot_missing_perms", "❌ Nie mam uprawnień do zarządzania rolami!")
	v.SetDefault("messages.cannot_grant_role", "❌ Nie mam uprawnień do nadania tej roli!")
	v.SetDefault("messages.not_authorized", "❌ Nie masz uprawnień do używania tej komendy!")
	v.SetDefault("messages.general_error", "❌ Wystąpił błąd. Spróbuj ponownie później.")
	v.SetDefault("messages.muted_notice", "Zostałeś wyciszony na serwerze **%s**\nPowód: %s")
	v.SetDefault("messages.unmuted_notice", "Twoje wyciszenie na serwerze **%s** zostało zdjęte.")
	v.SetDefault("messages.no_reason", "Nie podano powodu")
	v.SetDefault("messages.modlog_header", "📋 Ostatnie akcje moderacyjne:")
	v.SetDefault("messages.modlog_empty", "Brak zapisanych akcji moderacyjnych.")

	v.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * 0"},
	})
}
