package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const defaultClaudeModel = "claude-3-7-sonnet-20250219"

type Config struct {
	Port                string
	ClaudeAPIKey        string
	ClaudeModel         string
	DropboxAppKey       string
	DropboxAppSecret    string
	DropboxRefreshToken string
	DropboxFolderPath   string
	FilePrefix          string
	LogLevel            slog.Level
}

func LoadConfig() Config {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "3003")
	cfg.ClaudeAPIKey = os.Getenv("CLAUDE_API_KEY")
	cfg.ClaudeModel = envOrDefault("CLAUDE_MODEL", defaultClaudeModel)

	cfg.DropboxAppKey = os.Getenv("DROPBOX_APP_KEY")
	cfg.DropboxAppSecret = os.Getenv("DROPBOX_APP_SECRET")
	cfg.DropboxRefreshToken = os.Getenv("DROPBOX_REFRESH_TOKEN")
	cfg.DropboxFolderPath = envOrDefault("DROPBOX_FOLDER_PATH", "/監視対象フォルダパス")

	cfg.FilePrefix = envOrDefault("FILE_PREFIX", "BRWDCE")
	cfg.LogLevel = parseLogLevel(envOrDefault("LOG_LEVEL", "info"))

	return cfg
}

// Validate reports the required variables that are missing. Dropbox
// credentials are only required when the process watches a remote folder.
func (c Config) Validate(forDropbox bool) error {
	missing := []string{}

	if c.ClaudeAPIKey == "" {
		missing = append(missing, "CLAUDE_API_KEY")
	}

	if forDropbox {
		if c.DropboxAppKey == "" {
			missing = append(missing, "DROPBOX_APP_KEY")
		}
		if c.DropboxAppSecret == "" {
			missing = append(missing, "DROPBOX_APP_SECRET")
		}
		if c.DropboxRefreshToken == "" {
			missing = append(missing, "DROPBOX_REFRESH_TOKEN")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseLogLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
