package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"notion-fairy-bot/internal/storage"
)

// Mirror modes
const (
	MirrorModeAuto   = "auto"
	MirrorModePrompt = "prompt"
)

// Transports the bot can run behind
const (
	TransportHTTP   = "http"
	TransportSocket = "socket"
	TransportLambda = "lambda"
)

// Config is the validated runtime configuration
type Config struct {
	SlackBotToken      string
	SlackSigningSecret string
	SlackAppToken      string

	NotionKey                string
	NotionVersion            string
	NotionBaseURL            string
	NotionRateLimitPerSecond float64

	MirrorMode        string
	AppScheme         string
	MeetingKeywords   []string
	MeetingLocation   *time.Location
	AllowedChannelIDs []string
	RestrictDMs       bool

	Store storage.Config

	Port          int
	EventDedupTTL time.Duration
	LogLevel      slog.Level
	LogFormat     string
}

// Load reads .env files (when present), the optional Secrets Manager overlay
// named by SECRET_NAME, and the process environment
func Load(ctx context.Context, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	var secrets map[string]string
	if secretName := strings.TrimSpace(os.Getenv("SECRET_NAME")); secretName != "" {
		client, err := NewSecretsManagerClient(ctx)
		if err != nil {
			return nil, err
		}
		secrets, err = LoadSecretOverlay(ctx, client, secretName)
		if err != nil {
			return nil, err
		}
	}

	return LoadFrom(ctx, NewHybridConfigService(secrets))
}

func loadDotEnv(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return NewConfigError("", "failed to load "+file, err)
		}
	}
	return nil
}

// LoadFrom builds a Config from a configuration service
func LoadFrom(ctx context.Context, svc ConfigService) (*Config, error) {
	cfg := &Config{
		SlackBotToken:      svc.GetConfigWithDefault(ctx, "SLACK_BOT_TOKEN", ""),
		SlackSigningSecret: svc.GetConfigWithDefault(ctx, "SLACK_SIGNING_SECRET", ""),
		SlackAppToken:      svc.GetConfigWithDefault(ctx, "SLACK_APP_TOKEN", ""),
		NotionKey:          svc.GetConfigWithDefault(ctx, "NOTION_KEY", ""),
		NotionVersion:      svc.GetConfigWithDefault(ctx, "NOTION_VERSION", "2022-06-28"),
		NotionBaseURL:      svc.GetConfigWithDefault(ctx, "NOTION_BASE_URL", "https://api.notion.com"),
		MirrorMode:         strings.ToLower(svc.GetConfigWithDefault(ctx, "MIRROR_MODE", MirrorModeAuto)),
		AppScheme:          svc.GetConfigWithDefault(ctx, "APP_SCHEME", "notion"),
		MeetingKeywords:    svc.GetConfigList(ctx, "MEETING_KEYWORDS", []string{"회의", "meeting"}),
		AllowedChannelIDs:  svc.GetConfigList(ctx, "ALLOWED_CHANNEL_IDS", nil),
		LogFormat:          strings.ToLower(svc.GetConfigWithDefault(ctx, "LOG_FORMAT", "text")),
	}

	var err error
	if cfg.RestrictDMs, err = svc.GetConfigBoolWithDefault(ctx, "RESTRICT_DMS", false); err != nil {
		return nil, err
	}
	if cfg.NotionRateLimitPerSecond, err = svc.GetConfigFloatWithDefault(ctx, "NOTION_RATE_LIMIT_PER_SECOND", 3); err != nil {
		return nil, err
	}
	if cfg.Port, err = svc.GetConfigIntWithDefault(ctx, "PORT", 3000); err != nil {
		return nil, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, NewConfigError("PORT", "must be between 1 and 65535", nil)
	}
	if cfg.EventDedupTTL, err = svc.GetConfigDurationWithDefault(ctx, "EVENT_DEDUP_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	offset := svc.GetConfigWithDefault(ctx, "MEETING_UTC_OFFSET", "+09:00")
	if cfg.MeetingLocation, err = ParseUTCOffset(offset); err != nil {
		return nil, NewConfigError("MEETING_UTC_OFFSET", "invalid offset "+offset, err)
	}

	if cfg.LogLevel, err = parseLogLevel(svc.GetConfigWithDefault(ctx, "LOG_LEVEL", "info")); err != nil {
		return nil, NewConfigError("LOG_LEVEL", "invalid log level", err)
	}

	if cfg.Store, err = loadStoreConfig(ctx, svc); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadStoreConfig(ctx context.Context, svc ConfigService) (storage.Config, error) {
	store := storage.Config{
		Backend:    strings.ToLower(svc.GetConfigWithDefault(ctx, "STORE_BACKEND", storage.BackendSQLite)),
		SQLitePath: svc.GetConfigWithDefault(ctx, "DATABASE_PATH", "./data/connections.db"),
		MySQL: storage.MySQLConfig{
			Host:     svc.GetConfigWithDefault(ctx, "MYSQL_HOST", "localhost"),
			Port:     svc.GetConfigWithDefault(ctx, "MYSQL_PORT", "3306"),
			Database: svc.GetConfigWithDefault(ctx, "MYSQL_DATABASE", "notion_fairy"),
			Username: svc.GetConfigWithDefault(ctx, "MYSQL_USERNAME", ""),
			Password: svc.GetConfigWithDefault(ctx, "MYSQL_PASSWORD", ""),
			Timeout:  svc.GetConfigWithDefault(ctx, "MYSQL_TIMEOUT", "30s"),
		},
		PebblePath: svc.GetConfigWithDefault(ctx, "PEBBLE_PATH", "./data/connections.pebble"),
		Redis: storage.RedisConfig{
			Addr:      svc.GetConfigWithDefault(ctx, "REDIS_ADDR", "localhost:6379"),
			Password:  svc.GetConfigWithDefault(ctx, "REDIS_PASSWORD", ""),
			KeyPrefix: svc.GetConfigWithDefault(ctx, "REDIS_KEY_PREFIX", storage.DefaultRedisKeyPrefix),
		},
		DynamoDBTable: svc.GetConfigWithDefault(ctx, "AWS_DYNAMODB_TABLE_NAME", ""),
	}

	db, err := svc.GetConfigIntWithDefault(ctx, "REDIS_DB", 0)
	if err != nil {
		return store, err
	}
	store.Redis.DB = db

	switch store.Backend {
	case storage.BackendMemory, storage.BackendSQLite, storage.BackendPebble, storage.BackendRedis:
	case storage.BackendMySQL:
		if store.MySQL.Username == "" {
			return store, NewConfigError("MYSQL_USERNAME", "required when STORE_BACKEND=mysql", nil)
		}
	case storage.BackendDynamoDB:
		if store.DynamoDBTable == "" {
			return store, NewConfigError("AWS_DYNAMODB_TABLE_NAME", "required when STORE_BACKEND=dynamodb", nil)
		}
	default:
		return store, NewConfigError("STORE_BACKEND", "unknown backend "+store.Backend, nil)
	}
	return store, nil
}

func (c *Config) validate() error {
	if c.SlackBotToken == "" {
		return NewConfigError("SLACK_BOT_TOKEN", "environment variable is required", nil)
	}
	if !strings.HasPrefix(c.SlackBotToken, "xoxb-") {
		return NewConfigError("SLACK_BOT_TOKEN", "must be a bot token (xoxb-)", nil)
	}
	if c.MirrorMode != MirrorModeAuto && c.MirrorMode != MirrorModePrompt {
		return NewConfigError("MIRROR_MODE", "must be auto or prompt", nil)
	}
	if c.AppScheme == "" || strings.ContainsAny(c.AppScheme, ":/ ") {
		return NewConfigError("APP_SCHEME", "must be a bare scheme name", nil)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return NewConfigError("LOG_FORMAT", "must be text or json", nil)
	}
	if c.NotionRateLimitPerSecond < 0 {
		return NewConfigError("NOTION_RATE_LIMIT_PER_SECOND", "must not be negative", nil)
	}
	return nil
}

// ValidateFor checks the keys a specific transport needs
func (c *Config) ValidateFor(transport string) error {
	switch transport {
	case TransportHTTP, TransportLambda:
		if c.SlackSigningSecret == "" {
			return NewConfigError("SLACK_SIGNING_SECRET", "required for the "+transport+" transport", nil)
		}
	case TransportSocket:
		if !strings.HasPrefix(c.SlackAppToken, "xapp-") {
			return NewConfigError("SLACK_APP_TOKEN", "an app-level token (xapp-) is required for socket mode", nil)
		}
	default:
		return errors.Errorf("unknown transport %q", transport)
	}
	return nil
}

// MeetingsEnabled reports whether the meeting flow has a page API key
func (c *Config) MeetingsEnabled() bool {
	return c.NotionKey != ""
}

// ParseUTCOffset parses "+09:00", "-0530" or "Z" into a fixed zone
func ParseUTCOffset(offset string) (*time.Location, error) {
	offset = strings.TrimSpace(offset)
	if offset == "Z" || offset == "" {
		return time.UTC, nil
	}
	if len(offset) < 3 || (offset[0] != '+' && offset[0] != '-') {
		return nil, errors.Errorf("offset %q must start with + or -", offset)
	}

	digits := strings.ReplaceAll(offset[1:], ":", "")
	if len(digits) != 2 && len(digits) != 4 {
		return nil, errors.Errorf("offset %q must be ±HH or ±HH:MM", offset)
	}
	hours, err := strconv.Atoi(digits[:2])
	if err != nil {
		return nil, errors.Wrapf(err, "offset %q", offset)
	}
	minutes := 0
	if len(digits) == 4 {
		if minutes, err = strconv.Atoi(digits[2:]); err != nil {
			return nil, errors.Wrapf(err, "offset %q", offset)
		}
	}
	if hours > 14 || minutes > 59 {
		return nil, errors.Errorf("offset %q out of range", offset)
	}

	seconds := hours*3600 + minutes*60
	if offset[0] == '-' {
		seconds = -seconds
	}
	return time.FixedZone(offset, seconds), nil
}

func parseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(level))
	return l, err
}
