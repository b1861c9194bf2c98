package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

// SecureConfigKeys defines configuration keys whose values must never be logged
var SecureConfigKeys = map[string]bool{
	"SLACK_BOT_TOKEN":      true,
	"SLACK_SIGNING_SECRET": true,
	"SLACK_APP_TOKEN":      true,
	"NOTION_KEY":           true,
	"MYSQL_USERNAME":       true,
	"MYSQL_PASSWORD":       true,
	"REDIS_PASSWORD":       true,
}

// HybridConfigService implements ConfigService with environment-first lookup
// and a secret overlay fallback
type HybridConfigService struct {
	lookupEnv func(string) (string, bool)
	secrets   map[string]string
}

// NewHybridConfigService creates a configuration service over the process
// environment, falling back to secrets for keys the environment lacks
func NewHybridConfigService(secrets map[string]string) *HybridConfigService {
	if secrets == nil {
		secrets = make(map[string]string)
	}
	return &HybridConfigService{
		lookupEnv: os.LookupEnv,
		secrets:   secrets,
	}
}

// GetConfig retrieves a configuration value by key, returns error if not found
func (s *HybridConfigService) GetConfig(ctx context.Context, key string) (string, error) {
	if value, ok := s.lookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	if value, ok := s.secrets[key]; ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	return "", NewConfigError(key, "configuration not found", nil)
}

// GetConfigWithDefault retrieves a configuration value by key with fallback to default
func (s *HybridConfigService) GetConfigWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := s.GetConfig(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetConfigInt retrieves a configuration value as integer
func (s *HybridConfigService) GetConfigInt(ctx context.Context, key string) (int, error) {
	value, err := s.GetConfig(ctx, key)
	if err != nil {
		return 0, err
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, NewConfigError(key, "invalid integer value", err)
	}

	return intValue, nil
}

// GetConfigIntWithDefault retrieves a configuration value as integer with
// default. A present but malformed value is an error.
func (s *HybridConfigService) GetConfigIntWithDefault(ctx context.Context, key string, defaultValue int) (int, error) {
	if _, err := s.GetConfig(ctx, key); err != nil {
		return defaultValue, nil
	}
	return s.GetConfigInt(ctx, key)
}

// GetConfigBoolWithDefault retrieves a configuration value as boolean with default
func (s *HybridConfigService) GetConfigBoolWithDefault(ctx context.Context, key string, defaultValue bool) (bool, error) {
	value, err := s.GetConfig(ctx, key)
	if err != nil {
		return defaultValue, nil
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return false, NewConfigError(key, "invalid boolean value", err)
	}
	return boolValue, nil
}

// GetConfigFloatWithDefault retrieves a configuration value as float with default
func (s *HybridConfigService) GetConfigFloatWithDefault(ctx context.Context, key string, defaultValue float64) (float64, error) {
	value, err := s.GetConfig(ctx, key)
	if err != nil {
		return defaultValue, nil
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, NewConfigError(key, "invalid float value", err)
	}
	return floatValue, nil
}

// GetConfigDurationWithDefault retrieves a configuration value as duration with default
func (s *HybridConfigService) GetConfigDurationWithDefault(ctx context.Context, key string, defaultValue time.Duration) (time.Duration, error) {
	value, err := s.GetConfig(ctx, key)
	if err != nil {
		return defaultValue, nil
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, NewConfigError(key, "invalid duration value", err)
	}
	return duration, nil
}

// GetConfigList retrieves a comma separated value with blanks removed
func (s *HybridConfigService) GetConfigList(ctx context.Context, key string, defaultValue []string) []string {
	value, err := s.GetConfig(ctx, key)
	if err != nil {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// Redact masks secure values for logging
func Redact(key, value string) string {
	if !SecureConfigKeys[key] || value == "" {
		return value
	}
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "****"
}
