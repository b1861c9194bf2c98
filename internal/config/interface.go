package config

import (
	"context"
	"time"
)

// ConfigService defines read access to layered configuration values
type ConfigService interface {
	// GetConfig retrieves a configuration value by key, returns error if not found
	GetConfig(ctx context.Context, key string) (string, error)

	// GetConfigWithDefault retrieves a configuration value by key with fallback to default
	GetConfigWithDefault(ctx context.Context, key, defaultValue string) string

	// GetConfigInt retrieves a configuration value as integer
	GetConfigInt(ctx context.Context, key string) (int, error)

	// GetConfigIntWithDefault retrieves a configuration value as integer with default
	GetConfigIntWithDefault(ctx context.Context, key string, defaultValue int) (int, error)

	// GetConfigBoolWithDefault retrieves a configuration value as boolean with default
	GetConfigBoolWithDefault(ctx context.Context, key string, defaultValue bool) (bool, error)

	// GetConfigFloatWithDefault retrieves a configuration value as float with default
	GetConfigFloatWithDefault(ctx context.Context, key string, defaultValue float64) (float64, error)

	// GetConfigDurationWithDefault retrieves a configuration value as duration with default
	GetConfigDurationWithDefault(ctx context.Context, key string, defaultValue time.Duration) (time.Duration, error)

	// GetConfigList retrieves a comma separated configuration value
	GetConfigList(ctx context.Context, key string, defaultValue []string) []string
}

// ConfigError represents configuration-related errors
type ConfigError struct {
	Key     string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Key != "" {
		msg = e.Key + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error
func NewConfigError(key, message string, cause error) *ConfigError {
	return &ConfigError{
		Key:     key,
		Message: message,
		Cause:   cause,
	}
}
