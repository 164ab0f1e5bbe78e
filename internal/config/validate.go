package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *AppConfig) Validate() error {
	if _, err := c.TokenKeyBytes(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *AppConfig) validateDatabase() error {
	if c.Database.URL != "" {
		return nil
	}
	if c.Database.Name == "" || c.Database.User == "" || c.Database.Password == "" {
		return fmt.Errorf("POSTGRES_DB, POSTGRES_USER and POSTGRES_PASSWORD are required when %sDATABASE_URL is not set", EnvPrefix)
	}
	return nil
}

func (c *AppConfig) validateSync() error {
	if c.Sync.Secret == "" && c.Sync.TrustedHeader == "" {
		return fmt.Errorf("%sSYNC_SECRET or %sSYNC_TRUSTED_HEADER is required", EnvPrefix, EnvPrefix)
	}
	if c.Sync.Secret != "" && len(c.Sync.Secret) < 16 {
		return fmt.Errorf("%sSYNC_SECRET must be at least 16 characters", EnvPrefix)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("%sSYNC_CONCURRENCY must be at least 1, got %d", EnvPrefix, c.Sync.Concurrency)
	}
	if c.Sync.ItemDelay < 0 || c.Sync.ItemTimeout < 0 {
		return fmt.Errorf("%sSYNC_ITEM_DELAY and %sSYNC_ITEM_TIMEOUT must not be negative", EnvPrefix, EnvPrefix)
	}
	return nil
}

func (c *AppConfig) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%sPORT must be between 1 and 65535, got %d", EnvPrefix, c.Server.Port)
	}
	if len(c.Security.SessionSecret) < 32 {
		return fmt.Errorf("%sSESSION_SECRET must be at least 32 characters", EnvPrefix)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("%sCACHE_TTL must be positive", EnvPrefix)
	}
	return nil
}

func (c *AppConfig) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("%sLOG_FORMAT must be json or console, got %q", EnvPrefix, c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled", "off":
	default:
		return fmt.Errorf("%sLOG_LEVEL %q is not a known level", EnvPrefix, c.Logging.Level)
	}
	return nil
}
