package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// parseConfigDuration parses a Go duration string from YAML, returning zero
// for empty or malformed values so callers backfill their defaults.
func parseConfigDuration(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	d, errParse := time.ParseDuration(raw)
	if errParse != nil {
		return 0
	}
	return d
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret      string        `yaml:"secret"`
	Expiry      time.Duration `yaml:"expiry"`
	AdminExpiry time.Duration `yaml:"admin-expiry"`
}

// UnmarshalYAML decodes durations given as strings like "12h".
func (c *JWTConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		Secret      string `yaml:"secret"`
		Expiry      string `yaml:"expiry"`
		AdminExpiry string `yaml:"admin-expiry"`
	}
	var r raw
	if errDecode := value.Decode(&r); errDecode != nil {
		return errDecode
	}
	c.Secret = r.Secret
	c.Expiry = parseConfigDuration(r.Expiry)
	c.AdminExpiry = parseConfigDuration(r.AdminExpiry)
	return nil
}

// defaultJWTExpiry is used when the config omits or invalidates session expiry.
const defaultJWTExpiry = 7 * 24 * time.Hour

// defaultAdminJWTExpiry bounds admin sessions more tightly than user sessions.
const defaultAdminJWTExpiry = 12 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry, AdminExpiry: defaultAdminJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	if result.AdminExpiry <= 0 {
		result.AdminExpiry = defaultAdminJWTExpiry
	}
	return result, nil
}

// PasswordPolicy holds configurable credential strength requirements.
type PasswordPolicy struct {
	MinLength     int  `yaml:"min-length"`
	RequireUpper  bool `yaml:"require-upper"`
	RequireLower  bool `yaml:"require-lower"`
	RequireDigit  bool `yaml:"require-digit"`
	RequireSymbol bool `yaml:"require-symbol"`
}

// DefaultPasswordPolicy returns the policy applied when config omits one.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireDigit:  true,
		RequireSymbol: true,
	}
}

// LoadPasswordPolicy loads the password policy from the YAML config file.
func LoadPasswordPolicy(configPath string) (PasswordPolicy, error) {
	// fileConfig maps the YAML fields needed for the password policy.
	type fileConfig struct {
		Policy *PasswordPolicy `yaml:"password-policy"`
	}

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return DefaultPasswordPolicy(), nil
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return PasswordPolicy{}, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	if cfg.Policy == nil {
		return DefaultPasswordPolicy(), nil
	}
	result := *cfg.Policy
	if result.MinLength <= 0 {
		result.MinLength = DefaultPasswordPolicy().MinLength
	}
	return result, nil
}

// RateLimitConfig holds attempt window and block settings.
type RateLimitConfig struct {
	MaxAttempts   int           `yaml:"max-attempts"`
	Window        time.Duration `yaml:"window"`
	BlockDuration time.Duration `yaml:"block-duration"`
	PurgeAfter    time.Duration `yaml:"purge-after"`
}

// UnmarshalYAML decodes durations given as strings like "15m".
func (c *RateLimitConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		MaxAttempts   int    `yaml:"max-attempts"`
		Window        string `yaml:"window"`
		BlockDuration string `yaml:"block-duration"`
		PurgeAfter    string `yaml:"purge-after"`
	}
	var r raw
	if errDecode := value.Decode(&r); errDecode != nil {
		return errDecode
	}
	c.MaxAttempts = r.MaxAttempts
	c.Window = parseConfigDuration(r.Window)
	c.BlockDuration = parseConfigDuration(r.BlockDuration)
	c.PurgeAfter = parseConfigDuration(r.PurgeAfter)
	return nil
}

// DefaultRateLimitConfig returns rate limit settings applied when config omits them.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		BlockDuration: time.Hour,
		PurgeAfter:    24 * time.Hour,
	}
}

// LoadRateLimitConfig loads rate limit settings from the YAML config file.
func LoadRateLimitConfig(configPath string) (RateLimitConfig, error) {
	// fileConfig maps the YAML fields needed for rate limit settings.
	type fileConfig struct {
		RateLimit *RateLimitConfig `yaml:"rate-limit"`
	}

	result := DefaultRateLimitConfig()

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return result, nil
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return RateLimitConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	if cfg.RateLimit == nil {
		return result, nil
	}

	defaults := DefaultRateLimitConfig()
	result = *cfg.RateLimit
	if result.MaxAttempts <= 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.Window <= 0 {
		result.Window = defaults.Window
	}
	if result.BlockDuration <= 0 {
		result.BlockDuration = defaults.BlockDuration
	}
	if result.PurgeAfter <= 0 {
		result.PurgeAfter = defaults.PurgeAfter
	}
	return result, nil
}

// ProvisionerConfig holds settings for one remote provisioning collaborator.
type ProvisionerConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// UnmarshalYAML decodes timeouts given as strings like "10s".
func (c *ProvisionerConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		URL     string `yaml:"url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	}
	var r raw
	if errDecode := value.Decode(&r); errDecode != nil {
		return errDecode
	}
	c.URL = r.URL
	c.Token = r.Token
	c.Timeout = parseConfigDuration(r.Timeout)
	return nil
}

// PlexConfig holds Plex library invite settings.
type PlexConfig struct {
	ProvisionerConfig `yaml:",inline"`
	ServerID          string   `yaml:"server-id"`
	LibraryIDs        []string `yaml:"library-ids"`
}

// UnmarshalYAML decodes the flattened provisioner fields alongside the
// Plex-specific ones.
func (c *PlexConfig) UnmarshalYAML(value *yaml.Node) error {
	if errDecode := value.Decode(&c.ProvisionerConfig); errDecode != nil {
		return errDecode
	}
	type raw struct {
		ServerID   string   `yaml:"server-id"`
		LibraryIDs []string `yaml:"library-ids"`
	}
	var r raw
	if errDecode := value.Decode(&r); errDecode != nil {
		return errDecode
	}
	c.ServerID = r.ServerID
	c.LibraryIDs = r.LibraryIDs
	return nil
}

// ProvisionersConfig groups all remote provisioning collaborator settings.
type ProvisionersConfig struct {
	Plex           PlexConfig        `yaml:"plex"`
	Audiobookshelf ProvisionerConfig `yaml:"audiobookshelf"`
}

// MaxTimeout returns the longest configured provisioner timeout. The
// service-level provisioning deadline covers every purpose, so it must not
// undercut any single binding's own timeout.
func (c ProvisionersConfig) MaxTimeout() time.Duration {
	timeout := c.Plex.Timeout
	if c.Audiobookshelf.Timeout > timeout {
		timeout = c.Audiobookshelf.Timeout
	}
	return timeout
}

// defaultProvisionTimeout bounds remote provisioning calls.
const defaultProvisionTimeout = 10 * time.Second

// LoadProvisionersConfig loads provisioner settings from the YAML config file.
func LoadProvisionersConfig(configPath string) (ProvisionersConfig, error) {
	// fileConfig maps the YAML fields needed for provisioner settings.
	type fileConfig struct {
		Provisioners ProvisionersConfig `yaml:"provisioners"`
	}

	var result ProvisionersConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return ProvisionersConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		result = cfg.Provisioners
	}

	if result.Plex.Timeout <= 0 {
		result.Plex.Timeout = defaultProvisionTimeout
	}
	if result.Audiobookshelf.Timeout <= 0 {
		result.Audiobookshelf.Timeout = defaultProvisionTimeout
	}
	return result, nil
}
