package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for favthanker
type Config struct {
	Site          SiteConfig         `yaml:"site" json:"site"`
	Account       AccountConfig      `yaml:"account" json:"account"`
	Pacing        PacingConfig       `yaml:"pacing" json:"pacing"`
	Audit         AuditConfig        `yaml:"audit" json:"audit"`
	Checkpoint    CheckpointConfig   `yaml:"checkpoint" json:"checkpoint"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
}

// SiteConfig describes how to reach the target site
type SiteConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent" validate:"required"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second" validate:"gte=0"`
	ProbeAttempts     int           `yaml:"probe_attempts" json:"probe_attempts" validate:"gte=1"`
}

// AccountConfig names the operator and the file holding their messages and groups
type AccountConfig struct {
	Username    string `yaml:"username" json:"username"`
	ProfilePath string `yaml:"profile_path" json:"profile_path"`
}

// PacingConfig holds the delays the dispatch loop observes
type PacingConfig struct {
	RequestDelay      time.Duration `yaml:"request_delay" json:"request_delay" validate:"gte=0"`
	ShoutDelay        time.Duration `yaml:"shout_delay" json:"shout_delay" validate:"gte=0"`
	CooldownTotal     time.Duration `yaml:"cooldown_total" json:"cooldown_total" validate:"gte=0"`
	CooldownStep      time.Duration `yaml:"cooldown_step" json:"cooldown_step" validate:"gte=0"`
	WindowShouts      int           `yaml:"window_shouts" json:"window_shouts" validate:"gte=1"`
	Window            time.Duration `yaml:"window" json:"window" validate:"gt=0"`
	ProactiveCooldown bool          `yaml:"proactive_cooldown" json:"proactive_cooldown"`
}

// AuditConfig controls where shout and favorite records are written
type AuditConfig struct {
	Directory    string `yaml:"directory" json:"directory" validate:"required"`
	Format       string `yaml:"format" json:"format" validate:"oneof=csv sqlite both"`
	ShoutFile    string `yaml:"shout_file" json:"shout_file" validate:"required"`
	FavoriteFile string `yaml:"favorite_file" json:"favorite_file" validate:"required"`
	Database     string `yaml:"database" json:"database" validate:"required"`
}

// CheckpointConfig controls resumable progress
type CheckpointConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Directory string `yaml:"directory" json:"directory"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
	OnCooldown bool `yaml:"on_cooldown" json:"on_cooldown"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error disabled"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:           "https://www.furaffinity.net/",
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
			ProbeAttempts:     2,
		},
		Pacing: PacingConfig{
			RequestDelay:  time.Second,
			ShoutDelay:    10 * time.Second,
			CooldownTotal: 5 * time.Minute,
			CooldownStep:  time.Minute,
			WindowShouts:  15,
			Window:        5 * time.Minute,
		},
		Audit: AuditConfig{
			Directory:    ".",
			Format:       "csv",
			ShoutFile:    "shouts.csv",
			FavoriteFile: "favorites.csv",
			Database:     "favthanker.db",
		},
		Checkpoint: CheckpointConfig{
			Enabled: true,
		},
		Notifications: NotificationConfig{
			Enabled:    true,
			OnComplete: true,
			OnError:    true,
			OnCooldown: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv overrides values from FAVTHANKER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("FAVTHANKER_BASE_URL"); v != "" {
		c.Site.BaseURL = v
	}
	if v := os.Getenv("FAVTHANKER_USER_AGENT"); v != "" {
		c.Site.UserAgent = v
	}
	if v := os.Getenv("FAVTHANKER_USERNAME"); v != "" {
		c.Account.Username = v
	}
	if v := os.Getenv("FAVTHANKER_PROFILE"); v != "" {
		c.Account.ProfilePath = v
	}
	if v := os.Getenv("FAVTHANKER_AUDIT_DIR"); v != "" {
		c.Audit.Directory = v
	}
	if v := os.Getenv("FAVTHANKER_AUDIT_FORMAT"); v != "" {
		c.Audit.Format = strings.ToLower(v)
	}
	if v := os.Getenv("FAVTHANKER_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("FAVTHANKER_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("FAVTHANKER_SHOUT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid FAVTHANKER_SHOUT_DELAY %q: %w", v, err))
		} else {
			c.Pacing.ShoutDelay = d
		}
	}
	if v := os.Getenv("FAVTHANKER_REQUESTS_PER_SECOND"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid FAVTHANKER_REQUESTS_PER_SECOND %q: %w", v, err))
		} else {
			c.Site.RequestsPerSecond = rps
		}
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file; an empty path searches the default locations
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".favthanker.yaml",
		".favthanker.yml",
		filepath.Join(home, ".config", "favthanker", "config.yaml"),
		filepath.Join(home, ".config", "favthanker", "config.yml"),
		filepath.Join(home, ".favthanker.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// DefaultPath is where `config init` writes a fresh file
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "favthanker", "config.yaml")
}

var validate = validator.New()

// Validate checks struct tags and the cross-field rules the tags cannot express
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if c.Pacing.CooldownTotal > 0 && c.Pacing.CooldownStep <= 0 {
		errs = append(errs, errors.New("pacing.cooldown_step must be positive when a cooldown is configured"))
	}
	if c.Pacing.CooldownStep > c.Pacing.CooldownTotal {
		errs = append(errs, errors.New("pacing.cooldown_step cannot exceed pacing.cooldown_total"))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags applies values set on the command line
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["username"].(string); ok && v != "" {
		c.Account.Username = v
	}
	if v, ok := flags["profile"].(string); ok && v != "" {
		c.Account.ProfilePath = v
	}
	if v, ok := flags["audit-dir"].(string); ok && v != "" {
		c.Audit.Directory = v
	}
	if v, ok := flags["audit-format"].(string); ok && v != "" {
		c.Audit.Format = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["shout-delay"].(time.Duration); ok && v > 0 {
		c.Pacing.ShoutDelay = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
	if v, ok := flags["checkpoint"].(bool); ok {
		c.Checkpoint.Enabled = v
	}
}

// Load loads configuration from all sources.
// Precedence: command line flags > environment > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".favthanker.env"))

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
