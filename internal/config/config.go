package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds everything rdsctl needs to reach one managed instance
type Config struct {
	// AWS
	Profile string `mapstructure:"profile"`
	Region  string `mapstructure:"region"`

	// Connection. Host may be empty; it is then resolved from the instance endpoint.
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Database       string        `mapstructure:"database"`
	Instance       string        `mapstructure:"instance"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	PasswordRef    string        `mapstructure:"password_ref"` // ssm:/path or secretsmanager:id
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// Lifecycle
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	MaxWait          time.Duration `mapstructure:"max_wait"`
	RestartAfterStop bool          `mapstructure:"restart_after_stop"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// envAliases maps config keys to the libpq-style variables also accepted,
// checked after RDSCTL_<KEY>
var envAliases = map[string]string{
	"host":         "PGHOST",
	"port":         "PGPORT",
	"database":     "PGDATABASE",
	"instance":     "PGINSTANCE",
	"user":         "PGUSER",
	"password":     "PGPASSWORD",
	"password_ref": "PGPASSWORD_REF",
	"region":       "AWS_REGION",
	"profile":      "AWS_PROFILE",
}

// GetConfigDir returns the config directory path (~/.config/rdsctl)
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rdsctl"
	}
	return filepath.Join(home, ".config", "rdsctl")
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 5432)
	v.SetDefault("database", "postgres")
	v.SetDefault("connect_timeout", 10*time.Second)
	v.SetDefault("poll_interval", 45*time.Second)
	v.SetDefault("max_wait", 120*time.Second)
	v.SetDefault("restart_after_stop", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// BindEnv binds RDSCTL_* variables and the PG*/AWS_* aliases on v
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("RDSCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, alias := range envAliases {
		if err := v.BindEnv(key, "RDSCTL_"+strings.ToUpper(key), alias); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// NewViper returns a viper instance prepared by Setup
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	if err := Setup(v, configFile); err != nil {
		return nil, err
	}
	return v, nil
}

// Setup registers defaults and env bindings on v and, when it exists, loads
// the config file. An explicitly named file must exist.
func Setup(v *viper.Viper, configFile string) error {
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return err
	}
	return ReadConfigFile(v, configFile)
}

// ReadConfigFile reads configFile, or the default config file if present
func ReadConfigFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode reads the configuration held by v without validating it. Commands
// that only talk to the control plane use it, since they need no database
// credentials.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate ensures required fields are present and values are in range
func (c *Config) Validate() error {
	if c.Instance == "" {
		return fmt.Errorf("instance identifier is required (PGINSTANCE or --instance)")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if c.Database == "" {
		return fmt.Errorf("database is required")
	}

	if c.User == "" {
		return fmt.Errorf("user is required (PGUSER or --user)")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if c.MaxWait < c.PollInterval {
		return fmt.Errorf("max wait must be at least the poll interval")
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log format must be json or console")
	}

	return nil
}

// SetDefaultInstance records instance as the default in the config file at
// path, keeping every other key in the file
func SetDefaultInstance(path, instance string) error {
	doc := make(map[string]interface{})

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		if doc == nil {
			doc = make(map[string]interface{})
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("failed to read config file: %w", err)
	}

	doc["instance"] = instance

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
