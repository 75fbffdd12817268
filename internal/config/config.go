package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. KATACHI_SERVER_PORT.
const EnvPrefix = "KATACHI"

// Config holds all katachi configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Schedule  ScheduleConfig  `yaml:"schedule" mapstructure:"schedule"`
	Defaults  DefaultsConfig  `yaml:"defaults" mapstructure:"defaults"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

type ServerConfig struct {
	Bind string `yaml:"bind" mapstructure:"bind"`
	Port int    `yaml:"port" mapstructure:"port"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // "sqlite" or "json"
	Path    string `yaml:"path" mapstructure:"path"`       // sqlite file; empty resolves to ~/.katachi/katachi.db
	Dir     string `yaml:"dir" mapstructure:"dir"`         // json directory; empty resolves to ~/.katachi
}

type ScheduleConfig struct {
	Decay     time.Duration `yaml:"decay" mapstructure:"decay"`
	Save      time.Duration `yaml:"save" mapstructure:"save"`
	Reset     time.Duration `yaml:"reset" mapstructure:"reset"`
	ResetHour int           `yaml:"reset_hour" mapstructure:"reset_hour"`
}

// DefaultsConfig points at the profile and task files used to seed state.
// Empty paths use the built-in defaults.
type DefaultsConfig struct {
	Profile string `yaml:"profile" mapstructure:"profile"`
	Tasks   string `yaml:"tasks" mapstructure:"tasks"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"` // OTLP/HTTP host:port; empty disables export
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		Schedule: ScheduleConfig{
			Decay:     10 * time.Second,
			Save:      10 * time.Minute,
			Reset:     time.Minute,
			ResetHour: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns ~/.katachi/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".katachi", "config.yaml")
}

// Load layers defaults, the YAML file at path and KATACHI_* environment
// variables, in that order. A .env file in the working directory is read into
// the environment first. With an empty path the default location is used if
// it exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil || explicit {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("schedule.decay", d.Schedule.Decay)
	v.SetDefault("schedule.save", d.Schedule.Save)
	v.SetDefault("schedule.reset", d.Schedule.Reset)
	v.SetDefault("schedule.reset_hour", d.Schedule.ResetHour)
	v.SetDefault("defaults.profile", d.Defaults.Profile)
	v.SetDefault("defaults.tasks", d.Defaults.Tasks)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Storage.Backend {
	case "sqlite", "json":
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q: want sqlite or json", c.Storage.Backend))
	}
	for name, d := range map[string]time.Duration{
		"schedule.decay": c.Schedule.Decay,
		"schedule.save":  c.Schedule.Save,
		"schedule.reset": c.Schedule.Reset,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.Schedule.ResetHour < 0 || c.Schedule.ResetHour > 23 {
		errs = append(errs, fmt.Errorf("schedule.reset_hour %d: want 0-23", c.Schedule.ResetHour))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// BaseURL is the address CLI commands use to reach a running server.
func (c *Config) BaseURL() string {
	host := c.Server.Bind
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}

// YAML renders the config in file form.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefault writes the default configuration to path, creating its directory.
func WriteDefault(path string) error {
	d := Default()
	data, err := d.YAML()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
