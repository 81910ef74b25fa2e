// Package config loads the worker and foreground settings that live outside
// the routine database: a YAML file, optional .env files and ROUTINED_*
// environment overrides, applied in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/routined/internal/constants"
	"github.com/julianstephens/routined/internal/storage"
	"github.com/julianstephens/routined/internal/validation"
)

const (
	BackendBadger = "badger"
	BackendRedis  = "redis"

	PresenterTray    = "tray"
	PresenterConsole = "console"
	// PresenterAuto tries the tray first and falls back to the console.
	PresenterAuto = "auto"
)

// Environment overrides beyond the ones shared with the CLI.
const (
	EnvRequestsBackend = "ROUTINED_REQUESTS_BACKEND"
	EnvSweepInterval   = "ROUTINED_SWEEP_INTERVAL"
	EnvPollInterval    = "ROUTINED_POLL_INTERVAL"
	EnvAlarms          = "ROUTINED_ALARMS"
)

// Requests selects where the worker keeps notification requests.
type Requests struct {
	Backend  string `yaml:"backend" json:"backend" validate:"oneof=badger redis"`
	Dir      string `yaml:"dir" json:"dir" validate:"required_if=Backend badger"`
	RedisURL string `yaml:"redis_url" json:"redis_url" validate:"required_if=Backend redis"`
	RedisKey string `yaml:"redis_key" json:"redis_key"`
}

type Config struct {
	Listen        string        `yaml:"listen" json:"listen" validate:"required,hostname_port"`
	UserID        string        `yaml:"user" json:"user" validate:"required"`
	Presenter     string        `yaml:"presenter" json:"presenter" validate:"oneof=tray console auto"`
	Alarms        bool          `yaml:"alarms" json:"alarms"`
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval" validate:"gt=0"`
	PollInterval  time.Duration `yaml:"poll_interval" json:"poll_interval" validate:"gt=0"`
	Requests      Requests      `yaml:"requests" json:"requests"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:        constants.DefaultListenAddr,
		UserID:        constants.DefaultUserID,
		Presenter:     PresenterAuto,
		Alarms:        true,
		SweepInterval: constants.DefaultSweepInterval,
		PollInterval:  constants.DefaultPollInterval,
		Requests: Requests{
			Backend:  BackendBadger,
			Dir:      constants.DefaultRequestsDir,
			RedisKey: constants.DefaultRequestsPrefix,
		},
	}
}

// Load reads path (the default settings file when empty) over the defaults,
// then applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = constants.DefaultSettingsPath
	}
	resolved, err := storage.ExpandPath(path)
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read config %s: %w", resolved, err)
	default:
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", resolved, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if cfg.Requests.Dir, err = storage.ExpandPath(cfg.Requests.Dir); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(constants.EnvListenAddr); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(constants.EnvUserID); v != "" {
		c.UserID = v
	}
	if v := os.Getenv(constants.EnvPresenter); v != "" {
		c.Presenter = strings.ToLower(v)
	}
	if v := os.Getenv(constants.EnvRequestsDir); v != "" {
		c.Requests.Dir = v
	}
	if v := os.Getenv(constants.EnvRedisURL); v != "" {
		c.Requests.RedisURL = v
	}
	if v := os.Getenv(EnvRequestsBackend); v != "" {
		c.Requests.Backend = strings.ToLower(v)
	}
	if v := os.Getenv(EnvAlarms); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAlarms, err)
		}
		c.Alarms = b
	}
	for env, dst := range map[string]*time.Duration{
		EnvSweepInterval: &c.SweepInterval,
		EnvPollInterval:  &c.PollInterval,
	} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
		*dst = d
	}
	return nil
}

// Validate checks the loaded values.
func (c Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// BaseURL is the http address notification clicks open views on.
func (c Config) BaseURL() string {
	return "http://" + c.Listen
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
