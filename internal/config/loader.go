package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	appLog "shulscreen/internal/log"
)

// EnvPrefix prefixes every environment override. A double underscore marks
// nesting: SHULSCREEN_MYZMANIM__KEY -> myzmanim.key.
const EnvPrefix = "SHULSCREEN_"

var validate = validator.New()

// Load builds a Config by layering the YAML file and env vars.
// Order of precedence (low -> high):
//  1. file (YAML); on first run a default file is written with 0600 perms
//  2. .env next to the config file (only fills variables not already set)
//  3. env (prefix SHULSCREEN_)
//
// The result is normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: config path is empty", ErrLoadConfig)
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
		// First run: create default config file.
		if err := Save(path, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("%w: write default: %v", ErrLoadConfig, err)
		}
		appLog.Info("config: wrote default config", "path", path)
	}

	dotenv := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, dotenv, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Unmarshal into a zero value and normalize afterwards so configured lists
	// replace the defaults instead of being merged into them.
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps SHULSCREEN_DISPLAY__TIME_FORMAT to display.time_format.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks struct rules and the timezone.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
