package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mleroy14/chickenhunt/internal/gamesync"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Game struct {
		PollInterval   string `yaml:"poll_interval"`
		GraceWindow    string `yaml:"grace_window"`
		HidingDuration string `yaml:"hiding_duration"`
		HuntDuration   string `yaml:"hunt_duration"`
	} `yaml:"game"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the optional YAML config file. A missing file yields an
// empty config, which resolves to defaults.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// engineConfig maps the file config onto the engine defaults. Unset or
// malformed durations keep their default.
func engineConfig(cfg *Config) gamesync.Config {
	ec := gamesync.DefaultConfig()
	overrideDuration(&ec.PollInterval, cfg.Game.PollInterval)
	overrideDuration(&ec.GraceWindow, cfg.Game.GraceWindow)
	overrideDuration(&ec.HidingDuration, cfg.Game.HidingDuration)
	overrideDuration(&ec.HuntDuration, cfg.Game.HuntDuration)
	return ec
}

func overrideDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}
