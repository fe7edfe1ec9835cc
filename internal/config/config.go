package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"house-points-service/internal/domain"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Admin struct {
		// Key guards the /admin routes; empty leaves them unguarded.
		// The ADMIN_API_KEY env var overrides it at startup.
		Key               string `yaml:"key"`
		BootstrapName     string `yaml:"bootstrap_name"`
		BootstrapEmail    string `yaml:"bootstrap_email"`
		BootstrapPassword string `yaml:"bootstrap_password"`
	} `yaml:"admin"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Standings struct {
		TTL string `yaml:"ttl"`
	} `yaml:"standings"`
	Quiz struct {
		// Keywords maps house names to lowercase substrings the keyword
		// scorer matches against. Empty falls back to the built-ins.
		Keywords map[string][]string `yaml:"keywords"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// HouseKeywords converts the configured keyword table, rejecting names
// outside the fixed house enumeration.
func (c Config) HouseKeywords() (map[domain.House][]string, error) {
	if len(c.Quiz.Keywords) == 0 {
		return nil, nil
	}
	keywords := make(map[domain.House][]string, len(c.Quiz.Keywords))
	for name, words := range c.Quiz.Keywords {
		house, err := domain.ParseHouse(name)
		if err != nil {
			return nil, fmt.Errorf("quiz keywords: %q: %w", name, err)
		}
		keywords[house] = words
	}
	return keywords, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
