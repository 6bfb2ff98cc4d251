//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go.bug.st/zipfetch"
)

// Config defines configuration for the zipfetch CLI.
type Config struct {
	URL                   string
	Dir                   string
	MaxRedirects          int
	ConnectTimeout        time.Duration
	ResponseHeaderTimeout time.Duration
	InactivityTimeout     time.Duration
	ProgressInterval      time.Duration
	AtomicCommit          bool
	Headers               map[string]string
	LogLevel              string
	MetricsAddr           string
	NoColor               bool
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		MaxRedirects:          zipfetch.DefaultMaxRedirects,
		ConnectTimeout:        30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		InactivityTimeout:     time.Minute,
		ProgressInterval:      zipfetch.DefaultProgressInterval,
		LogLevel:              "warn",
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	URL                   string            `yaml:"url"`
	Dir                   string            `yaml:"dir"`
	MaxRedirects          *int              `yaml:"max_redirects"`
	ConnectTimeout        string            `yaml:"connect_timeout"`
	ResponseHeaderTimeout string            `yaml:"response_header_timeout"`
	InactivityTimeout     string            `yaml:"inactivity_timeout"`
	ProgressInterval      string            `yaml:"progress_interval"`
	AtomicCommit          bool              `yaml:"atomic_commit"`
	Headers               map[string]string `yaml:"headers"`
	LogLevel              string            `yaml:"log_level"`
	MetricsAddr           string            `yaml:"metrics_addr"`
	NoColor               bool              `yaml:"no_color"`
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()
	cfg.URL = yc.URL
	cfg.Dir = yc.Dir
	if yc.MaxRedirects != nil {
		cfg.MaxRedirects = *yc.MaxRedirects
	}
	durations := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{"connect_timeout", yc.ConnectTimeout, &cfg.ConnectTimeout},
		{"response_header_timeout", yc.ResponseHeaderTimeout, &cfg.ResponseHeaderTimeout},
		{"inactivity_timeout", yc.InactivityTimeout, &cfg.InactivityTimeout},
		{"progress_interval", yc.ProgressInterval, &cfg.ProgressInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dest = v
	}
	cfg.AtomicCommit = yc.AtomicCommit
	cfg.Headers = yc.Headers
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	cfg.MetricsAddr = yc.MetricsAddr
	cfg.NoColor = yc.NoColor
	return cfg, nil
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are ignored; variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ZIPFETCH_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("ZIPFETCH_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("ZIPFETCH_DIR"); v != "" {
		c.Dir = v
	}
	if v := os.Getenv("ZIPFETCH_MAX_REDIRECTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ZIPFETCH_MAX_REDIRECTS: %w", err)
		}
		c.MaxRedirects = n
	}
	for name, dest := range map[string]*time.Duration{
		"ZIPFETCH_CONNECT_TIMEOUT":         &c.ConnectTimeout,
		"ZIPFETCH_RESPONSE_HEADER_TIMEOUT": &c.ResponseHeaderTimeout,
		"ZIPFETCH_INACTIVITY_TIMEOUT":      &c.InactivityTimeout,
		"ZIPFETCH_PROGRESS_INTERVAL":       &c.ProgressInterval,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		*dest = d
	}
	if v := os.Getenv("ZIPFETCH_ATOMIC_COMMIT"); v != "" {
		c.AtomicCommit = v == "true" || v == "1"
	}
	if v := os.Getenv("ZIPFETCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ZIPFETCH_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("ZIPFETCH_NO_COLOR"); v != "" {
		c.NoColor = v == "true" || v == "1"
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("config: URL must be http or https: %s", c.URL)
	}
	if c.Dir == "" {
		return errors.New("config: target directory is required")
	}
	if c.ProgressInterval < 0 {
		return errors.New("config: progress_interval must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

// FetcherConfig converts c into the library configuration.
func (c *Config) FetcherConfig() zipfetch.Config {
	maxRedirects := c.MaxRedirects
	if maxRedirects == 0 {
		// zero means "library default" for zipfetch.Config
		maxRedirects = -1
	}
	return zipfetch.Config{
		ExtraHeaders:          c.Headers,
		MaxRedirects:          maxRedirects,
		ConnectTimeout:        c.ConnectTimeout,
		ResponseHeaderTimeout: c.ResponseHeaderTimeout,
		InactivityTimeout:     c.InactivityTimeout,
		ProgressInterval:      c.ProgressInterval,
		AtomicCommit:          c.AtomicCommit,
	}
}
