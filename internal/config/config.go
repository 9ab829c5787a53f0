// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package config loads the demo settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvEngine       = "UIBRIDGE_ENGINE"
	EnvWindows      = "UIBRIDGE_WINDOWS"
	EnvQueries      = "UIBRIDGE_QUERIES"
	EnvLogFile      = "UIBRIDGE_LOG_FILE"
	EnvThreadChecks = "UIBRIDGE_THREAD_CHECKS"
	EnvProduction   = "UIBRIDGE_PRODUCTION"
)

// Config holds the demo settings. Command line flags override it.
type Config struct {
	Engine       string
	Windows      int
	Queries      int
	LogFile      string
	ThreadChecks bool
	Production   bool
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Engine:       "goja",
		Windows:      3,
		Queries:      200,
		LogFile:      "logs/uibridge-demo.log",
		ThreadChecks: true,
		Production:   false,
	}
}

// Load reads the given .env files, or ./.env when none are given, and then
// the environment. Missing files are ignored; values already in the
// environment win over the files.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := Default()
	if v := os.Getenv(EnvEngine); v != "" {
		cfg.Engine = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.LogFile = v
	}

	var err error
	if cfg.Windows, err = intEnv(EnvWindows, cfg.Windows); err != nil {
		return Config{}, err
	}
	if cfg.Queries, err = intEnv(EnvQueries, cfg.Queries); err != nil {
		return Config{}, err
	}
	if cfg.ThreadChecks, err = boolEnv(EnvThreadChecks, cfg.ThreadChecks); err != nil {
		return Config{}, err
	}
	if cfg.Production, err = boolEnv(EnvProduction, cfg.Production); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the demo cannot run with.
func (c Config) Validate() error {
	if c.Windows < 1 || c.Windows > 1<<15-1 {
		return fmt.Errorf("windows must be between 1 and %d, got %d", 1<<15-1, c.Windows)
	}
	if c.Queries < 0 {
		return fmt.Errorf("queries cannot be negative, got %d", c.Queries)
	}
	if c.Engine == "" {
		return fmt.Errorf("engine cannot be empty")
	}
	return nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}
