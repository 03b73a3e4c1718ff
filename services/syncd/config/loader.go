// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the daemon configuration from a YAML file with
// environment overrides. Every caller gets its own Config value; there is no
// process-global state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate checks the struct tags on Config after every load.
var validate = validator.New()

// Load reads the config at path, creating it with defaults on first run.
// An empty path means ~/.beadsync/beadsync.yaml.
func Load(path string) (Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("could not find the user's home directory: %w", err)
		}
		path = filepath.Join(home, ".beadsync", "beadsync.yaml")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config file: %w", err)
	}
	applyEnv(&cfg)

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return cfg, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnv lets deployment environments override the file without editing
// it. Only the operational knobs are exposed this way.
func applyEnv(cfg *Config) {
	if v := os.Getenv("BEADSYNC_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("BEADSYNC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BEADSYNC_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("BEADSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BEADSYNC_DATA_DIR"); v != "" {
		cfg.Store.Path = filepath.Join(v, "issues")
		cfg.Relay.StorePath = filepath.Join(v, "sync-store.json")
		cfg.Relay.RegistryPath = filepath.Join(v, "workspaces.json")
	}
}
