// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	// Server: HTTP/websocket listener settings
	Server ServerConfig `yaml:"server"`

	// Store: the embedded issue database
	Store StoreConfig `yaml:"store"`

	// Relay: the sync relay's journal file
	Relay RelayConfig `yaml:"relay"`

	// Refresh: debounce and heartbeat tuning
	Refresh RefreshConfig `yaml:"refresh"`

	// Logging: level and optional file output
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`         // e.g. 127.0.0.1
	Port int    `yaml:"port" validate:"gte=1,lte=65535"` // e.g. 4400

	// Token guards every API route when set. Empty means open, for local
	// development.
	Token string `yaml:"token,omitempty"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

type StoreConfig struct {
	Path     string `yaml:"path"`      // badger directory
	InMemory bool   `yaml:"in_memory"` // ephemeral mode, mostly for tests
}

type RelayConfig struct {
	// StorePath is the JSON journal holding synced records.
	StorePath string `yaml:"store_path"`

	// RegistryPath is the shared workspace registry file.
	RegistryPath string `yaml:"registry_path"`
}

type RefreshConfig struct {
	DebounceMS       int `yaml:"debounce_ms" validate:"gte=0"`       // e.g. 75
	HeartbeatSeconds int `yaml:"heartbeat_seconds" validate:"gte=0"` // e.g. 30
}

// Debounce returns the debounce window, or zero to use the built-in default.
func (r RefreshConfig) Debounce() time.Duration {
	return time.Duration(r.DebounceMS) * time.Millisecond
}

// Heartbeat returns the heartbeat interval, or zero to use the built-in
// default.
func (r RefreshConfig) Heartbeat() time.Duration {
	return time.Duration(r.HeartbeatSeconds) * time.Second
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration written on first run. Data lives
// under ~/.beadsync next to the config file.
func DefaultConfig() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4400,
		},
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "issues"),
		},
		Relay: RelayConfig{
			StorePath:    filepath.Join(dataDir, "sync-store.json"),
			RegistryPath: filepath.Join(dataDir, "workspaces.json"),
		},
		Refresh: RefreshConfig{
			DebounceMS:       75,
			HeartbeatSeconds: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".beadsync"
	}
	return filepath.Join(home, ".beadsync")
}
