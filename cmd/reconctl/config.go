// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the TOML-loaded configuration for a recovery run: which
// device images make up the filesystem, and the tunables that would
// otherwise have to be repeated as flags on every subcommand.
type Config struct {
	Store struct {
		// Driver is "memory" or "leveldb"; DSN is the leveldb
		// directory, ignored for the memory driver.
		Driver string `toml:"driver"`
		DSN    string `toml:"dsn"`
	} `toml:"store"`

	Devices []DeviceConfig `toml:"device"`

	Scan struct {
		Alignment int64 `toml:"alignment"`
		Workers   int   `toml:"workers"`
	} `toml:"scan"`
}

// DeviceConfig names one physical volume and how to open it.
type DeviceConfig struct {
	// Path is a local file path, or an "s3://bucket/key" URL when
	// Backend is "s3".
	Path string `toml:"path"`
	// Backend selects the devreader implementation: "mmap" (default),
	// "os", or "s3".
	Backend string `toml:"backend"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Store.Driver = "memory"
	cfg.Scan.Alignment = 0x10000
	cfg.Scan.Workers = 1
	return cfg
}

// loadConfig reads and decodes a TOML config file, filling in the
// same defaults defaultConfig uses for anything the file leaves zero.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("reconctl: config %q: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("reconctl: parse config %q: %w", path, err)
	}
	if cfg.Scan.Alignment == 0 {
		cfg.Scan.Alignment = 0x10000
	}
	if cfg.Scan.Workers == 0 {
		cfg.Scan.Workers = 1
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	return cfg, nil
}
