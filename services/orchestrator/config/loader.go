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
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration in three layers: defaults, then the YAML
// file at path (skipped when path is empty or the file does not exist),
// then environment variables.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// missing file is fine, defaults + env apply
		case err != nil:
			return cfg, fmt.Errorf("failed to read the config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "ORCHESTRATOR_PORT")
	setString(&cfg.Storage.Path, "DAAGENT_DATA_DIR")
	setString(&cfg.Agents.OpenAIModel, "OPENAI_MODEL")
	setString(&cfg.Agents.DataServiceURL, "DATA_SERVICE_URL")
	setString(&cfg.Auth.Token, "DAAGENT_AUTH_TOKEN")
	setString(&cfg.Observability.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setInt(&cfg.History.MaxMessages, "DAAGENT_HISTORY_MAX_MESSAGES")
	setInt(&cfg.History.KeepRecent, "DAAGENT_HISTORY_KEEP_RECENT")
	setInt(&cfg.Cache.Capacity, "DAAGENT_CACHE_CAPACITY")
	setDuration(&cfg.TTL.Retention, "DAAGENT_SESSION_RETENTION")
	setDuration(&cfg.TTL.Interval, "DAAGENT_TTL_INTERVAL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		// A malformed override keeps the previous value.
		return
	}
	*dst = n
}

func setDuration(dst *Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return
	}
	*dst = Duration(d)
}

func validate(cfg Config) error {
	if cfg.History.KeepRecent >= cfg.History.MaxMessages {
		return fmt.Errorf("history.keep_recent (%d) must be below history.max_messages (%d)",
			cfg.History.KeepRecent, cfg.History.MaxMessages)
	}
	if cfg.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", cfg.Cache.Capacity)
	}
	return nil
}
