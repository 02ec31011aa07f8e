// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the orchestrator's configuration from an optional
// YAML file with environment variable overrides on top.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "168h" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

type Config struct {
	// Server: HTTP listener settings
	Server ServerConfig `yaml:"server"`

	// Storage: BadgerDB persistence settings
	Storage StorageConfig `yaml:"storage"`

	// History: conversation summarization thresholds
	History HistoryConfig `yaml:"history"`

	// Cache: per-session query result cache
	Cache CacheConfig `yaml:"cache"`

	// Agents: LLM and data service backends
	Agents AgentsConfig `yaml:"agents"`

	// Auth: bearer token authentication
	Auth AuthConfig `yaml:"auth"`

	// Observability: tracing exporter settings
	Observability ObservabilityConfig `yaml:"observability"`

	// TTL: idle session expiry
	TTL TTLConfig `yaml:"ttl"`
}

type ServerConfig struct {
	Port string `yaml:"port"` // e.g. "8100"
}

type StorageConfig struct {
	Path     string `yaml:"path"` // BadgerDB directory
	InMemory bool   `yaml:"in_memory,omitempty"`
}

type HistoryConfig struct {
	MaxMessages int `yaml:"max_messages"` // summarize above this
	KeepRecent  int `yaml:"keep_recent"`  // messages kept verbatim
}

type CacheConfig struct {
	Capacity int `yaml:"capacity"` // cached query results per session
}

type AgentsConfig struct {
	// OpenAIModel selects the completion model for the planner,
	// synthesizer, and summarizer.
	OpenAIModel string `yaml:"openai_model"`

	// DataServiceURL is the base URL of the SQL/query-agent service.
	DataServiceURL string `yaml:"data_service_url"`
}

type AuthConfig struct {
	// Token, when set, switches from the nop provider to a static
	// bearer token check.
	Token string `yaml:"token,omitempty"`
}

type ObservabilityConfig struct {
	// OTLPEndpoint is the gRPC endpoint of the trace collector.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type TTLConfig struct {
	// Enabled turns the background session sweeper on.
	Enabled bool `yaml:"enabled"`

	// Retention is how long an idle session survives, e.g. "168h".
	Retention Duration `yaml:"retention"`

	// Interval is how often the sweeper runs, e.g. "1h".
	Interval Duration `yaml:"interval"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8100",
		},
		Storage: StorageConfig{
			Path: "/var/lib/daagent/chat",
		},
		History: HistoryConfig{
			MaxMessages: 20,
			KeepRecent:  10,
		},
		Cache: CacheConfig{
			Capacity: 5,
		},
		Agents: AgentsConfig{
			OpenAIModel:    "gpt-4o-mini",
			DataServiceURL: "http://daagent-data-service:8200",
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint: "daagent-otel-collector:4317",
		},
		TTL: TTLConfig{
			Enabled:   true,
			Retention: Duration(7 * 24 * time.Hour),
			Interval:  Duration(1 * time.Hour),
		},
	}
}
