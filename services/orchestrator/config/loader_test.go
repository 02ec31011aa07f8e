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
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "8100" {
		t.Errorf("port = %q, want 8100", cfg.Server.Port)
	}
	if cfg.History.MaxMessages != 20 || cfg.History.KeepRecent != 10 {
		t.Errorf("history = %+v", cfg.History)
	}
	if cfg.Cache.Capacity != 5 {
		t.Errorf("cache capacity = %d, want 5", cfg.Cache.Capacity)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agents.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Agents.OpenAIModel)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daagent.yaml")
	body := `
server:
  port: "9000"
history:
  max_messages: 40
  keep_recent: 15
cache:
  capacity: 8
agents:
  data_service_url: http://localhost:8200
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.History.MaxMessages != 40 || cfg.History.KeepRecent != 15 {
		t.Errorf("history = %+v", cfg.History)
	}
	if cfg.Cache.Capacity != 8 {
		t.Errorf("cache capacity = %d", cfg.Cache.Capacity)
	}
	if cfg.Agents.DataServiceURL != "http://localhost:8200" {
		t.Errorf("data service url = %q", cfg.Agents.DataServiceURL)
	}
	// Unset fields keep their defaults.
	if cfg.Agents.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Agents.OpenAIModel)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daagent.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ORCHESTRATOR_PORT", "9999")
	t.Setenv("DAAGENT_CACHE_CAPACITY", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "9999" {
		t.Errorf("port = %q, want env override 9999", cfg.Server.Port)
	}
	if cfg.Cache.Capacity != 3 {
		t.Errorf("cache capacity = %d, want 3", cfg.Cache.Capacity)
	}
}

func TestLoad_MalformedIntEnvIgnored(t *testing.T) {
	t.Setenv("DAAGENT_CACHE_CAPACITY", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cache.Capacity != 5 {
		t.Errorf("cache capacity = %d, want default 5", cfg.Cache.Capacity)
	}
}

func TestLoad_InvalidThresholds(t *testing.T) {
	t.Setenv("DAAGENT_HISTORY_KEEP_RECENT", "30")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error when keep_recent >= max_messages")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daagent.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_TTLDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daagent.yaml")
	body := `
ttl:
  enabled: true
  retention: 48h
  interval: 30m
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if time.Duration(cfg.TTL.Retention) != 48*time.Hour {
		t.Errorf("retention = %v", time.Duration(cfg.TTL.Retention))
	}
	if time.Duration(cfg.TTL.Interval) != 30*time.Minute {
		t.Errorf("interval = %v", time.Duration(cfg.TTL.Interval))
	}
}

func TestLoad_TTLEnvOverride(t *testing.T) {
	t.Setenv("DAAGENT_SESSION_RETENTION", "24h")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if time.Duration(cfg.TTL.Retention) != 24*time.Hour {
		t.Errorf("retention = %v", time.Duration(cfg.TTL.Retention))
	}
}
