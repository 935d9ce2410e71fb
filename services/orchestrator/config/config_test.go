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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envPort, envGinMode, envLLMBackend, envLLMModel, envLLMBaseURL,
		envStoreBackend, envStorePath, envTurnWindow, envGeneratorTimeout,
		envGeneratorRetries, envOTelEndpoint, envMetricsEnabled,
		envLogLevel, envLogFormat, envLogDir,
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "echo", cfg.LLM.Backend)
	assert.Equal(t, "document", cfg.Store.Backend)
	assert.Equal(t, filepath.Join("data", "sessions.json"), cfg.Store.Path)
	assert.Equal(t, 12, cfg.Turn.Window)
	assert.Equal(t, 60*time.Second, cfg.Turn.GeneratorTimeout)
	assert.Equal(t, 2, cfg.Turn.MaxRetries)
	assert.True(t, cfg.Telemetry.EnableMetrics)
	assert.Equal(t, "auto", cfg.Log.Format)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
port: 9000
llm:
  backend: ollama
  base_url: http://localhost:11434
  model: llama3
store:
  backend: sqlite
turn:
  window: 20
  generator_timeout: 15s
  max_retries: 0
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, filepath.Join("data", "sessions.db"), cfg.Store.Path)
	assert.Equal(t, 20, cfg.Turn.Window)
	assert.Equal(t, 15*time.Second, cfg.Turn.GeneratorTimeout)
	assert.Equal(t, 0, cfg.Turn.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "port: 9000\nstore:\n  backend: sqlite\n")
	t.Setenv(envPort, "9100")
	t.Setenv(envStoreBackend, "badger")
	t.Setenv(envStorePath, "/tmp/chat-sessions")
	t.Setenv(envGeneratorTimeout, "5s")
	t.Setenv(envMetricsEnabled, "false")
	t.Setenv(envOTelEndpoint, "stdout")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, "/tmp/chat-sessions", cfg.Store.Path)
	assert.Equal(t, 5*time.Second, cfg.Turn.GeneratorTimeout)
	assert.False(t, cfg.Telemetry.EnableMetrics)
	assert.Equal(t, "stdout", cfg.Telemetry.OTelEndpoint)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "bad port env", env: map[string]string{envPort: "eighty"}},
		{name: "bad duration env", env: map[string]string{envGeneratorTimeout: "soon"}},
		{name: "bad bool env", env: map[string]string{envMetricsEnabled: "maybe"}},
		{name: "unknown llm backend", env: map[string]string{envLLMBackend: "gemini"}},
		{name: "unknown store backend", env: map[string]string{envStoreBackend: "etcd"}},
		{name: "ollama without url", env: map[string]string{envLLMBackend: "ollama"}},
		{name: "port out of range", yaml: "port: 70000\n"},
		{name: "bad log level", yaml: "log:\n  level: loud\n"},
		{name: "negative retries", yaml: "turn:\n  max_retries: -1\n"},
		{name: "malformed yaml", yaml: "port: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeConfig(t, tt.yaml)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultStorePath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "sessions.badger"), DefaultStorePath("badger"))
	assert.Equal(t, filepath.Join("data", "sessions.db"), DefaultStorePath("sqlite"))
	assert.Equal(t, filepath.Join("data", "sessions.json"), DefaultStorePath("document"))
}
