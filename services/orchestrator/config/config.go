// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the orchestrator configuration.
//
// # Description
//
// Configuration is resolved in four steps, each overriding the previous:
//
//  1. Built-in defaults (Default)
//  2. An optional YAML file
//  3. Environment variables (see the env* constants)
//  4. ApplyDefaults fills anything still empty
//
// The result is checked by Validate before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Environment Variables
// =============================================================================

const (
	envPort             = "ORCHESTRATOR_PORT"
	envGinMode          = "GIN_MODE"
	envLLMBackend       = "LLM_BACKEND_TYPE"
	envLLMModel         = "LLM_MODEL"
	envLLMBaseURL       = "LLM_BASE_URL"
	envStoreBackend     = "STORE_BACKEND"
	envStorePath        = "STORE_PATH"
	envTurnWindow       = "TURN_WINDOW"
	envGeneratorTimeout = "GENERATOR_TIMEOUT"
	envGeneratorRetries = "GENERATOR_MAX_RETRIES"
	envOTelEndpoint     = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envMetricsEnabled   = "METRICS_ENABLED"
	envLogLevel         = "LOG_LEVEL"
	envLogFormat        = "LOG_FORMAT"
	envLogDir           = "LOG_DIR"
)

// DefaultPort is the orchestrator's HTTP port.
const DefaultPort = 12210

// =============================================================================
// Types
// =============================================================================

// Config is the complete orchestrator configuration.
type Config struct {
	Port      int             `yaml:"port" validate:"min=1,max=65535"`
	GinMode   string          `yaml:"gin_mode" validate:"oneof=debug release test"`
	LLM       LLMConfig       `yaml:"llm"`
	Store     StoreConfig     `yaml:"store"`
	Turn      TurnConfig      `yaml:"turn"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// LLMConfig selects the generator backend.
type LLMConfig struct {
	Backend string        `yaml:"backend" validate:"oneof=openai ollama anthropic echo"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=document badger sqlite"`
	Path    string `yaml:"path" validate:"required"`
}

// TurnConfig tunes turn handling.
type TurnConfig struct {
	Window           int           `yaml:"window" validate:"min=1,max=500"`
	GeneratorTimeout time.Duration `yaml:"generator_timeout"`
	MaxRetries       int           `yaml:"max_retries" validate:"min=0,max=10"`
}

// TelemetryConfig controls tracing and metrics.
//
// OTelEndpoint is "" (tracing off), "stdout" (pretty-printed spans) or a
// host:port of an OTLP gRPC collector.
type TelemetryConfig struct {
	OTelEndpoint  string `yaml:"otel_endpoint"`
	EnableMetrics bool   `yaml:"enable_metrics"`
	ServiceName   string `yaml:"service_name"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=auto json text"`
	Dir    string `yaml:"dir"`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:    DefaultPort,
		GinMode: "release",
		LLM: LLMConfig{
			Backend: "echo",
			Timeout: 2 * time.Minute,
		},
		Store: StoreConfig{
			Backend: "document",
		},
		Turn: TurnConfig{
			Window:           12,
			GeneratorTimeout: 60 * time.Second,
			MaxRetries:       2,
		},
		Telemetry: TelemetryConfig{
			EnableMetrics: true,
			ServiceName:   "aleutian-chat-orchestrator",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load resolves the configuration from defaults, the YAML file at path (if
// non-empty) and the environment, then validates it.
//
// # Outputs
//
//   - *Config: Validated configuration.
//   - error: Unreadable file, malformed YAML, bad env value or a failed
//     validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read the config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides fields from set environment variables.
func (c *Config) applyEnv() error {
	var errs []error

	setString(&c.GinMode, envGinMode)
	setString(&c.LLM.Backend, envLLMBackend)
	setString(&c.LLM.Model, envLLMModel)
	setString(&c.LLM.BaseURL, envLLMBaseURL)
	setString(&c.Store.Backend, envStoreBackend)
	setString(&c.Store.Path, envStorePath)
	setString(&c.Telemetry.OTelEndpoint, envOTelEndpoint)
	setString(&c.Log.Level, envLogLevel)
	setString(&c.Log.Format, envLogFormat)
	setString(&c.Log.Dir, envLogDir)

	errs = append(errs,
		setInt(&c.Port, envPort),
		setInt(&c.Turn.Window, envTurnWindow),
		setInt(&c.Turn.MaxRetries, envGeneratorRetries),
		setDuration(&c.Turn.GeneratorTimeout, envGeneratorTimeout),
		setBool(&c.Telemetry.EnableMetrics, envMetricsEnabled),
	)
	return errors.Join(errs...)
}

// ApplyDefaults fills fields left empty by the file and environment.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.GinMode == "" {
		c.GinMode = d.GinMode
	}
	if c.LLM.Backend == "" {
		c.LLM.Backend = d.LLM.Backend
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = d.LLM.Timeout
	}
	if c.Store.Backend == "" {
		c.Store.Backend = d.Store.Backend
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath(c.Store.Backend)
	}
	if c.Turn.Window == 0 {
		c.Turn.Window = d.Turn.Window
	}
	if c.Turn.GeneratorTimeout <= 0 {
		c.Turn.GeneratorTimeout = d.Turn.GeneratorTimeout
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// DefaultStorePath returns the on-disk location used when store.path is unset.
func DefaultStorePath(backend string) string {
	switch backend {
	case "badger":
		return filepath.Join("data", "sessions.badger")
	case "sqlite":
		return filepath.Join("data", "sessions.db")
	default:
		return filepath.Join("data", "sessions.json")
	}
}

// =============================================================================
// Validation
// =============================================================================

var configValidate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.LLM.Backend == "ollama" && c.LLM.BaseURL == "" {
		return errors.New("invalid configuration: llm.base_url is required for the ollama backend")
	}
	if c.Turn.GeneratorTimeout <= 0 {
		return errors.New("invalid configuration: turn.generator_timeout must be positive")
	}
	return nil
}

// =============================================================================
// Environment Helpers
// =============================================================================

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a duration", key, v)
	}
	*dst = d
	return nil
}
