// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides clients for the external response generator.
//
// # Description
//
// Every backend implements ChatClient: an ordered list of role-tagged
// messages plus generation parameters in, generated text or an error out.
// Callers treat every error as recoverable.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
)

var tracer = otel.Tracer("aleutian.llm")

// GenerationParams carries per-call sampling settings. Nil fields use the
// backend default.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// ChatClient defines the standard interface for any generator backend.
type ChatClient interface {
	// Chat sends the ordered messages and returns the assistant text.
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
}

// Backend names a ChatClient implementation.
type Backend string

const (
	BackendOpenAI    Backend = "openai"
	BackendOllama    Backend = "ollama"
	BackendAnthropic Backend = "anthropic"
	BackendEcho      Backend = "echo"
)

// ErrMissingAPIKey is returned when a hosted backend has no credentials.
var ErrMissingAPIKey = errors.New("api key is missing")

// Config selects and configures a backend.
//
// # Fields
//
//   - Backend: One of openai, ollama, anthropic, echo.
//   - Model: Model name. Empty uses the backend default.
//   - BaseURL: API root. Required for ollama, optional otherwise.
//   - APIKey: Optional. When empty the key is read from the backend's
//     environment variable, then from /run/secrets.
//   - HTTPTimeout: Transport timeout for a single request.
type Config struct {
	Backend     Backend
	Model       string
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration
}

// NewClient builds the configured backend.
func NewClient(cfg Config) (ChatClient, error) {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 2 * time.Minute
	}
	switch cfg.Backend {
	case BackendOpenAI:
		return NewOpenAIClient(cfg)
	case BackendOllama:
		return NewOllamaClient(cfg)
	case BackendAnthropic:
		return NewAnthropicClient(cfg)
	case BackendEcho, "":
		return NewEchoClient(), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}

// resolveAPIKey returns explicit, then $envVar, then /run/secrets/<secretName>.
func resolveAPIKey(explicit, envVar, secretName string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}
	secretPath := "/run/secrets/" + secretName
	if content, err := os.ReadFile(secretPath); err == nil {
		if key := strings.TrimSpace(string(content)); key != "" {
			slog.Info("Read API key from secrets", "path", secretPath)
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: set %s or %s", ErrMissingAPIKey, envVar, secretPath)
}
