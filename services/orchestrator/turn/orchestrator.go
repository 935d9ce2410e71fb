// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package turn runs the per-message workflow: fetch the session, choose a
// mode, build the context, call the generator and commit the result.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianChat/services/llm"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/modes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/prompt"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/sessions"
)

var tracer = otel.Tracer("aleutian.turn")

// errEmptyReply marks a generator response with no text.
var errEmptyReply = errors.New("generator returned an empty reply")

// =============================================================================
// Configuration
// =============================================================================

// Config tunes turn handling.
//
// # Fields
//
//   - Window: Transcript messages sent to the generator. <= 0 uses
//     prompt.DefaultWindow.
//   - GeneratorTimeout: Deadline for the whole generator phase, retries
//     included. <= 0 uses DefaultGeneratorTimeout.
//   - MaxRetries: Extra attempts after the first failed call. 0 disables
//     retry.
//   - RetryInitialInterval: First backoff delay. <= 0 uses 200ms.
type Config struct {
	Window               int
	GeneratorTimeout     time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
}

// DefaultGeneratorTimeout bounds a generator phase when none is configured.
const DefaultGeneratorTimeout = 60 * time.Second

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = prompt.DefaultWindow
	}
	if c.GeneratorTimeout <= 0 {
		c.GeneratorTimeout = DefaultGeneratorTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = 200 * time.Millisecond
	}
	return c
}

// =============================================================================
// Orchestrator
// =============================================================================

// Result is the outcome of one turn.
type Result struct {
	Reply    string
	ModeUsed datatypes.ModeID
}

// Orchestrator handles turns.
//
// # Description
//
// Turns on the same session run one at a time under the Manager's session
// lock, which also orders them against delete, rename and mode changes.
// Turns on different sessions run concurrently. A generator failure never fails the
// turn: the fallback reply is recorded and returned instead.
//
// # Thread Safety
//
// Safe for concurrent use.
type Orchestrator struct {
	sessions  *sessions.Manager
	generator llm.ChatClient
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.ChatMetrics
}

// New returns an Orchestrator.
//
// # Inputs
//
//   - mgr: Session lifecycle manager. Required.
//   - gen: Generator client. Required.
//   - cfg: Tuning; zero values take defaults.
//   - logger: Optional; slog.Default() when nil.
//   - metrics: Optional; nil disables recording.
func New(mgr *sessions.Manager, gen llm.ChatClient, cfg Config, logger *slog.Logger, metrics *observability.ChatMetrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions:  mgr,
		generator: gen,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		metrics:   metrics,
	}
}

// HandleTurn appends a user message and the assistant reply to a session.
//
// # Description
//
//  1. Blank sessionID or userText fails with datatypes.ErrInvalidRequest.
//  2. An unknown session fails with datatypes.ErrNotFound; nothing is written.
//  3. The user message is appended to an owned copy of the session.
//  4. The mode is chosen from the forced mode or the message text.
//  5. The bounded context is built from the profile, memory and transcript.
//  6. The generator is called within GeneratorTimeout, with up to
//     MaxRetries retries. Any failure yields datatypes.FallbackReply.
//  7. The reply is appended and memory is overwritten with userText.
//  8. The full session is committed.
//
// # Outputs
//
//   - *Result: Reply text and the mode actually used.
//   - error: ErrInvalidRequest, ErrNotFound, or a storage failure.
//
// # Limitations
//
//   - The commit runs even if ctx is canceled after the session was fetched,
//     so a started turn is never half-recorded.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, userText string) (*Result, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(userText) == "" {
		return nil, fmt.Errorf("%w: chatId and message are required", datatypes.ErrInvalidRequest)
	}

	ctx, span := tracer.Start(ctx, "turn.HandleTurn",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()
	began := time.Now()

	unlock := o.sessions.Lock(sessionID)
	defer unlock()

	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, datatypes.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch failed")
		}
		return nil, err
	}

	sess.Append(datatypes.RoleUser, userText)
	profile := modes.Classify(userText, sess.ForcedMode)
	span.SetAttributes(attribute.String("turn.mode", string(profile.ID)))

	window := prompt.Build(profile, sess.Memory, sess.Messages, o.cfg.Window)
	reply, genErr := o.generate(ctx, window, profile)

	outcome := observability.TurnOutcomeSuccess
	if genErr != nil {
		outcome = observability.TurnOutcomeFallback
		reason := observability.FailureReasonError
		if errors.Is(genErr, context.DeadlineExceeded) {
			reason = observability.FailureReasonTimeout
		}
		o.metrics.RecordGeneratorFailure(reason)
		o.logger.Warn("generator failed, using fallback reply",
			"session_id", sessionID,
			"mode", string(profile.ID),
			"reason", string(reason),
			"error", genErr)
		span.AddEvent("fallback", trace.WithAttributes(attribute.String("error", genErr.Error())))
		reply = datatypes.FallbackReply
	}

	sess.Append(datatypes.RoleAssistant, reply)
	sess.Memory = userText

	if err := o.sessions.Commit(context.WithoutCancel(ctx), sessionID, sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return nil, err
	}

	o.metrics.RecordTurn(string(profile.ID), outcome, time.Since(began))
	span.SetAttributes(attribute.String("turn.outcome", string(outcome)))
	o.logger.Info("turn completed",
		"session_id", sessionID,
		"mode", string(profile.ID),
		"outcome", string(outcome),
		"messages", len(sess.Messages),
		"duration_ms", time.Since(began).Milliseconds())

	return &Result{Reply: reply, ModeUsed: profile.ID}, nil
}

// generate calls the generator with retry inside one overall deadline.
func (o *Orchestrator) generate(ctx context.Context, messages []datatypes.Message, p modes.Profile) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.GeneratorTimeout)
	defer cancel()

	temperature := p.Temperature
	maxTokens := p.MaxTokens
	params := llm.GenerationParams{Temperature: &temperature, MaxTokens: &maxTokens}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.RetryInitialInterval

	op := func() (string, error) {
		start := time.Now()
		reply, err := o.generator.Chat(ctx, messages, params)
		if err == nil && strings.TrimSpace(reply) == "" {
			err = errEmptyReply
		}
		o.metrics.RecordGenerator(err == nil, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return "", backoff.Permanent(ctx.Err())
			}
			return "", err
		}
		return reply, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(o.cfg.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			o.metrics.RecordGeneratorRetry()
			o.logger.Debug("retrying generator call", "error", err, "backoff", next)
		}),
	)
}
