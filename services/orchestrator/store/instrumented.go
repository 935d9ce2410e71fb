// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/observability"
)

var tracer = otel.Tracer("aleutian.store")

// Instrumented decorates a Store with a span and metrics per operation.
//
// ErrNotFound is a normal outcome and is not counted as a failure.
type Instrumented struct {
	inner   Store
	backend string
	metrics *observability.ChatMetrics
}

// NewInstrumented wraps inner. A nil metrics disables recording; spans are
// always emitted through the global tracer provider.
func NewInstrumented(inner Store, backend string, metrics *observability.ChatMetrics) *Instrumented {
	return &Instrumented{inner: inner, backend: backend, metrics: metrics}
}

// Unwrap returns the decorated store.
func (s *Instrumented) Unwrap() Store { return s.inner }

func (s *Instrumented) start(ctx context.Context, op, id string) (context.Context, trace.Span, time.Time) {
	attrs := []attribute.KeyValue{
		attribute.String("store.backend", s.backend),
		attribute.String("store.op", op),
	}
	if id != "" {
		attrs = append(attrs, attribute.String("session.id", id))
	}
	ctx, span := tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (s *Instrumented) finish(span trace.Span, op string, began time.Time, err error) {
	failed := err != nil && !errors.Is(err, ErrNotFound)
	s.metrics.RecordStoreOp(s.backend, op, time.Since(began), !failed)
	if failed {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
	}
	span.End()
}

// Get implements Store.
func (s *Instrumented) Get(ctx context.Context, id string) (*datatypes.Session, error) {
	ctx, span, began := s.start(ctx, "get", id)
	sess, err := s.inner.Get(ctx, id)
	s.finish(span, "get", began, err)
	return sess, err
}

// Put implements Store.
func (s *Instrumented) Put(ctx context.Context, id string, sess *datatypes.Session) error {
	ctx, span, began := s.start(ctx, "put", id)
	err := s.inner.Put(ctx, id, sess)
	s.finish(span, "put", began, err)
	return err
}

// Delete implements Store.
func (s *Instrumented) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span, began := s.start(ctx, "delete", id)
	existed, err := s.inner.Delete(ctx, id)
	span.SetAttributes(attribute.Bool("store.existed", existed))
	s.finish(span, "delete", began, err)
	return existed, err
}

// List implements Store.
func (s *Instrumented) List(ctx context.Context) ([]datatypes.SessionSummary, error) {
	ctx, span, began := s.start(ctx, "list", "")
	out, err := s.inner.List(ctx)
	span.SetAttributes(attribute.Int("store.count", len(out)))
	s.finish(span, "list", began, err)
	return out, err
}

// Close implements Store.
func (s *Instrumented) Close() error {
	return s.inner.Close()
}
