// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides gin middleware shared by all orchestrator
// routes: request correlation ids and per-endpoint request metrics.
package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/observability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key for the correlation id.
const requestIDKey = "aleutian_request_id"

// maxRequestIDLen bounds a client-supplied id before it is trusted.
const maxRequestIDLen = 128

// =============================================================================
// Context Helpers
// =============================================================================

// GetRequestID returns the correlation id set by RequestID, or "".
//
// # Thread Safety
//
// Safe to call concurrently (gin context is request-scoped).
func GetRequestID(c *gin.Context) string {
	if v, exists := c.Get(requestIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// =============================================================================
// Request ID Middleware
// =============================================================================

// RequestID assigns every request a correlation id.
//
// # Description
//
// Reuses a well-formed X-Request-ID from the client, otherwise generates a
// UUID. The id is stored in the gin context and echoed in the response
// header.
//
// # Examples
//
//	router.Use(middleware.RequestID())
//	...
//	slog.Info("turn done", "request_id", middleware.GetRequestID(c))
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// =============================================================================
// Metrics Middleware
// =============================================================================

// RequestMetrics records one request counter sample per completed request.
//
// The endpoint label is the matched route template (for example
// "/api/chat/:id"), never the raw path, so session ids do not explode the
// label set. Unmatched routes are recorded as "unmatched".
//
// # Inputs
//
//   - metrics: Destination. nil makes the middleware a pass-through.
func RequestMetrics(metrics *observability.ChatMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method+" "+endpoint, c.Writer.Status())
		slog.Debug("request completed",
			"method", c.Request.Method,
			"endpoint", endpoint,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", GetRequestID(c),
		)
	}
}
