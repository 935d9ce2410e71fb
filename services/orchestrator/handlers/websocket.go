// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// wsMaxFrameBytes bounds one inbound frame; a chat message is capped at
	// 32KB so this leaves room for the JSON envelope.
	wsMaxFrameBytes = 64 * 1024

	// wsWriteWait bounds a single frame write.
	wsWriteWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

func sendJSON(ws *websocket.Conn, v any) error {
	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("failed to write websocket frame", "error", err)
	}
	return err
}

// HandleChatWebSocket handles GET /api/chat/:id/ws.
//
// # Description
//
// Upgrades the connection and runs one turn per inbound frame on the
// session named in the path. Each {"message": "..."} frame is answered by
// exactly one {"reply", "modeUsed"} frame, or {"error"} when the turn
// could not run. The socket stays open after a per-frame error.
//
// The session is checked before upgrading so an unknown id is a plain 404.
//
// # Limitations
//
//   - Frames from one connection are handled sequentially.
//   - The connection closes if the session is deleted while it is open.
func HandleChatWebSocket(svc SessionService, turns TurnHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")
		if _, err := svc.Get(c.Request.Context(), sessionID); err != nil {
			respondError(c, "chat_ws", err)
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		ws.SetReadLimit(wsMaxFrameBytes)
		slog.Info("websocket client connected", "session_id", sessionID)

		ctx := c.Request.Context()
		for {
			var req datatypes.WSTurnRequest
			if err := ws.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Warn("websocket read failed", "session_id", sessionID, "error", err)
				}
				return
			}

			if strings.TrimSpace(req.Message) == "" {
				if sendJSON(ws, datatypes.WSTurnResponse{Error: "message is required"}) != nil {
					return
				}
				continue
			}

			res, err := turns.HandleTurn(ctx, sessionID, req.Message)
			if err != nil {
				msg := "internal error"
				if statusFor(err) < http.StatusInternalServerError {
					msg = err.Error()
				} else {
					slog.Error("websocket turn failed", "session_id", sessionID, "error", err)
				}
				if sendJSON(ws, datatypes.WSTurnResponse{Error: msg}) != nil {
					return
				}
				if errors.Is(err, datatypes.ErrNotFound) {
					_ = ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session deleted"),
						time.Now().Add(wsWriteWait))
					return
				}
				continue
			}

			if sendJSON(ws, datatypes.WSTurnResponse{Reply: res.Reply, ModeUsed: res.ModeUsed}) != nil {
				return
			}
		}
	}
}
