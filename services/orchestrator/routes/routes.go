// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/AleutianChat/services/orchestrator/handlers"
	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the chat API on router.
//
// # Routes
//
//	GET    /health
//	GET    /api/chats
//	POST   /api/new-chat
//	POST   /api/chat
//	GET    /api/chat/:id
//	DELETE /api/chat/:id
//	PUT    /api/chat/:id/title
//	PUT    /api/chat/:id/mode
//	GET    /api/chat/:id/ws
//	GET    /api/modes
//
// /metrics is mounted by the service since it depends on the registry.
func SetupRoutes(router *gin.Engine, svc handlers.SessionService, turns handlers.TurnHandler) {
	router.GET("/health", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/chats", handlers.ListChats(svc))
		api.POST("/new-chat", handlers.NewChat(svc))
		api.POST("/chat", handlers.PostChat(turns))
		api.GET("/modes", handlers.ListModes())

		chat := api.Group("/chat/:id")
		{
			chat.GET("", handlers.GetChat(svc))
			chat.DELETE("", handlers.DeleteChat(svc))
			chat.PUT("/title", handlers.RenameChat(svc))
			chat.PUT("/mode", handlers.SetChatMode(svc))
			chat.GET("/ws", handlers.HandleChatWebSocket(svc, turns))
		}
	}
}
