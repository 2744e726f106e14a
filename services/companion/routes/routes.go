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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/ani-companion/services/bandit"
	"github.com/AleutianAI/ani-companion/services/companion/handlers"
	"github.com/AleutianAI/ani-companion/services/companion/journal"
	"github.com/AleutianAI/ani-companion/services/companion/observability"
	"github.com/AleutianAI/ani-companion/services/companion/state"
	"github.com/AleutianAI/ani-companion/services/llm"
)

// SetupRoutes registers the companion service's HTTP surface.
func SetupRoutes(router *gin.Engine, llmClient llm.LLMClient, selector *bandit.LinUCB,
	st *state.Store, turns *journal.Store, metrics *observability.Metrics) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/chat", handlers.HandleChat(llmClient, selector, st, turns, metrics))
		v1.POST("/feedback", handlers.HandleFeedback(selector, turns, metrics))
		v1.GET("/state", handlers.GetConversationState(st))
		v1.GET("/bandit", handlers.GetBanditState(selector))
	}
}
