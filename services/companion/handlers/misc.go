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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ani-companion/services/bandit"
	"github.com/AleutianAI/ani-companion/services/companion/state"
)

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetConversationState returns the persisted conversation counters.
func GetConversationState(st *state.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv := st.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"affection": conv.Affection,
			"topic":     conv.Topic,
			"turns":     conv.Turns,
		})
	}
}

// GetBanditState exposes every arm's current statistics for manual QA.
// Snapshots are deep copies, so serving them cannot alias engine state.
func GetBanditState(selector *bandit.LinUCB) gin.HandlerFunc {
	return func(c *gin.Context) {
		arms := selector.Arms()
		states := make(map[string]bandit.ArmSnapshot, len(arms))
		for _, arm := range arms {
			snap, err := selector.ArmState(arm)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			states[arm] = snap
		}
		c.JSON(http.StatusOK, gin.H{
			"arms":        arms,
			"context_dim": selector.ContextDim(),
			"states":      states,
		})
	}
}
