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

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/ani-companion/services/bandit"
	"github.com/AleutianAI/ani-companion/services/companion/datatypes"
	"github.com/AleutianAI/ani-companion/services/companion/journal"
	"github.com/AleutianAI/ani-companion/services/companion/observability"
)

// HandleFeedback returns the POST /v1/feedback handler.
//
// The reward is attributed to the arm and context journaled for the
// request ID; each turn can be rewarded at most once. Unknown or expired
// request IDs are 404, duplicates 409.
func HandleFeedback(selector *bandit.LinUCB, turns *journal.Store,
	metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := chatTracer.Start(c.Request.Context(), "HandleFeedback")
		defer span.End()

		var req datatypes.FeedbackRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.FeedbackTotal.WithLabelValues("invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.FeedbackTotal.WithLabelValues("invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Claim flips the Rewarded flag in one journal transaction, so under
		// concurrent submissions for the same request ID exactly one caller
		// reaches the bandit update below.
		turn, err := turns.Claim(req.RequestID)
		if err != nil {
			switch {
			case errors.Is(err, journal.ErrTurnNotFound):
				metrics.FeedbackTotal.WithLabelValues("unknown").Inc()
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown or expired request_id"})
			case errors.Is(err, journal.ErrAlreadyRewarded):
				metrics.FeedbackTotal.WithLabelValues("duplicate").Inc()
				c.JSON(http.StatusConflict, gin.H{"error": "turn already rewarded"})
			default:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				slog.Error("Failed to claim journaled turn", "request_id", req.RequestID, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "journal read failed"})
			}
			return
		}

		if err := selector.Update(turn.Arm, *req.Reward, turn.Context); err != nil {
			// The journaled arm/context came from this service, so neither
			// sentinel should ever trip here; if one does, the journal and
			// the bandit configuration have diverged. The claim stays
			// consumed: retrying against a diverged configuration cannot
			// succeed either.
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Bandit update rejected journaled turn",
				"request_id", req.RequestID, "arm", turn.Arm, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reward could not be applied"})
			return
		}

		slog.Info("Applied reward", "request_id", req.RequestID, "arm", turn.Arm, "reward", *req.Reward)
		metrics.FeedbackTotal.WithLabelValues("applied").Inc()
		c.JSON(http.StatusOK, datatypes.FeedbackResponse{
			Status: "applied",
			Arm:    turn.Arm,
		})
	}
}
