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
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/ani-companion/services/bandit"
	"github.com/AleutianAI/ani-companion/services/companion/datatypes"
	"github.com/AleutianAI/ani-companion/services/companion/features"
	"github.com/AleutianAI/ani-companion/services/companion/journal"
	"github.com/AleutianAI/ani-companion/services/companion/observability"
	"github.com/AleutianAI/ani-companion/services/companion/prompt"
	"github.com/AleutianAI/ani-companion/services/companion/state"
	"github.com/AleutianAI/ani-companion/services/llm"
)

var chatTracer = otel.Tracer("ani.companion.handlers")

// Reply sources reported in responses and metrics.
const (
	SourceLLM  = "llm"
	SourceStub = "stub"
)

// llmTimeout bounds one hosted-model call, including its single retry.
const llmTimeout = 30 * time.Second

var (
	llmTemperature float32 = 0.7
	llmMaxTokens           = 160
)

// HandleChat returns the POST /v1/chat handler.
//
// Flow: validate the request, pick a tone arm for the current context,
// build the tone-conditioned system prompt, ask the LLM (deterministic stub
// on nil client, error, or empty answer), update the persisted counters,
// and journal the turn so feedback can reach the bandit later.
//
// llmClient may be nil: the service then runs in stub-only mode, exactly
// like an LLM failure on every turn.
func HandleChat(llmClient llm.LLMClient, selector *bandit.LinUCB, st *state.Store,
	turns *journal.Store, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		started := time.Now()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the chat request", "error", err)
			metrics.ChatRequestsTotal.WithLabelValues(SourceStub, "invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Warn("Rejected chat request", "error", err)
			metrics.ChatRequestsTotal.WithLabelValues(SourceStub, "invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		topic := req.Topic
		if topic == "" {
			topic = state.DefaultTopic
		}
		affection := req.AffectionOrDefault()
		requestID := req.RequestID
		if requestID == "" {
			requestID = uuid.NewString()
		}

		prev := st.Snapshot()
		context := features.Context(affection, prev.Turns, topic, prev.Topic)

		tone, err := selector.SelectArm(context)
		if err != nil {
			// Feature builder and selector disagree on dimensionality; a
			// deploy-time defect, not a user error. Serve the affection
			// bucket instead of failing the turn.
			span.RecordError(err)
			slog.Error("Tone selection failed; using affection bucket", "error", err)
			tone = prompt.ToneForAffection(affection)
		}
		metrics.ToneSelectionsTotal.WithLabelValues(tone).Inc()

		reply, source := craftReply(ctx, llmClient, tone, topic, req.User)

		st.ApplyTurn(affection, topic)

		if err := turns.Put(journal.Turn{
			RequestID: requestID,
			Arm:       tone,
			Context:   context,
			Topic:     topic,
			Source:    source,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			// The reply is still good; the turn just cannot receive feedback.
			span.RecordError(err)
			slog.Error("Failed to journal chat turn", "request_id", requestID, "error", err)
		}

		metrics.ChatRequestsTotal.WithLabelValues(source, "ok").Inc()
		metrics.ReplyLatencySeconds.WithLabelValues(source).Observe(time.Since(started).Seconds())

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			Reply:     reply,
			RequestID: requestID,
			Tone:      tone,
			Source:    source,
		})
	}
}

// craftReply asks the hosted model for a reply and falls back to the
// deterministic stub on any failure or empty answer.
func craftReply(parent context.Context, llmClient llm.LLMClient, tone, topic, user string) (string, string) {
	if llmClient == nil {
		return prompt.StubReply(user, topic), SourceStub
	}

	ctx, cancel := context.WithTimeout(parent, llmTimeout)
	defer cancel()

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompt.SystemPromptForTone(tone)},
		{Role: llm.RoleUser, Content: "[Topic: " + topic + "] " + user},
	}
	params := llm.GenerationParams{
		Temperature: &llmTemperature,
		MaxTokens:   &llmMaxTokens,
	}
	answer, err := llmClient.Chat(ctx, messages, params)
	if err != nil {
		slog.Error("LLMClient.Chat failed; using stub reply", "error", err)
		return prompt.StubReply(user, topic), SourceStub
	}
	return answer, SourceLLM
}
