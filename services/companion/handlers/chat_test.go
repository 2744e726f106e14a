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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ani-companion/services/bandit"
	"github.com/AleutianAI/ani-companion/services/companion/datatypes"
	"github.com/AleutianAI/ani-companion/services/companion/features"
	"github.com/AleutianAI/ani-companion/services/companion/journal"
	"github.com/AleutianAI/ani-companion/services/companion/observability"
	"github.com/AleutianAI/ani-companion/services/companion/prompt"
	"github.com/AleutianAI/ani-companion/services/companion/state"
	"github.com/AleutianAI/ani-companion/services/llm"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// MockLLMClient implements llm.LLMClient for handler testing.
type MockLLMClient struct {
	ChatResponse string
	ChatError    error
	Calls        int
}

func (m *MockLLMClient) Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error) {
	m.Calls++
	return m.ChatResponse, m.ChatError
}

// testDeps bundles the collaborators every handler test needs.
type testDeps struct {
	selector *bandit.LinUCB
	store    *state.Store
	turns    *journal.Store
	metrics  *observability.Metrics
}

func newTestDeps(t *testing.T) testDeps {
	t.Helper()
	selector, err := bandit.NewDefault(prompt.Tones(), features.ContextDim)
	require.NoError(t, err)

	turns, err := journal.Open(journal.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = turns.Close()
	})

	return testDeps{
		selector: selector,
		store:    state.NewStore(filepath.Join(t.TempDir(), "state.json")),
		turns:    turns,
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
	}
}

func newChatRouter(deps testDeps, llmClient llm.LLMClient) *gin.Engine {
	router := gin.New()
	router.POST("/v1/chat", HandleChat(llmClient, deps.selector, deps.store, deps.turns, deps.metrics))
	router.POST("/v1/feedback", HandleFeedback(deps.selector, deps.turns, deps.metrics))
	return router
}

// performRequest executes an HTTP request against the test router.
func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func intPtr(v int) *int { return &v }

// =============================================================================
// HandleChat Tests
// =============================================================================

func TestHandleChat_Success(t *testing.T) {
	deps := newTestDeps(t)
	mockLLM := &MockLLMClient{ChatResponse: "Solo hiking sounds epic!"}
	router := newChatRouter(deps, mockLLM)

	w := performRequest(router, "POST", "/v1/chat", datatypes.ChatRequest{
		User:      "I want to hike alone this weekend",
		Topic:     "hiking",
		Affection: intPtr(8),
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Solo hiking sounds epic!", resp.Reply)
	assert.Equal(t, SourceLLM, resp.Source)
	assert.NotEmpty(t, resp.RequestID)
	assert.Contains(t, prompt.Tones(), resp.Tone)
	assert.Equal(t, 1, mockLLM.Calls)

	// The turn must be journaled under the returned request ID.
	turn, err := deps.turns.Get(resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, resp.Tone, turn.Arm)
	assert.Len(t, turn.Context, features.ContextDim)

	// Counters advance and persist.
	conv := deps.store.Snapshot()
	assert.Equal(t, 1, conv.Turns)
	assert.Equal(t, 8, conv.Affection)
	assert.Equal(t, "hiking", conv.Topic)
}

func TestHandleChat_LLMFailureFallsBackToStub(t *testing.T) {
	deps := newTestDeps(t)
	mockLLM := &MockLLMClient{ChatError: errors.New("upstream exploded")}
	router := newChatRouter(deps, mockLLM)

	w := performRequest(router, "POST", "/v1/chat", datatypes.ChatRequest{
		User:  "thinking about learning guitar",
		Topic: "music",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, SourceStub, resp.Source)
	assert.Equal(t, prompt.StubReply("thinking about learning guitar", "music"), resp.Reply)

	// A failed LLM call still counts as a completed turn.
	assert.Equal(t, 1, deps.store.Snapshot().Turns)
}

func TestHandleChat_NilClientRunsStubOnly(t *testing.T) {
	deps := newTestDeps(t)
	router := newChatRouter(deps, nil)

	w := performRequest(router, "POST", "/v1/chat", datatypes.ChatRequest{User: "hello"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, SourceStub, resp.Source)
}

func TestHandleChat_Defaults(t *testing.T) {
	deps := newTestDeps(t)
	router := newChatRouter(deps, &MockLLMClient{ChatResponse: "hi"})

	w := performRequest(router, "POST", "/v1/chat", map[string]any{"user": "hello"})

	require.Equal(t, http.StatusOK, w.Code)
	conv := deps.store.Snapshot()
	assert.Equal(t, 5, conv.Affection)
	assert.Equal(t, state.DefaultTopic, conv.Topic)
}

func TestHandleChat_InvalidRequests(t *testing.T) {
	deps := newTestDeps(t)
	router := newChatRouter(deps, &MockLLMClient{ChatResponse: "hi"})

	t.Run("malformed body", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/v1/chat", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing user", func(t *testing.T) {
		w := performRequest(router, "POST", "/v1/chat", map[string]any{"topic": "hiking"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("affection out of range", func(t *testing.T) {
		w := performRequest(router, "POST", "/v1/chat", map[string]any{"user": "hi", "affection": 42})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no turn is recorded", func(t *testing.T) {
		assert.Equal(t, 0, deps.store.Snapshot().Turns)
	})
}

func TestHandleChat_SuppliedRequestIDIsKept(t *testing.T) {
	deps := newTestDeps(t)
	router := newChatRouter(deps, &MockLLMClient{ChatResponse: "hi"})
	id := "550e8400-e29b-41d4-a716-446655440000"

	w := performRequest(router, "POST", "/v1/chat", datatypes.ChatRequest{User: "hello", RequestID: id})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.RequestID)

	_, err := deps.turns.Get(id)
	assert.NoError(t, err)
}
