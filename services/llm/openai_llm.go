// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// chatMaxAttempts is the total number of tries per request: the first
// attempt plus one retry on transient errors (429, 5xx, transport).
const chatMaxAttempts = 2

type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(model string) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from container secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OpenAI model not configured, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Chat implements the LLMClient interface.
//
// The request is attempted at most chatMaxAttempts times; only 429s, 5xx
// responses, and transport errors are retried. A 2xx response with no text
// is ErrEmptyCompletion, never retried.
func (o *OpenAIClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	var lastErr error
	for attempt := 1; attempt <= chatMaxAttempts; attempt++ {
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if attempt < chatMaxAttempts && isRetryable(err) {
				slog.Warn("Transient OpenAI error, retrying",
					"attempt", attempt, "max_attempts", chatMaxAttempts, "error", err)
				continue
			}
			slog.Error("OpenAI API call failed", "error", err)
			return "", fmt.Errorf("OpenAI API call failed: %w", err)
		}

		if len(resp.Choices) == 0 {
			slog.Warn("OpenAI returned no choices")
			return "", ErrEmptyCompletion
		}
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			slog.Warn("OpenAI returned empty content", "finish_reason", resp.Choices[0].FinishReason)
			return "", ErrEmptyCompletion
		}
		return content, nil
	}
	return "", fmt.Errorf("OpenAI API call failed: %w", lastErr)
}

// isRetryable reports whether an error from the OpenAI client is worth one
// more attempt: rate limits, server-side failures, and transport errors.
// Context cancellation and other 4xx responses are permanent.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	// Anything else is a transport-level failure (DNS, reset, timeout).
	return true
}
