// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response types for the companion
// service's HTTP surface.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxUserUtteranceBytes is the maximum size of a single user utterance.
	// Byte length, not rune count, so oversized payloads are rejected
	// regardless of encoding.
	MaxUserUtteranceBytes = 4 * 1024 // 4KB

	// MaxTopicLength is the maximum length of a topic label.
	MaxTopicLength = 64
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for companion datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxUserUtteranceBytes on a string field.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxUserUtteranceBytes
}

// =============================================================================
// Chat Types
// =============================================================================

// ChatRequest is the body of POST /v1/chat.
//
// Affection is a pointer so an absent field can default to the reference
// value (5) instead of zero. RequestID is optional; the handler generates a
// UUID when it is missing so the turn can still receive feedback later.
type ChatRequest struct {
	RequestID string `json:"request_id" validate:"omitempty,uuid4"`
	User      string `json:"user" validate:"required,maxbytes"`
	Topic     string `json:"topic" validate:"omitempty,max=64"`
	Affection *int   `json:"affection" validate:"omitempty,min=0,max=10"`
}

// Validate checks the request against its constraints.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// AffectionOrDefault returns the supplied affection score, or 5 when the
// field was absent.
func (r *ChatRequest) AffectionOrDefault() int {
	if r.Affection == nil {
		return 5
	}
	return *r.Affection
}

// ChatResponse is the body returned by POST /v1/chat.
//
// Source is "llm" when the hosted model produced the reply and "stub" when
// the deterministic fallback did. Tone is the bandit-selected arm, echoed
// so the frontend can correlate feedback with the decision.
type ChatResponse struct {
	Reply     string `json:"reply"`
	RequestID string `json:"request_id"`
	Tone      string `json:"tone"`
	Source    string `json:"source"`
}

// =============================================================================
// Feedback Types
// =============================================================================

// FeedbackRequest is the body of POST /v1/feedback: the realized reward for
// a previously answered chat turn. Reward is an unconstrained real number.
type FeedbackRequest struct {
	RequestID string   `json:"request_id" validate:"required,uuid4"`
	Reward    *float64 `json:"reward" validate:"required"`
}

// Validate checks the request against its constraints.
func (r *FeedbackRequest) Validate() error {
	return chatValidate.Struct(r)
}

// FeedbackResponse is the body returned by POST /v1/feedback.
type FeedbackResponse struct {
	Status string `json:"status"`
	Arm    string `json:"arm"`
}
