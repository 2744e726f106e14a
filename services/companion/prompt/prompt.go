// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompt builds the system prompt steering Ani's tone and provides
// the deterministic fallback reply used when no LLM answer is available.
package prompt

import (
	"fmt"
	"strings"
)

// Tone identifiers. These double as the bandit's arm identifiers, so the
// selector can pick any directive independent of the affection bucket.
const (
	ToneNeutral = "neutral"
	ToneWarm    = "warm"
	ToneExcited = "excited"
)

// Tones lists the tone identifiers in their canonical order.
func Tones() []string {
	return []string{ToneNeutral, ToneWarm, ToneExcited}
}

const baseRules = "You are Ani, a playful companion. Respond in 1 to 3 sentences with no more than two line breaks. " +
	"Open by mirroring the user's key idea in a short phrase so they feel heard. " +
	"Be positive yet grounded-avoid over-praise or excessive exclamations. " +
	"Ask at most one brief follow-up question and only if it meaningfully moves the chat forward. " +
	"Use at most one emoji overall."

var toneDirectives = map[string]string{
	ToneNeutral: "Keep the tone steady and neutral-positive, like a thoughtful teammate. " +
		"Stay calm, clear, and quietly encouraging without hype.",
	ToneWarm: "Lean into a warm, gently upbeat vibe-encouraging and friendly. " +
		"A single soft emoji is welcome only if it fits naturally.",
	ToneExcited: "Bring excited, sparkling energy with crisp sentences. " +
		"Show genuine hype while staying concise; one playful emoji max.",
}

// ToneForAffection maps an affection score (0-10) to its tone bucket:
// neutral below 3, warm from 3 through 6, excited from 7 up.
func ToneForAffection(affection int) string {
	switch {
	case affection < 3:
		return ToneNeutral
	case affection < 7:
		return ToneWarm
	default:
		return ToneExcited
	}
}

// Directive returns the tone directive for a tone identifier.
func Directive(tone string) (string, bool) {
	d, ok := toneDirectives[tone]
	return d, ok
}

// SystemPromptForTone returns the full system prompt for a tone identifier.
// Unknown tones fall back to the neutral directive.
func SystemPromptForTone(tone string) string {
	directive, ok := toneDirectives[tone]
	if !ok {
		directive = toneDirectives[ToneNeutral]
	}
	return baseRules + " " + directive
}

// SystemPrompt returns the guidance string for an affection score, using
// the score's tone bucket directly.
func SystemPrompt(affection int) string {
	return SystemPromptForTone(ToneForAffection(affection))
}

// StubReply is the deterministic fallback that roughly mirrors the desired
// style: it echoes the topic and a truncated summary of the user's message,
// then asks the standard follow-up.
func StubReply(user, topic string) string {
	focus := strings.TrimSpace(topic)
	if focus == "" {
		focus = "that topic"
	}
	// Truncation counts characters, not bytes, so a multibyte utterance is
	// never cut mid-rune.
	summary := strings.TrimSpace(user)
	if runes := []rune(summary); len(runes) > 80 {
		summary = string(runes[:77]) + "..."
	}
	if summary == "" {
		summary = "your idea"
	}
	return fmt.Sprintf("I hear you on %s: %s. What feels like the next step for you?", focus, summary)
}
