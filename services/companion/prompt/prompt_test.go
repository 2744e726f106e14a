// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestToneForAffection(t *testing.T) {
	cases := []struct {
		affection int
		want      string
	}{
		{0, ToneNeutral},
		{2, ToneNeutral},
		{3, ToneWarm},
		{6, ToneWarm},
		{7, ToneExcited},
		{10, ToneExcited},
	}
	for _, tc := range cases {
		if got := ToneForAffection(tc.affection); got != tc.want {
			t.Errorf("ToneForAffection(%d): expected %q, got %q", tc.affection, tc.want, got)
		}
	}
}

func TestSystemPromptForTone(t *testing.T) {
	t.Run("contains base rules and directive", func(t *testing.T) {
		p := SystemPromptForTone(ToneExcited)
		if !strings.Contains(p, "You are Ani") {
			t.Error("prompt missing persona rules")
		}
		if !strings.Contains(p, "sparkling energy") {
			t.Error("prompt missing excited directive")
		}
	})

	t.Run("unknown tone falls back to neutral", func(t *testing.T) {
		if SystemPromptForTone("mystery") != SystemPromptForTone(ToneNeutral) {
			t.Error("unknown tone should use the neutral directive")
		}
	})

	t.Run("every tone has a directive", func(t *testing.T) {
		for _, tone := range Tones() {
			if _, ok := Directive(tone); !ok {
				t.Errorf("tone %q has no directive", tone)
			}
		}
	})
}

func TestStubReply(t *testing.T) {
	t.Run("mirrors topic and summary", func(t *testing.T) {
		got := StubReply("I want to hike alone", "hiking")
		want := "I hear you on hiking: I want to hike alone. What feels like the next step for you?"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("truncates long input", func(t *testing.T) {
		long := strings.Repeat("a", 120)
		got := StubReply(long, "plans")
		if !strings.Contains(got, strings.Repeat("a", 77)+"...") {
			t.Error("long input should be truncated to 77 chars plus ellipsis")
		}
		if strings.Contains(got, strings.Repeat("a", 78)) {
			t.Error("truncation kept too much input")
		}
	})

	t.Run("truncates multibyte input on rune boundaries", func(t *testing.T) {
		long := strings.Repeat("み", 100)
		got := StubReply(long, "hiking")
		if !utf8.ValidString(got) {
			t.Fatalf("reply contains invalid UTF-8: %q", got)
		}
		if !strings.Contains(got, strings.Repeat("み", 77)+"...") {
			t.Error("long input should be truncated to 77 runes plus ellipsis")
		}
		if strings.Contains(got, strings.Repeat("み", 78)) {
			t.Error("truncation kept too much input")
		}
	})

	t.Run("short multibyte input is untouched", func(t *testing.T) {
		user := strings.Repeat("み", 40)
		got := StubReply(user, "hiking")
		want := "I hear you on hiking: " + user + ". What feels like the next step for you?"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("empty inputs use placeholders", func(t *testing.T) {
		got := StubReply("   ", "  ")
		want := "I hear you on that topic: your idea. What feels like the next step for you?"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})
}
