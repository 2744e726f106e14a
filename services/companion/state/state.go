// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package state persists the small per-conversation counters (affection,
// topic, turn count) as a single JSON document between chat turns.
//
// Durability is best effort: a conversation that cannot be saved must never
// take the chat endpoint down, so write failures are logged and swallowed.
package state

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
)

const (
	DefaultAffection = 5
	DefaultTopic     = "general"

	minAffection = 0
	maxAffection = 10
)

// Conversation is the JSON-serialized counter set.
type Conversation struct {
	Affection int            `json:"affection"`
	Topic     string         `json:"topic"`
	Turns     int            `json:"turns"`
	Extra     map[string]any `json:"extra"`
}

func defaultConversation() Conversation {
	return Conversation{
		Affection: DefaultAffection,
		Topic:     DefaultTopic,
		Extra:     map[string]any{},
	}
}

// clipAffection clamps affection to the supported range.
func clipAffection(value int) int {
	if value < minAffection {
		return minAffection
	}
	if value > maxAffection {
		return maxAffection
	}
	return value
}

// Load reads a conversation from disk, falling back to defaults on a
// missing, malformed, or unreadable file. It never fails.
func Load(path string) Conversation {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("State file not found; using defaults", "path", path)
		} else {
			slog.Error("Could not read state file; continuing with defaults", "path", path, "error", err)
		}
		return defaultConversation()
	}

	var conv Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		slog.Warn("Invalid state file detected; resetting to defaults", "path", path, "error", err)
		return defaultConversation()
	}
	conv.Affection = clipAffection(conv.Affection)
	if conv.Topic == "" {
		conv.Topic = DefaultTopic
	}
	if conv.Turns < 0 {
		conv.Turns = 0
	}
	if conv.Extra == nil {
		conv.Extra = map[string]any{}
	}
	return conv
}

// save persists the conversation atomically: write to <path>.tmp, then
// rename over the destination.
func save(path string, conv Conversation) error {
	payload, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Debug("Unable to clean up temp state file", "path", tmpPath, "error", rmErr)
		}
		return err
	}
	return nil
}

// Store serializes conversation access across request goroutines and owns
// the on-disk copy.
type Store struct {
	mu   sync.Mutex
	path string
	conv Conversation
}

// NewStore loads (or defaults) the conversation at path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		conv: Load(path),
	}
}

// Snapshot returns a copy of the current counters.
func (s *Store) Snapshot() Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// ApplyTurn records one completed chat turn: the request's affection and
// topic become current, the turn counter increments, and the result is
// persisted. Save failures are logged, not returned; the updated counters
// are still the in-memory truth.
func (s *Store) ApplyTurn(affection int, topic string) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conv.Affection = clipAffection(affection)
	if topic != "" {
		s.conv.Topic = topic
	}
	s.conv.Turns++

	if err := save(s.path, s.conv); err != nil {
		slog.Error("Failed to persist state; continuing without saving", "path", s.path, "error", err)
	}
	return s.copyLocked()
}

func (s *Store) copyLocked() Conversation {
	out := s.conv
	out.Extra = make(map[string]any, len(s.conv.Extra))
	for k, v := range s.conv.Extra {
		out.Extra[k] = v
	}
	return out
}
