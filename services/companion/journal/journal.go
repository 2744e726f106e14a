// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package journal records answered chat turns in BadgerDB so the feedback
// endpoint can attribute a later reward to the bandit decision that was
// actually served.
//
// Each record carries the selected arm and the exact context vector used at
// selection time. Records expire after the configured TTL; feedback for an
// expired turn is simply unknown.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrTurnNotFound is returned when a request ID has no journal record,
// either because it never existed or because its TTL expired.
var ErrTurnNotFound = errors.New("turn not found")

// ErrAlreadyRewarded is returned by Claim when the turn's reward was
// already consumed by an earlier call.
var ErrAlreadyRewarded = errors.New("turn already rewarded")

// DefaultTTL is how long a turn stays eligible for feedback.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "turn:"

// Config holds configuration for a journal store.
type Config struct {
	// Dir is the directory for BadgerDB files. Ignored when InMemory is true.
	Dir string

	// InMemory enables in-memory mode (no disk persistence). For testing.
	InMemory bool

	// TTL is the lifetime of a turn record. Defaults to DefaultTTL.
	TTL time.Duration
}

// Turn is one answered chat turn awaiting (or past) feedback.
type Turn struct {
	RequestID string    `json:"request_id"`
	Arm       string    `json:"arm"`
	Context   []float64 `json:"context"`
	Topic     string    `json:"topic"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	Rewarded  bool      `json:"rewarded"`
}

// Store is a BadgerDB-backed turn journal.
//
// Thread Safety: Safe for concurrent use; Badger transactions provide the
// isolation.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open creates or opens the journal database.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	// Badger's default logger is chatty at INFO; the service logs its own
	// lifecycle events.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening turn journal: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes (or overwrites) a turn record with the store's TTL.
func (s *Store) Put(turn Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encoding turn %s: %w", turn.RequestID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key(turn.RequestID), payload).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

// Get returns the turn recorded for a request ID.
func (s *Store) Get(requestID string) (Turn, error) {
	var turn Turn
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(requestID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &turn)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Turn{}, fmt.Errorf("%w: %s", ErrTurnNotFound, requestID)
	}
	if err != nil {
		return Turn{}, fmt.Errorf("reading turn %s: %w", requestID, err)
	}
	return turn, nil
}

// Claim atomically consumes a turn's reward eligibility: the record is read,
// checked, and flagged Rewarded inside one read-write transaction, so exactly
// one concurrent caller per request ID gets the turn back. Losers of the race
// get ErrAlreadyRewarded; Badger's conflict detection aborts any claim that
// raced a committed one, and the retry then observes the flag.
//
// The rewrite keeps the record's original expiry window: the remaining TTL is
// computed from CreatedAt rather than re-stamped in full. A turn past its
// window is ErrTurnNotFound even if Badger has not evicted it yet.
func (s *Store) Claim(requestID string) (Turn, error) {
	var turn Turn
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key(requestID))
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &turn)
			}); err != nil {
				return err
			}
			if turn.Rewarded {
				return ErrAlreadyRewarded
			}
			remaining := s.ttl
			if !turn.CreatedAt.IsZero() {
				remaining = s.ttl - time.Since(turn.CreatedAt)
			}
			if remaining <= 0 {
				return badger.ErrKeyNotFound
			}
			turn.Rewarded = true
			payload, err := json.Marshal(turn)
			if err != nil {
				return err
			}
			return txn.SetEntry(badger.NewEntry(key(requestID), payload).WithTTL(remaining))
		})
		switch {
		case errors.Is(err, badger.ErrConflict):
			// A concurrent claim committed first; re-read.
			continue
		case errors.Is(err, badger.ErrKeyNotFound):
			return Turn{}, fmt.Errorf("%w: %s", ErrTurnNotFound, requestID)
		case errors.Is(err, ErrAlreadyRewarded):
			return Turn{}, fmt.Errorf("%w: %s", ErrAlreadyRewarded, requestID)
		case err != nil:
			return Turn{}, fmt.Errorf("claiming turn %s: %w", requestID, err)
		}
		return turn, nil
	}
}

func key(requestID string) []byte {
	return []byte(keyPrefix + requestID)
}
