// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package journal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestStore_PutAndGet(t *testing.T) {
	store := newTestStore(t)

	turn := Turn{
		RequestID: "550e8400-e29b-41d4-a716-446655440000",
		Arm:       "warm",
		Context:   []float64{1, 0.5, 0.1, 1},
		Topic:     "hiking",
		Source:    "llm",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Put(turn))

	got, err := store.Get(turn.RequestID)
	require.NoError(t, err)
	assert.Equal(t, turn.Arm, got.Arm)
	assert.Equal(t, turn.Context, got.Context)
	assert.Equal(t, turn.Topic, got.Topic)
	assert.False(t, got.Rewarded)
}

func TestStore_GetUnknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("missing-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTurnNotFound))
}

func TestStore_Claim(t *testing.T) {
	store := newTestStore(t)

	turn := Turn{
		RequestID: "id-1",
		Arm:       "neutral",
		Context:   []float64{1, 0, 0, 0},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Put(turn))

	got, err := store.Claim(turn.RequestID)
	require.NoError(t, err)
	assert.Equal(t, turn.Arm, got.Arm)
	assert.Equal(t, turn.Context, got.Context)

	// The record survives the claim, flagged as consumed.
	after, err := store.Get(turn.RequestID)
	require.NoError(t, err)
	assert.True(t, after.Rewarded)

	_, err = store.Claim(turn.RequestID)
	assert.True(t, errors.Is(err, ErrAlreadyRewarded))

	_, err = store.Claim("missing-id")
	assert.True(t, errors.Is(err, ErrTurnNotFound))
}

func TestStore_ClaimIsExactlyOnce(t *testing.T) {
	store := newTestStore(t)

	turn := Turn{
		RequestID: "contested",
		Arm:       "warm",
		Context:   []float64{1, 0.5, 0, 1},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Put(turn))

	const callers = 16
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := store.Claim(turn.RequestID)
			results <- err
		}()
	}

	won := 0
	for i := 0; i < callers; i++ {
		err := <-results
		if err == nil {
			won++
		} else {
			assert.True(t, errors.Is(err, ErrAlreadyRewarded))
		}
	}
	assert.Equal(t, 1, won)
}

func TestStore_ClaimPastWindowIsUnknown(t *testing.T) {
	store, err := Open(Config{InMemory: true, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	// CreatedAt predates the TTL window, so the claim must treat the turn
	// as expired even before Badger evicts the record.
	require.NoError(t, store.Put(Turn{
		RequestID: "stale",
		Arm:       "warm",
		CreatedAt: time.Now().UTC().Add(-2 * time.Minute),
	}))

	_, err = store.Claim("stale")
	assert.True(t, errors.Is(err, ErrTurnNotFound))
}

func TestStore_ExpiredTurnIsUnknown(t *testing.T) {
	store, err := Open(Config{InMemory: true, TTL: time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	require.NoError(t, store.Put(Turn{RequestID: "short-lived", Arm: "warm"}))
	time.Sleep(20 * time.Millisecond)

	_, err = store.Get("short-lived")
	assert.True(t, errors.Is(err, ErrTurnNotFound))
}
