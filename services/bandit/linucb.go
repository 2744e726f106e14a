// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bandit

import (
	"fmt"
	"math"
	"sync"
)

// DefaultAlpha is the exploration coefficient used by NewDefault.
const DefaultAlpha = 0.25

// armStats holds one arm's sufficient statistics.
//
// a is always symmetric positive definite: it starts as the identity and
// only ever accumulates outer products x·xᵀ, so every update preserves
// positive-definiteness. b accumulates reward-weighted contexts.
type armStats struct {
	a [][]float64 // d x d
	b []float64   // d
}

func newArmStats(dim int) *armStats {
	return &armStats{
		a: identityMatrix(dim),
		b: make([]float64, dim),
	}
}

// update folds one observation into the statistics:
// A ← A + x·xᵀ, b ← b + reward·x. Callers must validate the context length
// first; both pieces of state mutate together or not at all.
func (s *armStats) update(context []float64, reward float64) {
	for i := range s.a {
		for j := range s.a[i] {
			s.a[i][j] += context[i] * context[j]
		}
	}
	for i := range s.b {
		s.b[i] += reward * context[i]
	}
}

// theta returns the ridge-regression coefficient vector, solving A·θ = b
// directly rather than materializing A⁻¹.
func (s *armStats) theta() []float64 {
	return solveSPD(s.a, s.b)
}

// explorationBonus returns alpha * sqrt(xᵀ·A⁻¹·x). The quadratic form is
// computed by solving A·y = x and taking x·y, and is clamped at zero to
// guard against small negative values from floating-point error.
func (s *armStats) explorationBonus(context []float64, alpha float64) float64 {
	y := solveSPD(s.a, context)
	variance := math.Max(0, dot(context, y))
	return alpha * math.Sqrt(variance)
}

// ArmSnapshot is a read-only copy of one arm's current statistics,
// exposed for inspection and testing. Mutating a snapshot has no effect
// on the coordinator.
type ArmSnapshot struct {
	A [][]float64 `json:"a"`
	B []float64   `json:"b"`
}

// LinUCB coordinates a fixed set of arms and dispatches selection and
// update requests against their statistics.
//
// The statistics map is owned exclusively by the instance, so independent
// bandits (one per user segment, say) can coexist without interference.
//
// Thread Safety: Safe for concurrent use.
type LinUCB struct {
	mu         sync.RWMutex
	alpha      float64
	contextDim int
	arms       []string
	stats      map[string]*armStats
}

// New creates a LinUCB coordinator.
//
// Inputs:
//   - arms: Arm identifiers. Duplicates are dropped, first occurrence wins;
//     the surviving order is significant for tie-breaking.
//   - contextDim: Length of every context vector. Must be positive.
//   - alpha: Exploration coefficient. Must be non-negative.
//
// Outputs:
//   - *LinUCB: Fully initialized coordinator (identity A, zero b per arm).
//   - error: ErrInvalidConfiguration if any input is malformed; no
//     partially-initialized coordinator is ever returned.
func New(arms []string, contextDim int, alpha float64) (*LinUCB, error) {
	unique := make([]string, 0, len(arms))
	seen := make(map[string]struct{}, len(arms))
	for _, arm := range arms {
		if _, ok := seen[arm]; ok {
			continue
		}
		seen[arm] = struct{}{}
		unique = append(unique, arm)
	}
	if len(unique) == 0 {
		return nil, fmt.Errorf("%w: arms must contain at least one unique identifier", ErrInvalidConfiguration)
	}
	if contextDim <= 0 {
		return nil, fmt.Errorf("%w: contextDim must be positive, got %d", ErrInvalidConfiguration, contextDim)
	}
	if alpha < 0 {
		return nil, fmt.Errorf("%w: alpha must be non-negative, got %g", ErrInvalidConfiguration, alpha)
	}

	stats := make(map[string]*armStats, len(unique))
	for _, arm := range unique {
		stats[arm] = newArmStats(contextDim)
	}
	return &LinUCB{
		alpha:      alpha,
		contextDim: contextDim,
		arms:       unique,
		stats:      stats,
	}, nil
}

// NewDefault creates a LinUCB coordinator with DefaultAlpha.
func NewDefault(arms []string, contextDim int) (*LinUCB, error) {
	return New(arms, contextDim, DefaultAlpha)
}

// Arms returns the registered arm identifiers in registration order.
func (l *LinUCB) Arms() []string {
	out := make([]string, len(l.arms))
	copy(out, l.arms)
	return out
}

// ContextDim returns the configured context dimensionality.
func (l *LinUCB) ContextDim() int {
	return l.contextDim
}

// SelectArm returns the arm with the highest upper confidence bound for the
// given context. Pure read: no statistic is mutated.
//
// Ties go to the first arm in registration order; the scan replaces the
// running best only on a strict improvement.
//
// Inputs:
//   - context: Context vector of length ContextDim().
//
// Outputs:
//   - string: The chosen arm identifier.
//   - error: ErrDimensionMismatch if the context length is wrong.
func (l *LinUCB) SelectArm(context []float64) (string, error) {
	if len(context) != l.contextDim {
		return "", fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, l.contextDim, len(context))
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	bestArm := ""
	bestScore := math.Inf(-1)
	for _, arm := range l.arms {
		stats := l.stats[arm]
		score := dot(stats.theta(), context) + stats.explorationBonus(context, l.alpha)
		if score > bestScore {
			bestScore = score
			bestArm = arm
		}
	}
	return bestArm, nil
}

// Update folds an observed reward into the named arm's statistics.
//
// Validation (arm existence, then context length) completes before either
// A or b is touched, so a rejected call leaves every arm unchanged. The
// reward is an unconstrained real number.
//
// Inputs:
//   - arm: A registered arm identifier.
//   - reward: Observed outcome for the arm.
//   - context: Context vector of length ContextDim().
//
// Outputs:
//   - error: ErrUnknownArm or ErrDimensionMismatch; nil on success.
func (l *LinUCB) Update(arm string, reward float64, context []float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats, ok := l.stats[arm]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownArm, arm)
	}
	if len(context) != l.contextDim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, l.contextDim, len(context))
	}
	stats.update(context, reward)
	return nil
}

// ArmState returns a deep copy of the named arm's current statistics.
//
// Outputs:
//   - ArmSnapshot: Copies of A and b; safe to retain or mutate.
//   - error: ErrUnknownArm for an unregistered identifier.
func (l *LinUCB) ArmState(arm string) (ArmSnapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats, ok := l.stats[arm]
	if !ok {
		return ArmSnapshot{}, fmt.Errorf("%w: %q", ErrUnknownArm, arm)
	}
	snap := ArmSnapshot{
		A: make([][]float64, len(stats.a)),
		B: make([]float64, len(stats.b)),
	}
	for i, row := range stats.a {
		snap.A[i] = make([]float64, len(row))
		copy(snap.A[i], row)
	}
	copy(snap.B, stats.b)
	return snap, nil
}

// Estimate returns the named arm's current coefficient vector theta.
// Immediately after construction this is the zero vector.
func (l *LinUCB) Estimate(arm string) ([]float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats, ok := l.stats[arm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownArm, arm)
	}
	return stats.theta(), nil
}

// --- Linear algebra helpers ---

func identityMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1.0
	}
	return m
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// solveSPD solves m·x = v by Gaussian elimination with partial pivoting,
// working on copies so the inputs are never mutated. m is symmetric
// positive definite by construction, so the system always has a solution.
func solveSPD(m [][]float64, v []float64) []float64 {
	n := len(v)
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n+1)
		copy(a[i], m[i])
		a[i][n] = v[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		a[col], a[pivot] = a[pivot], a[col]

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k <= n; k++ {
				a[row][k] -= factor * a[col][k]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := a[i][n]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x
}
