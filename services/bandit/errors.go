// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bandit implements the LinUCB contextual multi-armed bandit.
//
// A LinUCB instance tracks, per registered arm, the sufficient statistics
// (A, b) of a ridge regression from context vectors to observed rewards and
// selects the arm maximizing
//
//	score(arm) = theta_armᵀ·x + alpha * sqrt(xᵀ·A_arm⁻¹·x)
//
// where theta_arm = A_arm⁻¹·b_arm. The second term is an upper-confidence
// exploration bonus: arms with little evidence in the direction of x score
// higher until enough observations accumulate.
//
// # Thread Safety
//
// A LinUCB instance is safe for concurrent use. Update serializes mutations;
// SelectArm and ArmState read a consistent snapshot of the statistics.
//
// # Purity
//
// The engine performs no I/O and never blocks: every operation returns once
// its arithmetic completes.
package bandit

import "errors"

// Sentinel errors for bandit operations.
var (
	// ErrInvalidConfiguration is returned by the constructors when the arm
	// set is empty after de-duplication, the context dimensionality is not
	// positive, or the exploration coefficient is negative.
	ErrInvalidConfiguration = errors.New("invalid bandit configuration")

	// ErrDimensionMismatch is returned when a supplied context vector's
	// length disagrees with the configured dimensionality. It is raised
	// before any statistic is touched.
	ErrDimensionMismatch = errors.New("context dimension mismatch")

	// ErrUnknownArm is returned when an operation references an arm
	// identifier that was not registered at construction.
	ErrUnknownArm = errors.New("unknown arm")
)
