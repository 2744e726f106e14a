// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package features builds the fixed-dimension context vectors fed to the
// tone bandit. The engine itself knows nothing about chat semantics; this
// is the only place where request-level signals become numbers.
package features

// ContextDim is the length of every context vector.
//
// Components:
//
//	[0] bias (always 1)
//	[1] affection scaled to [0, 1]
//	[2] conversation depth, turns capped at depthCap and scaled to [0, 1]
//	[3] topic continuity: 1 when the request topic matches the stored one
const ContextDim = 4

// depthCap is where conversation depth saturates; beyond this many turns
// the conversation is simply "deep".
const depthCap = 50

// Context builds the feature vector for one decision point.
//
// Inputs:
//   - affection: Current affection score (0-10, already clamped).
//   - turns: Completed turns before this one.
//   - topic: The request's topic label.
//   - previousTopic: The stored topic from the last turn.
func Context(affection, turns int, topic, previousTopic string) []float64 {
	depth := float64(turns)
	if depth > depthCap {
		depth = depthCap
	}
	continuity := 0.0
	if topic != "" && topic == previousTopic {
		continuity = 1.0
	}
	return []float64{
		1.0,
		float64(affection) / 10.0,
		depth / depthCap,
		continuity,
	}
}
