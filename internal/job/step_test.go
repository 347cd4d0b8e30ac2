// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemainingSecondsInfinite(t *testing.T) {
	s := &Step{TimeLimit: Infinite}
	assert.EqualValues(t, -1, s.RemainingSeconds())
}

func TestRemainingSecondsMinutes(t *testing.T) {
	s := &Step{TimeLimit: 5}
	assert.EqualValues(t, 300, s.RemainingSeconds())
}

func TestElapsedRunSeconds(t *testing.T) {
	start := time.Now().Add(-180 * time.Second)
	s := &Step{StartTime: start, TotSusTime: 60 * time.Second}
	elapsed := s.ElapsedRunSeconds(start.Add(180 * time.Second))
	assert.InDelta(t, 120, elapsed, 1)
}

func TestTaskDistString(t *testing.T) {
	assert.Equal(t, "BLOCK", DistBlock.String())
	assert.Equal(t, "ARBITRARY", DistArbitrary.String())
}
