// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsRequestID(t *testing.T) {
	e1 := New(CodeNodesBusy, "busy")
	e2 := New(CodeNodesBusy, "busy")
	require.NotEmpty(t, e1.RequestID)
	require.NotEmpty(t, e2.RequestID)
	assert.NotEqual(t, e1.RequestID, e2.RequestID)
}

func TestStepErrorFormatting(t *testing.T) {
	e := New(CodeBadTaskCount, "num_tasks out of range")
	assert.Equal(t, "[BAD_TASK_COUNT] num_tasks out of range", e.Error())

	e = e.WithDetails("num_tasks=0")
	assert.Equal(t, "[BAD_TASK_COUNT] num_tasks out of range: num_tasks=0", e.Error())
}

func TestStepErrorIs(t *testing.T) {
	e1 := New(CodeNodesBusy, "no capacity right now")
	e2 := New(CodeNodesBusy, "different message, same code")
	e3 := New(CodeNodeNotAvail, "nodes down")

	assert.True(t, stderrors.Is(e1, e2))
	assert.False(t, stderrors.Is(e1, e3))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("gres plugin exploded")
	e := Wrap(CodeInvalidGres, "gres validation failed", cause)
	assert.Same(t, cause, stderrors.Unwrap(e))
	assert.ErrorIs(t, e, cause)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, New(CodeNodesBusy, "x").Retryable)
	assert.True(t, New(CodeJobPending, "x").Retryable)
	assert.False(t, New(CodeInvalidJobID, "x").Retryable)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNodesBusy, CodeOf(New(CodeNodesBusy, "x")))
	assert.Equal(t, CodeUnknown, CodeOf(stderrors.New("plain error")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}
