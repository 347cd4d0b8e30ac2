// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the structured error taxonomy raised by the
// step manager's public operations.
package errors

import (
	"fmt"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
)

// Code identifies one of the step manager's surfaced error kinds.
//
// The names mirror the historical ESLURM_* wire codes a caller with an
// RPC layer would map these onto (see internal/common.SlurmErrorCode),
// but this package never touches the wire itself.
type Code string

const (
	CodeInvalidJobID                  Code = "INVALID_JOB_ID"
	CodeAlreadyDone                    Code = "ALREADY_DONE"
	CodeJobPending                     Code = "JOB_PENDING"
	CodeTransitionStateNoUpdate        Code = "TRANSITION_STATE_NO_UPDATE"
	CodeUserIDMissing                  Code = "USER_ID_MISSING"
	CodeAccessDenied                   Code = "ACCESS_DENIED"
	CodeDisabled                       Code = "DISABLED"
	CodeDuplicateJobID                 Code = "DUPLICATE_JOB_ID"
	CodeBadDist                        Code = "BAD_DIST"
	CodeTaskDistArbitraryUnsupported   Code = "TASKDIST_ARBITRARY_UNSUPPORTED"
	CodePathnameTooLong                Code = "PATHNAME_TOO_LONG"
	CodeBadTaskCount                   Code = "BAD_TASK_COUNT"
	CodeInvalidNodeCount               Code = "INVALID_NODE_COUNT"
	CodeNodesBusy                      Code = "NODES_BUSY"
	CodeNodeNotAvail                   Code = "NODE_NOT_AVAIL"
	CodeRequestedNodeConfigUnavailable Code = "REQUESTED_NODE_CONFIG_UNAVAILABLE"
	CodeInvalidTaskMemory              Code = "INVALID_TASK_MEMORY"
	CodeInvalidGres                    Code = "INVALID_GRES"
	CodeTooManyRequestedCPUs           Code = "TOO_MANY_REQUESTED_CPUS"
	CodeInvalidTimeLimit               Code = "INVALID_TIME_LIMIT"
	CodeInterconnectFailure            Code = "INTERCONNECT_FAILURE"
	CodeCheckpointFailure              Code = "CHECKPOINT_FAILURE"
	CodeTooManySteps                   Code = "TOOMANYSTEPS"
	CodePrologRunning                  Code = "PROLOG_RUNNING"
	CodeUnknown                        Code = "UNKNOWN"
)

// StepError is the structured error type returned by every public
// operation of the step manager.
type StepError struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *StepError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *StepError with the same Code.
func (e *StepError) Is(target error) bool {
	var t *StepError
	if stderrors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a StepError with a fresh request id.
func New(code Code, message string) *StepError {
	return &StepError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		RequestID: uuid.NewString(),
		Retryable: isRetryable(code),
	}
}

// Newf creates a StepError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *StepError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a StepError carrying cause as its Unwrap target.
func Wrap(code Code, message string, cause error) *StepError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// WithDetails attaches a details string and returns e for chaining.
func (e *StepError) WithDetails(details string) *StepError {
	e.Details = details
	return e
}

// isRetryable reports whether an operation raising code is safe to
// retry without additional caller action. Only transient capacity
// conditions qualify; everything else requires the caller to change
// the request or wait on an external event.
func isRetryable(code Code) bool {
	switch code {
	case CodeNodesBusy, CodeJobPending, CodePrologRunning:
		return true
	default:
		return false
	}
}

// CodeOf extracts the Code from err if it is (or wraps) a *StepError,
// returning CodeUnknown otherwise.
func CodeOf(err error) Code {
	var se *StepError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return CodeUnknown
}

// IsRetryable reports whether err is (or wraps) a *StepError marked
// Retryable. Errors that are not a *StepError at all are treated as
// retryable, since they typically indicate a transport-level failure
// (e.g. an agent RPC that never reached the node) rather than a
// semantic rejection of the request.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StepError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return true
}
