// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package common

import "github.com/jontk/slurm-stepmgr/pkg/errors"

// SlurmErrorCode is the numeric ESLURM_* wire code a real slurmctld
// RPC reply carries. The step manager's operations return a
// *errors.StepError internally; SlurmErrorCode exists only for a
// caller that sits on top of an RPC transport and needs to translate
// a StepError back into the numeric form a slurmd/srun client expects.

type SlurmErrorCode int32

const (
	SlurmSuccess SlurmErrorCode = 0

	// Job/step submission errors (2000-2299)
	SlurmErrorInvalidJobID               SlurmErrorCode = 2017
	SlurmErrorJobAlreadyCompleted        SlurmErrorCode = 2021
	SlurmErrorJobPending                 SlurmErrorCode = 2016
	SlurmErrorTransitionStateNoUpdate    SlurmErrorCode = 2022
	SlurmErrorDuplicateJobID             SlurmErrorCode = 2003
	SlurmErrorBadDist                    SlurmErrorCode = 2024
	SlurmErrorTaskDistArbitraryUnsupport SlurmErrorCode = 2025
	SlurmErrorPathnameTooLong            SlurmErrorCode = 2026
	SlurmErrorBadTaskCount               SlurmErrorCode = 2027
	SlurmErrorInvalidNodeCount            SlurmErrorCode = 2015
	SlurmErrorInvalidTimeLimit            SlurmErrorCode = 2051
	SlurmErrorTooManySteps                SlurmErrorCode = 2201
	SlurmErrorPrologRunning                SlurmErrorCode = 2070

	// Resource errors (3000-3099)
	SlurmErrorNodeNotAvailable             SlurmErrorCode = 3001
	SlurmErrorNodesBusy                     SlurmErrorCode = 3002
	SlurmErrorRequestedNodeConfigUnavailable SlurmErrorCode = 3003
	SlurmErrorInvalidTaskMemory             SlurmErrorCode = 3010
	SlurmErrorInvalidGres                   SlurmErrorCode = 3011
	SlurmErrorTooManyRequestedCPUs          SlurmErrorCode = 3012

	// Authorization/administrative errors (7000-7099)
	SlurmErrorUserIDMissing SlurmErrorCode = 7001
	SlurmErrorAccessDenied  SlurmErrorCode = 7002
	SlurmErrorDisabled      SlurmErrorCode = 7003

	// Interconnect errors (8100-8199)
	SlurmErrorInterconnectFailure SlurmErrorCode = 8110

	SlurmErrorUnknown SlurmErrorCode = 9000
)

// SlurmErrorInfo carries the human-readable form of a SlurmErrorCode.
type SlurmErrorInfo struct {
	Code        SlurmErrorCode
	Name        string
	Description string
	Category    string
}

var slurmErrorMap = map[SlurmErrorCode]SlurmErrorInfo{
	SlurmSuccess: {SlurmSuccess, "SUCCESS", "Operation completed successfully", "Success"},

	SlurmErrorInvalidJobID:                  {SlurmErrorInvalidJobID, "INVALID_JOB_ID", "The specified job ID is invalid or does not exist", "Step Submission"},
	SlurmErrorJobAlreadyCompleted:           {SlurmErrorJobAlreadyCompleted, "ALREADY_DONE", "The job has already completed", "Step Submission"},
	SlurmErrorJobPending:                    {SlurmErrorJobPending, "JOB_PENDING", "The parent job has not yet started running", "Step Submission"},
	SlurmErrorTransitionStateNoUpdate:       {SlurmErrorTransitionStateNoUpdate, "TRANSITION_STATE_NO_UPDATE", "The job is changing state and cannot accept a step request", "Step Submission"},
	SlurmErrorDuplicateJobID:                {SlurmErrorDuplicateJobID, "DUPLICATE_JOB_ID", "A step with this ID already exists for the job", "Step Submission"},
	SlurmErrorBadDist:                       {SlurmErrorBadDist, "BAD_DIST", "The requested task distribution is not recognized", "Step Submission"},
	SlurmErrorTaskDistArbitraryUnsupport:    {SlurmErrorTaskDistArbitraryUnsupport, "TASKDIST_ARBITRARY_UNSUPPORTED", "Arbitrary task distribution is not supported by the configured interconnect", "Step Submission"},
	SlurmErrorPathnameTooLong:               {SlurmErrorPathnameTooLong, "PATHNAME_TOO_LONG", "A supplied pathname exceeds the maximum length", "Step Submission"},
	SlurmErrorBadTaskCount:                  {SlurmErrorBadTaskCount, "BAD_TASK_COUNT", "The requested task count is invalid for the selected nodes", "Step Submission"},
	SlurmErrorInvalidNodeCount:              {SlurmErrorInvalidNodeCount, "INVALID_NODE_COUNT", "The requested number of nodes is invalid", "Step Submission"},
	SlurmErrorInvalidTimeLimit:              {SlurmErrorInvalidTimeLimit, "INVALID_TIME_LIMIT", "The requested time limit exceeds the parent job's remaining time", "Step Submission"},
	SlurmErrorTooManySteps:                  {SlurmErrorTooManySteps, "TOOMANYSTEPS", "The job has exhausted its step ID space", "Step Submission"},
	SlurmErrorPrologRunning:                 {SlurmErrorPrologRunning, "PROLOG_RUNNING", "The job's prolog is still running on one or more nodes", "Step Submission"},

	SlurmErrorNodeNotAvailable:               {SlurmErrorNodeNotAvailable, "NODE_NOT_AVAIL", "One or more requested nodes are not available", "Resource Management"},
	SlurmErrorNodesBusy:                      {SlurmErrorNodesBusy, "NODES_BUSY", "The requested nodes do not currently have enough free resources", "Resource Management"},
	SlurmErrorRequestedNodeConfigUnavailable: {SlurmErrorRequestedNodeConfigUnavailable, "REQUESTED_NODE_CONFIG_UNAVAILABLE", "No subset of the job's allocation satisfies the request", "Resource Management"},
	SlurmErrorInvalidTaskMemory:              {SlurmErrorInvalidTaskMemory, "INVALID_TASK_MEMORY", "The requested per-task memory exceeds what is available", "Resource Management"},
	SlurmErrorInvalidGres:                    {SlurmErrorInvalidGres, "INVALID_GRES", "The requested generic resource specification is invalid or unavailable", "Resource Management"},
	SlurmErrorTooManyRequestedCPUs:           {SlurmErrorTooManyRequestedCPUs, "TOO_MANY_REQUESTED_CPUS", "The requested CPU count exceeds the job's allocation", "Resource Management"},

	SlurmErrorUserIDMissing: {SlurmErrorUserIDMissing, "USER_ID_MISSING", "The request did not carry a user id", "Authorization"},
	SlurmErrorAccessDenied:  {SlurmErrorAccessDenied, "ACCESS_DENIED", "The requesting user is not authorized for this operation", "Authorization"},
	SlurmErrorDisabled:      {SlurmErrorDisabled, "DISABLED", "Step creation is disabled for this job or partition", "Authorization"},

	SlurmErrorInterconnectFailure: {SlurmErrorInterconnectFailure, "INTERCONNECT_FAILURE", "The configured interconnect plugin rejected the step", "Interconnect"},
}

var slurmToStepCode = map[SlurmErrorCode]errors.Code{
	SlurmErrorInvalidJobID:                   errors.CodeInvalidJobID,
	SlurmErrorJobAlreadyCompleted:            errors.CodeAlreadyDone,
	SlurmErrorJobPending:                     errors.CodeJobPending,
	SlurmErrorTransitionStateNoUpdate:        errors.CodeTransitionStateNoUpdate,
	SlurmErrorDuplicateJobID:                 errors.CodeDuplicateJobID,
	SlurmErrorBadDist:                        errors.CodeBadDist,
	SlurmErrorTaskDistArbitraryUnsupport:     errors.CodeTaskDistArbitraryUnsupported,
	SlurmErrorPathnameTooLong:                errors.CodePathnameTooLong,
	SlurmErrorBadTaskCount:                   errors.CodeBadTaskCount,
	SlurmErrorInvalidNodeCount:               errors.CodeInvalidNodeCount,
	SlurmErrorInvalidTimeLimit:               errors.CodeInvalidTimeLimit,
	SlurmErrorTooManySteps:                   errors.CodeTooManySteps,
	SlurmErrorPrologRunning:                  errors.CodePrologRunning,
	SlurmErrorNodeNotAvailable:               errors.CodeNodeNotAvail,
	SlurmErrorNodesBusy:                      errors.CodeNodesBusy,
	SlurmErrorRequestedNodeConfigUnavailable: errors.CodeRequestedNodeConfigUnavailable,
	SlurmErrorInvalidTaskMemory:              errors.CodeInvalidTaskMemory,
	SlurmErrorInvalidGres:                    errors.CodeInvalidGres,
	SlurmErrorTooManyRequestedCPUs:           errors.CodeTooManyRequestedCPUs,
	SlurmErrorUserIDMissing:                  errors.CodeUserIDMissing,
	SlurmErrorAccessDenied:                   errors.CodeAccessDenied,
	SlurmErrorDisabled:                       errors.CodeDisabled,
	SlurmErrorInterconnectFailure:            errors.CodeInterconnectFailure,
}

var stepCodeToSlurm = func() map[errors.Code]SlurmErrorCode {
	m := make(map[errors.Code]SlurmErrorCode, len(slurmToStepCode))
	for wire, code := range slurmToStepCode {
		m[code] = wire
	}
	return m
}()

// GetErrorInfo returns detailed information about a SLURM error code.
func GetErrorInfo(code int32) *SlurmErrorInfo {
	if info, exists := slurmErrorMap[SlurmErrorCode(code)]; exists {
		return &info
	}
	return &SlurmErrorInfo{
		Code:        SlurmErrorCode(code),
		Name:        "UNKNOWN_ERROR",
		Description: "Unknown SLURM error code",
		Category:    "Unknown",
	}
}

// IsKnownError reports whether code is a recognized SLURM error code.
func IsKnownError(code int32) bool {
	_, exists := slurmErrorMap[SlurmErrorCode(code)]
	return exists
}

// StepCodeToWire maps a step manager error code to the numeric wire
// code an RPC layer would place on the reply. Codes with no RPC
// analogue map to SlurmErrorUnknown.
func StepCodeToWire(code errors.Code) SlurmErrorCode {
	if wire, ok := stepCodeToSlurm[code]; ok {
		return wire
	}
	return SlurmErrorUnknown
}

// WireToStepCode maps a numeric wire code back to a step manager
// error code, for a caller reconstructing a StepError from an RPC
// reply it received. Unknown codes map to errors.CodeUnknown.
func WireToStepCode(wire SlurmErrorCode) errors.Code {
	if code, ok := slurmToStepCode[wire]; ok {
		return code
	}
	return errors.CodeUnknown
}
