// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"time"

	"github.com/jontk/slurm-stepmgr/internal/job"
)

// Accounting is the accounting-storage plugin contract (spec.md §6):
// the step manager reports lifecycle transitions to it but never
// reads anything back.
type Accounting interface {
	// JobStart records that a job became eligible to carry steps.
	JobStart(j *job.Job) error

	// StepStart records a newly created step.
	StepStart(j *job.Job, s *job.Step) error

	// StepComplete records a step's terminal exit code and runtime
	// accounting (elapsed run time minus any suspended time).
	StepComplete(j *job.Job, s *job.Step, endTime time.Time) error
}

// NotConfiguredAccounting is the accounting_storage/none stand-in:
// every call is a no-op, matching a cluster with no accounting
// backend wired in.
type NotConfiguredAccounting struct{}

func (NotConfiguredAccounting) JobStart(j *job.Job) error { return nil }

func (NotConfiguredAccounting) StepStart(j *job.Job, s *job.Step) error { return nil }

func (NotConfiguredAccounting) StepComplete(j *job.Job, s *job.Step, endTime time.Time) error {
	return nil
}
