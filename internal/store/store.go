// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package store implements the per-job step record store (spec.md
// §4.2): create, find, and delete operations over a job's ordered
// step list. It is grounded on the teacher's
// internal/common/builders pattern for constructing domain records
// and on the association/cluster "manager" stubs' CRUD-over-a-slice
// shape (deleted as out-of-scope REST admin surfaces, but their
// create/find/delete-with-filter structure is exactly what a step
// store needs) adapted from map-keyed REST resources to a job's
// ordered step slice.
package store

import (
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"

	"github.com/jontk/slurm-stepmgr/internal/job"
)

// DeleteFilter selects which steps delete_all removes.
type DeleteFilter int

const (
	// FilterAll removes every step in the job.
	FilterAll DeleteFilter = iota
	// FilterNoSwitchOnly removes only steps whose interconnect
	// handle is nil (already released or never allocated).
	FilterNoSwitchOnly
)

// Releaser is implemented by the lifecycle controller's teardown
// path; DeleteStep and DeleteAll call it before removing a step
// record so interconnect/checkpoint state and painted cores are
// always released together with the record (spec.md §4.2).
type Releaser interface {
	ReleaseStep(j *job.Job, s *job.Step)
}

// CreateStep allocates a fresh step id on j and appends a new, empty
// Step record in building state. It fails with CodeTooManySteps if
// the job's step id space is exhausted.
func CreateStep(j *job.Job) (*job.Step, error) {
	id, ok := j.AllocateStepID()
	if !ok {
		return nil, stepmgrerrors.New(stepmgrerrors.CodeTooManySteps, "job has exhausted its step id space")
	}
	s := &job.Step{
		JobID:  j.JobID,
		StepID: id,
		Status: job.StatusBuilding,
	}
	j.Steps = append(j.Steps, s)
	return s, nil
}

// Find returns the step identified by stepID (or, if stepID ==
// job.NoVal, the first step — see job.Job.FindStep) together with
// whether it was found.
func Find(j *job.Job, stepID uint32) (*job.Step, bool) {
	return j.FindStep(stepID)
}

// DeleteStep releases and removes a single step record.
func DeleteStep(j *job.Job, stepID uint32, releaser Releaser) bool {
	s, ok := j.FindStep(stepID)
	if !ok {
		return false
	}
	if releaser != nil {
		releaser.ReleaseStep(j, s)
	}
	return j.RemoveStep(stepID)
}

// DeleteAll releases and removes every step matching filter,
// returning the count removed.
func DeleteAll(j *job.Job, filter DeleteFilter, releaser Releaser) int {
	kept := j.Steps[:0:0]
	removed := 0
	for _, s := range j.Steps {
		match := filter == FilterAll || (filter == FilterNoSwitchOnly && s.SwitchJob == nil)
		if !match {
			kept = append(kept, s)
			continue
		}
		if releaser != nil {
			releaser.ReleaseStep(j, s)
		}
		removed++
	}
	j.Steps = kept
	return removed
}
