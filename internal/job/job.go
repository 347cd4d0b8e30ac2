// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package job holds the parent-job and job-resources types the
// selector, core painter, and lifecycle controller all read and
// mutate. It is grounded on the teacher's internal/common/types/job.go
// and node.go (the flat, tagged-struct style for a SLURM domain
// object) but the field set is the step manager's own: the teacher
// modeled a REST API's job representation, this models the
// controller-side allocation state spec.md §3 describes.
package job

import (
	"time"

	"github.com/jontk/slurm-stepmgr/internal/bitmap"
)

// NoVal is the step manager's sentinel for "value not set", matching
// the real scheduler's NO_VAL convention for optional uint32 fields.
const NoVal uint32 = 0xfffffffe

// Infinite is the sentinel meaning "unbounded" for min_nodes and
// time_limit fields.
const Infinite uint32 = 0xfffffffd

// MaxStepID is the exclusive upper bound of the assignable step id
// space (spec.md §3); reaching it fails step creation with
// TOOMANYSTEPS.
const MaxStepID uint32 = 0xffff_fff0

// BatchScriptStepID is the reserved step id representing a job's
// batch script "step", which never goes through create_step.
const BatchScriptStepID uint32 = 0xfffffffc

// State is the job's lifecycle state.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSuspended
	StateFinished
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateSuspended:
		return "SUSPENDED"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Job is the parent allocation against which steps are carved. The
// step manager treats it as read-mostly: only NextStepID, Steps,
// Resources, Configuring, SuspendTime, and DerivedExitCode are
// mutated by this module's own operations.
type Job struct {
	JobID  uint32
	UserID uint32

	State State
	// Configuring is true until a step creation passes the selector's
	// pre-flight boot-wait check, which clears it (spec.md §4.3
	// pre-flight).
	Configuring bool

	// NodeBitmap is the job's allocation over the global node table.
	NodeBitmap *bitmap.Bitmap

	// Resources is the per-node job_resources view (§4.1).
	Resources *Resources

	// GresList names the job's allocated generic resources, as
	// passed to the GRES plugin contract.
	GresList []string

	// Steps is this job's ordered list of step records, owned
	// exclusively by the job.
	Steps []*Step

	// NextStepID is the monotonically allocated step id counter.
	NextStepID uint32

	StartTime   time.Time
	SuspendTime time.Time
	EndTime     time.Time

	// PartitionTimeLimit bounds a step's requested time_limit when
	// enforcement is enabled.
	PartitionTimeLimit time.Duration

	// DerivedExitCode folds in the highest exit code reported by any
	// completed step.
	DerivedExitCode int32

	// BatchHost is set on front-end systems, where all steps appear
	// to run on a single fronting host rather than the compute nodes
	// directly (GLOSSARY: Front-end).
	BatchHost string

	// FrontEnd reports whether BatchHost should be substituted for
	// the step's own node list when packing info responses (§4.9).
	FrontEnd bool

	// NodeNames maps a job-local node index (the same indexing
	// NodeBitmap and Resources use) to its hostname, so the lifecycle
	// controller can render node-list strings and agent-queue
	// hostlists without depending on the global node table directly.
	NodeNames []string
}

// NamesOf renders the host names for every set bit in nodes, in
// ascending job-local index order.
func (j *Job) NamesOf(nodes *bitmap.Bitmap) []string {
	var names []string
	for _, i := range nodes.Indices() {
		if i < len(j.NodeNames) {
			names = append(names, j.NodeNames[i])
		}
	}
	return names
}

// IsRunning reports whether the job is in a state from which steps
// may be created or modified.
func (j *Job) IsRunning() bool {
	return j.State == StateRunning
}

// FindStep returns the step with the given id, or if stepID == NoVal
// the first step in creation order (spec.md §9: "find_step(job,
// NO_VAL) returns the first step; preserve this 'any' semantics").
func (j *Job) FindStep(stepID uint32) (*Step, bool) {
	if stepID == NoVal {
		if len(j.Steps) == 0 {
			return nil, false
		}
		return j.Steps[0], true
	}
	for _, s := range j.Steps {
		if s.StepID == stepID {
			return s, true
		}
	}
	return nil, false
}

// AllocateStepID returns the next step id and advances the counter,
// or reports that the job's step id space is exhausted.
func (j *Job) AllocateStepID() (uint32, bool) {
	if j.NextStepID >= MaxStepID {
		return 0, false
	}
	id := j.NextStepID
	j.NextStepID++
	return id, true
}

// RemoveStep deletes the step with the given id from the job's step
// list, returning whether it was found.
func (j *Job) RemoveStep(stepID uint32) bool {
	for i, s := range j.Steps {
		if s.StepID == stepID {
			j.Steps = append(j.Steps[:i], j.Steps[i+1:]...)
			return true
		}
	}
	return false
}
