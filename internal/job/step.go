// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"time"

	"github.com/jontk/slurm-stepmgr/internal/bitmap"
)

// TaskDist names a step's task distribution policy.
type TaskDist int

const (
	DistBlock TaskDist = iota
	DistCyclic
	DistPlane
	DistArbitrary
)

func (d TaskDist) String() string {
	switch d {
	case DistBlock:
		return "BLOCK"
	case DistCyclic:
		return "CYCLIC"
	case DistPlane:
		return "PLANE"
	case DistArbitrary:
		return "ARBITRARY"
	default:
		return "UNKNOWN"
	}
}

// Status is the step's own lifecycle state (spec.md §3 Lifecycle),
// distinct from the parent Job's State.
type Status int

const (
	StatusBuilding Status = iota
	StatusRunning
	StatusCompleting
)

// Layout is the materialized per-node task placement a step's layout
// planner (§4.6) produces. It is absent for the batch step.
type Layout struct {
	NodeList  string
	TasksNode []int32 // tasks on each step-local node, in node order
	TaskIDs   [][]int32
}

// Step is a task-level sub-allocation carved from a Job's allocation
// (spec.md §3). Field documentation mirrors the spec's data-model
// table.
type Step struct {
	JobID  uint32
	StepID uint32

	// StepNodeBitmap is the subset of the job's node bitmap this step
	// may use.
	StepNodeBitmap *bitmap.Bitmap

	// CoreBitmapJob records, in job-local core-bitmap offsets, which
	// cores this step has painted (§4.5). Nil for non-core-tracked
	// jobs.
	CoreBitmapJob *bitmap.Bitmap

	CPUsPerTask int32
	CPUCount    int32
	MemPerCPU   int64

	NumTasks  int32
	TaskDist  TaskDist
	PlaneSize int32

	// StepLayout is nil for the batch step.
	StepLayout *Layout

	Exclusive bool
	NoKill    bool

	// TimeLimit is in minutes; job.Infinite means unbounded.
	TimeLimit uint32

	StartTime   time.Time
	PreSusTime  time.Duration
	TotSusTime  time.Duration
	CkptTime    time.Time

	ExitCode       int32
	ExitNodeBitmap *bitmap.Bitmap

	// SwitchJob/CheckJob are opaque plugin handles this step owns and
	// releases through the plugin's destructor at teardown.
	SwitchJob interface{}
	CheckJob  interface{}

	Gres     string
	GresList interface{}

	ResvPortCnt   int32
	ResvPorts     string
	ResvPortArray []int32

	Host string
	Port int32

	Name    string
	Network string

	// CkptDir is the directory the checkpoint plugin writes step
	// checkpoint images to (spec.md §4.7/§4.8/§4.9 ckpt_dir).
	CkptDir string

	BatchStep bool

	// Requid is the uid that issued a kill against this step, if any.
	Requid uint32

	// Jobacct is the opaque accounting handle stamped by the
	// accounting plugin contract's step_start hook.
	Jobacct interface{}

	Status Status
}

// RemainingSeconds returns the step's configured time limit in
// seconds, or -1 if the step carries no limit.
func (s *Step) RemainingSeconds() int64 {
	if s.TimeLimit == Infinite {
		return -1
	}
	return int64(s.TimeLimit) * 60
}

// ElapsedRunSeconds computes the elapsed running time used by
// check_time_limit (spec.md §4.7): wall time since start minus
// accumulated suspended time.
func (s *Step) ElapsedRunSeconds(now time.Time) float64 {
	return now.Sub(s.StartTime).Seconds() - s.TotSusTime.Seconds()
}
