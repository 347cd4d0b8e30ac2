// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package selector implements pick_step_nodes, the node/CPU/memory/
// GRES admission decision a step create goes through before any
// record is built (spec.md §4.3), plus the count-CPUs helper (§4.4).
package selector

import (
	"github.com/jontk/slurm-stepmgr/internal/bitmap"
	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/internal/plugins"
)

// Request is the subset of a step create request pick_step_nodes
// consumes. NodeList, when non-nil, is already resolved to a
// job-local bitmap; the selector does not expand hostlist strings,
// and neither does the lifecycle controller before calling it.
type Request struct {
	MinNodes    uint32 // job.Infinite means "use every available node"
	MaxNodes    uint32
	NumTasks    int32
	CPUCount    int32
	CPUsPerTask int32
	MemPerCPU   int64
	Gres        []plugins.GresRequest
	NodeList    *bitmap.Bitmap
	Exclusive   bool

	// Relative, when >= 0, means "skip the first Relative idle/usable
	// nodes and draw from the remainder" rather than "prefer idle
	// nodes first". A negative value means unset.
	Relative int32

	TaskDist TaskDist

	// TimeLimitMinutes is the step's requested time limit. Within the
	// selector it is consulted only by the pre-flight boot-wait path
	// to extend the job's end_time.
	TimeLimitMinutes uint32
}

// TaskDist mirrors job.TaskDist; kept distinct so the selector can be
// exercised without importing step-record concerns beyond TaskDist
// itself, and so BLOCK-downgrade logic has a single, obvious home.
type TaskDist = job.TaskDist

// Result is the selector's successful output.
type Result struct {
	Nodes *bitmap.Bitmap

	// TaskDist is the request's distribution, downgraded from
	// ARBITRARY to BLOCK when the configured switch type demands it.
	TaskDist TaskDist

	// UsableCPUs[i] is the non-exclusive branch's per-job-local-node
	// usable CPU count, consulted by the layout planner (§4.6). Nil
	// for the exclusive branch, where usable == avail_cpus.
	UsableCPUs []int32
}
