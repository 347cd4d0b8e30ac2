// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package layout implements the step layout planner (spec.md §4.6):
// it collapses a chosen node set's per-node usable CPU counts into
// run-length pairs and distributes a step's tasks across those nodes
// according to its requested distribution.
package layout

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jontk/slurm-stepmgr/internal/job"
)

var titleCaser = cases.Title(language.Und)

// ParseDist parses a task distribution name case-insensitively
// (srun accepts "block", "Block", "BLOCK" interchangeably).
func ParseDist(s string) job.TaskDist {
	switch titleCaser.String(strings.ToLower(s)) {
	case "Cyclic":
		return job.DistCyclic
	case "Plane":
		return job.DistPlane
	case "Arbitrary":
		return job.DistArbitrary
	default:
		return job.DistBlock
	}
}

// CPURun is one run-length-encoded group of equal per-node usable CPU
// counts, in the order spec.md §4.6 hands to the external layout
// routine.
type CPURun struct {
	CPUsPerNode int32
	Reps        int32
}

// CollapseRuns converts usable[i] for i in nodes (in iteration order)
// into run-length pairs, merging consecutive equal values.
func CollapseRuns(usable []int32, nodes []int) []CPURun {
	var runs []CPURun
	for _, i := range nodes {
		v := usable[i]
		if n := len(runs); n > 0 && runs[n-1].CPUsPerNode == v {
			runs[n-1].Reps++
			continue
		}
		runs = append(runs, CPURun{CPUsPerNode: v, Reps: 1})
	}
	return runs
}

// Plan is the materialized layout a step create produces.
type Plan struct {
	TasksPerNode []int32
	TaskIDs      [][]int32

	// CPURuns is the run-length-encoded form of the usable per-node
	// CPU counts Build was handed, in the same node order (spec.md
	// §4.6): consecutive nodes with equal capacity collapse into one
	// {CPUsPerNode, Reps} pair, the shape the external layout routine
	// this module stands in for receives its capacity argument as.
	CPURuns []CPURun
}

// Build distributes numTasks tasks across nodes (job-local indices, in
// order) according to dist. usable holds each node's CPU capacity,
// indexed by job-local node index; when cpusPerTask > 0 a node's task
// capacity is usable[i] / cpusPerTask.
// planeSize is only consulted for job.DistPlane.
func Build(nodes []int, usable []int32, numTasks int32, cpusPerTask int32, dist job.TaskDist, planeSize int32) *Plan {
	capacity := make([]int32, len(nodes))
	for idx, i := range nodes {
		if cpusPerTask > 0 {
			capacity[idx] = usable[i] / cpusPerTask
		} else {
			capacity[idx] = usable[i]
		}
		if capacity[idx] < 0 {
			capacity[idx] = 0
		}
	}

	var plan *Plan
	switch dist {
	case job.DistCyclic:
		plan = buildCyclic(capacity, numTasks)
	case job.DistPlane:
		plan = buildPlane(capacity, numTasks, planeSize)
	default: // BLOCK and (already-downgraded) ARBITRARY
		plan = buildBlock(capacity, numTasks)
	}
	plan.CPURuns = CollapseRuns(usable, nodes)
	return plan
}

func buildBlock(capacity []int32, numTasks int32) *Plan {
	tasksPerNode := make([]int32, len(capacity))
	taskIDs := make([][]int32, len(capacity))
	var nextID int32

	for i := range capacity {
		room := capacity[i]
		for room > 0 && nextID < numTasks {
			tasksPerNode[i]++
			taskIDs[i] = append(taskIDs[i], nextID)
			nextID++
			room--
		}
		if nextID >= numTasks {
			break
		}
	}
	return &Plan{TasksPerNode: tasksPerNode, TaskIDs: taskIDs}
}

func buildCyclic(capacity []int32, numTasks int32) *Plan {
	tasksPerNode := make([]int32, len(capacity))
	taskIDs := make([][]int32, len(capacity))
	remaining := append([]int32(nil), capacity...)

	var nextID int32
	for nextID < numTasks {
		progressed := false
		for i := range remaining {
			if nextID >= numTasks {
				break
			}
			if remaining[i] <= 0 {
				continue
			}
			tasksPerNode[i]++
			taskIDs[i] = append(taskIDs[i], nextID)
			nextID++
			remaining[i]--
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return &Plan{TasksPerNode: tasksPerNode, TaskIDs: taskIDs}
}

// buildPlane distributes tasks in fixed-size "planes": planeSize
// consecutive task ids land on one node before moving to the next,
// wrapping cyclically across nodes with remaining capacity.
func buildPlane(capacity []int32, numTasks int32, planeSize int32) *Plan {
	if planeSize <= 0 {
		planeSize = 1
	}
	tasksPerNode := make([]int32, len(capacity))
	taskIDs := make([][]int32, len(capacity))
	remaining := append([]int32(nil), capacity...)

	var nextID int32
	for nextID < numTasks {
		progressed := false
		for i := range remaining {
			if nextID >= numTasks {
				break
			}
			for c := int32(0); c < planeSize && remaining[i] > 0 && nextID < numTasks; c++ {
				tasksPerNode[i]++
				taskIDs[i] = append(taskIDs[i], nextID)
				nextID++
				remaining[i]--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return &Plan{TasksPerNode: tasksPerNode, TaskIDs: taskIDs}
}
