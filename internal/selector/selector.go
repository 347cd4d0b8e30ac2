// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package selector

import (
	"time"

	"github.com/jontk/slurm-stepmgr/internal/bitmap"
	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/internal/plugins"
	stepmgrconfig "github.com/jontk/slurm-stepmgr/pkg/config"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
)

// ceilDiv returns ceil(a/b) for positive a, b.
func ceilDiv(a, b int32) int32 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// PickStepNodes chooses the node bitmap a new step will run on (spec.md
// §4.3). upNodes marks which of the job's nodes are currently powered
// up and responsive; now is used to extend the job's end_time across
// the pre-flight boot-wait path.
func PickStepNodes(j *job.Job, req *Request, upNodes *bitmap.Bitmap, gres plugins.Gres, cfg *stepmgrconfig.Config, now time.Time) (*Result, error) {
	candidates := j.NodeBitmap.Copy()
	candidates.And(upNodes)

	// Pre-flight: a job's first step pays the price of waiting for any
	// powered-down or unresponsive node to boot.
	if len(j.Steps) == 0 && !j.NodeBitmap.IsSubsetOf(upNodes) {
		if req.TimeLimitMinutes > 0 && req.TimeLimitMinutes != job.Infinite {
			j.EndTime = j.EndTime.Add(time.Duration(req.TimeLimitMinutes) * time.Minute)
		}
		return nil, stepmgrerrors.New(stepmgrerrors.CodeNodesBusy, "job nodes still booting")
	}
	j.Configuring = false

	taskDist := downgradeArbitrary(req.TaskDist, cfg)

	if req.Exclusive {
		return pickExclusive(j, req, candidates, gres, taskDist)
	}
	return pickShared(j, req, candidates, gres, taskDist)
}

func downgradeArbitrary(dist TaskDist, cfg *stepmgrconfig.Config) TaskDist {
	if dist == job.DistArbitrary && cfg.IsElanSwitch() {
		return job.DistBlock
	}
	return dist
}

// tasksFor converts a CPU count into a task count given cpusPerTask;
// 0 means task-count-driven, where CPU demand tracks tasks 1:1.
func tasksFor(cpus int32, cpusPerTask int32) int32 {
	if cpusPerTask > 0 {
		return cpus / cpusPerTask
	}
	return cpus
}

func pickExclusive(j *job.Job, req *Request, candidates *bitmap.Bitmap, gres plugins.Gres, taskDist TaskDist) (*Result, error) {
	res := j.Resources

	nodeOrder := candidates.Indices()
	if req.NodeList != nil {
		if !req.NodeList.IsSubsetOf(candidates) {
			return nil, stepmgrerrors.New(stepmgrerrors.CodeRequestedNodeConfigUnavailable, "requested node_list is not usable")
		}
		nodeOrder = req.NodeList.Indices()
	}

	picked := bitmap.New(j.NodeBitmap.Len())
	var tasksPicked, totalTasks, nodesPicked int32

	for _, i := range nodeOrder {
		availTasks, totTasks, err := exclusiveNodeTasks(res, req, gres, j, i)
		if err != nil {
			return nil, err
		}
		totalTasks += totTasks

		if req.NodeList == nil && availTasks <= 0 {
			continue
		}

		picked.Set(i)
		tasksPicked += availTasks
		nodesPicked++

		if req.NodeList == nil && tasksPicked >= req.NumTasks && nodesPicked >= int32(minNodesOf(req)) {
			break
		}
	}

	if tasksPicked >= req.NumTasks {
		return &Result{Nodes: picked, TaskDist: taskDist}, nil
	}
	if totalTasks >= req.NumTasks {
		return nil, stepmgrerrors.New(stepmgrerrors.CodeNodesBusy, "insufficient currently-free tasks across exclusive nodes")
	}
	return nil, stepmgrerrors.New(stepmgrerrors.CodeRequestedNodeConfigUnavailable, "exclusive node set cannot satisfy requested tasks")
}

func minNodesOf(req *Request) uint32 {
	if req.MinNodes == job.Infinite {
		return 0
	}
	return req.MinNodes
}

func exclusiveNodeTasks(res *job.Resources, req *Request, gres plugins.Gres, j *job.Job, i int) (avail, total int32, err error) {
	availCPUs := res.AvailCPUs(i)
	totalCPUs := res.Cpus[i]

	avail = tasksFor(availCPUs, req.CPUsPerTask)
	total = tasksFor(totalCPUs, req.CPUsPerTask)

	if res.HasMemory() && req.MemPerCPU > 0 {
		availMemTasks := int32(res.AvailMemory(i) / req.MemPerCPU)
		totalMemTasks := int32(res.MemoryAllocated[i] / req.MemPerCPU)
		avail = minInt32(avail, tasksFor(availMemTasks, req.CPUsPerTask))
		total = minInt32(total, tasksFor(totalMemTasks, req.CPUsPerTask))
	}

	if gres != nil {
		totalGresCPUs, err := gres.StepTest(req.Gres, j, i, true)
		if err != nil {
			return 0, 0, err
		}
		availGresCPUs, err := gres.StepTest(req.Gres, j, i, false)
		if err != nil {
			return 0, 0, err
		}
		avail = minInt32(avail, tasksFor(availGresCPUs, req.CPUsPerTask))
		total = minInt32(total, tasksFor(totalGresCPUs, req.CPUsPerTask))
	}

	return avail, total, nil
}

func minInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func pickShared(j *job.Job, req *Request, candidates *bitmap.Bitmap, gres plugins.Gres, taskDist TaskDist) (*Result, error) {
	res := j.Resources
	n := j.NodeBitmap.Len()

	usable := make([]int32, n)
	usableSet := bitmap.New(n)
	for _, i := range candidates.Indices() {
		cnt, err := sharedUsableCPUs(res, req, gres, j, i)
		if err != nil {
			return nil, err
		}
		usable[i] = cnt
		if cnt > 0 {
			usableSet.Set(i)
		}
	}

	if req.MinNodes == job.Infinite {
		if !usableSet.Equal(candidates) {
			return nil, stepmgrerrors.New(stepmgrerrors.CodeRequestedNodeConfigUnavailable, "not every job node can host this step")
		}
		return &Result{Nodes: usableSet.Copy(), TaskDist: taskDist, UsableCPUs: usable}, nil
	}

	if req.NodeList != nil {
		if !req.NodeList.IsSubsetOf(candidates) || !req.NodeList.IsSubsetOf(usableSet) {
			return nil, stepmgrerrors.New(stepmgrerrors.CodeRequestedNodeConfigUnavailable, "requested node_list is not usable")
		}
	}

	idle := computeIdle(j, usableSet)

	minNodes := req.MinNodes
	if req.CPUCount > 0 && res.CPUArrayCnt() == 1 {
		minPrime := uint32(ceilDiv(req.CPUCount, res.CPUArrayValue[0]))
		if minPrime > minNodes {
			minNodes = minPrime
		}
		if req.MaxNodes != 0 && req.MaxNodes < minPrime {
			return nil, stepmgrerrors.New(stepmgrerrors.CodeTooManyRequestedCPUs, "max_nodes too small for requested cpu_count")
		}
	}

	order := sharedOrder(usableSet, idle, req)

	picked := bitmap.New(n)
	var nodesPicked, cpusPicked int32
	for _, i := range order {
		if req.NodeList != nil && !req.NodeList.IsSet(i) {
			continue
		}
		if usable[i] <= 0 {
			continue
		}
		picked.Set(i)
		nodesPicked++
		cpusPicked += usable[i]

		if nodesPicked >= int32(minNodes) && (req.CPUCount == 0 || cpusPicked >= req.CPUCount) {
			break
		}
	}
	// node_list requires every listed node regardless of the greedy
	// stopping point.
	if req.NodeList != nil {
		for _, i := range req.NodeList.Indices() {
			if !picked.IsSet(i) {
				picked.Set(i)
				nodesPicked++
				cpusPicked += usable[i]
			}
		}
	}

	satisfied := nodesPicked >= int32(minNodes) && (req.CPUCount == 0 || cpusPicked >= req.CPUCount)
	if satisfied {
		return &Result{Nodes: picked, TaskDist: taskDist, UsableCPUs: usable}, nil
	}

	var blockedCPUs int32
	for _, i := range usableSet.Indices() {
		if !picked.IsSet(i) {
			blockedCPUs += usable[i]
		}
	}

	switch {
	case req.CPUCount > 0 && req.CPUCount <= cpusPicked+blockedCPUs:
		return nil, stepmgrerrors.New(stepmgrerrors.CodeNodesBusy, "usable CPUs exist but are held by other steps")
	case !j.NodeBitmap.IsSubsetOf(candidates):
		return nil, stepmgrerrors.New(stepmgrerrors.CodeNodeNotAvail, "some job nodes are down")
	default:
		return nil, stepmgrerrors.New(stepmgrerrors.CodeRequestedNodeConfigUnavailable, "insufficient usable nodes for this step")
	}
}

func sharedUsableCPUs(res *job.Resources, req *Request, gres plugins.Gres, j *job.Job, i int) (int32, error) {
	cnt := res.Cpus[i]

	if res.HasMemory() && req.MemPerCPU > 0 {
		memCPUs := int32(res.AvailMemory(i) / req.MemPerCPU)
		cnt = minInt32(cnt, memCPUs)
	}

	if gres != nil {
		gresCPUs, err := gres.StepTest(req.Gres, j, i, false)
		if err != nil {
			return 0, err
		}
		cnt = minInt32(cnt, gresCPUs)
	}

	if cnt < 0 {
		cnt = 0
	}
	return cnt, nil
}

// computeIdle returns the subset of usable nodes not already claimed
// by any other step of the job.
func computeIdle(j *job.Job, usable *bitmap.Bitmap) *bitmap.Bitmap {
	idle := usable.Copy()
	for _, s := range j.Steps {
		if s.StepNodeBitmap != nil {
			idle.AndNot(s.StepNodeBitmap)
		}
	}
	return idle
}

// sharedOrder produces the candidate iteration order for the greedy
// picker: idle nodes first then the rest, both ascending by index so
// ties break on first-set bit; or, when Relative is set, the usable
// set in ascending order with the first Relative entries skipped.
func sharedOrder(usable, idle *bitmap.Bitmap, req *Request) []int {
	if req.Relative >= 0 {
		all := usable.Indices()
		if int(req.Relative) >= len(all) {
			return nil
		}
		return all[req.Relative:]
	}

	order := idle.Indices()
	rest := usable.Copy()
	rest.AndNot(idle)
	order = append(order, rest.Indices()...)
	return order
}
