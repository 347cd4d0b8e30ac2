// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package corepaint implements the two-pass core-bitmap painter
// (spec.md §4.5): assigning specific job cores to a step, first from
// cores no other step currently holds, then — if demand remains —
// over-subscribing cores already in use, spread via a process-wide
// round-robin cursor so repeated over-subscription doesn't always
// land on the same core.
package corepaint

import (
	"sync"

	"github.com/jontk/slurm-stepmgr/internal/bitmap"
	"github.com/jontk/slurm-stepmgr/internal/job"
)

// cursor is the process-wide "last_core_inx" the spec describes: a
// single rotating pointer shared by every over-subscribing paint
// call, not per-job or per-node.
var cursor struct {
	mu  sync.Mutex
	pos int
}

func nextCursor(total int) int {
	cursor.mu.Lock()
	defer cursor.mu.Unlock()
	if total <= 0 {
		return 0
	}
	cursor.pos = (cursor.pos + 1) % total
	return cursor.pos
}

// Paint assigns taskCnt*cpusPerTask worth of cores on the given
// job-local nodes to a step, returning the step-local core_bitmap_job
// (flat, same addressing as job.Resources.CoreBitmap). Nodes lists the
// job-local node indices the step was assigned (from the selector).
func Paint(res *job.Resources, nodes []int, taskCntPerNode []int32, cpusPerTask int32) *bitmap.Bitmap {
	if !res.HasCoreBitmap() {
		return nil
	}

	stepBitmap := bitmap.New(res.CoreBitmap.Len())

	if usesEveryCore(res, nodes) {
		for _, i := range nodes {
			lo, hi := res.NodeOffsetRange(i)
			for off := lo; off < hi; off++ {
				if res.CoreBitmap.IsSet(off) {
					stepBitmap.Set(off)
				}
			}
		}
		return stepBitmap
	}

	var quota int32
	for _, t := range taskCntPerNode {
		quota += t * maxInt32(cpusPerTask, 1)
	}

	quota = paintFirstPass(res, nodes, stepBitmap, quota)
	if quota > 0 {
		paintOversubscribed(res, nodes, stepBitmap, quota)
	}
	return stepBitmap
}

// usesEveryCore reports whether the step's node set spans the job's
// entire core bitmap, in which case painting degenerates to a copy
// (spec.md §4.5: "when all of the job's cores ... just copies
// job.core_bitmap").
func usesEveryCore(res *job.Resources, nodes []int) bool {
	return len(nodes) == res.NodeCount
}

// paintFirstPass walks (core, socket) in outer-core/inner-socket order
// across the step's nodes, claiming cells set in core_bitmap and clear
// in core_bitmap_used. It mutates res.CoreBitmapUsed and stepBitmap in
// place and returns the remaining unmet quota.
func paintFirstPass(res *job.Resources, nodes []int, stepBitmap *bitmap.Bitmap, quota int32) int32 {
	maxCoresPerSocket := 0
	for _, i := range nodes {
		if c := int(res.CoresPerSocket[i]); c > maxCoresPerSocket {
			maxCoresPerSocket = c
		}
	}

	for core := 0; core < maxCoresPerSocket && quota > 0; core++ {
		for _, i := range nodes {
			if quota <= 0 {
				break
			}
			sockets := int(res.SocketsPerNode[i])
			coresPerSocket := int(res.CoresPerSocket[i])
			if core >= coresPerSocket {
				continue
			}
			for socket := 0; socket < sockets && quota > 0; socket++ {
				off := res.Offset(i, socket, core)
				if !res.CoreBitmap.IsSet(off) || res.CoreBitmapUsed.IsSet(off) {
					continue
				}
				res.CoreBitmapUsed.Set(off)
				stepBitmap.Set(off)
				quota--
			}
		}
	}
	return quota
}

// paintOversubscribed starts at (last_core_inx+1) mod cores and claims
// cells already in core_bitmap regardless of core_bitmap_used, as long
// as this step hasn't already claimed them. It never touches
// core_bitmap_used: over-subscription is step-private.
func paintOversubscribed(res *job.Resources, nodes []int, stepBitmap *bitmap.Bitmap, quota int32) {
	total := res.CoreBitmap.Len()
	if total == 0 {
		return
	}
	start := nextCursor(total)

	for step := 0; step < total && quota > 0; step++ {
		off := (start + step) % total
		if !inNodeSet(res, nodes, off) {
			continue
		}
		if !res.CoreBitmap.IsSet(off) || stepBitmap.IsSet(off) {
			continue
		}
		stepBitmap.Set(off)
		quota--
	}
}

func inNodeSet(res *job.Resources, nodes []int, off int) bool {
	for _, i := range nodes {
		lo, hi := res.NodeOffsetRange(i)
		if off >= lo && off < hi {
			return true
		}
	}
	return false
}

// Release unpaints a completed step's cores: every bit set in
// stepBitmap is cleared from the job's core_bitmap_used shadow.
func Release(res *job.Resources, stepBitmap *bitmap.Bitmap) {
	if stepBitmap == nil || !res.HasCoreBitmap() {
		return
	}
	res.CoreBitmapUsed.AndNot(stepBitmap)
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
