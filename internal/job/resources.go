// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package job

import "github.com/jontk/slurm-stepmgr/internal/bitmap"

// Resources is the read-mostly per-node projection of a job's
// allocation (spec.md §4.1): per-job-local-node CPU totals and used
// counters, optional memory totals/used, and an optional flat
// (nodes × sockets × cores) core bitmap with a parallel "used"
// shadow. Mutations are confined to alloc/dealloc (§4.7) and the core
// painter (§4.5); nothing else in this module writes to it directly.
type Resources struct {
	NodeCount int

	Cpus     []int32
	CpusUsed []int32

	// MemoryAllocated/MemoryUsed are nil when the job carries no
	// memory reservation.
	MemoryAllocated []int64
	MemoryUsed      []int64

	// CoreBitmap/CoreBitmapUsed are nil when the job has no core
	// bitmap (e.g. consumable resource selection is CPU-count based
	// rather than core based).
	CoreBitmap     *bitmap.Bitmap
	CoreBitmapUsed *bitmap.Bitmap

	SocketsPerNode []int32
	CoresPerSocket []int32

	// CPUArrayValue/CPUArrayReps are the job's CPU count run-length
	// array: CPUArrayValue[k] repeated CPUArrayReps[k] times gives
	// Cpus. CPUArrayCnt (len(CPUArrayValue) == 1) identifies a
	// homogeneous allocation, used by the selector's cpu_count-driven
	// min_nodes derivation (§4.3) and the count-CPUs helper (§4.4).
	CPUArrayValue []int32
	CPUArrayReps  []int32
}

// HasMemory reports whether this job reserves memory per CPU.
func (r *Resources) HasMemory() bool {
	return r.MemoryAllocated != nil
}

// HasCoreBitmap reports whether this job tracks a core-level bitmap.
func (r *Resources) HasCoreBitmap() bool {
	return r.CoreBitmap != nil
}

// CPUArrayCnt returns the number of distinct CPU-count runs; a value
// of 1 means the allocation is homogeneous across nodes.
func (r *Resources) CPUArrayCnt() int {
	return len(r.CPUArrayValue)
}

// AvailCPUs returns cpus[i] - cpus_used[i] for job-local index i.
func (r *Resources) AvailCPUs(i int) int32 {
	return r.Cpus[i] - r.CpusUsed[i]
}

// AvailMemory returns memory_allocated[i] - memory_used[i], or -1 if
// this job reserves no memory.
func (r *Resources) AvailMemory(i int) int64 {
	if !r.HasMemory() {
		return -1
	}
	return r.MemoryAllocated[i] - r.MemoryUsed[i]
}

// Offset computes the flat index of (nodeIdx, socket, core) into the
// CoreBitmap/CoreBitmapUsed bitmaps, addressed in the node-major,
// socket-then-core layout spec.md §9 describes.
func (r *Resources) Offset(nodeIdx, socket, core int) int {
	base := 0
	for i := 0; i < nodeIdx; i++ {
		base += int(r.SocketsPerNode[i]) * int(r.CoresPerSocket[i])
	}
	return base + socket*int(r.CoresPerSocket[nodeIdx]) + core
}

// CoresOnNode returns the total number of cores on job-local node i.
func (r *Resources) CoresOnNode(i int) int {
	return int(r.SocketsPerNode[i]) * int(r.CoresPerSocket[i])
}

// NodeOffsetRange returns the [lo, hi) flat core-bitmap range for
// job-local node i.
func (r *Resources) NodeOffsetRange(i int) (int, int) {
	lo := r.Offset(i, 0, 0)
	return lo, lo + r.CoresOnNode(i)
}
