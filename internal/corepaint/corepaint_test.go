// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package corepaint

import (
	"testing"

	"github.com/jontk/slurm-stepmgr/internal/bitmap"
	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoNodeCoreJob builds a 2-node job, 2 sockets x 2 cores per node (8
// cores total), with every core free.
func twoNodeCoreJob() *job.Resources {
	core := bitmap.New(8)
	core.SetAll()
	return &job.Resources{
		NodeCount:      2,
		SocketsPerNode: []int32{2, 2},
		CoresPerSocket: []int32{2, 2},
		CoreBitmap:     core,
		CoreBitmapUsed: bitmap.New(8),
	}
}

func TestPaintFirstPassClaimsFreeCores(t *testing.T) {
	res := twoNodeCoreJob()
	step := Paint(res, []int{0}, []int32{2}, 1)

	require.NotNil(t, step)
	assert.Equal(t, 2, step.PopCount())
	assert.Equal(t, 2, res.CoreBitmapUsed.PopCount())
}

func TestPaintCopiesWholeJobWhenUsingEveryNode(t *testing.T) {
	res := twoNodeCoreJob()
	step := Paint(res, []int{0, 1}, []int32{1, 1}, 1)

	assert.True(t, step.Equal(res.CoreBitmap))
}

func TestPaintOversubscribesWhenFirstPassInsufficient(t *testing.T) {
	res := twoNodeCoreJob()
	// Claim every core on node 0 via a first step.
	first := Paint(res, []int{0}, []int32{4}, 1)
	assert.Equal(t, 4, first.PopCount())
	assert.Equal(t, 4, res.CoreBitmapUsed.PopCount())

	// A second step on node 0 cannot be satisfied by the first pass
	// and must over-subscribe.
	second := Paint(res, []int{0}, []int32{2}, 1)
	assert.Equal(t, 2, second.PopCount())
	// Over-subscription never touches core_bitmap_used.
	assert.Equal(t, 4, res.CoreBitmapUsed.PopCount())
}

func TestReleaseUnpaintsCores(t *testing.T) {
	res := twoNodeCoreJob()
	step := Paint(res, []int{0}, []int32{2}, 1)
	require.Equal(t, 2, res.CoreBitmapUsed.PopCount())

	Release(res, step)
	assert.Equal(t, 0, res.CoreBitmapUsed.PopCount())
}

func TestPaintNoCoreBitmapReturnsNil(t *testing.T) {
	res := &job.Resources{NodeCount: 1}
	step := Paint(res, []int{0}, []int32{1}, 1)
	assert.Nil(t, step)
}
