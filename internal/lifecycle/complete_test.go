// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/jontk/slurm-stepmgr/internal/bitmap"
	"github.com/jontk/slurm-stepmgr/internal/job"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteRemovesStepAndFoldsExitCode(t *testing.T) {
	j := runningJob()
	s := stepWithNodes(1, 0)
	s.StepLayout = &job.Layout{TasksNode: []int32{1}}
	s.CPUsPerTask = 1
	j.Steps = []*job.Step{s}
	j.Resources.CpusUsed[0] = 1

	c := testController(&recordingSender{})

	err := c.Complete(context.Background(), j, s, 7, j.UserID, time.Now())
	require.NoError(t, err)

	assert.Empty(t, j.Steps)
	assert.EqualValues(t, 7, j.DerivedExitCode)
	assert.EqualValues(t, 0, j.Resources.CpusUsed[0])
}

func TestCompleteKeepsHigherExistingExitCode(t *testing.T) {
	j := runningJob()
	s := stepWithNodes(1, 0)
	s.StepLayout = &job.Layout{TasksNode: []int32{1}}
	s.CPUsPerTask = 1
	s.ExitCode = 9
	j.Steps = []*job.Step{s}

	c := testController(&recordingSender{})

	err := c.Complete(context.Background(), j, s, 3, j.UserID, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 9, j.DerivedExitCode)
}

func TestCompleteRejectsUnauthorizedUID(t *testing.T) {
	j := runningJob()
	s := stepWithNodes(1, 0)
	j.Steps = []*job.Step{s}

	c := testController(&recordingSender{})
	err := c.Complete(context.Background(), j, s, 0, 999, time.Now())
	require.Error(t, err)
	assert.Equal(t, stepmgrerrors.CodeAccessDenied, stepmgrerrors.CodeOf(err))
	assert.NotEmpty(t, j.Steps)
}

func TestCompleteReleasesPaintedCores(t *testing.T) {
	j := runningJob()
	j.Resources.CoreBitmap = bitmap.New(8)
	j.Resources.CoreBitmap.SetAll()
	j.Resources.CoreBitmapUsed = bitmap.New(8)
	j.Resources.SocketsPerNode = []int32{1, 1, 1, 1}
	j.Resources.CoresPerSocket = []int32{2, 2, 2, 2}

	s := stepWithNodes(1, 0)
	s.StepLayout = &job.Layout{TasksNode: []int32{2}}
	s.CPUsPerTask = 1
	s.CoreBitmapJob = bitmap.New(8)
	s.CoreBitmapJob.Set(0)
	s.CoreBitmapJob.Set(1)
	j.Resources.CoreBitmapUsed.Set(0)
	j.Resources.CoreBitmapUsed.Set(1)
	j.Steps = []*job.Step{s}

	c := testController(&recordingSender{})
	err := c.Complete(context.Background(), j, s, 0, j.UserID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, j.Resources.CoreBitmapUsed.PopCount())
}
