// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/jontk/slurm-stepmgr/internal/bitmap"
	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/internal/plugins"
	"github.com/jontk/slurm-stepmgr/internal/step"
	"github.com/jontk/slurm-stepmgr/pkg/agentqueue"
	stepmgrconfig "github.com/jontk/slurm-stepmgr/pkg/config"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
	"github.com/jontk/slurm-stepmgr/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	received []agentqueue.Request
}

func (s *recordingSender) Send(ctx context.Context, req agentqueue.Request) error {
	s.received = append(s.received, req)
	return nil
}

func testController(sender *recordingSender) *Controller {
	cfg := stepmgrconfig.NewDefault()
	c := New(cfg)
	c.Agent = agentqueue.New(sender, retry.NewNoRetry(), nil)
	return c
}

func runningJob() *job.Job {
	nb := bitmap.New(4)
	nb.SetAll()
	return &job.Job{
		JobID:  10,
		UserID: 500,
		State:  job.StateRunning,
		Resources: &job.Resources{
			NodeCount:     4,
			Cpus:          []int32{4, 4, 4, 4},
			CpusUsed:      []int32{0, 0, 0, 0},
			CPUArrayValue: []int32{4},
			CPUArrayReps:  []int32{4},
		},
		NodeBitmap: nb,
		NodeNames:  []string{"node1", "node2", "node3", "node4"},
	}
}

func allUp(n int) *bitmap.Bitmap {
	b := bitmap.New(n)
	b.SetAll()
	return b
}

func TestCreateAssignsStepAndDebitsResources(t *testing.T) {
	j := runningJob()
	sender := &recordingSender{}
	c := testController(sender)

	req, err := step.New(4, 1).WithCPUCount(4).WithMinMaxNodes(1, 4).WithCkptDir("/ckpt/10.0").Build()
	require.NoError(t, err)

	s, err := c.Create(context.Background(), j, req, j.UserID, false, allUp(4), time.Now())
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, uint32(0), s.StepID)
	assert.Equal(t, "/ckpt/10.0", s.CkptDir)
	assert.Equal(t, job.StatusRunning, s.Status)
	require.NotNil(t, s.StepLayout)
	var totalTasks int32
	for _, tasks := range s.StepLayout.TasksNode {
		totalTasks += tasks
	}
	assert.Equal(t, int32(4), totalTasks)

	var totalUsed int32
	for _, u := range j.Resources.CpusUsed {
		totalUsed += u
	}
	assert.Equal(t, int32(4), totalUsed)
}

func TestCreateRejectsUnauthorizedUID(t *testing.T) {
	j := runningJob()
	c := testController(&recordingSender{})

	req, err := step.New(2, 1).WithCPUCount(2).Build()
	require.NoError(t, err)

	_, err = c.Create(context.Background(), j, req, 999, false, allUp(4), time.Now())
	require.Error(t, err)
	assert.Equal(t, stepmgrerrors.CodeAccessDenied, stepmgrerrors.CodeOf(err))
}

func TestCreateRejectsNonRunningJob(t *testing.T) {
	j := runningJob()
	j.State = job.StatePending
	c := testController(&recordingSender{})

	req, err := step.New(2, 1).WithCPUCount(2).Build()
	require.NoError(t, err)

	_, err = c.Create(context.Background(), j, req, j.UserID, false, allUp(4), time.Now())
	require.Error(t, err)
	assert.Equal(t, stepmgrerrors.CodeJobPending, stepmgrerrors.CodeOf(err))
}

func TestCreateRejectsBadTaskCount(t *testing.T) {
	j := runningJob()
	c := testController(&recordingSender{})

	req, err := step.New(4096, 1).WithCPUCount(4096).Build()
	require.NoError(t, err)

	_, err = c.Create(context.Background(), j, req, j.UserID, false, allUp(4), time.Now())
	require.Error(t, err)
	assert.Equal(t, stepmgrerrors.CodeBadTaskCount, stepmgrerrors.CodeOf(err))
}

func TestCreateRollsBackOnGresFailure(t *testing.T) {
	j := runningJob()
	c := testController(&recordingSender{})
	c.Plugins.Gres = plugins.NotConfiguredGres{}

	req, err := step.New(2, 1).
		WithCPUCount(2).
		WithGres("gpu:1", plugins.GresRequest{Name: "gpu", Count: 1}).
		Build()
	require.NoError(t, err)

	_, err = c.Create(context.Background(), j, req, j.UserID, false, allUp(4), time.Now())
	require.Error(t, err)
	assert.Empty(t, j.Steps)
	assert.Equal(t, uint32(0), j.NextStepID)
}
