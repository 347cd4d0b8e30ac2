// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"testing"

	"github.com/jontk/slurm-stepmgr/internal/job"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAdjustsSingleStep(t *testing.T) {
	j := runningJob()
	s1 := &job.Step{StepID: 1, TimeLimit: 10}
	s2 := &job.Step{StepID: 2, TimeLimit: 10}
	j.Steps = []*job.Step{s1, s2}

	c := testController(&recordingSender{})
	err := c.Update(j, UpdateRequest{StepID: 1, TimeLimit: 60}, true)
	require.NoError(t, err)

	assert.EqualValues(t, 60, s1.TimeLimit)
	assert.EqualValues(t, 10, s2.TimeLimit)
}

func TestUpdateAdjustsEveryStepWhenNoVal(t *testing.T) {
	j := runningJob()
	s1 := &job.Step{StepID: 1, TimeLimit: 10}
	s2 := &job.Step{StepID: 2, TimeLimit: 10}
	j.Steps = []*job.Step{s1, s2}

	c := testController(&recordingSender{})
	err := c.Update(j, UpdateRequest{StepID: job.NoVal, TimeLimit: 90}, true)
	require.NoError(t, err)

	assert.EqualValues(t, 90, s1.TimeLimit)
	assert.EqualValues(t, 90, s2.TimeLimit)
}

func TestUpdateRejectsUnprivilegedCaller(t *testing.T) {
	j := runningJob()
	j.Steps = []*job.Step{{StepID: 1, TimeLimit: 10}}

	c := testController(&recordingSender{})
	err := c.Update(j, UpdateRequest{StepID: 1, TimeLimit: 60}, false)
	require.Error(t, err)
	assert.Equal(t, stepmgrerrors.CodeAccessDenied, stepmgrerrors.CodeOf(err))
}

func TestUpdateRejectsUnknownStep(t *testing.T) {
	j := runningJob()
	c := testController(&recordingSender{})
	err := c.Update(j, UpdateRequest{StepID: 99, TimeLimit: 60}, true)
	require.Error(t, err)
	assert.Equal(t, stepmgrerrors.CodeInvalidJobID, stepmgrerrors.CodeOf(err))
}
