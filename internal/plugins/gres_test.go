// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"testing"

	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotConfiguredGresStateValidateEmptyOK(t *testing.T) {
	g := NotConfiguredGres{}
	req, err := g.StateValidate(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestNotConfiguredGresStateValidateRejectsNonempty(t *testing.T) {
	g := NotConfiguredGres{}
	_, err := g.StateValidate([]GresRequest{{Name: "gpu", Count: 1}}, nil)
	assert.ErrorIs(t, err, errGresNotConfigured)
}

func TestNotConfiguredGresStepTestReturnsAllCPUs(t *testing.T) {
	g := NotConfiguredGres{}
	j := &job.Job{Resources: &job.Resources{Cpus: []int32{4, 8}}}

	cpus, err := g.StepTest(nil, j, 1, false)
	require.NoError(t, err)
	assert.EqualValues(t, 8, cpus)
}

func TestNotConfiguredGresStepTestRejectsNonempty(t *testing.T) {
	g := NotConfiguredGres{}
	j := &job.Job{Resources: &job.Resources{Cpus: []int32{4}}}

	_, err := g.StepTest([]GresRequest{{Name: "gpu", Count: 1}}, j, 0, false)
	assert.ErrorIs(t, err, errGresNotConfigured)
}

func TestNotConfiguredGresStepAllocRejectsNonempty(t *testing.T) {
	g := NotConfiguredGres{}
	j := &job.Job{Resources: &job.Resources{Cpus: []int32{4}}}

	_, err := g.StepAlloc([]GresRequest{{Name: "gpu", Count: 1}}, j, 0, 2)
	assert.ErrorIs(t, err, errGresNotConfigured)
}

func TestNotConfiguredGresStepAllocEmptyOK(t *testing.T) {
	g := NotConfiguredGres{}
	j := &job.Job{Resources: &job.Resources{Cpus: []int32{4}}}

	state, err := g.StepAlloc(nil, j, 0, 2)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestNotConfiguredGresStepDeallocNoop(t *testing.T) {
	g := NotConfiguredGres{}
	j := &job.Job{Resources: &job.Resources{Cpus: []int32{4}}}
	assert.NoError(t, g.StepDealloc(j, 0, nil))
}
