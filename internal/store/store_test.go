// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"testing"

	"github.com/jontk/slurm-stepmgr/internal/job"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReleaser struct {
	released []*job.Step
}

func (f *fakeReleaser) ReleaseStep(j *job.Job, s *job.Step) {
	f.released = append(f.released, s)
}

func newTestJob() *job.Job {
	return &job.Job{JobID: 1, UserID: 100, State: job.StateRunning}
}

func TestCreateStepAllocatesIDs(t *testing.T) {
	j := newTestJob()
	s1, err := CreateStep(j)
	require.NoError(t, err)
	s2, err := CreateStep(j)
	require.NoError(t, err)

	assert.Less(t, s1.StepID, s2.StepID)
	assert.Len(t, j.Steps, 2)
	assert.Equal(t, job.StatusBuilding, s1.Status)
}

func TestCreateStepTooManySteps(t *testing.T) {
	j := newTestJob()
	j.NextStepID = job.MaxStepID
	_, err := CreateStep(j)
	require.Error(t, err)
	assert.Equal(t, stepmgrerrors.CodeTooManySteps, stepmgrerrors.CodeOf(err))
}

func TestFind(t *testing.T) {
	j := newTestJob()
	s, _ := CreateStep(j)

	found, ok := Find(j, s.StepID)
	require.True(t, ok)
	assert.Same(t, s, found)

	_, ok = Find(j, 999)
	assert.False(t, ok)
}

func TestDeleteStepReleasesAndRemoves(t *testing.T) {
	j := newTestJob()
	s, _ := CreateStep(j)
	releaser := &fakeReleaser{}

	assert.True(t, DeleteStep(j, s.StepID, releaser))
	assert.Empty(t, j.Steps)
	assert.Equal(t, []*job.Step{s}, releaser.released)

	assert.False(t, DeleteStep(j, s.StepID, releaser))
}

func TestDeleteAllFilterNoSwitchOnly(t *testing.T) {
	j := newTestJob()
	s1, _ := CreateStep(j)
	s2, _ := CreateStep(j)
	s2.SwitchJob = "opaque-handle"
	releaser := &fakeReleaser{}

	removed := DeleteAll(j, FilterNoSwitchOnly, releaser)
	assert.Equal(t, 1, removed)
	assert.Len(t, j.Steps, 1)
	assert.Equal(t, s2, j.Steps[0])
	assert.Equal(t, []*job.Step{s1}, releaser.released)
}

func TestDeleteAllFilterAll(t *testing.T) {
	j := newTestJob()
	CreateStep(j)
	CreateStep(j)
	releaser := &fakeReleaser{}

	removed := DeleteAll(j, FilterAll, releaser)
	assert.Equal(t, 2, removed)
	assert.Empty(t, j.Steps)
	assert.Len(t, releaser.released, 2)
}
