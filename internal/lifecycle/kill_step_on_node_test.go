// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"testing"

	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/pkg/agentqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKillStepOnNodeTargetsMatchingSteps(t *testing.T) {
	j := runningJob()
	killable := stepWithNodes(1, 0, 1)
	survives := stepWithNodes(2, 0)
	survives.NoKill = true
	unaffected := stepWithNodes(3, 2)
	j.Steps = []*job.Step{killable, survives, unaffected}

	sender := &recordingSender{}
	c := testController(sender)

	c.KillStepOnNode(context.Background(), j, 0)
	c.Agent.Wait()

	require.Len(t, sender.received, 1)
	assert.Equal(t, agentqueue.MsgTerminateTasks, sender.received[0].MsgType)
	assert.Equal(t, "node1", sender.received[0].Hostlist)
}

func TestKillStepOnNodeOutOfRangeIsNoOp(t *testing.T) {
	j := runningJob()
	s := stepWithNodes(1, 0)
	j.Steps = []*job.Step{s}

	sender := &recordingSender{}
	c := testController(sender)

	c.KillStepOnNode(context.Background(), j, 99)
	c.Agent.Wait()
	assert.Empty(t, sender.received)
}
