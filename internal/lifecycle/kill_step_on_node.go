// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"

	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/pkg/agentqueue"
	"github.com/jontk/slurm-stepmgr/pkg/streaming"
)

// terminateTasksArgs is the payload a REQUEST_TERMINATE_TASKS dispatch
// carries.
type terminateTasksArgs struct {
	JobID  uint32
	StepID uint32
	Signal int32
}

// KillStepOnNode reacts to a node failure: every step of j whose
// node bitmap includes nodeIdx and that does not carry no_kill is
// sent a SIGKILL and a REQUEST_TERMINATE_TASKS targeted at that one
// node (spec.md §4.7 kill_step_on_node).
func (c *Controller) KillStepOnNode(ctx context.Context, j *job.Job, nodeIdx int) {
	if nodeIdx < 0 || nodeIdx >= len(j.NodeNames) {
		return
	}
	nodeName := j.NodeNames[nodeIdx]

	for _, s := range j.Steps {
		if s.NoKill || s.StepNodeBitmap == nil || !s.StepNodeBitmap.IsSet(nodeIdx) {
			continue
		}

		s.Requid = 0
		c.Agent.Post(ctx, agentqueue.Request{
			MsgType:   agentqueue.MsgTerminateTasks,
			Hostlist:  nodeName,
			NodeCount: 1,
			MsgArgs:   terminateTasksArgs{JobID: j.JobID, StepID: s.StepID, Signal: sigKill},
		})

		c.publish(streaming.EventStepSignaled, j, s, terminateTasksArgs{JobID: j.JobID, StepID: s.StepID, Signal: sigKill})
		c.Logger.Info("step killed on node failure", "job_id", j.JobID, "step_id", s.StepID, "node", nodeName)
	}
}
