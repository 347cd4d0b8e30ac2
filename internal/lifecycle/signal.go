// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"

	"github.com/jontk/slurm-stepmgr/internal/bitmap"
	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/pkg/agentqueue"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
	"github.com/jontk/slurm-stepmgr/pkg/streaming"
)

// sigKill is the signal number recorded as a kill request (spec.md
// §4.7 signal).
const sigKill = 9

// signalTasksArgs is the payload a REQUEST_SIGNAL_TASKS dispatch
// carries (spec.md §6: the GRES/switch style "opaque msg_args").
type signalTasksArgs struct {
	JobID  uint32
	StepID uint32
	Signal int32
}

// Signal dispatches signal to every node of step s (spec.md §4.7
// signal). It requires the job running and the caller authorised; a
// SIGKILL is additionally recorded as the step's requid. It is a
// no-op if the step's node count is zero.
func (c *Controller) Signal(ctx context.Context, j *job.Job, s *job.Step, signal int32, uid uint32) error {
	if !j.IsRunning() {
		return stepmgrerrors.New(stepmgrerrors.CodeTransitionStateNoUpdate, "job is not running")
	}
	if !c.authorized(uid, j.UserID) {
		return stepmgrerrors.New(stepmgrerrors.CodeAccessDenied, "uid is not authorised for this step")
	}

	if signal == sigKill {
		s.Requid = uid
		c.publish(streaming.EventStepSignaled, j, s, signalTasksArgs{JobID: j.JobID, StepID: s.StepID, Signal: signal})
	}

	hostlist, nodeCount := c.stepHostlist(j, s)
	if nodeCount == 0 {
		return nil
	}

	c.Agent.Post(ctx, agentqueue.Request{
		MsgType:   agentqueue.MsgSignalTasks,
		Hostlist:  hostlist,
		NodeCount: nodeCount,
		MsgArgs:   signalTasksArgs{JobID: j.JobID, StepID: s.StepID, Signal: signal},
	})

	c.Metrics.RecordStepSignaled(int(signal))
	c.Logger.Info("step signaled", "job_id", j.JobID, "step_id", s.StepID, "signal", signal)
	return nil
}

// stepHostlist renders the hostlist and node count a step's agent
// dispatches target: the job's batch_host on front-end systems,
// otherwise the step's own node bitmap (spec.md §4.7: "every node in
// step_node_bitmap (or the job's batch_host on front-end systems)").
func (c *Controller) stepHostlist(j *job.Job, s *job.Step) (string, int32) {
	if j.FrontEnd {
		if j.BatchHost == "" {
			return "", 0
		}
		return j.BatchHost, 1
	}
	if s.StepNodeBitmap == nil {
		return "", 0
	}
	names := j.NamesOf(s.StepNodeBitmap)
	if len(names) == 0 {
		return "", 0
	}
	return bitmap.CompressHostlist(names), int32(len(names))
}
