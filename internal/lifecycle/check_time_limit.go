// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"time"

	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/pkg/agentqueue"
	"github.com/jontk/slurm-stepmgr/pkg/streaming"
)

// killTimelimitArgs is the payload a REQUEST_KILL_TIMELIMIT dispatch
// carries (spec.md §4.7 check_time_limit).
type killTimelimitArgs struct {
	JobID         uint32
	StepID        uint32
	State         job.State
	UserID        uint32
	Nodes         string
	StartTime     time.Time
	SelectJobinfo interface{}
}

// CheckTimeLimit is the external periodic tick (spec.md §4.7): every
// running step of j carrying a finite time_limit whose elapsed run
// time has reached it gets exactly one REQUEST_KILL_TIMELIMIT
// dispatch to every node in its bitmap.
func (c *Controller) CheckTimeLimit(ctx context.Context, j *job.Job, now time.Time) {
	if j.State != job.StateRunning {
		return
	}

	for _, s := range j.Steps {
		if s.TimeLimit == job.Infinite {
			continue
		}
		elapsedMinutes := s.ElapsedRunSeconds(now) / 60
		if elapsedMinutes < float64(s.TimeLimit) {
			continue
		}

		hostlist, nodeCount := c.stepHostlist(j, s)
		if nodeCount == 0 {
			continue
		}

		c.Agent.Post(ctx, agentqueue.Request{
			MsgType:   agentqueue.MsgKillTimelimit,
			Hostlist:  hostlist,
			NodeCount: nodeCount,
			MsgArgs: killTimelimitArgs{
				JobID:         j.JobID,
				StepID:        s.StepID,
				State:         j.State,
				UserID:        j.UserID,
				Nodes:         hostlist,
				StartTime:     s.StartTime,
				SelectJobinfo: s.SwitchJob,
			},
		})

		c.publish(streaming.EventTimeLimitKill, j, s, nil)
		c.Metrics.RecordTimeLimitKill()
		c.Logger.Info("step time limit reached", "job_id", j.JobID, "step_id", s.StepID, "elapsed_minutes", elapsedMinutes, "limit_minutes", s.TimeLimit)
	}
}
