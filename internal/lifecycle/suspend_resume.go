// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"time"

	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/pkg/streaming"
)

// Suspend accumulates pre_sus_time on every step of j and marks the
// job suspended (spec.md §4.7/§5: "On suspend: pre_sus_time += now -
// max(start_time, job.suspend_time)"). A step that has not yet
// started (start_time is zero or not before now) contributes nothing.
func (c *Controller) Suspend(j *job.Job, now time.Time) {
	for _, s := range j.Steps {
		since := s.StartTime
		if j.SuspendTime.After(since) {
			since = j.SuspendTime
		}
		if !s.StartTime.IsZero() && since.Before(now) {
			s.PreSusTime += now.Sub(since)
		}
	}
	j.SuspendTime = now
	j.State = job.StateSuspended

	for _, s := range j.Steps {
		c.publish(streaming.EventStepSuspended, j, s, nil)
	}
}

// Resume accumulates tot_sus_time on every step of j and returns it to
// running (spec.md §4.7/§5: "On resume: tot_sus_time += now -
// max(job.suspend_time, start_time)").
func (c *Controller) Resume(j *job.Job, now time.Time) {
	for _, s := range j.Steps {
		since := j.SuspendTime
		if s.StartTime.After(since) {
			since = s.StartTime
		}
		if since.Before(now) {
			s.TotSusTime += now.Sub(since)
		}
	}
	j.SuspendTime = time.Time{}
	j.State = job.StateRunning

	for _, s := range j.Steps {
		c.publish(streaming.EventStepResumed, j, s, nil)
	}
}
