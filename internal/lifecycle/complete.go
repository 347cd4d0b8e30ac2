// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"time"

	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/internal/store"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
	"github.com/jontk/slurm-stepmgr/pkg/streaming"
)

// Complete finalizes step s of job j (spec.md §4.7 complete):
// authorisation is as for Signal, accounting is stamped, exitCode
// folds into both the step's own exit code and the job's derived exit
// code, resources are released, and the step record is deleted.
func (c *Controller) Complete(ctx context.Context, j *job.Job, s *job.Step, exitCode int32, uid uint32, now time.Time) error {
	if !j.IsRunning() {
		return stepmgrerrors.New(stepmgrerrors.CodeTransitionStateNoUpdate, "job is not running")
	}
	if !c.authorized(uid, j.UserID) {
		return stepmgrerrors.New(stepmgrerrors.CodeAccessDenied, "uid is not authorised for this step")
	}

	if exitCode > s.ExitCode {
		s.ExitCode = exitCode
	}
	if s.ExitCode > j.DerivedExitCode {
		j.DerivedExitCode = s.ExitCode
	}

	if err := c.Plugins.Accounting.StepComplete(j, s, now); err != nil {
		c.Logger.Warn("accounting step_complete failed", "job_id", j.JobID, "step_id", s.StepID, "error", err)
	}

	stepID := s.StepID
	store.DeleteStep(j, stepID, releaserFunc(func(j *job.Job, s *job.Step) { c.releaseStep(j, s) }))

	c.publish(streaming.EventStepCompleted, j, s, nil)
	c.Metrics.RecordStepCompleted()
	c.Logger.Info("step completed", "job_id", j.JobID, "step_id", stepID, "exit_code", exitCode)
	return nil
}
