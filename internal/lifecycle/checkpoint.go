// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"time"

	"github.com/jontk/slurm-stepmgr/internal/common"
	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/internal/plugins"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
	"github.com/jontk/slurm-stepmgr/pkg/streaming"
)

// checkpointStepArgs is the payload published alongside a
// checkpoint_step event.
type checkpointStepArgs struct {
	Op       plugins.CheckpointOp
	ImageDir string
}

// checkpointCompArgs is the payload published alongside a
// checkpoint_comp event.
type checkpointCompArgs struct {
	BeginTime time.Time
	ErrCode   int32
	ErrMsg    string
}

// checkpointTaskCompArgs is the payload published alongside a
// checkpoint_task_comp event.
type checkpointTaskCompArgs struct {
	TaskID    int32
	BeginTime time.Time
	ErrCode   int32
	ErrMsg    string
}

// CheckpointStep drives one checkpoint operation against step s's
// opaque checkpoint handle (spec.md §4.7 checkpoint_step / the
// Checkpoint plugin's op hook). It requires the job running, as for
// Signal; a job that is suspended or otherwise unable to checkpoint is
// reported as disabled rather than authorization failure.
func (c *Controller) CheckpointStep(j *job.Job, s *job.Step, op plugins.CheckpointOp, imageDir string, uid uint32) error {
	if !c.authorized(uid, j.UserID) {
		return stepmgrerrors.New(stepmgrerrors.CodeAccessDenied, "uid is not authorised for this step")
	}
	if !j.IsRunning() {
		return stepmgrerrors.New(stepmgrerrors.CodeDisabled, "checkpoint requested on a job that is not running")
	}
	if c.Plugins.Checkpoint == nil {
		return nil
	}

	if err := c.Plugins.Checkpoint.Op(s.CheckJob, op, imageDir); err != nil {
		return common.WrapCheckpointError(err)
	}

	c.publish(streaming.EventCheckpointStep, j, s, checkpointStepArgs{Op: op, ImageDir: imageDir})
	c.Logger.Info("step checkpoint requested", "job_id", j.JobID, "step_id", s.StepID, "op", op)
	return nil
}

// CheckpointComp records the result of a completing checkpoint
// operation on step s (spec.md §4.7 checkpoint_comp / the Checkpoint
// plugin's comp hook), advancing the step's last-checkpoint timestamp
// on success.
func (c *Controller) CheckpointComp(j *job.Job, s *job.Step, beginTime time.Time, errCode int32, errMsg string) error {
	if c.Plugins.Checkpoint == nil {
		return nil
	}

	if err := c.Plugins.Checkpoint.Comp(s.CheckJob, beginTime, errCode, errMsg); err != nil {
		return common.WrapCheckpointError(err)
	}

	if errCode == 0 {
		s.CkptTime = beginTime
	}

	c.publish(streaming.EventCheckpointComp, j, s, checkpointCompArgs{BeginTime: beginTime, ErrCode: errCode, ErrMsg: errMsg})
	c.Logger.Info("step checkpoint completed", "job_id", j.JobID, "step_id", s.StepID, "err_code", errCode)
	return nil
}

// CheckpointTaskComp records one task's completion of a checkpoint
// operation on step s (spec.md §4.7 checkpoint_task_comp / the
// Checkpoint plugin's task_comp hook).
func (c *Controller) CheckpointTaskComp(j *job.Job, s *job.Step, taskID int32, beginTime time.Time, errCode int32, errMsg string) error {
	if c.Plugins.Checkpoint == nil {
		return nil
	}

	if err := c.Plugins.Checkpoint.TaskComp(s.CheckJob, taskID, beginTime, errCode, errMsg); err != nil {
		return common.WrapCheckpointError(err)
	}

	c.publish(streaming.EventCheckpointTaskComp, j, s, checkpointTaskCompArgs{TaskID: taskID, BeginTime: beginTime, ErrCode: errCode, ErrMsg: errMsg})
	c.Logger.Info("step checkpoint task completed", "job_id", j.JobID, "step_id", s.StepID, "task_id", taskID, "err_code", errCode)
	return nil
}

// CheckpointSweep is the external periodic tick driving unsolicited
// checkpoint triggering (spec.md §1 "periodic checkpoint triggering"),
// mirroring CheckTimeLimit's shape: every running step whose elapsed
// time since its last checkpoint (or since start, if it has none) has
// reached the configured interval gets one CheckpointOpCreate request.
// A non-positive interval disables the sweep entirely.
func (c *Controller) CheckpointSweep(ctx context.Context, j *job.Job, now time.Time) {
	if j.State != job.StateRunning {
		return
	}
	if c.Config.CheckpointDefaultIntervalSeconds <= 0 || c.Plugins.Checkpoint == nil {
		return
	}
	interval := time.Duration(c.Config.CheckpointDefaultIntervalSeconds) * time.Second

	for _, s := range j.Steps {
		baseline := s.CkptTime
		if baseline.IsZero() {
			baseline = s.StartTime
		}
		if now.Sub(baseline) < interval {
			continue
		}

		if err := c.Plugins.Checkpoint.Op(s.CheckJob, plugins.CheckpointOpCreate, s.CkptDir); err != nil {
			c.Logger.Warn("periodic checkpoint failed", "job_id", j.JobID, "step_id", s.StepID, "error", err)
			continue
		}

		s.CkptTime = now
		c.publish(streaming.EventCheckpointStep, j, s, checkpointStepArgs{Op: plugins.CheckpointOpCreate, ImageDir: s.CkptDir})
		c.Logger.Info("step checkpoint triggered", "job_id", j.JobID, "step_id", s.StepID)
	}
}
