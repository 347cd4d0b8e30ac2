// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"github.com/jontk/slurm-stepmgr/internal/bitmap"
	"github.com/jontk/slurm-stepmgr/internal/job"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
	"github.com/jontk/slurm-stepmgr/pkg/streaming"
)

// PartialCompleteRequest is one completing contiguous node range
// report (spec.md §4.7 partial_complete).
type PartialCompleteRequest struct {
	First  int32
	Last   int32
	StepRC int32
}

// PartialComplete records a completing contiguous node range
// [req.First, req.Last] of step s, returning the count of the step's
// nodes still outstanding. For the batch step, only the exit code is
// recorded.
func (c *Controller) PartialComplete(j *job.Job, s *job.Step, req PartialCompleteRequest, uid uint32) (remNodes int32, err error) {
	if !c.authorized(uid, j.UserID) {
		return 0, stepmgrerrors.New(stepmgrerrors.CodeAccessDenied, "uid is not authorised for this step")
	}

	if req.StepRC > s.ExitCode {
		s.ExitCode = req.StepRC
	}

	if s.BatchStep {
		return 0, nil
	}

	nodeCount := int32(0)
	if s.StepNodeBitmap != nil {
		nodeCount = int32(s.StepNodeBitmap.PopCount())
	}

	if s.ExitNodeBitmap == nil {
		s.ExitNodeBitmap = bitmap.New(int(nodeCount))
	}
	if req.First < 0 || req.Last >= int32(s.ExitNodeBitmap.Len()) || req.First > req.Last {
		return 0, stepmgrerrors.New(stepmgrerrors.CodeInvalidNodeCount, "partial completion range exceeds step node count")
	}

	s.ExitNodeBitmap.SetRange(int(req.First), int(req.Last))
	remNodes = nodeCount - int32(s.ExitNodeBitmap.PopCount())

	if remNodes == 0 {
		if c.Plugins.Switch != nil && s.SwitchJob != nil {
			nodeList := ""
			if s.StepLayout != nil {
				nodeList = s.StepLayout.NodeList
			}
			if serr := c.Plugins.Switch.JobStepComplete(s.SwitchJob, nodeList); serr != nil {
				c.Logger.Warn("switch job_step_complete failed", "job_id", j.JobID, "step_id", s.StepID, "error", serr)
			}
		}
	} else if c.Plugins.Switch != nil && s.SwitchJob != nil && c.Plugins.Switch.PartComp() {
		rangeHosts := partialRangeHostlist(j, s, req.First, req.Last)
		if serr := c.Plugins.Switch.JobStepPartComp(s.SwitchJob, rangeHosts); serr != nil {
			c.Logger.Warn("switch job_step_part_comp failed", "job_id", j.JobID, "step_id", s.StepID, "error", serr)
		}
	}

	c.publish(streaming.EventStepPartialComplete, j, s, req)
	return remNodes, nil
}

// partialRangeHostlist renders the hostlist for the node range
// [first, last] of step s's node bitmap, in step-local node order.
func partialRangeHostlist(j *job.Job, s *job.Step, first, last int32) string {
	if s.StepNodeBitmap == nil {
		return ""
	}
	indices := s.StepNodeBitmap.Indices()
	if int(last) >= len(indices) {
		last = int32(len(indices)) - 1
	}
	var names []string
	for idx := first; idx <= last && idx >= 0; idx++ {
		i := indices[idx]
		if i < len(j.NodeNames) {
			names = append(names, j.NodeNames[i])
		}
	}
	return bitmap.CompressHostlist(names)
}
