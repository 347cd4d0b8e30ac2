// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"github.com/jontk/slurm-stepmgr/internal/job"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
)

// UpdateRequest adjusts a step's time_limit (spec.md §4.7 update).
type UpdateRequest struct {
	StepID    uint32
	TimeLimit uint32
}

// Update applies req to one step of j, or to every step when
// req.StepID == job.NoVal. privileged stands in for "operator
// privilege or account-coord for the job's account" (spec.md §4.7):
// this module models no user/account database of its own, so the
// caller resolves that check against its own RPC-layer credentials
// and passes the result in.
func (c *Controller) Update(j *job.Job, req UpdateRequest, privileged bool) error {
	if !privileged {
		return stepmgrerrors.New(stepmgrerrors.CodeAccessDenied, "operator privilege or account coordinator required")
	}

	if req.StepID == job.NoVal {
		for _, s := range j.Steps {
			s.TimeLimit = req.TimeLimit
		}
		return nil
	}

	s, ok := j.FindStep(req.StepID)
	if !ok {
		return stepmgrerrors.New(stepmgrerrors.CodeInvalidJobID, "no such step")
	}
	s.TimeLimit = req.TimeLimit
	return nil
}
