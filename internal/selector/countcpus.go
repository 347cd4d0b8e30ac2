// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package selector

import (
	"github.com/jontk/slurm-stepmgr/internal/bitmap"
	"github.com/jontk/slurm-stepmgr/internal/job"
)

// CountCPUs sums cpus[i] for every job-local index set in picked,
// substituting usable[i] when usable is non-nil (the non-exclusive
// branch's memory/GRES-reduced per-node count). Resources.Cpus is
// assumed already populated per the cluster's fast-schedule policy
// (configured CPU counts vs. live node state) by whatever discovered
// it; this helper only aggregates what it is given.
func CountCPUs(res *job.Resources, picked *bitmap.Bitmap, usable []int32) int32 {
	var total int32
	for _, i := range picked.Indices() {
		if usable != nil {
			total += usable[i]
		} else {
			total += res.Cpus[i]
		}
	}
	return total
}
