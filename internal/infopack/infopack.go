// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package infopack implements pack_info_response (spec.md §4.9): a
// read-only snapshot of a job's steps for reporting tools. It never
// mutates a Job or Step.
//
// Grounded on the teacher's (deleted) REST builders' "deferred total"
// framing: a response is written with a placeholder count up front
// and the real count patched in once the snapshot loop completes,
// generalized here from a paginated HTTP body to an in-process
// Response struct whose Count field is set by a second pass.
package infopack

import (
	"time"

	"github.com/jontk/slurm-stepmgr/internal/job"
)

// StepInfo is one step's reporting snapshot, with the exact field
// list spec.md §4.9 names.
type StepInfo struct {
	JobID        uint32
	StepID       uint32
	CkptInterval int32
	UserID       uint32
	CPUCount     int32
	TaskCnt      int32
	TimeLimit    uint32
	StartTime    time.Time
	RunTime      time.Duration
	Partition    string
	ResvPorts    string
	NodeList     string
	Name         string
	Network      string
	NodeBitmapFmt string
	CkptDir      string
	Gres         string
}

// Response is the two-pass pack_info_response shape: Now and Count
// are fixed before the snapshot loop runs, then Count is overwritten
// once the final tally is known (spec.md §4.9: "prefixed by now and a
// placeholder count, then retroactively patched").
type Response struct {
	Now   time.Time
	Count int
	Steps []StepInfo
}

// Pack snapshots every step of job matching stepID (job.NoVal selects
// all steps) into a Response. partition is supplied by the caller
// since no Partition field exists on Job itself (spec.md's data model
// keeps partition on the job record the surrounding controller owns,
// out of this module's scope).
func Pack(j *job.Job, stepID uint32, partition string, now time.Time) *Response {
	resp := &Response{Now: now, Count: 0}

	for _, s := range j.Steps {
		if stepID != job.NoVal && s.StepID != stepID {
			continue
		}
		resp.Steps = append(resp.Steps, snapshot(j, s, partition, now))
	}

	resp.Count = len(resp.Steps)
	return resp
}

func snapshot(j *job.Job, s *job.Step, partition string, now time.Time) StepInfo {
	info := StepInfo{
		JobID:         j.JobID,
		StepID:        s.StepID,
		UserID:        j.UserID,
		CPUCount:      s.CPUCount,
		TimeLimit:     s.TimeLimit,
		StartTime:     s.StartTime,
		RunTime:       runTime(j, s, now),
		Partition:     partition,
		ResvPorts:     s.ResvPorts,
		NodeList:      nodeList(j, s),
		Name:          s.Name,
		Network:       s.Network,
		NodeBitmapFmt: nodeBitmapFmt(j, s),
		CkptDir:       s.CkptDir,
		Gres:          s.Gres,
		TaskCnt:       taskCount(j, s),
	}
	return info
}

// taskCount reports the job's own allocation size on front-end
// systems, where every step appears to run on the single fronting
// host rather than the compute nodes directly (spec.md §4.9).
func taskCount(j *job.Job, s *job.Step) int32 {
	if j.FrontEnd {
		return int32(j.Resources.NodeCount)
	}
	if s.StepLayout != nil {
		var total int32
		for _, t := range s.StepLayout.TasksNode {
			total += t
		}
		return total
	}
	return s.NumTasks
}

func nodeList(j *job.Job, s *job.Step) string {
	if j.FrontEnd {
		return j.BatchHost
	}
	if s.StepLayout != nil {
		return s.StepLayout.NodeList
	}
	return ""
}

func nodeBitmapFmt(j *job.Job, s *job.Step) string {
	if s.StepNodeBitmap != nil {
		return s.StepNodeBitmap.RangeString()
	}
	return ""
}

// runTime computes the step's reportable elapsed run time (spec.md
// §4.9): pre_sus_time while the job is suspended, otherwise
// pre_sus_time plus wall time since the later of start_time and the
// job's own suspend_time.
func runTime(j *job.Job, s *job.Step, now time.Time) time.Duration {
	if j.State == job.StateSuspended {
		return s.PreSusTime
	}
	since := s.StartTime
	if j.SuspendTime.After(since) {
		since = j.SuspendTime
	}
	return s.PreSusTime + now.Sub(since)
}
