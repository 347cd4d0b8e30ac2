// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle implements the step lifecycle controller (spec.md
// §4.7): create, signal, partial_complete, complete, suspend, resume,
// update, kill_step_on_node, and check_time_limit. It is the seam
// that wires every other package together — selector, layout,
// corepaint, store, and the plugin registry for admission and
// teardown; agentqueue and streaming for the two outbound side
// effects a mutation can have.
//
// Grounded on the teacher's (deleted) manager-stub CRUD shape for the
// overall "validate, mutate, notify" method structure, generalized
// from a REST resource manager to a stateful allocation controller
// that owns no transport of its own.
package lifecycle

import (
	"context"
	"strconv"
	"time"

	"github.com/jontk/slurm-stepmgr/internal/bitmap"
	"github.com/jontk/slurm-stepmgr/internal/common"
	"github.com/jontk/slurm-stepmgr/internal/corepaint"
	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/internal/layout"
	"github.com/jontk/slurm-stepmgr/internal/plugins"
	"github.com/jontk/slurm-stepmgr/internal/selector"
	"github.com/jontk/slurm-stepmgr/internal/step"
	"github.com/jontk/slurm-stepmgr/internal/store"
	"github.com/jontk/slurm-stepmgr/pkg/agentqueue"
	stepmgrconfig "github.com/jontk/slurm-stepmgr/pkg/config"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
	"github.com/jontk/slurm-stepmgr/pkg/logging"
	"github.com/jontk/slurm-stepmgr/pkg/metrics"
	"github.com/jontk/slurm-stepmgr/pkg/streaming"
)

// Controller owns the plugin registry, config, and notification
// surfaces every lifecycle operation may consult or drive. The global
// job/step write-lock spec.md §5 assumes is the caller's
// responsibility — every Controller method assumes exclusive access
// to the Job it is handed for the duration of the call.
type Controller struct {
	Config   *stepmgrconfig.Config
	Plugins  *plugins.Registry
	Agent    *agentqueue.Queue
	Events   *streaming.Publisher
	Metrics  metrics.Collector
	Logger   logging.Logger

	// ProcessUID is the step manager's own effective uid, authorised
	// for every operation regardless of job ownership (spec.md §4.7:
	// "uid == job.user_id ∨ uid == 0 ∨ uid == process_uid").
	ProcessUID uint32
}

// New builds a Controller with the not-configured plugin stand-ins
// and no-op metrics/events, suitable as a starting point a caller
// customizes field by field.
func New(cfg *stepmgrconfig.Config) *Controller {
	return &Controller{
		Config:  cfg,
		Plugins: plugins.NotConfigured(),
		Metrics: metrics.GetDefaultCollector(),
		Logger:  logging.NoOpLogger{},
		Events:  streaming.NewPublisher(),
	}
}

func (c *Controller) authorized(uid uint32, jobUserID uint32) bool {
	return uid == jobUserID || uid == 0 || uid == c.ProcessUID
}

func (c *Controller) publish(evType streaming.EventType, j *job.Job, s *job.Step, detail interface{}) {
	if c.Events == nil {
		return
	}
	c.Events.Publish(streaming.Event{
		Type:      evType,
		JobID:     j.JobID,
		StepID:    s.StepID,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}

// Create validates and carves a new step out of job j (spec.md
// §4.7 create). upNodes marks which of the job's nodes are currently
// up; now drives the pre-flight boot-wait extension and the step's
// recorded start time. Any failure after the step record is reserved
// unwinds it completely — no partial step is ever left registered.
func (c *Controller) Create(ctx context.Context, j *job.Job, req *step.Request, uid uint32, batch bool, upNodes *bitmap.Bitmap, now time.Time) (s *job.Step, err error) {
	start := now
	defer func() {
		if err != nil {
			c.Metrics.RecordStepCreateFailed(errCode(err))
			logging.LogError(c.Logger, err, "create_step", "job_id", j.JobID)
		} else {
			c.Metrics.RecordStepCreated(time.Since(start))
			logging.LogDuration(c.Logger, start, "create_step")
		}
	}()

	if err = c.validateJobForCreate(j, uid); err != nil {
		return nil, err
	}

	if req.Overcommit && !req.Exclusive {
		req.CPUCount = 0
	}

	numTasks := req.NumTasks
	if uint32(numTasks) == job.NoVal {
		if req.CPUCount > 0 {
			numTasks = req.CPUCount
		} else {
			numTasks = int32(j.Resources.NodeCount)
		}
		req.NumTasks = numTasks
	}
	if numTasks < 1 || numTasks > int32(j.Resources.NodeCount)*c.Config.MaxTasksPerNode {
		return nil, stepmgrerrors.New(stepmgrerrors.CodeBadTaskCount, "num_tasks out of range for this allocation")
	}

	if _, gerr := c.Plugins.Gres.StateValidate(req.Request.Gres, j.GresList); gerr != nil {
		return nil, common.WrapGresError(req.Gres, gerr)
	}

	result, serr := selector.PickStepNodes(j, &req.Request, upNodes, c.Plugins.Gres, c.Config, now)
	if serr != nil {
		return nil, serr
	}

	rec, cerr := store.CreateStep(j)
	if cerr != nil {
		return nil, cerr
	}
	committed := false
	defer func() {
		if !committed {
			store.DeleteStep(j, rec.StepID, releaserFunc(func(j *job.Job, s *job.Step) { c.releaseStep(j, s) }))
		}
	}()

	if aerr := c.finishCreate(rec, j, req, batch, result, now); aerr != nil {
		return nil, aerr
	}

	committed = true
	c.publish(streaming.EventStepCreated, j, rec, nil)
	logging.LogOperation(c.Logger, "create_step", "job_id", j.JobID, "step_id", rec.StepID).
		Info("step created", "num_tasks", numTasks)
	return rec, nil
}

func (c *Controller) validateJobForCreate(j *job.Job, uid uint32) error {
	if j == nil {
		return stepmgrerrors.New(stepmgrerrors.CodeInvalidJobID, "no such job")
	}
	if j.State == job.StateFinished {
		return stepmgrerrors.New(stepmgrerrors.CodeAlreadyDone, "job has already finished")
	}
	if j.State != job.StateRunning {
		return stepmgrerrors.New(stepmgrerrors.CodeJobPending, "job is not running")
	}
	if !c.authorized(uid, j.UserID) {
		return stepmgrerrors.New(stepmgrerrors.CodeAccessDenied, "uid is not authorised for this job")
	}
	return nil
}

// finishCreate assigns the reserved step record's fields, drives
// layout and core painting, debits resources, and allocates the
// interconnect/checkpoint/accounting handles. It is split out of
// Create so the unwind defer there covers every one of these steps
// uniformly.
func (c *Controller) finishCreate(rec *job.Step, j *job.Job, req *step.Request, batch bool, result *selector.Result, now time.Time) error {
	res := j.Resources
	nodes := result.Nodes.Indices()

	rec.StepNodeBitmap = result.Nodes
	rec.CPUsPerTask = req.CPUsPerTask
	rec.CPUCount = req.CPUCount
	rec.MemPerCPU = req.MemPerCPU
	rec.NumTasks = req.NumTasks
	rec.TaskDist = result.TaskDist
	rec.Exclusive = req.Exclusive
	rec.TimeLimit = req.TimeLimitMinutes
	rec.Gres = req.Gres
	rec.CkptDir = req.CkptDir
	rec.Host = req.Host
	rec.Network = networkOrDefault(req.Network)
	rec.Name = nameOrDefault(req.Name)
	rec.BatchStep = batch
	rec.StartTime = now

	usable := result.UsableCPUs
	if usable == nil {
		usable = make([]int32, len(res.Cpus))
		for i := range res.Cpus {
			usable[i] = res.Cpus[i] - res.CpusUsed[i]
		}
	}

	cpusPerTask := req.CPUsPerTask
	effectiveCPT := cpusPerTask
	if effectiveCPT <= 0 {
		effectiveCPT = 1
	}

	plan := layout.Build(nodes, usable, req.NumTasks, cpusPerTask, result.TaskDist, 0)
	c.Logger.Debug("step layout planned", "job_id", j.JobID, "step_id", rec.StepID, "cpu_run_count", len(plan.CPURuns))

	if !batch {
		names := j.NamesOf(result.Nodes)
		rec.StepLayout = &job.Layout{
			NodeList:  bitmap.CompressHostlist(names),
			TasksNode: plan.TasksPerNode,
			TaskIDs:   plan.TaskIDs,
		}
	}

	rec.CoreBitmapJob = corepaint.Paint(res, nodes, plan.TasksPerNode, cpusPerTask)

	if err := c.allocLPS(res, nodes, plan.TasksPerNode, effectiveCPT, req.MemPerCPU, req.Request.Gres, j, rec); err != nil {
		return err
	}

	c.reservePorts(rec, req, plan.TasksPerNode)

	if err := c.allocSwitch(rec, j, plan.TasksPerNode); err != nil {
		return err
	}
	if err := c.allocCheckpoint(rec); err != nil {
		return err
	}

	if err := c.Plugins.Accounting.StepStart(j, rec); err != nil {
		return err
	}

	rec.Status = job.StatusRunning
	return nil
}

func networkOrDefault(network string) string {
	return network
}

func nameOrDefault(name string) string {
	if name == "" {
		return "step"
	}
	return name
}

// allocLPS debits job-resource CPU/memory/GRES counters for the
// step's picked nodes (spec.md §4.7 step_alloc_lps).
func (c *Controller) allocLPS(res *job.Resources, nodes []int, tasksPerNode []int32, cpusPerTask int32, memPerCPU int64, gresReq []plugins.GresRequest, j *job.Job, rec *job.Step) error {
	for idx, i := range nodes {
		tasks := tasksPerNode[idx]
		cpusAlloc := tasks * cpusPerTask
		res.CpusUsed[i] += cpusAlloc
		if res.HasMemory() && memPerCPU > 0 {
			res.MemoryUsed[i] += int64(cpusAlloc) * memPerCPU
		}
		if c.Plugins.Gres != nil && len(gresReq) > 0 {
			state, err := c.Plugins.Gres.StepAlloc(gresReq, j, i, cpusAlloc)
			if err != nil {
				return common.WrapGresError(rec.Gres, err)
			}
			perNode, _ := rec.GresList.([]plugins.GresState)
			if perNode == nil {
				perNode = make([]plugins.GresState, len(nodes))
			}
			perNode[idx] = state
			rec.GresList = perNode
		}
	}
	return nil
}

// dealloc_lps reverses allocLPS; both directions saturate at zero
// rather than underflowing (spec.md §4.7).
func (c *Controller) deallocLPS(j *job.Job, s *job.Step) {
	if s.StepNodeBitmap == nil || s.StepLayout == nil {
		return
	}
	res := j.Resources
	cpusPerTask := s.CPUsPerTask
	if cpusPerTask <= 0 {
		cpusPerTask = 1
	}
	perNodeGres, _ := s.GresList.([]plugins.GresState)
	for idx, i := range s.StepNodeBitmap.Indices() {
		if idx >= len(s.StepLayout.TasksNode) {
			break
		}
		tasks := s.StepLayout.TasksNode[idx]
		cpusAlloc := tasks * cpusPerTask
		res.CpusUsed[i] = saturatingSub32(res.CpusUsed[i], cpusAlloc)
		if res.HasMemory() && s.MemPerCPU > 0 {
			res.MemoryUsed[i] = saturatingSub64(res.MemoryUsed[i], int64(cpusAlloc)*s.MemPerCPU)
		}
		var state plugins.GresState
		if idx < len(perNodeGres) {
			state = perNodeGres[idx]
		}
		if c.Plugins.Gres != nil {
			if err := c.Plugins.Gres.StepDealloc(j, i, state); err != nil {
				c.Logger.Warn("gres dealloc failed", "job_id", j.JobID, "step_id", s.StepID, "error", err)
			}
		}
	}
}

func saturatingSub32(v, d int32) int32 {
	if d > v {
		return 0
	}
	return v - d
}

func saturatingSub64(v, d int64) int64 {
	if d > v {
		return 0
	}
	return v - d
}

// reservePorts assigns the step's reserved client port count: the
// request's explicit count when given, otherwise max(tasks[i]) + 1
// (spec.md §4.7).
func (c *Controller) reservePorts(rec *job.Step, req *step.Request, tasksPerNode []int32) {
	count := req.ResvPortCnt
	if count == 0 {
		var maxTasks int32
		for _, t := range tasksPerNode {
			if t > maxTasks {
				maxTasks = t
			}
		}
		count = maxTasks + 1
	}
	rec.ResvPortCnt = count
	if count > 0 {
		lo := c.Config.PortRangeLow
		hi := lo + count - 1
		if c.Config.PortRangeHigh > 0 && hi > c.Config.PortRangeHigh {
			hi = c.Config.PortRangeHigh
		}
		rec.ResvPorts = portRangeString(lo, hi)
		rec.Port = lo
	}
}

func (c *Controller) allocSwitch(rec *job.Step, j *job.Job, tasksPerNode []int32) error {
	if c.Plugins.Switch == nil {
		return nil
	}
	handle, err := c.Plugins.Switch.AllocJobinfo()
	if err != nil {
		return common.WrapSwitchError(err)
	}
	nodeList := ""
	if rec.StepLayout != nil {
		nodeList = rec.StepLayout.NodeList
	}
	cyclic := rec.TaskDist == job.DistCyclic
	if err := c.Plugins.Switch.BuildJobinfo(handle, nodeList, tasksPerNode, cyclic, rec.Network); err != nil {
		return common.WrapSwitchError(err)
	}
	rec.SwitchJob = handle
	return nil
}

func (c *Controller) allocCheckpoint(rec *job.Step) error {
	if c.Plugins.Checkpoint == nil {
		return nil
	}
	handle, err := c.Plugins.Checkpoint.AllocJobinfo()
	if err != nil {
		return err
	}
	rec.CheckJob = handle
	return nil
}

// releaseStep is the store.Releaser hook used by both the unwind path
// in Create and the normal teardown in Complete: it frees plugin
// handles, unpaints cores, and reverses resource debits.
func (c *Controller) releaseStep(j *job.Job, s *job.Step) {
	corepaint.Release(j.Resources, s.CoreBitmapJob)
	c.deallocLPS(j, s)
	if c.Plugins.Switch != nil && s.SwitchJob != nil {
		c.Plugins.Switch.FreeJobinfo(s.SwitchJob)
	}
	if c.Plugins.Checkpoint != nil && s.CheckJob != nil {
		c.Plugins.Checkpoint.Free(s.CheckJob)
	}
}

type releaserFunc func(j *job.Job, s *job.Step)

func (f releaserFunc) ReleaseStep(j *job.Job, s *job.Step) { f(j, s) }

func errCode(err error) string {
	if se, ok := err.(*stepmgrerrors.StepError); ok {
		return string(se.Code)
	}
	return string(stepmgrerrors.CodeUnknown)
}

func portRangeString(lo, hi int32) string {
	if hi <= lo {
		return strconv.Itoa(int(lo))
	}
	return strconv.Itoa(int(lo)) + "-" + strconv.Itoa(int(hi))
}
