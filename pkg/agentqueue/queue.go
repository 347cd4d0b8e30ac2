// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package agentqueue implements the external agent queue spec.md §5/§6
// assumes: the mechanism that serialises and asynchronously retries
// per-node RPCs on behalf of the lifecycle controller. The core posts
// a Request and returns immediately (spec.md §5: "no core operation
// waits for their delivery"); this package owns sequencing dispatch
// goroutines and per-message retry against an injected Sender.
//
// Grounded on the teacher's pkg/pool connection pool: a mutex-guarded
// map of live workers plus usage stats, adapted from pooled HTTP
// clients per endpoint to pooled dispatch workers per destination
// hostlist.
package agentqueue

import (
	"context"
	"sync"
	"time"

	"github.com/jontk/slurm-stepmgr/pkg/logging"
	"github.com/jontk/slurm-stepmgr/pkg/retry"
)

// MsgType names the outbound RPC kind a Request carries (spec.md §6:
// REQUEST_SIGNAL_TASKS, REQUEST_TERMINATE_TASKS, REQUEST_KILL_TIMELIMIT).
type MsgType string

const (
	MsgSignalTasks    MsgType = "REQUEST_SIGNAL_TASKS"
	MsgTerminateTasks MsgType = "REQUEST_TERMINATE_TASKS"
	MsgKillTimelimit  MsgType = "REQUEST_KILL_TIMELIMIT"
)

// Request is one outbound per-node RPC posted to the queue (spec.md
// §6: "queue_request(args) where args = {msg_type, retry, hostlist,
// node_count, msg_args}").
type Request struct {
	MsgType   MsgType
	Hostlist  string
	NodeCount int32
	MsgArgs   interface{}
}

// Sender delivers one Request to the node(s) named in its hostlist.
// This is the external collaborator spec.md §1 places out of scope
// (RPC transport); the queue only sequences and retries calls to it.
type Sender interface {
	Send(ctx context.Context, req Request) error
}

// Stats is an immutable snapshot of the queue's dispatch counters.
type Stats struct {
	Sent     int64
	Retried  int64
	Failed   int64
	Dropped  int64
	InFlight int
}

// Queue posts Requests to a Sender asynchronously, retrying each per
// policy. Send never blocks on RPC delivery: it launches a goroutine
// per Request and returns immediately.
type Queue struct {
	sender Sender
	policy retry.Policy
	logger logging.Logger

	mu       sync.Mutex
	inFlight int
	sent     int64
	retried  int64
	failed   int64
	dropped  int64

	// wg counts dispatches launched by Post so Wait can block until
	// every one has finished.
	wg sync.WaitGroup
}

// New creates a Queue dispatching through sender with the given retry
// policy. A nil policy defaults to retry.SingleRetry(), matching
// spec.md §5's "the agent may retry per-message (retry = 1)".
func New(sender Sender, policy retry.Policy, logger logging.Logger) *Queue {
	if policy == nil {
		policy = retry.SingleRetry()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Queue{sender: sender, policy: policy, logger: logger}
}

// Post enqueues req for asynchronous dispatch and returns immediately.
// A zero NodeCount (or empty Hostlist) is a no-op, matching spec.md
// §4.7's "No-op if node count is zero" for signal dispatch.
func (q *Queue) Post(ctx context.Context, req Request) {
	if req.NodeCount <= 0 || req.Hostlist == "" {
		return
	}

	q.mu.Lock()
	q.inFlight++
	q.mu.Unlock()
	q.wg.Add(1)

	go q.dispatch(ctx, req)
}

func (q *Queue) dispatch(ctx context.Context, req Request) {
	defer func() {
		q.mu.Lock()
		q.inFlight--
		q.mu.Unlock()
		q.wg.Done()
	}()

	var err error
	for attempt := 0; ; attempt++ {
		err = q.sender.Send(ctx, req)
		if err == nil {
			q.mu.Lock()
			q.sent++
			q.mu.Unlock()
			return
		}

		if !q.policy.ShouldRetry(ctx, err, attempt) {
			break
		}

		q.mu.Lock()
		q.retried++
		q.mu.Unlock()
		q.logger.Warn("agent dispatch failed, retrying",
			"msg_type", req.MsgType, "hostlist", req.Hostlist, "attempt", attempt, "error", err)

		wait := q.policy.WaitTime(attempt)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				q.mu.Lock()
				q.dropped++
				q.mu.Unlock()
				return
			case <-timer.C:
			}
		}
	}

	q.mu.Lock()
	q.failed++
	q.mu.Unlock()
	q.logger.Error("agent dispatch exhausted retries",
		"msg_type", req.MsgType, "hostlist", req.Hostlist, "error", err)
}

// Wait blocks until every dispatch launched by Post so far has
// finished (succeeded, exhausted retries, or been cancelled). Intended
// for tests; the core itself never calls this.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Snapshot returns the queue's current dispatch counters.
func (q *Queue) Snapshot() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Sent:     q.sent,
		Retried:  q.retried,
		Failed:   q.failed,
		Dropped:  q.dropped,
		InFlight: q.inFlight,
	}
}
