// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package agentqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jontk/slurm-stepmgr/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu       sync.Mutex
	received []Request
	failN    int
	calls    int
}

func (s *recordingSender) Send(ctx context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failN {
		return errors.New("node unreachable")
	}
	s.received = append(s.received, req)
	return nil
}

func TestQueuePostIsNoOpForEmptyTarget(t *testing.T) {
	sender := &recordingSender{}
	q := New(sender, retry.NewNoRetry(), nil)

	q.Post(context.Background(), Request{MsgType: MsgSignalTasks, NodeCount: 0, Hostlist: "node[1-2]"})
	q.Post(context.Background(), Request{MsgType: MsgSignalTasks, NodeCount: 2, Hostlist: ""})
	q.Wait()

	assert.Equal(t, 0, sender.calls)
	assert.Equal(t, Stats{}, q.Snapshot())
}

func TestQueuePostDeliversAsynchronously(t *testing.T) {
	sender := &recordingSender{}
	q := New(sender, retry.NewNoRetry(), nil)

	q.Post(context.Background(), Request{MsgType: MsgTerminateTasks, NodeCount: 1, Hostlist: "node1"})
	q.Wait()

	require.Len(t, sender.received, 1)
	assert.Equal(t, MsgTerminateTasks, sender.received[0].MsgType)
	assert.Equal(t, int64(1), q.Snapshot().Sent)
}

func TestQueueRetriesPerPolicy(t *testing.T) {
	sender := &recordingSender{failN: 1}
	q := New(sender, retry.NewFixedDelay(2, time.Millisecond), nil)

	q.Post(context.Background(), Request{MsgType: MsgKillTimelimit, NodeCount: 1, Hostlist: "node1"})
	q.Wait()

	stats := q.Snapshot()
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(1), stats.Retried)
	assert.Equal(t, 0, stats.InFlight)
}

func TestQueueExhaustsRetriesAndRecordsFailure(t *testing.T) {
	sender := &recordingSender{failN: 100}
	q := New(sender, retry.NewFixedDelay(1, time.Millisecond), nil)

	q.Post(context.Background(), Request{MsgType: MsgSignalTasks, NodeCount: 3, Hostlist: "node[1-3]"})
	q.Wait()

	stats := q.Snapshot()
	assert.Equal(t, int64(0), stats.Sent)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestQueueDefaultsToSingleRetry(t *testing.T) {
	q := New(&recordingSender{}, nil, nil)
	assert.Equal(t, 1, q.policy.MaxRetries())
}
