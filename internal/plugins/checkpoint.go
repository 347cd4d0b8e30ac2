// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package plugins

import "time"

// CheckpointJobInfo is the opaque per-step checkpoint handle a
// Checkpoint plugin hands back from AllocJobinfo; stored verbatim in
// job.Step.CheckJob.
type CheckpointJobInfo interface{}

// CheckpointOp enumerates the checkpoint operations a step controller
// can request of a checkpoint plugin.
type CheckpointOp int

const (
	CheckpointOpRequeue CheckpointOp = iota
	CheckpointOpRestart
	CheckpointOpAble
	CheckpointOpDisable
	CheckpointOpEnable
	CheckpointOpCreate
	CheckpointOpVacate
)

// Checkpoint is the checkpoint plugin contract (spec.md §6).
type Checkpoint interface {
	AllocJobinfo() (CheckpointJobInfo, error)

	Pack(handle CheckpointJobInfo) ([]byte, error)
	Unpack(data []byte) (CheckpointJobInfo, error)
	Free(handle CheckpointJobInfo)

	// Op issues a checkpoint operation against a running step.
	Op(handle CheckpointJobInfo, op CheckpointOp, imageDir string) error

	// Comp is called by the controller to report a whole step's
	// checkpoint completion status.
	Comp(handle CheckpointJobInfo, beginTime time.Time, errCode int32, errMsg string) error

	// TaskComp is called by the controller when one task of a step
	// finishes its checkpoint.
	TaskComp(handle CheckpointJobInfo, taskID int32, beginTime time.Time, errCode int32, errMsg string) error
}

// NotConfiguredCheckpoint is the checkpoint/none stand-in: handles are
// trivial placeholders and any operation request is rejected since no
// backend exists to service it.
type NotConfiguredCheckpoint struct{}

func (NotConfiguredCheckpoint) AllocJobinfo() (CheckpointJobInfo, error) { return struct{}{}, nil }
func (NotConfiguredCheckpoint) Pack(handle CheckpointJobInfo) ([]byte, error) { return nil, nil }
func (NotConfiguredCheckpoint) Unpack(data []byte) (CheckpointJobInfo, error) {
	return struct{}{}, nil
}
func (NotConfiguredCheckpoint) Free(handle CheckpointJobInfo) {}

func (NotConfiguredCheckpoint) Op(handle CheckpointJobInfo, op CheckpointOp, imageDir string) error {
	return errCheckpointNotConfigured
}

func (NotConfiguredCheckpoint) Comp(handle CheckpointJobInfo, beginTime time.Time, errCode int32, errMsg string) error {
	return nil
}

func (NotConfiguredCheckpoint) TaskComp(handle CheckpointJobInfo, taskID int32, beginTime time.Time, errCode int32, errMsg string) error {
	return nil
}
