// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package plugins defines the outbound contracts spec.md §6 assumes
// the surrounding controller wires in: GRES, switch/interconnect,
// checkpoint, and accounting-storage. This module never implements
// these plugins itself (they are "external collaborators" per §1);
// it only depends on the interfaces and ships an in-memory
// not-configured stub of each, grounded on the teacher's (deleted)
// association/cluster manager stubs' "stand-in for an unconfigured
// backend" pattern.
package plugins

import "github.com/jontk/slurm-stepmgr/internal/job"

// GresRequest is one generic-resource line of a step request, e.g.
// "gpu:2" or "gpu:tesla:1".
type GresRequest struct {
	Name  string
	Type  string
	Count int64
}

// GresState is the opaque per-step GRES allocation state a GRES
// plugin hands back from StepAlloc and expects on StepDealloc.
type GresState interface{}

// Gres is the GRES plugin contract (spec.md §6).
type Gres interface {
	// StateValidate parses and validates a step's GRES request
	// against the job's allocated GRES list.
	StateValidate(request []GresRequest, jobGres []string) ([]GresRequest, error)

	// StepTest returns the number of CPUs job-local node nodeIdx can
	// usably contribute given ids' GRES demand. When ignoreCurrent is
	// true, existing step allocations on that node are not subtracted
	// (used for the selector's "total" pass vs "avail" pass, §4.3).
	StepTest(ids []GresRequest, j *job.Job, nodeIdx int, ignoreCurrent bool) (usableCPUs int32, err error)

	// StepAlloc debits nodeIdx's GRES devices for cpus worth of
	// demand and returns the opaque per-step state to retain.
	StepAlloc(ids []GresRequest, j *job.Job, nodeIdx int, cpus int32) (GresState, error)

	// StepDealloc credits back the GRES devices recorded in state.
	StepDealloc(j *job.Job, nodeIdx int, state GresState) error

	// StatePack/StateUnpack (de)serialize a step's GresState for
	// dump/load (spec.md §4.8).
	StatePack(state GresState) ([]byte, error)
	StateUnpack(data []byte) (GresState, error)

	// StateLog renders state for diagnostic logging.
	StateLog(state GresState) string
}

// NotConfiguredGres is a GRES plugin stub for a cluster that does not
// configure any GRES plugin (SwitchType-style "none" equivalent):
// every step is assumed to carry no GRES demand, and any nonempty
// request is rejected.
type NotConfiguredGres struct{}

func (NotConfiguredGres) StateValidate(request []GresRequest, jobGres []string) ([]GresRequest, error) {
	if len(request) == 0 {
		return nil, nil
	}
	return nil, errGresNotConfigured
}

func (NotConfiguredGres) StepTest(ids []GresRequest, j *job.Job, nodeIdx int, ignoreCurrent bool) (int32, error) {
	if len(ids) == 0 {
		return j.Resources.Cpus[nodeIdx], nil
	}
	return 0, errGresNotConfigured
}

func (NotConfiguredGres) StepAlloc(ids []GresRequest, j *job.Job, nodeIdx int, cpus int32) (GresState, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return nil, errGresNotConfigured
}

func (NotConfiguredGres) StepDealloc(j *job.Job, nodeIdx int, state GresState) error {
	return nil
}

func (NotConfiguredGres) StatePack(state GresState) ([]byte, error)  { return nil, nil }
func (NotConfiguredGres) StateUnpack(data []byte) (GresState, error) { return nil, nil }
func (NotConfiguredGres) StateLog(state GresState) string            { return "" }
