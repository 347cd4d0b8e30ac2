// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package step provides a fluent request builder for step creation
// (spec.md §4.7 create), grounded on the teacher's (deleted)
// builders.JobBuilder: the same chained With* / accumulated-errors /
// Build() shape, generalized from a REST JobCreate payload to the
// selector.Request plus the extra create-only fields (name, network,
// ckpt_dir, host, gres string) the lifecycle controller needs beyond
// what pick_step_nodes consumes.
package step

import (
	"fmt"

	"github.com/jontk/slurm-stepmgr/internal/bitmap"
	"github.com/jontk/slurm-stepmgr/internal/common"
	"github.com/jontk/slurm-stepmgr/internal/job"
	"github.com/jontk/slurm-stepmgr/internal/plugins"
	"github.com/jontk/slurm-stepmgr/internal/selector"
	stepmgrerrors "github.com/jontk/slurm-stepmgr/pkg/errors"
)

// maxPathLen bounds ckpt_dir, gres, host, name, and network (spec.md
// §4.7).
const maxPathLen = 1024

// maxNodeListLen bounds the node_list string (spec.md §4.7).
const maxNodeListLen = 65536

// Request is the fully assembled create_step request: the selector's
// admission-decision fields plus the record fields a created Step
// carries that pick_step_nodes never looks at.
type Request struct {
	selector.Request

	CkptDir string
	Gres    string
	Host    string
	Name    string
	Network string

	// ResvPortCnt is the explicit reserved-port count; zero means the
	// controller derives it from the materialized layout (spec.md
	// §4.7: "count is explicit, or derived as max(tasks[i]) + 1").
	ResvPortCnt int32

	Overcommit bool

	// NodeListRaw is the unresolved hostlist string, validated for
	// length only. It is carried on the request but not expanded:
	// lifecycle.Controller.Create does not read it, and only
	// selector.Request.NodeList (see WithResolvedNodeList) restricts
	// node selection.
	NodeListRaw string
}

// Builder assembles a Request through chained With* calls,
// accumulating validation errors rather than failing immediately;
// Build reports the first of them.
type Builder struct {
	req  Request
	errs []error
}

// New starts a Builder for numTasks tasks at cpusPerTask CPUs each.
func New(numTasks, cpusPerTask int32) *Builder {
	b := &Builder{}
	b.req.NumTasks = numTasks
	b.req.CPUsPerTask = cpusPerTask
	b.req.Relative = -1
	return b
}

func (b *Builder) addErr(err error) *Builder {
	b.errs = append(b.errs, err)
	return b
}

func (b *Builder) checkLen(field, value string) bool {
	if len(value) > maxPathLen {
		b.addErr(stepmgrerrors.New(stepmgrerrors.CodePathnameTooLong,
			fmt.Sprintf("%s exceeds %d bytes", field, maxPathLen)))
		return false
	}
	return true
}

// WithMinMaxNodes sets the step's requested node-count bounds.
func (b *Builder) WithMinMaxNodes(min, max uint32) *Builder {
	b.req.MinNodes = min
	b.req.MaxNodes = max
	return b
}

// WithCPUCount sets the explicit CPU count requested.
func (b *Builder) WithCPUCount(cpuCount int32) *Builder {
	b.req.CPUCount = cpuCount
	return b
}

// WithMemPerCPU sets the per-CPU memory requirement in MB.
func (b *Builder) WithMemPerCPU(mb int64) *Builder {
	b.req.MemPerCPU = mb
	return b
}

// WithMemPerCPUSpec parses a --mem-per-cpu style specification
// ("4096", "4G", "1024K", ...) and sets the per-CPU memory
// requirement from it, recording a bad-request error instead of
// setting the field if spec isn't a valid memory specification.
func (b *Builder) WithMemPerCPUSpec(spec string) *Builder {
	mb, err := common.ParseMemory(spec)
	if err != nil {
		return b.addErr(stepmgrerrors.New(stepmgrerrors.CodeInvalidTaskMemory,
			fmt.Sprintf("mem_per_cpu: %s", err)))
	}
	b.req.MemPerCPU = mb
	return b
}

// WithGres appends a parsed GRES request line plus the raw string
// form retained on the record.
func (b *Builder) WithGres(raw string, parsed ...plugins.GresRequest) *Builder {
	b.checkLen("gres", raw)
	b.req.Gres = raw
	b.req.Request.Gres = parsed
	return b
}

// WithNodeList sets the unresolved hostlist string (NodeListRaw). No
// component expands it into a bitmap; a node restriction takes effect
// only through WithResolvedNodeList.
func (b *Builder) WithNodeList(hostlist string) *Builder {
	if len(hostlist) > maxNodeListLen {
		b.addErr(stepmgrerrors.New(stepmgrerrors.CodePathnameTooLong, "node_list exceeds 65536 bytes"))
		return b
	}
	b.req.NodeListRaw = hostlist
	return b
}

// WithResolvedNodeList sets an already-resolved node bitmap directly,
// bypassing hostlist expansion (used by tests and callers that have
// already done the lookup).
func (b *Builder) WithResolvedNodeList(nodes *bitmap.Bitmap) *Builder {
	b.req.NodeList = nodes
	return b
}

// WithExclusive marks the step as requiring whole-CPU exclusivity.
func (b *Builder) WithExclusive(exclusive bool) *Builder {
	b.req.Exclusive = exclusive
	return b
}

// WithOvercommit sets the overcommit flag; create() resolves its
// interaction with Exclusive per spec.md §4.7.
func (b *Builder) WithOvercommit(overcommit bool) *Builder {
	b.req.Overcommit = overcommit
	return b
}

// WithRelative sets the "skip the first N usable nodes" hint.
func (b *Builder) WithRelative(relative int32) *Builder {
	b.req.Relative = relative
	return b
}

// WithTaskDist sets the requested task distribution, validating it
// against switchType's constraints (ARBITRARY is rejected under
// switch/elan, spec.md §4.3).
func (b *Builder) WithTaskDist(dist job.TaskDist, switchType string) *Builder {
	if dist == job.DistArbitrary && switchType == "switch/elan" {
		b.addErr(stepmgrerrors.New(stepmgrerrors.CodeTaskDistArbitraryUnsupported,
			"ARBITRARY distribution is unsupported under switch/elan"))
		return b
	}
	b.req.TaskDist = dist
	return b
}

// WithHost sets the client rendezvous host.
func (b *Builder) WithHost(host string) *Builder {
	b.checkLen("host", host)
	b.req.Host = host
	return b
}

// WithName sets the step's display name.
func (b *Builder) WithName(name string) *Builder {
	b.checkLen("name", name)
	b.req.Name = name
	return b
}

// WithNetwork sets the step's network/switch options string.
func (b *Builder) WithNetwork(network string) *Builder {
	b.checkLen("network", network)
	b.req.Network = network
	return b
}

// WithCkptDir sets the checkpoint directory path.
func (b *Builder) WithCkptDir(dir string) *Builder {
	b.checkLen("ckpt_dir", dir)
	b.req.CkptDir = dir
	return b
}

// WithResvPortCnt sets an explicit reserved-port count, bypassing the
// max(tasks)+1 derivation the controller otherwise applies.
func (b *Builder) WithResvPortCnt(count int32) *Builder {
	b.req.ResvPortCnt = count
	return b
}

// WithTimeLimitMinutes sets the step's requested wall-clock limit.
func (b *Builder) WithTimeLimitMinutes(minutes uint32) *Builder {
	b.req.TimeLimitMinutes = minutes
	return b
}

// Build applies the overcommit/exclusive coercion rule (spec.md
// §4.7: overcommit with exclusive forces cpu_count to num_tasks and
// clears overcommit; overcommit alone zeroes cpu_count to suppress
// CPU checks) and returns the assembled Request, or the first
// accumulated validation error.
func (b *Builder) Build() (*Request, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	if b.req.Overcommit {
		if b.req.Exclusive {
			b.req.CPUCount = b.req.NumTasks
			b.req.Overcommit = false
		} else {
			b.req.CPUCount = 0
		}
	}

	if b.req.NumTasks > 0 && b.req.CPUCount > 0 && b.req.CPUCount%b.req.NumTasks == 0 {
		b.req.CPUsPerTask = b.req.CPUCount / b.req.NumTasks
	} else if b.req.CPUCount > 0 {
		b.req.CPUsPerTask = 0
	}

	return &b.req, nil
}
