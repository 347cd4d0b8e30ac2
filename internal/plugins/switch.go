// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package plugins

// SwitchJobInfo is the opaque interconnect handle a Switch plugin
// hands back from BuildJobinfo; the step stores it verbatim in
// job.Step.SwitchJob.
type SwitchJobInfo interface{}

// Switch is the interconnect/switch plugin contract (spec.md §6).
// "switch/none" and "switch/elan" are the two SwitchType values the
// core itself is aware of (the latter only to downgrade ARBITRARY to
// BLOCK, §4.3); everything else is opaque.
type Switch interface {
	AllocJobinfo() (SwitchJobInfo, error)

	// BuildJobinfo constructs a step's interconnect handle given its
	// node list, per-node task counts, whether the layout is cyclic,
	// and the requested network string.
	BuildJobinfo(handle SwitchJobInfo, nodeList string, tasksPerNode []int32, cyclic bool, network string) error

	PackJobinfo(handle SwitchJobInfo) ([]byte, error)
	UnpackJobinfo(data []byte) (SwitchJobInfo, error)

	// JobStepComplete fully releases the interconnect state for the
	// given node list.
	JobStepComplete(handle SwitchJobInfo, nodeList string) error

	// JobStepPartComp releases interconnect state for a subset of a
	// step's nodes, when PartComp reports support for it.
	JobStepPartComp(handle SwitchJobInfo, nodeList string) error

	// PartComp reports whether this plugin supports partial release.
	PartComp() bool

	FreeJobinfo(handle SwitchJobInfo)

	JobStepAllocated(handle SwitchJobInfo, nodeList string) error
}

// NotConfiguredSwitch is the "switch/none" stand-in: every call
// succeeds trivially and PartComp reports false, matching a cluster
// with no interconnect plugin configured.
type NotConfiguredSwitch struct{}

func (NotConfiguredSwitch) AllocJobinfo() (SwitchJobInfo, error) { return struct{}{}, nil }

func (NotConfiguredSwitch) BuildJobinfo(handle SwitchJobInfo, nodeList string, tasksPerNode []int32, cyclic bool, network string) error {
	return nil
}

func (NotConfiguredSwitch) PackJobinfo(handle SwitchJobInfo) ([]byte, error) { return nil, nil }
func (NotConfiguredSwitch) UnpackJobinfo(data []byte) (SwitchJobInfo, error) {
	return struct{}{}, nil
}
func (NotConfiguredSwitch) JobStepComplete(handle SwitchJobInfo, nodeList string) error  { return nil }
func (NotConfiguredSwitch) JobStepPartComp(handle SwitchJobInfo, nodeList string) error  { return nil }
func (NotConfiguredSwitch) PartComp() bool                                              { return false }
func (NotConfiguredSwitch) FreeJobinfo(handle SwitchJobInfo)                             {}
func (NotConfiguredSwitch) JobStepAllocated(handle SwitchJobInfo, nodeList string) error { return nil }
