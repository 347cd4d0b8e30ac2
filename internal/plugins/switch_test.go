// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotConfiguredSwitchLifecycle(t *testing.T) {
	sw := NotConfiguredSwitch{}

	handle, err := sw.AllocJobinfo()
	require.NoError(t, err)

	require.NoError(t, sw.BuildJobinfo(handle, "node[1-2]", []int32{2, 2}, true, ""))

	data, err := sw.PackJobinfo(handle)
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = sw.UnpackJobinfo(data)
	require.NoError(t, err)

	assert.False(t, sw.PartComp())
	assert.NoError(t, sw.JobStepComplete(handle, "node[1-2]"))
	assert.NoError(t, sw.JobStepPartComp(handle, "node1"))
	assert.NoError(t, sw.JobStepAllocated(handle, "node[1-2]"))
	sw.FreeJobinfo(handle)
}
