// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"fmt"
	"reflect"

	"github.com/jontk/slurm-stepmgr/pkg/errors"
)

// WrapSwitchError wraps an error returned by the configured
// interconnect plugin into the step manager's error taxonomy.
func WrapSwitchError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(errors.CodeInterconnectFailure, "interconnect plugin rejected step", err)
}

// WrapCheckpointError wraps an error returned by the configured
// checkpoint plugin into the step manager's error taxonomy.
func WrapCheckpointError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(errors.CodeCheckpointFailure, "checkpoint plugin rejected request", err)
}

// WrapGresError wraps an error returned by a GRES plugin while
// validating or allocating a generic resource request.
func WrapGresError(gresName string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(errors.CodeInvalidGres, fmt.Sprintf("gres %q rejected", gresName), err)
}

// CheckNilPlugin returns a descriptive error if plugin is nil or a
// typed nil pointer, identifying the plugin kind in the message.
func CheckNilPlugin(plugin interface{}, kind string) error {
	if plugin == nil || isNilPointer(plugin) {
		return fmt.Errorf("%s plugin not configured", kind)
	}
	return nil
}

// isNilPointer reports whether i holds a typed nil pointer.
func isNilPointer(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
