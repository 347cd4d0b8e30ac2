package config

import "errors"

var (
	// ErrInvalidMaxTasksPerNode is returned when MaxTasksPerNode is not positive
	ErrInvalidMaxTasksPerNode = errors.New("max tasks per node must be greater than 0")

	// ErrInvalidPortRange is returned when the reserved port range is malformed
	ErrInvalidPortRange = errors.New("port range low/high must be positive and low <= high")
)
