// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration            = errors.New("invalid configuration")
	ErrNoExecutable             = fmt.Errorf("%w: no executable specified", ErrConfiguration)
	ErrInvalidDirectory         = fmt.Errorf("%w: invalid working directory", ErrConfiguration)
	ErrInputConflict            = fmt.Errorf("%w: the input and input_string attributes cannot both be specified", ErrConfiguration)
	ErrMultipleRedirectors      = fmt.Errorf("%w: cannot have more than one redirector", ErrConfiguration)
	ErrSpawnIncompatible        = fmt.Errorf("%w: attributes used that are not compatible with spawn", ErrConfiguration)
	ErrInvalidEnvironment       = fmt.Errorf("%w: invalid environment variable", ErrConfiguration)
	ErrInvalidTimeout           = fmt.Errorf("%w: invalid timeout", ErrConfiguration)
	ErrCommandConflict          = fmt.Errorf("%w: command cannot be combined with executable or args", ErrConfiguration)
	ErrInvalidSuccessExpression = fmt.Errorf("%w: invalid success expression", ErrConfiguration)
	ErrInvalidCommand           = fmt.Errorf("%w: invalid command line", ErrConfiguration)

	ErrExecutionFailed = errors.New("execute failed")
	ErrTimeoutKilled   = errors.New("timeout: killed the sub-process")
	ErrNonZeroExit     = errors.New("process returned a failure exit code")
	ErrStreamIO        = errors.New("stream i/o failure")
	ErrPropertyExists  = errors.New("property already set")
	ErrAlreadyWatching = errors.New("watchdog is already watching a process")
	ErrInvalidManifest = errors.New("invalid manifest")
)

// BuildError is a fatal failure of a step, it carries the location of the step
// that failed so callers can report where in a manifest the problem lies
type BuildError struct {
	Message  string
	Location string
	Err      error
}

// NewBuildError creates a BuildError wrapping err
func NewBuildError(location string, err error, format string, a ...any) *BuildError {
	return &BuildError{
		Message:  fmt.Sprintf(format, a...),
		Location: location,
		Err:      err,
	}
}

func (e *BuildError) Error() string {
	if e.Location == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Location, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
