// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
)

// Launcher starts processes described by ExecProperties
type Launcher interface {
	// Preflight checks the request for configuration errors without starting anything
	Preflight(properties *ExecProperties) error

	// Launch runs the request, in spawn mode it returns as soon as the process started.
	// A process that could not be started is reported in the result, not as an error
	Launch(ctx context.Context, properties *ExecProperties) (*LaunchResult, error)
}

// ProcessHandle is the capability to act on a running process, the watchdog
// only ever uses Kill while the launcher owns Wait
type ProcessHandle interface {
	Pid() int
	Kill() error
	Wait() error
}
