// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"time"
)

const LaunchResultProtocol = "io.choria.execstep.v1.launch.result"

// Outcome is the terminal state of a launch
type Outcome string

const (
	OutcomeExited        Outcome = "exited"
	OutcomeKilled        Outcome = "killed"
	OutcomeFailedToStart Outcome = "failed_to_start"
	OutcomeSpawned       Outcome = "spawned"
)

// LaunchResult is the outcome of a single process launch
type LaunchResult struct {
	Protocol      string            `json:"protocol" yaml:"protocol"`
	LaunchID      string            `json:"launch_id" yaml:"launch_id"`
	TimeStamp     time.Time         `json:"timestamp" yaml:"timestamp"`
	Command       []string          `json:"command" yaml:"command"`
	Pid           int               `json:"pid,omitempty" yaml:"pid,omitempty"`
	ExitCode      int               `json:"exit_code" yaml:"exit_code"`
	Killed        bool              `json:"killed" yaml:"killed"`
	KillReason    string            `json:"kill_reason,omitempty" yaml:"kill_reason,omitempty"`
	FailedToStart bool              `json:"failed_to_start" yaml:"failed_to_start"`
	StartError    string            `json:"start_error,omitempty" yaml:"start_error,omitempty"`
	Spawned       bool              `json:"spawned" yaml:"spawned"`
	Duration      time.Duration     `json:"duration" yaml:"duration"`
	Captures      map[string]string `json:"captures,omitempty" yaml:"captures,omitempty"`
}

// Outcome reports which terminal state the launch reached
func (r *LaunchResult) Outcome() Outcome {
	switch {
	case r.FailedToStart:
		return OutcomeFailedToStart
	case r.Spawned:
		return OutcomeSpawned
	case r.Killed:
		return OutcomeKilled
	default:
		return OutcomeExited
	}
}
