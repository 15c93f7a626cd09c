// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package launcher

import (
	"os"
	"syscall"
)

// detachedAttributes starts spawned processes in their own session
func detachedAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// exitedNaturally is true when the process called exit rather than being terminated by a signal
func exitedNaturally(state *os.ProcessState) bool {
	return state != nil && state.Exited()
}
