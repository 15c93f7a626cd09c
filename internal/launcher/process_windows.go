// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package launcher

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// detachedAttributes starts spawned processes without a console in a new process group
func detachedAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
}

// exitedNaturally cannot tell a terminated process from a normal exit on windows
func exitedNaturally(_ *os.ProcessState) bool {
	return false
}
