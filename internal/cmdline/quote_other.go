// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package cmdline

import (
	"github.com/kballard/go-shellquote"
)

func quote(tokens []string) string {
	return shellquote.Join(tokens...)
}

func shellCommand() (string, string) {
	return "/bin/sh", "-c"
}
