// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package cmdline

import (
	"strings"
	"syscall"
)

func quote(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		if t == "" {
			quoted[i] = `""`
			continue
		}
		quoted[i] = syscall.EscapeArg(t)
	}

	return strings.Join(quoted, " ")
}

func shellCommand() (string, string) {
	return "cmd", "/C"
}
