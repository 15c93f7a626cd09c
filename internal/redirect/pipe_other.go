// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package redirect

import (
	"errors"
	"syscall"
)

// isBrokenPipe reports if a write failed because the child closed its stdin
func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE)
}
