// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Manager is the collaborator a step uses to reach loggers, launchers and the exported property store
type Manager interface {
	Logger(args ...any) (Logger, error)
	UserLogger() Logger
	NewLauncher() (Launcher, error)
	Properties() PropertyStore
	OSIdentifiers(ctx context.Context) ([]string, error)
}

// PropertyStore holds values exported by steps, values are write-once
type PropertyStore interface {
	// Set stores value under name, returns ErrPropertyExists when name already holds a value
	Set(name string, value string) error
	Get(name string) (string, bool)
	All() map[string]string
}
