// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"log/slog"

	"github.com/choria-io/execstep/model"
)

var _ model.Logger = (*SlogLogger)(nil)

// SlogLogger adapts a slog.Logger to model.Logger
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger wraps log, a nil log wraps slog.Default()
func NewSlogLogger(log *slog.Logger) *SlogLogger {
	if log == nil {
		log = slog.Default()
	}

	return &SlogLogger{log: log}
}

func (s *SlogLogger) Debug(msg string, args ...any) { s.log.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...any)  { s.log.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...any)  { s.log.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...any) { s.log.Error(msg, args...) }

func (s *SlogLogger) With(args ...any) model.Logger {
	return &SlogLogger{log: s.log.With(args...)}
}

// DebugEnabled reports if debug messages would be emitted
func (s *SlogLogger) DebugEnabled() bool {
	return s.log.Enabled(context.Background(), slog.LevelDebug)
}
