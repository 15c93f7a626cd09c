// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"fmt"

	"github.com/choria-io/execstep/model"
	"github.com/sirupsen/logrus"
)

var _ model.Logger = (*LogrusLogger)(nil)

// LogrusLogger adapts a logrus entry to model.Logger
type LogrusLogger struct {
	log *logrus.Entry
}

// NewLogrusLogger wraps log
func NewLogrusLogger(log *logrus.Entry) *LogrusLogger {
	return &LogrusLogger{log: log}
}

// fields turns key value pairs into logrus fields, a trailing key without value is kept under !BADKEY
func fields(args ...any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)

	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			f["!BADKEY"] = args[i]
			break
		}

		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}

		f[key] = args[i+1]
	}

	return f
}

func (l *LogrusLogger) entry(args []any) *logrus.Entry {
	if len(args) == 0 {
		return l.log
	}

	return l.log.WithFields(fields(args...))
}

func (l *LogrusLogger) Debug(msg string, args ...any) { l.entry(args).Debug(msg) }
func (l *LogrusLogger) Info(msg string, args ...any)  { l.entry(args).Info(msg) }
func (l *LogrusLogger) Warn(msg string, args ...any)  { l.entry(args).Warn(msg) }
func (l *LogrusLogger) Error(msg string, args ...any) { l.entry(args).Error(msg) }

func (l *LogrusLogger) With(args ...any) model.Logger {
	return NewLogrusLogger(l.entry(args))
}
