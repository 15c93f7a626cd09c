// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package modelmocks

import (
	"go.uber.org/mock/gomock"
)

// NewLogger creates a logger mock that accepts any log call
func NewLogger(ctl *gomock.Controller) *MockLogger {
	logger := NewMockLogger(ctl)

	logger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Error(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().With(gomock.Any()).AnyTimes().Return(logger)

	return logger
}

// NewManager creates a manager mock with loggers and OS identifiers set up, launchers and property stores are left to the caller
func NewManager(osIdentifiers []string, ctl *gomock.Controller) (*MockManager, *MockLogger) {
	logger := NewLogger(ctl)
	mgr := NewMockManager(ctl)

	mgr.EXPECT().Logger(gomock.Any()).AnyTimes().Return(logger, nil)
	mgr.EXPECT().UserLogger().AnyTimes().Return(logger)
	mgr.EXPECT().OSIdentifiers(gomock.Any()).AnyTimes().Return(osIdentifiers, nil)

	return mgr, logger
}
