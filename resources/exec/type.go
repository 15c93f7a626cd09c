// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package execresource

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/choria-io/execstep/internal/platform"
	"github.com/choria-io/execstep/metrics"
	"github.com/choria-io/execstep/model"
)

// Step is a single exec build step
type Step struct {
	prop    *model.ExecProperties
	mgr     model.Manager
	log     model.Logger
	handler *ResultHandler
}

// New creates a new exec step with the given properties, configuration errors are returned as *model.BuildError
func New(mgr model.Manager, properties *model.ExecProperties) (*Step, error) {
	loggerArgs := []any{"type", model.ExecTypeName, "name", properties.Location()}
	logger, err := mgr.Logger(loggerArgs...)
	if err != nil {
		return nil, err
	}

	err = properties.Validate()
	if err != nil {
		return nil, model.NewBuildError(properties.Location(), err, "%v", err)
	}

	s := &Step{
		prop:    properties,
		mgr:     mgr,
		log:     logger,
		handler: NewResultHandler(properties, mgr.Properties(), mgr.UserLogger().With(loggerArgs...)),
	}

	s.log.Debug("Created step instance")

	return s, nil
}

// Execute runs the step, when the step does not apply to the running OS nothing is done and nil is returned
func (s *Step) Execute(ctx context.Context) (*model.LaunchResult, error) {
	timer := prometheus.NewTimer(metrics.StepExecuteTime.WithLabelValues(s.prop.Location()))
	defer timer.ObserveDuration()

	applies, err := s.applies(ctx)
	if err != nil {
		return nil, s.failed(model.NewBuildError(s.prop.Location(), err, "could not determine the operating system: %v", err))
	}

	if !applies {
		s.log.Debug("This OS is not one of the supported OS, skipping", "os", s.prop.OS)
		metrics.StepSkippedCount.WithLabelValues(s.prop.Location()).Inc()
		return nil, nil
	}

	launcher, err := s.mgr.NewLauncher()
	if err != nil {
		return nil, s.failed(err)
	}

	err = launcher.Preflight(s.prop)
	if err != nil {
		return nil, s.failed(model.NewBuildError(s.prop.Location(), err, "%v", err))
	}

	res, err := launcher.Launch(ctx, s.prop)
	if err != nil {
		return nil, s.failed(model.NewBuildError(s.prop.Location(), err, "%v", err))
	}

	err = s.handler.Handle(res)
	if err != nil {
		return res, s.failed(err)
	}

	return res, nil
}

func (s *Step) failed(err error) error {
	metrics.StepFailedCount.WithLabelValues(s.prop.Location()).Inc()
	return err
}

func (s *Step) applies(ctx context.Context) (bool, error) {
	if s.prop.OS == "" {
		return true, nil
	}

	ids, err := s.mgr.OSIdentifiers(ctx)
	if err != nil {
		if len(ids) == 0 {
			return false, err
		}

		s.log.Debug("Could not determine all OS identifiers", "error", err)
	}

	return platform.Matches(s.prop.OS, ids), nil
}

// Properties returns the step configuration
func (s *Step) Properties() *model.ExecProperties {
	return s.prop
}

// IsBuildError reports if err is a fatal step failure
func IsBuildError(err error) bool {
	var be *model.BuildError
	return errors.As(err, &be)
}
