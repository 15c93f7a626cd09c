// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package execresource

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/choria-io/execstep/model"
)

// ResultHandler turns the outcome of a launch into a verdict and exported values
type ResultHandler struct {
	prop  *model.ExecProperties
	store model.PropertyStore
	log   model.Logger
}

// NewResultHandler creates a handler exporting values into store
func NewResultHandler(properties *model.ExecProperties, store model.PropertyStore, log model.Logger) *ResultHandler {
	return &ResultHandler{prop: properties, store: store, log: log}
}

// Handle returns a *model.BuildError for fatal outcomes, non fatal failures are logged
func (h *ResultHandler) Handle(res *model.LaunchResult) error {
	if res == nil {
		return nil
	}

	loc := h.prop.Location()

	switch {
	case res.Spawned:
		h.log.Info("Spawned process", "pid", res.Pid)
		return nil

	case res.FailedToStart:
		msg := fmt.Sprintf("Execute failed: %s", res.StartError)
		if h.prop.ShouldFailIfExecutionFails() {
			return model.NewBuildError(loc, model.ErrExecutionFailed, "%s", msg)
		}

		h.log.Error(msg)
		return nil
	}

	if res.Killed {
		msg := "Timeout: killed the sub-process"
		if h.prop.FailOnError {
			return model.NewBuildError(loc, model.ErrTimeoutKilled, "%s", msg)
		}

		h.log.Warn(msg)
	}

	h.export(h.prop.ResultProperty, strconv.Itoa(res.ExitCode))

	redir := h.prop.EffectiveRedirector()
	h.exportCapture(res, redir.OutputProperty)
	if redir.ErrorProperty != redir.OutputProperty {
		h.exportCapture(res, redir.ErrorProperty)
	}

	success := false
	if !res.Killed {
		var err error
		success, err = h.prop.IsSuccess(res.ExitCode)
		if err != nil {
			return model.NewBuildError(loc, err, "could not determine success of exit code %d: %v", res.ExitCode, err)
		}
	}

	if success {
		return nil
	}

	if h.prop.FailOnError {
		return model.NewBuildError(loc, model.ErrNonZeroExit, "%s returned: %d", model.ExecTypeName, res.ExitCode)
	}

	h.log.Error(fmt.Sprintf("Result: %d", res.ExitCode))

	return nil
}

func (h *ResultHandler) exportCapture(res *model.LaunchResult, name string) {
	if name == "" {
		return
	}

	val, ok := res.Captures[name]
	if !ok {
		return
	}

	h.export(name, val)
}

func (h *ResultHandler) export(name string, value string) {
	if name == "" {
		return
	}

	err := h.store.Set(name, value)
	switch {
	case errors.Is(err, model.ErrPropertyExists):
		h.log.Debug("Override ignored for property", "property", name)
	case err != nil:
		h.log.Error("Could not set property", "property", name, "error", err)
	}
}
