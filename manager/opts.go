// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/choria-io/execstep/internal/redirect"
	"github.com/choria-io/execstep/model"
)

// Option is a functional option for configuring the Manager
type Option func(*Manager) error

// WithBaseDir sets the directory relative paths and the default working directory resolve against
func WithBaseDir(dir string) Option {
	return func(m *Manager) error {
		if dir == "" {
			return fmt.Errorf("base directory is required")
		}

		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}

		m.baseDir = abs

		return nil
	}
}

// WithEnviron sets the function that supplies the environment processes inherit
func WithEnviron(environ func() []string) Option {
	return func(m *Manager) error {
		if environ == nil {
			return fmt.Errorf("environment function is required")
		}

		m.environ = environ

		return nil
	}
}

// WithStreams sets the standard streams processes inherit when they are not redirected
func WithStreams(streams redirect.Streams) Option {
	return func(m *Manager) error {
		m.streams = &streams
		return nil
	}
}

// WithPropertyStore sets the store exported values are written to
func WithPropertyStore(store model.PropertyStore) Option {
	return func(m *Manager) error {
		if store == nil {
			return fmt.Errorf("property store is required")
		}

		m.store = store

		return nil
	}
}

// WithOSIdentifiers overrides the detected operating system names
func WithOSIdentifiers(ids ...string) Option {
	return func(m *Manager) error {
		if len(ids) == 0 {
			return fmt.Errorf("at least one OS identifier is required")
		}

		m.osIDs = ids

		return nil
	}
}

// WithDrainGrace sets how long stream copying may continue after a process ended
func WithDrainGrace(grace time.Duration) Option {
	return func(m *Manager) error {
		if grace <= 0 {
			return fmt.Errorf("drain grace must be positive")
		}

		m.drainGrace = grace

		return nil
	}
}

// WithDefaultsFile sets the YAML file holding user step defaults, an empty path disables user defaults
func WithDefaultsFile(path string) Option {
	return func(m *Manager) error {
		m.defaultsFile = path
		m.defaultsFileSet = true

		return nil
	}
}
