// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/choria-io/execstep/internal/launcher"
	"github.com/choria-io/execstep/internal/platform"
	"github.com/choria-io/execstep/internal/redirect"
	"github.com/choria-io/execstep/model"
	"github.com/choria-io/execstep/properties"
	execresource "github.com/choria-io/execstep/resources/exec"
)

// Manager runs exec steps and holds the state they share
type Manager struct {
	log        model.Logger
	userLogger model.Logger
	store      model.PropertyStore
	baseDir    string
	environ    func() []string
	streams    *redirect.Streams
	drainGrace time.Duration
	osIDs      []string

	defaultsFile    string
	defaultsFileSet bool

	mu sync.Mutex
}

var _ model.Manager = (*Manager)(nil)

// NewManager creates a new manager with the provided loggers
func NewManager(log model.Logger, userLogger model.Logger, opts ...Option) (*Manager, error) {
	mgr := &Manager{log: log, userLogger: userLogger, environ: os.Environ}

	for _, opt := range opts {
		err := opt(mgr)
		if err != nil {
			return nil, err
		}
	}

	if !mgr.defaultsFileSet {
		mgr.defaultsFile = UserDefaultsFile()
	}

	if mgr.baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		mgr.baseDir = wd
	}

	if mgr.store == nil {
		storeLog, err := mgr.Logger("properties", "memory")
		if err != nil {
			return nil, err
		}

		mgr.store = properties.NewMemoryStore(storeLog)
	}

	return mgr, nil
}

// Logger creates a new logger with the provided key-value pairs added to the context
func (m *Manager) Logger(args ...any) (model.Logger, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("invalid logger arguments, must be key value pairs")
	}

	return m.log.With(args...), nil
}

// UserLogger is the logger used for messages aimed at the person running the build
func (m *Manager) UserLogger() model.Logger {
	return m.userLogger
}

// Properties is the store exported values are written to
func (m *Manager) Properties() model.PropertyStore {
	return m.store
}

// BaseDir is the directory relative paths are resolved against
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// NewLauncher creates a new process launcher configured from the manager
func (m *Manager) NewLauncher() (model.Launcher, error) {
	log, err := m.Logger("component", "launcher")
	if err != nil {
		return nil, err
	}

	opts := []launcher.Option{
		launcher.WithBaseDir(m.baseDir),
		launcher.WithEnviron(m.environ),
		launcher.WithUserLogger(m.userLogger),
	}

	if m.streams != nil {
		opts = append(opts, launcher.WithStreams(*m.streams))
	}

	if m.drainGrace > 0 {
		opts = append(opts, launcher.WithDrainGrace(m.drainGrace))
	}

	return launcher.New(log, opts...)
}

// OSIdentifiers are the names the running operating system is known by, determined once
func (m *Manager) OSIdentifiers(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.osIDs) > 0 {
		return m.osIDs, nil
	}

	to, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ids, err := platform.Identifiers(to)
	if err != nil {
		m.log.Debug("Could not gather all OS identifiers", "error", err)
		return ids, err
	}

	m.osIDs = ids

	return ids, nil
}

// Execute runs a single exec step
func (m *Manager) Execute(ctx context.Context, props *model.ExecProperties) (*model.LaunchResult, error) {
	step, err := execresource.New(m, props)
	if err != nil {
		return nil, err
	}

	return step.Execute(ctx)
}
