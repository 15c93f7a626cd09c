// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package properties

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/choria-io/execstep/model"
)

// MemoryStore holds exported values in memory, a name can only be set once
type MemoryStore struct {
	values map[string]string
	log    model.Logger
	mu     sync.Mutex
}

var _ model.PropertyStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory property store
func NewMemoryStore(logger model.Logger) *MemoryStore {
	return &MemoryStore{
		log:    logger,
		values: make(map[string]string),
	}
}

// Set stores value under name, existing values are never replaced
func (s *MemoryStore) Set(name string, value string) error {
	if name == "" {
		return fmt.Errorf("property name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.values[name]
	if ok {
		return fmt.Errorf("%w: %s", model.ErrPropertyExists, name)
	}

	s.values[name] = value
	s.log.Debug("Setting property", "name", name)

	return nil
}

// Get retrieves the value for name
func (s *MemoryStore) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[name]

	return v, ok
}

// All returns a copy of every value
func (s *MemoryStore) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.values)
}

// Names returns the sorted names of all set values
func (s *MemoryStore) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Sorted(maps.Keys(s.values))
}

// WriteYAML writes all values as a YAML map
func (s *MemoryStore) WriteYAML(w io.Writer) error {
	yb, err := yaml.Marshal(s.All())
	if err != nil {
		return err
	}

	_, err = w.Write(yb)

	return err
}
