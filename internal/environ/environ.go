// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package environ builds the environment a child process is started with
package environ

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/choria-io/execstep/model"
)

// Builder merges an inherited environment with explicit overrides
type Builder struct {
	// Environ is the inherited environment snapshot, defaults to os.Environ
	Environ func() []string
	// FoldCase compares variable names case-insensitively
	FoldCase bool

	log model.Logger
}

// New creates a builder using the platform convention for name comparison
func New(environ func() []string, log model.Logger) *Builder {
	if environ == nil {
		environ = os.Environ
	}

	return &Builder{
		Environ:  environ,
		FoldCase: runtime.GOOS == "windows",
		log:      log,
	}
}

type variable struct {
	name  string
	value string
}

// Build produces the final NAME=VALUE list, when newEnv is true only the overrides are returned
func (b *Builder) Build(overrides []string, newEnv bool) ([]string, error) {
	parsed := make([]variable, 0, len(overrides))
	for _, o := range overrides {
		name, value, ok := strings.Cut(o, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: %q", model.ErrInvalidEnvironment, o)
		}

		b.log.Debug("Setting environment variable", "variable", o)
		parsed = append(parsed, variable{name: name, value: value})
	}

	var env []variable
	if !newEnv {
		for _, e := range b.Environ() {
			name, value, ok := b.split(e)
			if !ok {
				continue
			}

			env = append(env, variable{name: name, value: value})
		}
	}

	index := make(map[string]int, len(env)+len(parsed))
	merged := make([]variable, 0, len(env)+len(parsed))

	set := func(v variable) {
		key := b.key(v.name)
		idx, ok := index[key]
		if ok {
			merged[idx] = v
			return
		}

		index[key] = len(merged)
		merged = append(merged, v)
	}

	for _, v := range env {
		set(v)
	}
	for _, v := range parsed {
		set(v)
	}

	res := make([]string, len(merged))
	for i, v := range merged {
		res[i] = v.name + "=" + v.value
	}

	return res, nil
}

// split handles the windows per-drive entries like =C:=C:\foo where the name starts with =
func (b *Builder) split(e string) (string, string, bool) {
	if strings.HasPrefix(e, "=") {
		idx := strings.Index(e[1:], "=")
		if idx == -1 {
			return "", "", false
		}

		return e[:idx+1], e[idx+2:], true
	}

	return strings.Cut(e, "=")
}

func (b *Builder) key(name string) string {
	if b.FoldCase {
		return strings.ToUpper(name)
	}

	return name
}
