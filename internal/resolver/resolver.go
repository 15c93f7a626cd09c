// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/choria-io/execstep/model"
)

// Request describes how an executable name should be resolved
type Request struct {
	// Executable is the raw name as configured
	Executable string
	// Resolve enables resolution, when false the name is returned unchanged
	Resolve bool
	// SearchPath enables looking through PATH like variables
	SearchPath bool
	// Dir is the working directory the process will be launched in
	Dir string
	// Overrides are explicitly configured NAME=VALUE environment variables
	Overrides []string
}

// Resolver turns bare program names into paths
type Resolver struct {
	baseDir string
	environ func() []string
	log     model.Logger
}

// New creates a resolver that treats names relative to baseDir and uses environ as the inherited environment
func New(baseDir string, environ func() []string, log model.Logger) *Resolver {
	if environ == nil {
		environ = os.Environ
	}

	return &Resolver{baseDir: baseDir, environ: environ, log: log}
}

// Resolve finds the executable, the original name is returned when nothing matched
// so that the operating system gets a chance to find it using its own rules
func (r *Resolver) Resolve(req Request) string {
	if !req.Resolve || req.Executable == "" {
		return req.Executable
	}

	found, ok := r.findIn(r.baseDir, req.Executable)
	if ok {
		r.log.Debug("Resolved executable relative to base directory", "executable", req.Executable, "path", found)
		return found
	}

	if req.Dir != "" {
		found, ok = r.findIn(req.Dir, req.Executable)
		if ok {
			r.log.Debug("Resolved executable relative to working directory", "executable", req.Executable, "path", found)
			return found
		}
	}

	if !req.SearchPath {
		return req.Executable
	}

	path, ok := pathVariable(req.Overrides)
	if !ok {
		path, ok = pathVariable(r.environ())
	}
	if !ok {
		r.log.Debug("No PATH variable found to search", "executable", req.Executable)
		return req.Executable
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			continue
		}

		found, ok = r.findIn(dir, req.Executable)
		if ok {
			r.log.Debug("Resolved executable using PATH", "executable", req.Executable, "path", found)
			return found
		}
	}

	return req.Executable
}

func (r *Resolver) findIn(dir string, name string) (string, bool) {
	var base string
	if filepath.IsAbs(name) {
		base = name
	} else {
		base = filepath.Join(dir, name)
	}

	for _, candidate := range candidates(base) {
		stat, err := os.Stat(candidate)
		if err != nil || stat.IsDir() {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}

		return abs, true
	}

	return "", false
}

// pathVariable finds the first PATH= entry, the name is matched case-insensitively
func pathVariable(environ []string) (string, bool) {
	for _, env := range environ {
		if len(env) >= 5 && strings.EqualFold(env[:5], "PATH=") {
			return env[5:], true
		}
	}

	return "", false
}
