// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package resolver

import (
	"os"
	"path/filepath"
	"strings"
)

// candidates tries the name as given and then with every PATHEXT extension
func candidates(path string) []string {
	res := []string{path}
	if filepath.Ext(path) != "" {
		return res
	}

	exts := os.Getenv("PATHEXT")
	if exts == "" {
		exts = ".com;.exe;.bat;.cmd"
	}

	for _, ext := range strings.Split(exts, ";") {
		if ext == "" {
			continue
		}
		res = append(res, path+strings.ToLower(ext))
	}

	return res
}
