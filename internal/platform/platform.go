// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package platform identifies the running operating system
package platform

import (
	"context"
	"runtime"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v4/host"

	iu "github.com/choria-io/execstep/internal/util"
)

// display names that contain spaces, matched as a whole entry of a filter
var displayNames = map[string]string{
	"darwin": "mac os x",
}

// Identifiers returns lower case names the running OS is known by, the Go
// name is always first followed by its display name, the platform and its
// family when known
func Identifiers(ctx context.Context) ([]string, error) {
	ids := []string{runtime.GOOS}
	if name, ok := displayNames[runtime.GOOS]; ok {
		ids = append(ids, name)
	}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return ids, err
	}

	for _, id := range []string{info.OS, info.Platform, info.PlatformFamily} {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || slices.Contains(ids, id) {
			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// Matches reports if the filter names one of ids, an empty filter matches every
// platform. Comma separated entries are compared whole so names like "Mac OS X"
// match, each word of an entry is also compared so "Windows XP" matches windows
func Matches(filter string, ids []string) bool {
	words := iu.SplitWords(filter)
	if len(words) == 0 {
		return true
	}

	for _, entry := range strings.Split(filter, ",") {
		entry = strings.Join(strings.Fields(entry), " ")
		if entry != "" && hasID(entry, ids) {
			return true
		}
	}

	for _, word := range words {
		if hasID(word, ids) {
			return true
		}
	}

	return false
}

func hasID(name string, ids []string) bool {
	return slices.ContainsFunc(ids, func(id string) bool {
		return strings.EqualFold(name, id)
	})
}
