// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/choria-io/fisk"
)

var (
	ctx         context.Context
	debug       bool
	info        bool
	logFormat   string
	monitorPort int
	Version     = "development"
)

func main() {
	app := fisk.New("execstep", "Runs external processes as build steps")
	app.Version(Version)
	app.Author("https://choria.io")

	app.Flag("debug", "Enable debug logging").UnNegatableBoolVar(&debug)
	app.Flag("info", "Enable info logging").UnNegatableBoolVar(&info)
	app.Flag("log-format", "Format of the diagnostic log").Default("text").EnumVar(&logFormat, "text", "json")
	app.Flag("monitor-port", "Port to serve Prometheus metrics on").PlaceHolder("PORT").IntVar(&monitorPort)

	registerRunCommand(app)
	registerApplyCommand(app)

	ctx, _ = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app.MustParseWithUsage(os.Args[1:])
}
