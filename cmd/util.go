// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/SladkyCitron/slogcolor"
	"github.com/goccy/go-yaml"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/term"

	"github.com/choria-io/execstep/internal/redirect"
	"github.com/choria-io/execstep/manager"
	"github.com/choria-io/execstep/metrics"
	"github.com/choria-io/execstep/model"
)

func newManager(baseDir string) (*manager.Manager, error) {
	logger := newLogger()

	if monitorPort > 0 {
		metrics.RegisterMetrics()
		metrics.ListenAndServe(monitorPort, logger)
	}

	opts := []manager.Option{
		manager.WithStreams(redirect.Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}),
	}

	if baseDir != "" {
		opts = append(opts, manager.WithBaseDir(baseDir))
	}

	return manager.NewManager(logger, newOutputLogger(), opts...)
}

func logLevel() slog.Level {
	switch {
	case debug:
		return slog.LevelDebug
	case info:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

func newOutputLogger() model.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return manager.NewSlogLogger(slog.New(slogcolor.NewHandler(os.Stdout, &slogcolor.Options{Level: level})))
	}

	return manager.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func newLogger() model.Logger {
	level := logLevel()

	if logFormat == "json" {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetFormatter(&logrus.JSONFormatter{})

		switch level {
		case slog.LevelDebug:
			l.SetLevel(logrus.DebugLevel)
		case slog.LevelInfo:
			l.SetLevel(logrus.InfoLevel)
		default:
			l.SetLevel(logrus.WarnLevel)
		}

		return manager.NewLogrusLogger(logrus.NewEntry(l))
	}

	return manager.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// renderData prints v as indented JSON or YAML, query is a gjson query applied to the JSON form
func renderData(v any, query string, yamlFormat bool) error {
	j, err := json.Marshal(v)
	if err != nil {
		return err
	}

	if query != "" {
		j = []byte(gjson.GetBytes(j, query).Raw)
		if len(j) == 0 {
			return fmt.Errorf("query %q did not match", query)
		}
	}

	if yamlFormat {
		y, err := yaml.JSONToYAML(j)
		if err != nil {
			return err
		}

		fmt.Println(strings.TrimSpace(string(y)))
		return nil
	}

	out := bytes.NewBuffer([]byte{})
	err = json.Indent(out, j, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(out.String())

	return nil
}
