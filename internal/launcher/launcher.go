// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package launcher starts processes, either waiting for them under watchdog
// supervision or detaching them entirely
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/choria-io/execstep/internal/cmdline"
	"github.com/choria-io/execstep/internal/environ"
	"github.com/choria-io/execstep/internal/redirect"
	"github.com/choria-io/execstep/internal/resolver"
	iu "github.com/choria-io/execstep/internal/util"
	"github.com/choria-io/execstep/internal/watchdog"
	"github.com/choria-io/execstep/metrics"
	"github.com/choria-io/execstep/model"
)

// DefaultDrainGrace is how long output is drained after a process ended before pipes are closed
const DefaultDrainGrace = 5 * time.Second

// Launcher starts processes described by model.ExecProperties
type Launcher struct {
	baseDir    string
	environ    func() []string
	streams    redirect.Streams
	drainGrace time.Duration
	log        model.Logger
	userLogger model.Logger

	resolver *resolver.Resolver
	env      *environ.Builder
}

// Option configures a Launcher
type Option func(*Launcher) error

// WithBaseDir sets the directory relative names and paths are resolved against, defaults to the current directory
func WithBaseDir(dir string) Option {
	return func(l *Launcher) error {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}

		l.baseDir = abs

		return nil
	}
}

// WithEnviron sets the inherited environment snapshot, defaults to os.Environ
func WithEnviron(environ func() []string) Option {
	return func(l *Launcher) error {
		l.environ = environ
		return nil
	}
}

// WithStreams sets the streams processes inherit when no redirection is configured
func WithStreams(streams redirect.Streams) Option {
	return func(l *Launcher) error {
		l.streams = streams
		return nil
	}
}

// WithDrainGrace sets how long output is drained after a process ended
func WithDrainGrace(grace time.Duration) Option {
	return func(l *Launcher) error {
		if grace < 0 {
			return fmt.Errorf("drain grace cannot be negative")
		}

		l.drainGrace = grace

		return nil
	}
}

// WithUserLogger sets the logger that receives log_output and log_error lines
func WithUserLogger(log model.Logger) Option {
	return func(l *Launcher) error {
		l.userLogger = log
		return nil
	}
}

// New creates a launcher
func New(log model.Logger, opts ...Option) (*Launcher, error) {
	l := &Launcher{
		log:        log,
		environ:    os.Environ,
		drainGrace: DefaultDrainGrace,
	}

	for _, opt := range opts {
		err := opt(l)
		if err != nil {
			return nil, err
		}
	}

	if l.baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		l.baseDir = wd
	}

	if l.userLogger == nil {
		l.userLogger = log
	}

	l.resolver = resolver.New(l.baseDir, l.environ, log)
	l.env = environ.New(l.environ, log)

	return l, nil
}

// Preflight checks the request for configuration errors, nothing is started
func (l *Launcher) Preflight(props *model.ExecProperties) error {
	err := props.Validate()
	if err != nil {
		return err
	}

	tokens, err := props.Tokens()
	if err != nil {
		return err
	}

	if len(tokens) == 0 || strings.TrimSpace(tokens[0]) == "" {
		return model.ErrNoExecutable
	}

	if props.Dir != "" {
		dir := l.workingDir(props)

		if !iu.FileExists(dir) {
			return fmt.Errorf("%w: %s does not exist", model.ErrInvalidDirectory, dir)
		}
		if !iu.IsDirectory(dir) {
			return fmt.Errorf("%w: %s is not a directory", model.ErrInvalidDirectory, dir)
		}
	}

	return nil
}

func (l *Launcher) workingDir(props *model.ExecProperties) string {
	switch {
	case props.Dir == "":
		return l.baseDir
	case filepath.IsAbs(props.Dir):
		return props.Dir
	default:
		return filepath.Join(l.baseDir, props.Dir)
	}
}

// Launch runs the process, a process the OS could not start is reported in the
// result and not as an error. Errors are configuration or stream failures
func (l *Launcher) Launch(ctx context.Context, props *model.ExecProperties) (*model.LaunchResult, error) {
	err := l.Preflight(props)
	if err != nil {
		return nil, err
	}

	tokens, err := props.Tokens()
	if err != nil {
		return nil, err
	}

	dir := l.workingDir(props)
	cmd := cmdline.FromTokens(tokens)
	cmd = cmd.WithExecutable(l.resolver.Resolve(resolver.Request{
		Executable: cmd.Executable(),
		Resolve:    props.ResolveExecutable,
		SearchPath: props.SearchPath,
		Dir:        dir,
		Overrides:  props.Environment,
	}))

	env, err := l.env.Build(props.Environment, props.NewEnvironment)
	if err != nil {
		return nil, err
	}

	result := &model.LaunchResult{
		Protocol:  model.LaunchResultProtocol,
		LaunchID:  ksuid.New().String(),
		TimeStamp: time.Now().UTC(),
	}

	log := l.log.With("launch", result.LaunchID)
	log.Debug(cmd.Describe())

	if props.Shell {
		cmd = cmd.ViaShell()
	}
	result.Command = cmd.Tokens()

	label := filepath.Base(cmd.Executable())

	if props.Spawn {
		return l.spawn(cmd, dir, env, result, label, log)
	}

	return l.wait(ctx, props, cmd, dir, env, result, label, log)
}

func (l *Launcher) command(cmd *cmdline.CommandLine, dir string, env []string) *exec.Cmd {
	c := exec.Command(cmd.Executable(), cmd.Arguments()...)
	c.Dir = dir
	c.Env = env

	return c
}

func (l *Launcher) failedToStart(result *model.LaunchResult, err error, label string, log model.Logger) (*model.LaunchResult, error) {
	log.Debug("Process could not be started", "error", err)

	result.FailedToStart = true
	result.StartError = err.Error()
	result.ExitCode = -1

	metrics.LaunchOutcomeCount.WithLabelValues(label, string(result.Outcome())).Inc()

	return result, nil
}

func (l *Launcher) spawn(cmd *cmdline.CommandLine, dir string, env []string, result *model.LaunchResult, label string, log model.Logger) (*model.LaunchResult, error) {
	c := l.command(cmd, dir, env)
	c.SysProcAttr = detachedAttributes()

	err := c.Start()
	if err != nil {
		return l.failedToStart(result, err, label, log)
	}

	result.Spawned = true
	result.Pid = c.Process.Pid

	log.Debug("Spawned process", "pid", result.Pid)

	err = c.Process.Release()
	if err != nil {
		log.Warn("Could not release spawned process", "pid", result.Pid, "error", err)
	}

	metrics.LaunchOutcomeCount.WithLabelValues(label, string(result.Outcome())).Inc()

	return result, nil
}

func (l *Launcher) wait(ctx context.Context, props *model.ExecProperties, cmd *cmdline.CommandLine, dir string, env []string, result *model.LaunchResult, label string, log model.Logger) (*model.LaunchResult, error) {
	red := redirect.New(props.EffectiveRedirector(), l.baseDir, l.streams, log, l.userLogger)
	defer red.Close()

	streams, err := red.Setup()
	if err != nil {
		if errors.Is(err, model.ErrStreamIO) {
			metrics.StreamErrorCount.WithLabelValues(label).Inc()
		}
		return nil, err
	}

	c := l.command(cmd, dir, env)
	c.Stdin = reader(streams.Stdin)
	c.Stdout = writer(streams.Stdout)
	c.Stderr = writer(streams.Stderr)

	start := time.Now()
	err = c.Start()
	if err != nil {
		return l.failedToStart(result, err, label, log)
	}
	red.Start()

	handle := &osProcess{cmd: c, tree: props.KillTree, log: log}
	result.Pid = handle.Pid()

	wd := watchdog.New(props.ParsedTimeout, log)
	if props.ParsedTimeout > 0 || ctx.Done() != nil {
		err = wd.Start(ctx, handle)
		if err != nil {
			return nil, err
		}
	}

	waitErr := handle.Wait()
	wd.Stop()

	result.Duration = time.Since(start)

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return nil, waitErr
	}

	// the process might have exited on its own between the kill and the wait
	result.Killed = wd.Killed() && !exitedNaturally(c.ProcessState)
	if result.Killed {
		result.KillReason = wd.Reason()
		result.ExitCode = -1
		log.Warn("Killed process", "pid", result.Pid, "reason", result.KillReason, "timeout", props.ParsedTimeout)
		metrics.WatchdogKillCount.WithLabelValues(label, result.KillReason).Inc()
	} else {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	err = red.Wait(l.drainGrace)
	if err != nil {
		metrics.StreamErrorCount.WithLabelValues(label).Inc()
		return nil, err
	}

	result.Captures, err = red.Captures()
	if err != nil {
		metrics.StreamErrorCount.WithLabelValues(label).Inc()
		return nil, err
	}

	err = red.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStreamIO, err)
	}

	log.Debug("Process completed", "pid", result.Pid, "exit_code", result.ExitCode, "killed", result.Killed, "duration", result.Duration)

	metrics.LaunchTime.WithLabelValues(label).Observe(result.Duration.Seconds())
	metrics.LaunchOutcomeCount.WithLabelValues(label, string(result.Outcome())).Inc()

	return result, nil
}

// a nil *os.File in an interface is not a nil interface and exec would hand the child a closed descriptor
func reader(f *os.File) io.Reader {
	if f == nil {
		return nil
	}

	return f
}

func writer(f *os.File) io.Writer {
	if f == nil {
		return nil
	}

	return f
}
