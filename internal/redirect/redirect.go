// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package redirect connects the standard streams of a child process to files,
// literal input, captured buffers and loggers
package redirect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/choria-io/execstep/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// Streams are the files a child process is started with, nil entries mean the null device
type Streams struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Redirector owns every handle opened for one launch
type Redirector struct {
	props   model.RedirectorProperties
	baseDir string
	inherit Streams
	log     model.Logger
	out     model.Logger

	encoding encoding.Encoding
	child    []*os.File
	parent   []*os.File
	files    []*os.File
	loggers  []*lineWriter
	pumps    []func() error
	captures map[string]*buffer
	group    *errgroup.Group
	forced   atomic.Bool
	closed   bool
	mu       sync.Mutex
}

// New creates a redirector, relative paths are resolved against baseDir. Streams in
// inherit are used where nothing is configured while out receives log_output and log_error lines
func New(props model.RedirectorProperties, baseDir string, inherit Streams, log model.Logger, out model.Logger) *Redirector {
	if out == nil {
		out = log
	}

	return &Redirector{
		props:    props,
		baseDir:  baseDir,
		inherit:  inherit,
		log:      log,
		out:      out,
		captures: make(map[string]*buffer),
	}
}

// Setup opens files and pipes and returns the streams to start the child with,
// everything opened so far is released when an error is returned
func (r *Redirector) Setup() (*Streams, error) {
	streams, err := r.setup()
	if err != nil {
		r.Close()
		return nil, err
	}

	return streams, nil
}

func (r *Redirector) setup() (*Streams, error) {
	var err error

	if r.props.OutputEncoding != "" {
		r.encoding, err = ianaindex.IANA.Encoding(r.props.OutputEncoding)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown output encoding %q", model.ErrConfiguration, r.props.OutputEncoding)
		}
	}

	res := &Streams{}

	res.Stdin, err = r.setupInput()
	if err != nil {
		return nil, err
	}

	var redirected bool
	res.Stdout, redirected, err = r.setupOutput()
	if err != nil {
		return nil, err
	}

	res.Stderr, err = r.setupError(res.Stdout, redirected)
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (r *Redirector) setupInput() (*os.File, error) {
	switch {
	case r.props.Input != "":
		f, err := os.Open(r.path(r.props.Input))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrStreamIO, err)
		}
		r.files = append(r.files, f)

		return f, nil

	case r.props.InputString != nil:
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrStreamIO, err)
		}
		r.child = append(r.child, pr)
		r.parent = append(r.parent, pw)

		input := *r.props.InputString
		r.pumps = append(r.pumps, func() error {
			_, err := io.WriteString(pw, input)
			cerr := pw.Close()
			if err != nil && !isBrokenPipe(err) {
				return err
			}
			if cerr != nil && !errors.Is(cerr, os.ErrClosed) {
				return cerr
			}

			return nil
		})

		return pr, nil

	default:
		return r.inherit.Stdin, nil
	}
}

func (r *Redirector) setupOutput() (*os.File, bool, error) {
	var sinks []io.Writer

	if r.props.Output != "" {
		f, err := r.openSink(r.props.Output)
		if err != nil {
			return nil, false, err
		}
		sinks = append(sinks, f)
	}

	if r.props.OutputProperty != "" {
		sinks = append(sinks, r.capture(r.props.OutputProperty))
	}

	if r.props.ShouldLogOutput() {
		sinks = append(sinks, r.lineLogger("stdout", r.out.Info))
	}

	if len(sinks) == 0 {
		return r.inherit.Stdout, false, nil
	}

	f, err := r.connect(sinks)

	return f, true, err
}

func (r *Redirector) setupError(stdout *os.File, outputRedirected bool) (*os.File, error) {
	var sinks []io.Writer

	if r.props.Error != "" {
		if r.props.Output != "" && r.samePath(r.props.Error, r.props.Output) {
			r.log.Debug("Error and output files are the same, merging streams", "file", r.props.Error)
			return stdout, nil
		}

		f, err := r.openSink(r.props.Error)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, f)
	}

	if r.props.ErrorProperty != "" {
		sinks = append(sinks, r.capture(r.props.ErrorProperty))
	}

	if r.props.ShouldLogError() {
		sinks = append(sinks, r.lineLogger("stderr", r.out.Warn))
	}

	if len(sinks) == 0 {
		if outputRedirected {
			return stdout, nil
		}

		return r.inherit.Stderr, nil
	}

	return r.connect(sinks)
}

// connect returns a file the child can write to that feeds all sinks, a lone
// file sink is handed to the child directly
func (r *Redirector) connect(sinks []io.Writer) (*os.File, error) {
	if len(sinks) == 1 {
		f, ok := sinks[0].(*os.File)
		if ok {
			return f, nil
		}
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStreamIO, err)
	}
	r.child = append(r.child, pw)
	r.parent = append(r.parent, pr)

	w := io.MultiWriter(sinks...)
	r.pumps = append(r.pumps, func() error {
		_, err := io.Copy(w, pr)
		return err
	})

	return pw, nil
}

func (r *Redirector) openSink(path string) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if r.props.ShouldAppend() {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(r.path(path), flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStreamIO, err)
	}
	r.files = append(r.files, f)

	return f, nil
}

// capture returns the buffer for a property, streams exporting to the same name share it
func (r *Redirector) capture(name string) *buffer {
	buf, ok := r.captures[name]
	if !ok {
		buf = &buffer{}
		r.captures[name] = buf
	}

	return buf
}

func (r *Redirector) lineLogger(stream string, emit func(string, ...any)) *lineWriter {
	w := &lineWriter{stream: stream, emit: emit}
	r.loggers = append(r.loggers, w)

	return w
}

func (r *Redirector) path(p string) string {
	if filepath.IsAbs(p) || r.baseDir == "" {
		return p
	}

	return filepath.Join(r.baseDir, p)
}

func (r *Redirector) samePath(a string, b string) bool {
	pa, err := filepath.Abs(r.path(a))
	if err != nil {
		return false
	}
	pb, err := filepath.Abs(r.path(b))
	if err != nil {
		return false
	}

	return pa == pb
}

// Start must be called once the child started, it releases the child ends of
// all pipes and starts pumping
func (r *Redirector) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.child {
		f.Close()
	}
	r.child = nil

	r.group = &errgroup.Group{}
	for _, pump := range r.pumps {
		r.group.Go(pump)
	}
}

// Wait blocks until all pumps finished, when force is above zero pipes that did not
// drain within that time are closed. A stream that is still held open by a grandchild
// would otherwise block forever
func (r *Redirector) Wait(force time.Duration) error {
	r.mu.Lock()
	group := r.group
	r.mu.Unlock()

	if group == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	var expired <-chan time.Time
	if force > 0 {
		timer := time.NewTimer(force)
		defer timer.Stop()
		expired = timer.C
	}

	var err error
	select {
	case err = <-done:
	case <-expired:
		r.log.Warn("Output streams did not drain, closing them", "grace", force)
		r.forced.Store(true)
		r.closeParent()
		err = <-done
	}

	for _, l := range r.loggers {
		l.Flush()
	}

	if err == nil {
		return nil
	}

	if r.forced.Load() && errors.Is(err, os.ErrClosed) {
		return nil
	}

	return fmt.Errorf("%w: %w", model.ErrStreamIO, err)
}

// Captures returns the decoded content of every captured stream keyed by property name
func (r *Redirector) Captures() (map[string]string, error) {
	res := make(map[string]string, len(r.captures))

	for name, buf := range r.captures {
		val, err := r.decode(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %w", model.ErrStreamIO, name, err)
		}
		res[name] = val
	}

	return res, nil
}

func (r *Redirector) decode(b []byte) (string, error) {
	if r.encoding == nil {
		return string(b), nil
	}

	out, err := r.encoding.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

func (r *Redirector) closeParent() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.parent {
		f.Close()
	}
}

// Close releases every handle, it is safe to call more than once
func (r *Redirector) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, set := range [][]*os.File{r.child, r.parent, r.files} {
		for _, f := range set {
			err := f.Close()
			if err != nil && !errors.Is(err, os.ErrClosed) {
				errs = append(errs, err)
			}
		}
	}

	r.child = nil
	r.parent = nil
	r.files = nil

	return errors.Join(errs...)
}
