// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package watchdog forcibly terminates processes that run past a deadline
package watchdog

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/choria-io/execstep/model"
)

const (
	ReasonTimeout   = "timeout"
	ReasonCancelled = "cancelled"
)

type state int

const (
	idle state = iota
	watching
	stopped
	killed
)

// Killer is the only capability the watchdog needs from a process
type Killer interface {
	Pid() int
	Kill() error
}

// Watchdog supervises a single process, whichever of Stop or the deadline
// reaches the state lock first decides the outcome
type Watchdog struct {
	timeout time.Duration
	log     model.Logger

	state  state
	reason string
	stop   chan struct{}
	mu     sync.Mutex
}

// New creates a watchdog, a timeout of zero only reacts to context cancellation
func New(timeout time.Duration, log model.Logger) *Watchdog {
	return &Watchdog{timeout: timeout, log: log}
}

// Start begins supervising handle, only one process can be supervised per watchdog
func (w *Watchdog) Start(ctx context.Context, handle Killer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != idle {
		return model.ErrAlreadyWatching
	}

	w.state = watching
	w.stop = make(chan struct{})

	var expired <-chan time.Time
	var timer *time.Timer
	if w.timeout > 0 {
		timer = time.NewTimer(w.timeout)
		expired = timer.C
	}

	go func() {
		if timer != nil {
			defer timer.Stop()
		}

		select {
		case <-expired:
			w.fire(handle, ReasonTimeout)
		case <-ctx.Done():
			w.fire(handle, ReasonCancelled)
		case <-w.stop:
		}
	}()

	return nil
}

func (w *Watchdog) fire(handle Killer, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != watching {
		return
	}

	err := handle.Kill()
	switch {
	case errors.Is(err, os.ErrProcessDone):
		w.state = stopped
		return
	case err != nil:
		w.log.Error("Could not kill process", "pid", handle.Pid(), "reason", reason, "error", err)
	default:
		w.log.Debug("Terminating process", "pid", handle.Pid(), "reason", reason, "timeout", w.timeout)
	}

	w.state = killed
	w.reason = reason
}

// Stop cancels supervision, it has no effect once the process was killed
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != watching {
		return
	}

	w.state = stopped
	close(w.stop)
}

// Killed reports if the watchdog terminated the process
func (w *Watchdog) Killed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state == killed
}

// Reason is why the process was killed, empty when it was not
func (w *Watchdog) Reason() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.reason
}
