// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package redirect

import (
	"bytes"
	"strings"
	"sync"
)

type buffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return bytes.Clone(b.buf.Bytes())
}

// lineWriter emits every complete line written to it as a log message
type lineWriter struct {
	stream string
	emit   func(string, ...any)
	buf    []byte
	mu     sync.Mutex
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)

	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx == -1 {
			break
		}

		w.emit(strings.TrimSuffix(string(w.buf[:idx]), "\r"), "stream", w.stream)
		w.buf = w.buf[idx+1:]
	}

	if len(w.buf) == 0 {
		w.buf = nil
	}

	return len(p), nil
}

// Flush emits a trailing partial line
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(strings.TrimSuffix(string(w.buf), "\r"), "stream", w.stream)
	}
	w.buf = nil
}
