// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package stream implements the output side of template processing: a
// Stream wraps a sink with an optional filter chain and a set of named
// diversions that buffer output for later replay.
package stream

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// DiversionError reports a reference to a diversion that does not exist.
type DiversionError struct {
	Name string
}

func (e *DiversionError) Error() string {
	return fmt.Sprintf("no such diversion: %q", e.Name)
}

// diversion is deferred output accumulating under a name.
type diversion struct {
	buf bytes.Buffer
}

// Stream routes writes either straight through the filter chain to the
// sink, or into the current diversion. Diversions hold raw text; the
// filter chain applies when they are played back.
type Stream struct {
	sink    io.Writer
	filter  Filter
	divs    map[string]*diversion
	current string
	closed  bool
}

// New creates a Stream over sink with no filter and no diversions.
func New(sink io.Writer) *Stream {
	return &Stream{
		sink: sink,
		divs: make(map[string]*diversion),
	}
}

// target is where a write lands right now.
func (st *Stream) target() io.Writer {
	if st.current != "" {
		return &st.divs[st.current].buf
	}
	if st.filter != nil {
		return st.filter
	}
	return st.sink
}

// Write sends p to the current diversion, or through the filter chain to
// the sink when no diversion is active.
func (st *Stream) Write(p []byte) (int, error) {
	return st.target().Write(p)
}

// WriteString writes s like Write.
func (st *Stream) WriteString(s string) error {
	_, err := io.WriteString(st.target(), s)
	return err
}

// Divert makes name the current diversion, creating it on first
// reference. An empty name is equivalent to Revert.
func (st *Stream) Divert(name string) {
	if name == "" {
		st.Revert()
		return
	}
	st.Create(name)
	st.current = name
}

// Revert routes subsequent writes back to the sink.
func (st *Stream) Revert() {
	st.current = ""
}

// Create ensures a diversion named name exists without diverting to it.
func (st *Stream) Create(name string) {
	if _, ok := st.divs[name]; !ok {
		st.divs[name] = &diversion{}
	}
}

// Current returns the name of the active diversion, or the empty string.
func (st *Stream) Current() string {
	return st.current
}

// Names returns the existing diversion names in sorted order.
func (st *Stream) Names() []string {
	names := make([]string, 0, len(st.divs))
	for name := range st.divs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Retrieve returns the accumulated contents of a diversion.
func (st *Stream) Retrieve(name string) (string, error) {
	d, ok := st.divs[name]
	if !ok {
		return "", &DiversionError{Name: name}
	}
	return d.buf.String(), nil
}

// Purge discards a diversion.
func (st *Stream) Purge(name string) error {
	if _, ok := st.divs[name]; !ok {
		return &DiversionError{Name: name}
	}
	delete(st.divs, name)
	if st.current == name {
		st.current = ""
	}
	return nil
}

// Undivert replays a diversion through the filter chain to the sink,
// optionally purging it afterward. Diverting is stopped first so replay
// cannot feed a diversion into itself.
func (st *Stream) Undivert(name string, purge bool) error {
	d, ok := st.divs[name]
	if !ok {
		return &DiversionError{Name: name}
	}
	st.Revert()
	out := st.sink
	if st.filter != nil {
		out = st.filter
	}
	if _, err := out.Write(d.buf.Bytes()); err != nil {
		return err
	}
	if purge {
		delete(st.divs, name)
	}
	return nil
}

// UndivertAll replays every diversion in sorted name order.
func (st *Stream) UndivertAll(purge bool) error {
	for _, name := range st.Names() {
		if err := st.Undivert(name, purge); err != nil {
			return err
		}
	}
	return nil
}

// SetFilter replaces the filter chain. The links are attached head to
// tail, with the tail attached to the sink; the old chain is flushed
// first. No filters restores direct output.
func (st *Stream) SetFilter(filters ...Filter) error {
	if st.filter != nil {
		if err := st.filter.Flush(); err != nil {
			return err
		}
	}
	if len(filters) == 0 {
		st.filter = nil
		return nil
	}
	for i := 0; i < len(filters)-1; i++ {
		filters[i].Attach(filters[i+1])
	}
	filters[len(filters)-1].Attach(st.sink)
	st.filter = filters[0]
	return nil
}

// Filter returns the head of the current filter chain, or nil.
func (st *Stream) Filter() Filter {
	return st.filter
}

// Flush pushes buffered filter content through to the sink.
func (st *Stream) Flush() error {
	if st.filter != nil {
		return st.filter.Flush()
	}
	return flushWriter(st.sink)
}

// Close replays all remaining diversions, then closes the filter chain.
// The sink itself is left open for its owner. Close is idempotent.
func (st *Stream) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	if err := st.UndivertAll(true); err != nil {
		return err
	}
	if st.filter != nil {
		return st.filter.Close()
	}
	return flushWriter(st.sink)
}

func flushWriter(w io.Writer) error {
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
