// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package script

import (
	"io"
	"sort"
	"sync"
)

// Namespace is a thread-safe global namespace for script variables.
type Namespace struct {
	mu    sync.RWMutex
	store map[string]Value
}

// NewNamespace creates a new empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{
		store: make(map[string]Value),
	}
}

// Get retrieves a value by name. Returns None if not found.
func (n *Namespace) Get(name string) Value {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if v, ok := n.store[name]; ok {
		return v
	}
	return None
}

// Set stores a value by name.
func (n *Namespace) Set(name string, v Value) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.store[name] = v
}

// Has returns true if the name exists in the namespace.
func (n *Namespace) Has(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.store[name]
	return ok
}

// Delete removes a value from the namespace.
func (n *Namespace) Delete(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.store, name)
}

// Names returns all bound names in sorted order.
func (n *Namespace) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.store))
	for name := range n.store {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone creates a shallow copy of the namespace.
func (n *Namespace) Clone() *Namespace {
	n.mu.RLock()
	defer n.mu.RUnlock()
	clone := NewNamespace()
	for k, v := range n.store {
		clone.store[k] = v
	}
	return clone
}

// Env is the environment an evaluation runs in: the shared globals, an
// optional locals map consulted first, and the writer that print and
// friends target.
type Env struct {
	Globals *Namespace
	Locals  map[string]Value
	Output  io.Writer
}

// NewEnv builds an environment over globals writing to output.
func NewEnv(globals *Namespace, output io.Writer) *Env {
	return &Env{Globals: globals, Output: output}
}

// With derives an environment sharing globals and output but using the
// given locals.
func (e *Env) With(locals map[string]Value) *Env {
	return &Env{Globals: e.Globals, Locals: locals, Output: e.Output}
}

// Lookup resolves a name through locals, then globals, then builtins.
func (e *Env) Lookup(name string) (Value, bool) {
	if e.Locals != nil {
		if v, ok := e.Locals[name]; ok {
			return v, true
		}
	}
	if e.Globals.Has(name) {
		return e.Globals.Get(name), true
	}
	return Builtin(name)
}

// Assign binds a name in the innermost scope: locals when present,
// otherwise globals.
func (e *Env) Assign(name string, v Value) {
	if e.Locals != nil {
		e.Locals[name] = v
		return
	}
	e.Globals.Set(name, v)
}

// Defined reports whether a name resolves to anything.
func (e *Env) Defined(name string) bool {
	_, ok := e.Lookup(name)
	return ok
}
