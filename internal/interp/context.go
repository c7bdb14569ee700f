// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package interp

import "fmt"

// Units selects how a context counts progress through its source.
type Units int

const (
	// UnitLines counts newlines, the normal mode for text documents.
	UnitLines Units = iota
	// UnitBytes counts raw bytes fed, used for chunked binary input.
	UnitBytes
)

// Context records where the interpreter currently is in a source being
// processed. Contexts stack: an include pushes a new one and errors
// report the whole chain.
type Context struct {
	Name  string
	Line  int
	Units Units

	// paused suppresses Bump while a synthetic trailing newline is
	// being retried at end of input, so the retry cannot skew the
	// reported position.
	paused bool
	// skip absorbs one newline after an explicit renumbering, so the
	// line following the directive carries the requested number.
	skip bool
}

func NewContext(name string, units Units) *Context {
	return &Context{Name: name, Line: 1, Units: units}
}

// Bump advances the position counter by n units.
func (c *Context) Bump(n int) {
	if c.paused {
		return
	}
	if c.skip && n > 0 {
		c.skip = false
		n--
	}
	if n > 0 {
		c.Line += n
	}
}

// SetLine renumbers the context so the next source line reports n.
func (c *Context) SetLine(n int) {
	c.Line = n
	c.skip = true
}

func (c *Context) String() string {
	return fmt.Sprintf("%s:%d", c.Name, c.Line)
}

func (in *Interp) pushContext(c *Context) {
	in.contexts = append(in.contexts, c)
}

func (in *Interp) popContext() error {
	if len(in.contexts) == 0 {
		return &StackUnderflowError{Stack: "context"}
	}
	in.contexts = in.contexts[:len(in.contexts)-1]
	return nil
}

// context returns the innermost processing context, or nil when the
// interpreter is idle.
func (in *Interp) context() *Context {
	if len(in.contexts) == 0 {
		return nil
	}
	return in.contexts[len(in.contexts)-1]
}
