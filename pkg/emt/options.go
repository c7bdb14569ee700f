// Package emt provides the public API for the emt template engine.
package emt

import (
	"io"

	"nickandperla.net/emt/internal/interp"
)

// Option configures an Engine.
type Option func(*Engine)

// WithPrefix sets the markup prefix character.
func WithPrefix(prefix rune) Option {
	return func(e *Engine) {
		e.prefix = prefix
	}
}

// WithOutput sets the io.Writer expanded output is written to.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.output = w
	}
}

// WithPseudonym sets the global name the engine's control object is
// bound under.
func WithPseudonym(name string) Option {
	return func(e *Engine) {
		e.pseudonym = name
	}
}

// WithGlobal binds one global before processing starts. The value is
// converted from its native Go form.
func WithGlobal(name string, value any) Option {
	return func(e *Engine) {
		if e.globals == nil {
			e.globals = make(map[string]any)
		}
		e.globals[name] = value
	}
}

// WithGlobals binds a set of globals before processing starts.
func WithGlobals(globals map[string]any) Option {
	return func(e *Engine) {
		if e.globals == nil {
			e.globals = make(map[string]any)
		}
		for name, value := range globals {
			e.globals[name] = value
		}
	}
}

// WithFlatten copies the control object's attributes directly into
// globals, so templates can write version instead of emt.version.
func WithFlatten() Option {
	return func(e *Engine) {
		e.flatten = true
	}
}

// WithScanOnly classifies markup without executing any of it, for
// syntax checking.
func WithScanOnly() Option {
	return func(e *Engine) {
		e.scanOnly = true
	}
}

// WithBufferedOutput holds all output in memory until Close, so a
// processing error leaves nothing partially written.
func WithBufferedOutput() Option {
	return func(e *Engine) {
		e.buffered = true
	}
}

// Hook observes engine events.
type Hook = interp.Hook

// Error is a processing error carrying the stack of input contexts it
// occurred under.
type Error = interp.Error

// Frame is one input context recorded in an Error.
type Frame = interp.Frame

// Document is an incremental processing session.
type Document = interp.Document

// Version is the engine version.
const Version = interp.Version

// DefaultPrefix is the default markup prefix character.
const DefaultPrefix = interp.DefaultPrefix

// DefaultPseudonym is the default control object name.
const DefaultPseudonym = interp.DefaultPseudonym

// Events returns every hook event name, sorted.
func Events() []string {
	return interp.Events()
}
