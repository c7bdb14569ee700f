package emt

import (
	"fmt"
	"io"
	"sort"

	"nickandperla.net/emt/internal/interp"
	"nickandperla.net/emt/internal/script"
	"nickandperla.net/emt/internal/stream"
)

// Engine is the emt template engine.
type Engine struct {
	prefix    rune
	pseudonym string
	output    io.Writer
	globals   map[string]any
	flatten   bool
	scanOnly  bool
	buffered  bool

	in *interp.Interp
}

// New creates a new engine with the given options.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}

	// Build interpreter options
	iopts := []interp.Option{}
	if e.prefix != 0 {
		iopts = append(iopts, interp.WithPrefix(e.prefix))
	}
	if e.output != nil {
		iopts = append(iopts, interp.WithOutput(e.output))
	}
	if e.pseudonym != "" {
		iopts = append(iopts, interp.WithPseudonym(e.pseudonym))
	}
	if e.scanOnly {
		iopts = append(iopts, interp.WithScanOnly())
	}

	names := make([]string, 0, len(e.globals))
	for name := range e.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := script.FromGo(e.globals[name])
		if err != nil {
			return nil, fmt.Errorf("global %s: %w", name, err)
		}
		iopts = append(iopts, interp.WithGlobal(name, v))
	}
	if e.flatten {
		iopts = append(iopts, interp.WithFlatten())
	}

	in, err := interp.New(iopts...)
	if err != nil {
		return nil, err
	}
	if e.buffered {
		in.SetFilter(stream.NewMaximal())
	}
	e.in = in
	return e, nil
}

// ProcessFile processes a template file.
func (e *Engine) ProcessFile(path string) error {
	return e.in.ProcessFile(path)
}

// ProcessReader processes a template from a reader under the given
// context name.
func (e *Engine) ProcessReader(r io.Reader, name string) error {
	return e.in.ProcessReader(r, name)
}

// ProcessString processes a template string under the given context name.
func (e *Engine) ProcessString(src, name string) error {
	return e.in.ProcessString(src, name)
}

// ProcessBinary processes input in fixed-size chunks, with context
// positions counted in bytes instead of lines.
func (e *Engine) ProcessBinary(r io.Reader, name string, chunk int) error {
	return e.in.ProcessBinary(r, name, chunk)
}

// OpenDocument starts an incremental session, for feeding a template
// line by line.
func (e *Engine) OpenDocument(name string) *Document {
	return e.in.OpenDocument(name)
}

// Expand expands a template string and returns the result rather than
// writing it to the engine output.
func (e *Engine) Expand(src string) (string, error) {
	return e.in.Expand(src, nil)
}

// Define binds a global from a name=expression specification. A bare
// name binds None.
func (e *Engine) Define(spec string) error {
	return e.in.Define(spec)
}

// Execute runs statements in the engine's global namespace.
func (e *Engine) Execute(stmts string) error {
	return e.in.Execute(stmts)
}

// ExecuteFile runs a file of statements in the engine's global namespace.
func (e *Engine) ExecuteFile(path string) error {
	return e.in.ExecuteFile(path)
}

// Evaluate evaluates an expression and returns its native Go form.
func (e *Engine) Evaluate(code string) (any, error) {
	v, err := e.in.Evaluate(code)
	if err != nil {
		return nil, err
	}
	return script.ToGo(v), nil
}

// SetGlobal binds a global, converting a native Go value.
func (e *Engine) SetGlobal(name string, value any) error {
	v, err := script.FromGo(value)
	if err != nil {
		return err
	}
	e.in.Globals().Set(name, v)
	return nil
}

// Significators returns the significator values collected so far,
// keyed by their bare names.
func (e *Engine) Significators() map[string]any {
	sigs := make(map[string]any)
	for key, v := range e.in.Significators() {
		sigs[key] = script.ToGo(v)
	}
	return sigs
}

// AddHook registers fn for a hook event and returns its registration id.
func (e *Engine) AddHook(event string, fn Hook) (int, error) {
	return e.in.AddHook(event, fn)
}

// RemoveHook removes a hook registration by id.
func (e *Engine) RemoveHook(event string, id int) error {
	return e.in.RemoveHook(event, id)
}

// ClearHooks removes the hooks for an event; an empty event name clears
// every hook.
func (e *Engine) ClearHooks(event string) error {
	return e.in.ClearHooks(event)
}

// AtExit registers fn to run when the engine closes. Functions run in
// reverse registration order.
func (e *Engine) AtExit(fn func() error) {
	e.in.AtExit(fn)
}

// Flush flushes the current output stream.
func (e *Engine) Flush() error {
	return e.in.Flush()
}

// Reset clears transient processing state after an error: the context
// stack, pending expansions and the output filter chain.
func (e *Engine) Reset() {
	e.in.Reset()
}

// Close shuts the engine down: at-exit functions run in reverse order,
// remaining diversions replay, and the output streams close. Close is
// idempotent.
func (e *Engine) Close() error {
	return e.in.Close()
}
