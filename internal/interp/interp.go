// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package interp drives embedded markup processing: it feeds source
// through the resumable scanner, executes the resulting tokens against
// the host evaluator, and manages the context, stream, and hook state
// that execution depends on.
package interp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"nickandperla.net/emt/internal/scanner"
	"nickandperla.net/emt/internal/script"
	"nickandperla.net/emt/internal/stream"
	"nickandperla.net/emt/internal/token"
)

// Version of the interpreter, exposed to documents and the CLI.
const Version = "0.1.0"

// DefaultPrefix triggers markup in source documents.
const DefaultPrefix = '@'

// DefaultPseudonym is the global name the interpreter binds itself to.
const DefaultPseudonym = "emt"

// Evaluator bridges markup to the host scripting language. Evaluate
// yields the value of an expression; Execute runs statements for their
// side effects.
type Evaluator interface {
	Evaluate(code string, env *script.Env) (script.Value, error)
	Execute(code string, env *script.Env) error
}

// Interp is an embedded markup interpreter. It is not safe for
// concurrent use.
type Interp struct {
	prefix    rune
	pseudonym string
	evaluator Evaluator
	globals   *script.Namespace
	hooks     *hookRegistry

	streams  []*stream.Stream
	contexts []*Context
	includes []string
	atExit   []func() error

	scanOnly bool
	flatten  bool
	dead     bool
}

// Option configures an Interp.
type Option func(*Interp)

// WithPrefix sets the markup trigger rune.
func WithPrefix(r rune) Option {
	return func(in *Interp) {
		in.prefix = r
	}
}

// WithOutput directs interpreter output to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(in *Interp) {
		in.streams[0] = stream.New(w)
	}
}

// WithPseudonym binds the interpreter under a different global name.
func WithPseudonym(name string) Option {
	return func(in *Interp) {
		in.pseudonym = name
	}
}

// WithEvaluator substitutes the host language bridge.
func WithEvaluator(ev Evaluator) Option {
	return func(in *Interp) {
		in.evaluator = ev
	}
}

// WithGlobal seeds one global before processing starts.
func WithGlobal(name string, v script.Value) Option {
	return func(in *Interp) {
		in.globals.Set(name, v)
	}
}

// WithFlatten copies the interpreter's methods into the globals so
// documents can call them unqualified.
func WithFlatten() Option {
	return func(in *Interp) {
		in.flatten = true
	}
}

// WithScanOnly parses markup without executing it, for syntax checks.
func WithScanOnly() Option {
	return func(in *Interp) {
		in.scanOnly = true
	}
}

// New builds an interpreter and installs its pseudomodule into the
// globals. It fails if the pseudomodule name is already bound.
func New(opts ...Option) (*Interp, error) {
	in := &Interp{
		prefix:    DefaultPrefix,
		pseudonym: DefaultPseudonym,
		evaluator: script.NewHost(),
		globals:   script.NewNamespace(),
		hooks:     newHookRegistry(),
		streams:   []*stream.Stream{stream.New(os.Stdout)},
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.globals.Has(in.pseudonym) {
		return nil, fmt.Errorf("pseudomodule name %q is already bound", in.pseudonym)
	}
	in.globals.Set(in.pseudonym, in.pseudomodule())
	if in.flatten {
		in.Flatten()
	}
	return in, nil
}

// Globals exposes the interpreter's global namespace.
func (in *Interp) Globals() *script.Namespace {
	return in.globals
}

// Prefix reports the markup trigger rune.
func (in *Interp) Prefix() rune {
	return in.prefix
}

// Pseudonym reports the global name the interpreter is bound under.
func (in *Interp) Pseudonym() string {
	return in.pseudonym
}

// Flatten copies pseudomodule attributes into the globals, skipping
// names that are already bound.
func (in *Interp) Flatten() {
	mod, ok := in.globals.Get(in.pseudonym).(*script.Module)
	if !ok {
		return
	}
	for _, name := range mod.Attrs() {
		if !in.globals.Has(name) {
			v, _ := mod.Attr(name)
			in.globals.Set(name, v)
		}
	}
}

// stream returns the active output stream, the top of the stream stack.
func (in *Interp) stream() *stream.Stream {
	return in.streams[len(in.streams)-1]
}

func (in *Interp) pushStream(s *stream.Stream) {
	in.streams = append(in.streams, s)
}

func (in *Interp) popStream() error {
	if len(in.streams) <= 1 {
		return &StackUnderflowError{Stack: "stream"}
	}
	in.streams = in.streams[:len(in.streams)-1]
	return nil
}

// output is the writer handed to the host environment, resolved against
// the stream stack on every write so print follows diversions and
// expansions.
type output struct {
	in *Interp
}

func (o output) Write(p []byte) (int, error) {
	return o.in.stream().Write(p)
}

// env builds a host environment over the interpreter's globals with an
// optional local scope.
func (in *Interp) env(locals map[string]script.Value) *script.Env {
	e := script.NewEnv(in.globals, output{in: in})
	e.Locals = locals
	return e
}

// ProcessFile expands the document at path. Relative includes inside
// the document resolve against the document's directory.
func (in *Interp) ProcessFile(path string) error {
	if err := in.check(); err != nil {
		return err
	}
	in.hooks.run(EvBeforeFile, map[string]any{"name": path})
	f, err := os.Open(path)
	if err != nil {
		return in.decorate(err)
	}
	defer f.Close()
	in.includes = append(in.includes, filepath.Dir(path))
	defer func() {
		in.includes = in.includes[:len(in.includes)-1]
	}()
	err = in.processReader(f, path)
	if err == nil {
		in.hooks.run(EvAfterFile, map[string]any{"name": path})
	}
	return err
}

// ProcessReader expands r line by line, reporting errors under name.
func (in *Interp) ProcessReader(r io.Reader, name string) error {
	if err := in.check(); err != nil {
		return err
	}
	in.hooks.run(EvBeforeFile, map[string]any{"name": name})
	err := in.processReader(r, name)
	if err == nil {
		in.hooks.run(EvAfterFile, map[string]any{"name": name})
	}
	return err
}

// ProcessString expands src in one pass, reporting errors under name.
func (in *Interp) ProcessString(src, name string) error {
	if err := in.check(); err != nil {
		return err
	}
	in.hooks.run(EvBeforeString, map[string]any{"name": name})
	err := in.processString(src, name)
	if err == nil {
		in.hooks.run(EvAfterString, map[string]any{"name": name})
	}
	return err
}

// ProcessBinary expands r in fixed-size chunks, counting progress in
// bytes rather than lines. The input must still be valid UTF-8.
func (in *Interp) ProcessBinary(r io.Reader, name string, chunk int) error {
	if err := in.check(); err != nil {
		return err
	}
	if chunk <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", chunk)
	}
	in.hooks.run(EvBeforeBinary, map[string]any{"name": name})
	buf := make([]byte, chunk)
	next := func() (string, error) {
		n, err := r.Read(buf)
		return string(buf[:n]), err
	}
	err := in.processChunks(next, name, UnitBytes)
	if err == nil {
		in.hooks.run(EvAfterBinary, map[string]any{"name": name})
	}
	return err
}

// Include expands another document into the current output, resolving
// relative paths against the including document's directory.
func (in *Interp) Include(path string) error {
	in.hooks.run(EvBeforeInclude, map[string]any{"name": path})
	resolved := in.resolvePath(path)
	f, err := os.Open(resolved)
	if err != nil {
		return in.decorate(err)
	}
	defer f.Close()
	in.includes = append(in.includes, filepath.Dir(resolved))
	defer func() {
		in.includes = in.includes[:len(in.includes)-1]
	}()
	if err := in.processReader(f, path); err != nil {
		return err
	}
	in.hooks.run(EvAfterInclude, map[string]any{"name": path})
	return nil
}

func (in *Interp) resolvePath(path string) string {
	if filepath.IsAbs(path) || len(in.includes) == 0 {
		return path
	}
	candidate := filepath.Join(in.includes[len(in.includes)-1], path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}

// Expand processes src against a private stream and returns what it
// wrote. Diversions and filters created during the expansion die with
// the private stream.
func (in *Interp) Expand(src string, locals map[string]script.Value) (string, error) {
	in.hooks.run(EvBeforeExpand, map[string]any{"source": src})
	text, err := in.expandString(src, locals)
	if err != nil {
		return "", err
	}
	in.hooks.run(EvAfterExpand, map[string]any{"result": text})
	return text, nil
}

func (in *Interp) expandString(src string, locals map[string]script.Value) (string, error) {
	var buf strings.Builder
	in.pushStream(stream.New(&buf))
	defer in.popStream()
	ctx := NewContext("<expand>", UnitLines)
	in.pushContext(ctx)
	defer in.popContext()
	sc := scanner.New()
	sc.Feed(src)
	if err := in.parseBuffer(sc, ctx, locals, true); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// processFragment expands src into the current stream, unlike Expand
// which captures to a private one.
func (in *Interp) processFragment(src, name string, locals map[string]script.Value) error {
	ctx := NewContext(name, UnitLines)
	in.pushContext(ctx)
	defer in.popContext()
	sc := scanner.New()
	sc.Feed(src)
	return in.parseBuffer(sc, ctx, locals, true)
}

// expandTokens runs already-scanned tokens against a private stream,
// used for macro bodies defined with def blocks.
func (in *Interp) expandTokens(toks []token.Token, locals map[string]script.Value) (string, error) {
	var buf strings.Builder
	in.pushStream(stream.New(&buf))
	defer in.popStream()
	if err := in.runBody(toks, locals); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (in *Interp) processReader(r io.Reader, name string) error {
	br := bufio.NewReader(r)
	next := func() (string, error) {
		return br.ReadString('\n')
	}
	return in.processChunks(next, name, UnitLines)
}

func (in *Interp) processString(src, name string) error {
	done := false
	next := func() (string, error) {
		if done {
			return "", io.EOF
		}
		done = true
		return src, io.EOF
	}
	return in.processChunks(next, name, UnitLines)
}

// processChunks is the shared feed loop: pull a chunk, scan as far as
// complete markup allows, repeat until the source is exhausted.
func (in *Interp) processChunks(next func() (string, error), name string, units Units) error {
	ctx := NewContext(name, units)
	in.pushContext(ctx)
	defer in.popContext()
	sc := scanner.New()
	for {
		chunk, rerr := next()
		if chunk != "" {
			sc.Feed(chunk)
			if units == UnitBytes {
				ctx.Bump(len(chunk))
			}
		}
		final := rerr != nil
		if err := in.parseBuffer(sc, ctx, nil, final); err != nil {
			return err
		}
		if rerr != nil {
			if rerr != io.EOF {
				return in.decorate(rerr)
			}
			return nil
		}
	}
}

// parseBuffer drains complete tokens from the scanner. Incomplete
// markup retreats and waits for more input; at true end of input a
// synthetic newline is tried once before the failure is promoted to a
// hard parse error.
func (in *Interp) parseBuffer(sc *scanner.Scanner, ctx *Context, locals map[string]script.Value, final bool) error {
	retried := false
	for {
		tok, err := token.Next(sc, in.prefix)
		if err != nil {
			if !scanner.IsTransient(err) {
				return in.decorate(err)
			}
			sc.Retreat()
			if sc.Empty() || !final {
				return nil
			}
			if !retried {
				retried = true
				ctx.paused = true
				sc.Feed("\n")
				continue
			}
			return in.decorate(scanner.Parsef("unexpected end of input: %v", err))
		}
		in.hooks.run(EvAtParse, map[string]any{"token": tok})
		if !in.scanOnly {
			if err := in.executeToken(tok, locals); err != nil {
				return in.decorate(err)
			}
		}
		n := sc.Accept()
		if ctx.Units == UnitLines {
			ctx.Bump(n)
		}
		if retried && sc.Rest() == 1 && sc.At(0) == '\n' {
			// The token completed without consuming the synthetic
			// newline; drop it rather than emit it.
			sc.ChopAll()
			sc.Accept()
		}
	}
}

// evalCode evaluates host code with evaluation hooks around it.
func (in *Interp) evalCode(code string, locals map[string]script.Value) (script.Value, error) {
	in.hooks.run(EvBeforeEvaluate, map[string]any{"code": code})
	v, err := in.evaluator.Evaluate(code, in.env(locals))
	if err != nil {
		return nil, err
	}
	in.hooks.run(EvAfterEvaluate, map[string]any{"code": code, "result": v})
	return v, nil
}

// execCode executes host statements with execution hooks around it.
func (in *Interp) execCode(code string, locals map[string]script.Value) error {
	in.hooks.run(EvBeforeExecute, map[string]any{"code": code})
	if err := in.evaluator.Execute(code, in.env(locals)); err != nil {
		return err
	}
	in.hooks.run(EvAfterExecute, map[string]any{"code": code})
	return nil
}

// significate evaluates expr and binds it as the __key__ global.
func (in *Interp) significate(key, expr string, locals map[string]script.Value) error {
	in.hooks.run(EvBeforeSignificate, map[string]any{"key": key, "expr": expr})
	var v script.Value = script.None
	if expr != "" {
		var err error
		v, err = in.evaluator.Evaluate(expr, in.env(locals))
		if err != nil {
			return err
		}
	}
	in.globals.Set("__"+key+"__", v)
	in.hooks.run(EvAfterSignificate, map[string]any{"key": key, "value": v})
	return nil
}

// Evaluate runs a host expression in the interpreter's globals.
func (in *Interp) Evaluate(code string) (script.Value, error) {
	return in.evalCode(code, nil)
}

// Execute runs host statements in the interpreter's globals.
func (in *Interp) Execute(code string) error {
	return in.execCode(code, nil)
}

// Define binds a global from a NAME=EXPR spec. A bare NAME binds None.
func (in *Interp) Define(spec string) error {
	name, expr, found := strings.Cut(spec, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty name in definition %q", spec)
	}
	if !found {
		in.globals.Set(name, script.None)
		return nil
	}
	v, err := in.Evaluate(expr)
	if err != nil {
		return err
	}
	in.globals.Set(name, v)
	return nil
}

// ExecuteFile runs a file of host statements.
func (in *Interp) ExecuteFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return in.Execute(string(data))
}

// Significators collects every __key__ global, keyed without the
// underscores.
func (in *Interp) Significators() map[string]script.Value {
	out := make(map[string]script.Value)
	for _, name := range in.globals.Names() {
		if len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
			out[name[2:len(name)-2]] = in.globals.Get(name)
		}
	}
	return out
}

// AddHook registers fn for the named event and returns its id.
func (in *Interp) AddHook(event string, fn Hook) (int, error) {
	return in.hooks.add(event, fn)
}

// RemoveHook removes a previously registered hook by id.
func (in *Interp) RemoveHook(event string, id int) error {
	return in.hooks.remove(event, id)
}

// ClearHooks removes every hook for one event, or every hook when
// event is empty.
func (in *Interp) ClearHooks(event string) error {
	if event == "" {
		in.hooks.clearAll()
		return nil
	}
	return in.hooks.clear(event)
}

// AtExit schedules fn to run when the interpreter closes. Callbacks
// run in reverse registration order.
func (in *Interp) AtExit(fn func() error) {
	in.atExit = append(in.atExit, fn)
}

// SetFilter installs a filter chain on the active stream.
func (in *Interp) SetFilter(filters ...stream.Filter) {
	in.stream().SetFilter(filters...)
}

// Flush forces buffered output through the active stream.
func (in *Interp) Flush() error {
	return in.stream().Flush()
}

// Reset discards transient processing state after an error so an
// interactive session can continue: contexts, nested streams, and any
// filter on the root stream. Globals and diversions survive.
func (in *Interp) Reset() {
	in.contexts = in.contexts[:0]
	in.includes = in.includes[:0]
	in.streams = in.streams[:1]
	in.streams[0].SetFilter()
}

// Close runs exit callbacks, fires the shutdown hook, and closes the
// stream stack. The interpreter is unusable afterwards. Close is
// idempotent.
func (in *Interp) Close() error {
	if in.dead {
		return nil
	}
	in.dead = true
	var firstErr error
	for i := len(in.atExit) - 1; i >= 0; i-- {
		if err := in.atExit[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	in.hooks.run(EvAtShutdown, nil)
	for i := len(in.streams) - 1; i >= 0; i-- {
		if err := in.streams[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (in *Interp) check() error {
	if in.dead {
		return fmt.Errorf("interpreter is closed")
	}
	return nil
}
