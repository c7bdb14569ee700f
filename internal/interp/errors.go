package interp

import (
	"errors"
	"fmt"
	"strings"
)

// Frame is one entry of the context stack at the moment an error was
// raised, innermost first.
type Frame struct {
	Name string
	Line int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%d", f.Name, f.Line)
}

// Error decorates a failure with the processing contexts it occurred
// under.
type Error struct {
	Frames []Frame
	Err    error
}

func (e *Error) Error() string {
	if len(e.Frames) == 0 {
		return e.Err.Error()
	}
	var b strings.Builder
	b.WriteString(e.Frames[0].String())
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	for _, f := range e.Frames[1:] {
		b.WriteString("\n")
		b.WriteString(f.String())
		b.WriteString(": from this context")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FlowError reports a continue or break that escaped every enclosing
// loop.
type FlowError struct {
	Kind string
}

func (e *FlowError) Error() string {
	return e.Kind + " outside loop"
}

// StackUnderflowError reports an operation against an empty interpreter
// stack.
type StackUnderflowError struct {
	Stack string
}

func (e *StackUnderflowError) Error() string {
	return e.Stack + " stack underflow"
}

// HookError reports a bad hook registration or removal.
type HookError struct {
	Msg string
}

func (e *HookError) Error() string {
	return e.Msg
}

// flowSignal is the internal unwinding value for continue and break.
// It travels as an error but is intercepted by the innermost loop.
type flowSignal struct {
	kind string
}

func (s *flowSignal) Error() string {
	return s.kind + " signal"
}

var (
	errContinue = &flowSignal{kind: "continue"}
	errBreak    = &flowSignal{kind: "break"}
)

func isFlowSignal(err error) bool {
	_, ok := err.(*flowSignal)
	return ok
}

// decorate attaches the current context stack to err. Errors already
// decorated pass through so the innermost description wins.
func (in *Interp) decorate(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	if sig, ok := err.(*flowSignal); ok {
		err = &FlowError{Kind: sig.kind}
	}
	frames := make([]Frame, 0, len(in.contexts))
	for i := len(in.contexts) - 1; i >= 0; i-- {
		frames = append(frames, Frame{Name: in.contexts[i].Name, Line: in.contexts[i].Line})
	}
	in.hooks.run(EvAtError, map[string]any{"error": err})
	return &Error{Frames: frames, Err: err}
}
