package script

import "fmt"

// Class is an error class. Classes form a single-inheritance chain
// rooted at the base Error class, and calling a class constructs an
// instance.
type Class struct {
	Name string
	Base *Class
}

// Builtin error classes.
var (
	ErrorClass        = &Class{Name: "Error"}
	TypeError         = &Class{Name: "TypeError", Base: ErrorClass}
	ValueError        = &Class{Name: "ValueError", Base: ErrorClass}
	NameError         = &Class{Name: "NameError", Base: ErrorClass}
	AttributeError    = &Class{Name: "AttributeError", Base: ErrorClass}
	IndexError        = &Class{Name: "IndexError", Base: ErrorClass}
	KeyError          = &Class{Name: "KeyError", Base: ErrorClass}
	ZeroDivisionError = &Class{Name: "ZeroDivisionError", Base: ErrorClass}
)

// Is reports whether c is other or descends from it.
func (c *Class) Is(other *Class) bool {
	for k := c; k != nil; k = k.Base {
		if k == other {
			return true
		}
	}
	return false
}

func (c *Class) Type() string   { return "class" }
func (c *Class) String() string { return "<class " + c.Name + ">" }
func (c *Class) Repr() string   { return c.String() }
func (c *Class) Truth() bool    { return true }
func (c *Class) Equals(other Value) bool {
	return c == other
}

// Error is a raised script error. It is both a script value and a Go
// error, and is the only kind of failure template-level exception
// handling may catch.
type Error struct {
	Class   *Class
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Class.Name
	}
	return e.Class.Name + ": " + e.Message
}

func (e *Error) Type() string   { return "error" }
func (e *Error) String() string { return e.Message }
func (e *Error) Repr() string {
	return e.Class.Name + "(" + quote(e.Message) + ")"
}
func (e *Error) Truth() bool { return true }
func (e *Error) Equals(other Value) bool {
	return e == other
}

// Raise builds a script error of the given class.
func Raise(class *Class, format string, args ...any) *Error {
	return &Error{Class: class, Message: fmt.Sprintf(format, args...)}
}

// SyntaxError reports malformed script source. It is not a script value
// and template-level exception handling never catches it.
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string {
	return "syntax error: " + e.Msg
}

func syntaxf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...)}
}
