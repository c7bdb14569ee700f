// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package script implements the expression language embedded in
// templates: a small dynamically typed language with numbers, strings,
// lists, dicts and callables, evaluated against a global namespace with
// optional per-call locals.
package script

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is any script-level value.
type Value interface {
	// Type returns the value's type name.
	Type() string
	// String renders the value for template output.
	String() string
	// Repr renders the value in its source-like form.
	Repr() string
	// Truth reports the value's boolean interpretation.
	Truth() bool
	// Equals reports value equality.
	Equals(other Value) bool
}

type noneValue struct{}

// None is the null value.
var None Value = noneValue{}

func (noneValue) Type() string   { return "none" }
func (noneValue) String() string { return "None" }
func (noneValue) Repr() string   { return "None" }
func (noneValue) Truth() bool    { return false }
func (noneValue) Equals(other Value) bool {
	_, ok := other.(noneValue)
	return ok
}

// Bool is a boolean value.
type Bool bool

// True and False are the boolean constants.
const (
	True  = Bool(true)
	False = Bool(false)
)

func (b Bool) Type() string { return "bool" }
func (b Bool) String() string {
	if b {
		return "True"
	}
	return "False"
}
func (b Bool) Repr() string { return b.String() }
func (b Bool) Truth() bool  { return bool(b) }
func (b Bool) Equals(other Value) bool {
	o, ok := other.(Bool)
	return ok && b == o
}

// Int is an integer value.
type Int int64

func (i Int) Type() string   { return "int" }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (i Int) Repr() string   { return i.String() }
func (i Int) Truth() bool    { return i != 0 }
func (i Int) Equals(other Value) bool {
	switch o := other.(type) {
	case Int:
		return i == o
	case Float:
		return float64(i) == float64(o)
	}
	return false
}

// Float is a floating point value.
type Float float64

func (f Float) Type() string { return "float" }
func (f Float) String() string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 64)
	// A whole number still reads as a float.
	if strings.IndexFunc(s, func(r rune) bool { return r != '-' && (r < '0' || r > '9') }) < 0 {
		s += ".0"
	}
	return s
}
func (f Float) Repr() string { return f.String() }
func (f Float) Truth() bool  { return f != 0 }
func (f Float) Equals(other Value) bool {
	switch o := other.(type) {
	case Int:
		return float64(f) == float64(o)
	case Float:
		return f == o
	}
	return false
}

// Str is a string value.
type Str string

func (s Str) Type() string   { return "str" }
func (s Str) String() string { return string(s) }
func (s Str) Repr() string   { return quote(string(s)) }
func (s Str) Truth() bool    { return s != "" }
func (s Str) Equals(other Value) bool {
	o, ok := other.(Str)
	return ok && s == o
}

// quote renders a string in single-quoted source form.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// List is a mutable sequence of values.
type List struct {
	Items []Value
}

// NewList builds a List from items.
func NewList(items ...Value) *List {
	return &List{Items: items}
}

func (l *List) Type() string { return "list" }
func (l *List) String() string {
	return l.Repr()
}
func (l *List) Repr() string {
	parts := make([]string, len(l.Items))
	for i, item := range l.Items {
		parts[i] = item.Repr()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (l *List) Truth() bool { return len(l.Items) > 0 }
func (l *List) Equals(other Value) bool {
	o, ok := other.(*List)
	if !ok || len(l.Items) != len(o.Items) {
		return false
	}
	for i, item := range l.Items {
		if !item.Equals(o.Items[i]) {
			return false
		}
	}
	return true
}

// Dict is a mutable mapping preserving insertion order. Keys are
// compared by value equality, so any value can key a dict.
type Dict struct {
	keys   []Value
	values []Value
}

// NewDict creates an empty Dict.
func NewDict() *Dict {
	return &Dict{}
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return len(d.keys)
}

// Get looks up key, reporting whether it was present.
func (d *Dict) Get(key Value) (Value, bool) {
	for i, k := range d.keys {
		if k.Equals(key) {
			return d.values[i], true
		}
	}
	return None, false
}

// Set stores key, replacing an existing entry or appending a new one.
func (d *Dict) Set(key, value Value) {
	for i, k := range d.keys {
		if k.Equals(key) {
			d.values[i] = value
			return
		}
	}
	d.keys = append(d.keys, key)
	d.values = append(d.values, value)
}

// Delete removes key, reporting whether it was present.
func (d *Dict) Delete(key Value) bool {
	for i, k := range d.keys {
		if k.Equals(key) {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			d.values = append(d.values[:i], d.values[i+1:]...)
			return true
		}
	}
	return false
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Value {
	return append([]Value(nil), d.keys...)
}

// Values returns the values in insertion order.
func (d *Dict) Values() []Value {
	return append([]Value(nil), d.values...)
}

func (d *Dict) Type() string { return "dict" }
func (d *Dict) String() string {
	return d.Repr()
}
func (d *Dict) Repr() string {
	parts := make([]string, len(d.keys))
	for i := range d.keys {
		parts[i] = d.keys[i].Repr() + ": " + d.values[i].Repr()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (d *Dict) Truth() bool { return len(d.keys) > 0 }
func (d *Dict) Equals(other Value) bool {
	o, ok := other.(*Dict)
	if !ok || d.Len() != o.Len() {
		return false
	}
	for i, k := range d.keys {
		ov, present := o.Get(k)
		if !present || !d.values[i].Equals(ov) {
			return false
		}
	}
	return true
}

// Func is a callable value.
type Func struct {
	Name string
	Fn   func(env *Env, args []Value) (Value, error)
}

func (f *Func) Type() string   { return "function" }
func (f *Func) String() string { return "<function " + f.Name + ">" }
func (f *Func) Repr() string   { return f.String() }
func (f *Func) Truth() bool    { return true }
func (f *Func) Equals(other Value) bool {
	return f == other
}

// Call invokes the function.
func (f *Func) Call(env *Env, args []Value) (Value, error) {
	return f.Fn(env, args)
}

// Module is a named bag of attributes.
type Module struct {
	Name  string
	attrs map[string]Value
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name, attrs: make(map[string]Value)}
}

// Attr looks up an attribute.
func (m *Module) Attr(name string) (Value, bool) {
	v, ok := m.attrs[name]
	return v, ok
}

// SetAttr defines an attribute.
func (m *Module) SetAttr(name string, v Value) {
	m.attrs[name] = v
}

// Attrs returns the attribute names in sorted order.
func (m *Module) Attrs() []string {
	names := make([]string, 0, len(m.attrs))
	for name := range m.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Module) Type() string   { return "module" }
func (m *Module) String() string { return "<module " + m.Name + ">" }
func (m *Module) Repr() string   { return m.String() }
func (m *Module) Truth() bool    { return true }
func (m *Module) Equals(other Value) bool {
	return m == other
}
