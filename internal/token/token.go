// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package token classifies embedded markup. Each call to Next consumes one
// construct from a scanner buffer: a run of literal text, or a single
// prefix-introduced markup token.
package token

// Token is one scanned construct.
type Token interface {
	token()
}

// Text is a run of literal document text containing no markup prefix.
type Text struct {
	Text string
}

// Literal is a doubled prefix or an escaped closing delimiter, emitted as
// the bare character.
type Literal struct {
	Char rune
}

// Whitespace is a prefix followed by a whitespace character; both are
// swallowed, making the prefix a line continuation.
type Whitespace struct{}

// Escape is a decoded escape code.
type Escape struct {
	Value rune
}

// Comment runs from the prefix through the end of the line and produces
// nothing.
type Comment struct{}

// ContextName renames the current context.
type ContextName struct {
	Name string
}

// ContextLine renumbers the current context.
type ContextLine struct {
	Line int
}

// Significator records a document-level key with an optional value
// expression.
type Significator struct {
	Key  string
	Expr string
}

// Expression is a parenthesized expression with optional then, else and
// except branches.
type Expression struct {
	Test   string
	Then   string
	Else   string
	Except string

	HasThen   bool
	HasElse   bool
	HasExcept bool
}

// Simple is an unparenthesized expression: a name followed by calls,
// indexes and attribute references.
type Simple struct {
	Code string
}

// Repr is a backquoted expression whose value is written in
// representation form.
type Repr struct {
	Code string
}

// InPlace is a :-delimited expression that rewrites its own markup around
// the evaluated value.
type InPlace struct {
	Code string
}

// StringLit is a quoted string literal handed to the evaluator, so host
// escape sequences apply.
type StringLit struct {
	Raw string
}

// Statement is a braced span of host statements.
type Statement struct {
	Code string
}

// Control is a bracketed control construct. Primary kinds carry the
// token stream scanned up to their matching end marker; secondary and
// leaf kinds stand alone.
type Control struct {
	Kind     string
	Args     string
	Children []Token
}

func (*Text) token()         {}
func (*Literal) token()      {}
func (*Whitespace) token()   {}
func (*Escape) token()       {}
func (*Comment) token()      {}
func (*ContextName) token()  {}
func (*ContextLine) token()  {}
func (*Significator) token() {}
func (*Expression) token()   {}
func (*Simple) token()       {}
func (*Repr) token()         {}
func (*InPlace) token()      {}
func (*StringLit) token()    {}
func (*Statement) token()    {}
func (*Control) token()      {}

// Control kinds.
const (
	KindIf       = "if"
	KindElif     = "elif"
	KindElse     = "else"
	KindFor      = "for"
	KindWhile    = "while"
	KindTry      = "try"
	KindExcept   = "except"
	KindFinally  = "finally"
	KindDef      = "def"
	KindContinue = "continue"
	KindBreak    = "break"
	KindEnd      = "end"
)

var controlKinds = map[string]bool{
	KindIf:       true,
	KindElif:     true,
	KindElse:     true,
	KindFor:      true,
	KindWhile:    true,
	KindTry:      true,
	KindExcept:   true,
	KindFinally:  true,
	KindDef:      true,
	KindContinue: true,
	KindBreak:    true,
	KindEnd:      true,
}

// IsPrimary reports whether kind opens a block that runs to a matching
// end marker.
func IsPrimary(kind string) bool {
	switch kind {
	case KindIf, KindFor, KindWhile, KindTry, KindDef:
		return true
	}
	return false
}

// IsSecondary reports whether kind partitions an enclosing block.
func IsSecondary(kind string) bool {
	switch kind {
	case KindElif, KindElse, KindExcept, KindFinally:
		return true
	}
	return false
}
