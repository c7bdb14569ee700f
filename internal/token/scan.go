// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package token

import (
	"strconv"
	"strings"

	"nickandperla.net/emt/internal/scanner"
)

// Next consumes and returns the next token from s. Literal text up to the
// first prefix comes back as a Text token; otherwise the prefix and its
// discriminator select the markup form. A TransientError means the buffer
// ends mid-construct: the caller should Retreat, feed more input and call
// again. A ParseError is fatal.
func Next(s *scanner.Scanner, prefix rune) (Token, error) {
	if s.Empty() {
		return nil, &scanner.TransientError{Reason: "no input"}
	}
	if s.At(0) != prefix {
		if i := s.Find(prefix); i >= 0 {
			text, err := s.Chop(i, 0)
			if err != nil {
				return nil, err
			}
			return &Text{Text: text}, nil
		}
		return &Text{Text: s.ChopAll()}, nil
	}
	if s.Rest() < 2 {
		return nil, &scanner.TransientError{Reason: "discriminator"}
	}

	d := s.At(1)
	switch {
	case d == ' ' || d == '\t' || d == '\v' || d == '\r' || d == '\n':
		if _, err := s.Chop(0, 2); err != nil {
			return nil, err
		}
		return &Whitespace{}, nil
	case d == prefix:
		if _, err := s.Chop(0, 2); err != nil {
			return nil, err
		}
		return &Literal{Char: prefix}, nil
	case d == ')' || d == ']' || d == '}':
		if _, err := s.Chop(0, 2); err != nil {
			return nil, err
		}
		return &Literal{Char: d}, nil
	case d == '\\':
		return scanEscape(s)
	case d == '#':
		return scanComment(s)
	case d == '?':
		return scanContextName(s)
	case d == '!':
		return scanContextLine(s)
	case d == '%':
		return scanSignificator(s)
	case d == '(':
		return scanExpression(s)
	case d == '`':
		return scanRepr(s)
	case d == ':':
		return scanInPlace(s)
	case d == '\'' || d == '"':
		return scanStringLit(s)
	case d == '{':
		return scanStatement(s)
	case d == '[':
		return scanControl(s, prefix)
	case scanner.IsWordStart(d):
		return scanSimple(s)
	}
	return nil, scanner.Parsef("unrecognized markup: %s%s", string(prefix), string(d))
}

// scanComment consumes through the next unescaped newline.
func scanComment(s *scanner.Scanner) (Token, error) {
	i := 2
	for {
		if i >= s.Rest() {
			return nil, &scanner.TransientError{Reason: "comment"}
		}
		if s.At(i) == '\n' && s.At(i-1) != '\\' {
			break
		}
		i++
	}
	if _, err := s.Chop(0, i+1); err != nil {
		return nil, err
	}
	return &Comment{}, nil
}

// restOfLine returns the span of the current line past offset 2 and the
// total token width including the newline.
func restOfLine(s *scanner.Scanner) (string, int, error) {
	i := s.Find('\n')
	if i < 0 {
		return "", 0, &scanner.TransientError{Reason: "line"}
	}
	return s.Slice(2, i), i + 1, nil
}

func scanContextName(s *scanner.Scanner) (Token, error) {
	line, width, err := restOfLine(s)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(line)
	if name == "" {
		return nil, scanner.Parsef("missing context name")
	}
	if _, err := s.Chop(0, width); err != nil {
		return nil, err
	}
	return &ContextName{Name: name}, nil
}

func scanContextLine(s *scanner.Scanner) (Token, error) {
	line, width, err := restOfLine(s)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return nil, scanner.Parsef("invalid context line: %q", strings.TrimSpace(line))
	}
	if _, err := s.Chop(0, width); err != nil {
		return nil, err
	}
	return &ContextLine{Line: n}, nil
}

func scanSignificator(s *scanner.Scanner) (Token, error) {
	line, width, err := restOfLine(s)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(line)
	key := body
	expr := ""
	if i := strings.IndexAny(body, " \t"); i >= 0 {
		key = body[:i]
		expr = strings.TrimSpace(body[i+1:])
	}
	if !isIdentifier(key) {
		return nil, scanner.Parsef("invalid significator key: %q", key)
	}
	if _, err := s.Chop(0, width); err != nil {
		return nil, err
	}
	return &Significator{Key: key, Expr: expr}, nil
}

func isIdentifier(name string) bool {
	for i, r := range name {
		if i == 0 {
			if !scanner.IsWordStart(r) {
				return false
			}
		} else if !scanner.IsWordChar(r) {
			return false
		}
	}
	return name != ""
}

// scanExpression splits @(test ? then ! else $ except) on its unquoted
// secondary delimiters. A : is accepted for ! when no ! is present.
func scanExpression(s *scanner.Scanner) (Token, error) {
	z, err := s.ScanBalanced('(', ')', 2, -1, '\\')
	if err != nil {
		return nil, err
	}
	t := &Expression{}

	head := z
	if d, err := s.ScanUntil("$", 2, z, false); err == nil {
		t.HasExcept = true
		t.Except = s.Slice(d+1, z)
		head = d
	} else if !scanner.IsTransient(err) {
		return nil, err
	}

	testEnd := head
	if q, err := s.ScanUntil("?", 2, head, false); err == nil {
		t.HasThen = true
		testEnd = q
		thenEnd := head
		e, err := s.ScanUntil("!", q+1, head, false)
		if scanner.IsTransient(err) {
			e, err = s.ScanUntil(":", q+1, head, false)
		}
		if err == nil {
			t.HasElse = true
			t.Else = s.Slice(e+1, head)
			thenEnd = e
		} else if !scanner.IsTransient(err) {
			return nil, err
		}
		t.Then = s.Slice(q+1, thenEnd)
	} else if !scanner.IsTransient(err) {
		return nil, err
	}

	t.Test = s.Slice(2, testEnd)
	if _, err := s.Chop(0, z+1); err != nil {
		return nil, err
	}
	return t, nil
}

func scanRepr(s *scanner.Scanner) (Token, error) {
	z, err := s.ScanUntil("`", 2, -1, false)
	if err != nil {
		return nil, err
	}
	code := s.Slice(2, z)
	if _, err := s.Chop(0, z+1); err != nil {
		return nil, err
	}
	return &Repr{Code: code}, nil
}

func scanInPlace(s *scanner.Scanner) (Token, error) {
	first, err := s.ScanUntil(":", 2, -1, false)
	if err != nil {
		return nil, err
	}
	second, err := s.ScanUntil(":", first+1, -1, false)
	if err != nil {
		return nil, err
	}
	code := s.Slice(2, first)
	if _, err := s.Chop(0, second+1); err != nil {
		return nil, err
	}
	return &InPlace{Code: code}, nil
}

func scanStringLit(s *scanner.Scanner) (Token, error) {
	quote, err := s.FindQuote(1, -1)
	if err != nil {
		return nil, err
	}
	end, err := s.ScanStringEnd(1+len(quote), quote)
	if err != nil {
		return nil, err
	}
	raw := s.Slice(1, end)
	if _, err := s.Chop(0, end); err != nil {
		return nil, err
	}
	return &StringLit{Raw: raw}, nil
}

func scanStatement(s *scanner.Scanner) (Token, error) {
	z, err := s.ScanBalanced('{', '}', 2, -1, 0)
	if err != nil {
		return nil, err
	}
	code := reflow(s.Slice(2, z))
	if _, err := s.Chop(0, z+1); err != nil {
		return nil, err
	}
	return &Statement{Code: code}, nil
}

// reflow normalizes a statement body: a single line is trimmed, and a
// multi-line body loses the indentation of its first nonblank line so
// indented blocks inside the braces execute as written.
func reflow(code string) string {
	if !strings.Contains(code, "\n") {
		return strings.TrimSpace(code)
	}
	lines := strings.Split(code, "\n")
	indent := ""
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent = line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		break
	}
	if indent == "" {
		return code
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, indent)
	}
	return strings.Join(lines, "\n")
}

func scanSimple(s *scanner.Scanner) (Token, error) {
	z, err := s.ScanSimpleExpression(1)
	if err != nil {
		return nil, err
	}
	code := s.Slice(1, z)
	if _, err := s.Chop(0, z); err != nil {
		return nil, err
	}
	return &Simple{Code: code}, nil
}

// scanControl reads one @[...] construct. Primary kinds recursively scan
// their token stream through the matching end marker, holding the
// compaction lock so a transient partway through rewinds the whole block.
func scanControl(s *scanner.Scanner, prefix rune) (Token, error) {
	z, err := s.ScanBalanced('[', ']', 2, -1, 0)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(s.Slice(2, z))
	kind := content
	args := ""
	if i := strings.IndexAny(content, " \t"); i >= 0 {
		kind = content[:i]
		args = strings.TrimSpace(content[i+1:])
	}
	if !controlKinds[kind] {
		return nil, scanner.Parsef("unknown control: %q", kind)
	}
	if err := checkControlArgs(kind, args); err != nil {
		return nil, err
	}
	if _, err := s.Chop(0, z+1); err != nil {
		return nil, err
	}
	t := &Control{Kind: kind, Args: args}
	if !IsPrimary(kind) {
		return t, nil
	}

	s.Acquire()
	defer s.Release()
	for {
		child, err := Next(s, prefix)
		if err != nil {
			return nil, err
		}
		if c, ok := child.(*Control); ok && c.Kind == KindEnd {
			if c.Args != kind {
				return nil, scanner.Parsef("mismatched end: expected %q, found %q", kind, c.Args)
			}
			return t, nil
		}
		t.Children = append(t.Children, child)
	}
}

func checkControlArgs(kind, args string) error {
	switch kind {
	case KindIf, KindElif, KindFor, KindWhile, KindDef, KindEnd:
		if args == "" {
			return scanner.Parsef("%s requires an argument", kind)
		}
	case KindTry, KindElse, KindFinally, KindContinue, KindBreak:
		if args != "" {
			return scanner.Parsef("%s takes no argument", kind)
		}
	}
	return nil
}
