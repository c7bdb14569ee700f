// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package script

import (
	"strings"
	"unicode"
)

type kind int

const (
	tEOF kind = iota
	tName
	tInt
	tFloat
	tString
	tOp
	tSep // statement separator: ; or a top-level newline
)

type lexToken struct {
	kind kind
	text string
}

// twoCharOps are matched before single-character operators.
var twoCharOps = []string{"==", "!=", "<=", ">=", "//", "+=", "-=", "*=", "/="}

const singleOps = "+-*/%<>=.,:()[]{}"

func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isNameChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// lex tokenizes a complete script source span. Newlines inside brackets
// are insignificant; at the top level they separate statements.
func lex(src string) ([]lexToken, error) {
	rs := []rune(src)
	var toks []lexToken
	depth := 0
	i := 0
	for i < len(rs) {
		c := rs[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case c == '\n':
			if depth == 0 {
				toks = append(toks, lexToken{kind: tSep})
			}
			i++
		case c == ';':
			toks = append(toks, lexToken{kind: tSep})
			i++
		case isDigit(c) || (c == '.' && i+1 < len(rs) && isDigit(rs[i+1])):
			tok, next, err := lexNumber(rs, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case c == '\'' || c == '"':
			tok, next, err := lexString(rs, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case isNameStart(c):
			j := i + 1
			for j < len(rs) && isNameChar(rs[j]) {
				j++
			}
			toks = append(toks, lexToken{kind: tName, text: string(rs[i:j])})
			i = j
		default:
			if i+1 < len(rs) {
				pair := string(rs[i : i+2])
				matched := false
				for _, op := range twoCharOps {
					if pair == op {
						toks = append(toks, lexToken{kind: tOp, text: op})
						i += 2
						matched = true
						break
					}
				}
				if matched {
					break
				}
			}
			if strings.ContainsRune(singleOps, c) {
				switch c {
				case '(', '[', '{':
					depth++
				case ')', ']', '}':
					if depth > 0 {
						depth--
					}
				}
				toks = append(toks, lexToken{kind: tOp, text: string(c)})
				i++
				break
			}
			return nil, syntaxf("unexpected character %q", string(c))
		}
	}
	return append(toks, lexToken{kind: tEOF}), nil
}

func lexNumber(rs []rune, i int) (lexToken, int, error) {
	j := i
	isFloat := false
	for j < len(rs) && isDigit(rs[j]) {
		j++
	}
	if j < len(rs) && rs[j] == '.' && (j+1 >= len(rs) || rs[j+1] != '.') {
		isFloat = true
		j++
		for j < len(rs) && isDigit(rs[j]) {
			j++
		}
	}
	if j < len(rs) && (rs[j] == 'e' || rs[j] == 'E') {
		k := j + 1
		if k < len(rs) && (rs[k] == '+' || rs[k] == '-') {
			k++
		}
		if k < len(rs) && isDigit(rs[k]) {
			isFloat = true
			j = k
			for j < len(rs) && isDigit(rs[j]) {
				j++
			}
		}
	}
	text := string(rs[i:j])
	if isFloat {
		return lexToken{kind: tFloat, text: text}, j, nil
	}
	return lexToken{kind: tInt, text: text}, j, nil
}

func lexString(rs []rune, i int) (lexToken, int, error) {
	q := rs[i]
	quoteLen := 1
	if i+2 < len(rs) && rs[i+1] == q && rs[i+2] == q {
		quoteLen = 3
	}
	j := i + quoteLen
	var b strings.Builder
	for {
		if j >= len(rs) {
			return lexToken{}, 0, syntaxf("unterminated string")
		}
		c := rs[j]
		if c == '\\' {
			if j+1 >= len(rs) {
				return lexToken{}, 0, syntaxf("unterminated string")
			}
			decoded, width := decodeEscape(rs[j+1:])
			b.WriteString(decoded)
			j += 1 + width
			continue
		}
		if c == q {
			if quoteLen == 1 {
				return lexToken{kind: tString, text: b.String()}, j + 1, nil
			}
			if j+2 < len(rs) && rs[j+1] == q && rs[j+2] == q {
				return lexToken{kind: tString, text: b.String()}, j + 3, nil
			}
		}
		if quoteLen == 1 && c == '\n' {
			return lexToken{}, 0, syntaxf("unterminated string")
		}
		b.WriteRune(c)
		j++
	}
}

// decodeEscape interprets the escape after a backslash, returning the
// decoded text and how many runes it consumed. Unknown escapes keep the
// backslash.
func decodeEscape(rest []rune) (string, int) {
	switch rest[0] {
	case 'n':
		return "\n", 1
	case 't':
		return "\t", 1
	case 'r':
		return "\r", 1
	case '0':
		return "\x00", 1
	case '\\':
		return "\\", 1
	case '\'':
		return "'", 1
	case '"':
		return "\"", 1
	case 'x':
		if len(rest) >= 3 {
			hi, ok1 := hexDigit(rest[1])
			lo, ok2 := hexDigit(rest[2])
			if ok1 && ok2 {
				return string(rune(hi<<4 | lo)), 3
			}
		}
	}
	return "\\" + string(rest[0]), 1
}

func hexDigit(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10, true
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10, true
	}
	return 0, false
}
