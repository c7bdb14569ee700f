// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package token

import (
	"strconv"

	"nickandperla.net/emt/internal/scanner"
)

// Named escape codes and their byte values.
var namedEscapes = map[rune]rune{
	'0': 0x00, // null
	'a': 0x07, // bell
	'b': 0x08, // backspace
	'e': 0x1b, // escape
	'f': 0x0c, // form feed
	'h': 0x7f, // delete
	'n': 0x0a, // newline
	'r': 0x0d, // carriage return
	's': 0x20, // space
	't': 0x09, // tab
	'v': 0x0b, // vertical tab
	'z': 0x04, // end of transmission
}

// scanEscape decodes one @\ escape. Numeric forms take a fixed number of
// digits; a value above 255 or a malformed digit run is a hard error.
func scanEscape(s *scanner.Scanner) (Token, error) {
	if s.Rest() < 3 {
		return nil, &scanner.TransientError{Reason: "escape"}
	}
	code := s.At(2)
	if value, ok := namedEscapes[code]; ok {
		if _, err := s.Chop(0, 3); err != nil {
			return nil, err
		}
		return &Escape{Value: value}, nil
	}
	switch code {
	case 'd':
		return scanNumericEscape(s, 3, 10)
	case 'o':
		return scanNumericEscape(s, 3, 8)
	case 'q':
		return scanNumericEscape(s, 4, 4)
	case 'x':
		return scanNumericEscape(s, 2, 16)
	case '^':
		return scanControlEscape(s)
	}
	return nil, scanner.Parsef("unrecognized escape code: %q", string(code))
}

func scanNumericEscape(s *scanner.Scanner, digits, base int) (Token, error) {
	if s.Rest() < 3+digits {
		return nil, &scanner.TransientError{Reason: "escape"}
	}
	text := s.Slice(3, 3+digits)
	value, err := strconv.ParseUint(text, base, 16)
	if err != nil {
		return nil, scanner.Parsef("malformed escape digits: %q", text)
	}
	if value > 255 {
		return nil, scanner.Parsef("escape code out of range: %q", text)
	}
	if _, err := s.Chop(0, 3+digits); err != nil {
		return nil, err
	}
	return &Escape{Value: rune(value)}, nil
}

func scanControlEscape(s *scanner.Scanner) (Token, error) {
	if s.Rest() < 4 {
		return nil, &scanner.TransientError{Reason: "escape"}
	}
	x := s.At(3)
	var value rune
	switch {
	case x == '?':
		value = 0x7f
	case x >= '@' && x <= '_':
		value = x - 64
	default:
		return nil, scanner.Parsef("invalid control escape: %q", string(x))
	}
	if _, err := s.Chop(0, 4); err != nil {
		return nil, err
	}
	return &Escape{Value: value}, nil
}
