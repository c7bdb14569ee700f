// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package scanner provides a resumable, quote-aware buffer scanner for
// embedded markup. Input arrives in arbitrary chunks via Feed; scans that
// run off the end of the buffer fail with a TransientError so the caller
// can retry once more input has been fed.
package scanner

import (
	"fmt"
	"strings"
	"unicode"
)

// TransientError reports that the buffer ends in the middle of a
// well-formed construct. It is retriable: feed more input and scan again.
type TransientError struct {
	Reason string
}

func (e *TransientError) Error() string {
	return "incomplete markup: " + e.Reason
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	_, ok := err.(*TransientError)
	return ok
}

// ParseError reports malformed markup. It is never retriable.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return e.Msg
}

// Parsef builds a ParseError from a format string.
func Parsef(format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

func transient(reason string) *TransientError {
	return &TransientError{Reason: reason}
}

// Scanner is a mutable rune buffer with a consumption cursor. Feed appends
// input, the cursor advances as constructs are consumed, and Accept
// discards everything behind the cursor. Retreat rewinds the cursor to the
// last accept point, which is how a transient scan is undone.
type Scanner struct {
	buf   []rune
	point int // runes consumed since the last Accept
	lock  int // compaction holds while recursive lookahead is in progress
}

// New creates an empty Scanner.
func New() *Scanner {
	return &Scanner{}
}

// Feed appends text to the end of the buffer.
func (s *Scanner) Feed(text string) {
	s.buf = append(s.buf, []rune(text)...)
}

// Rest returns the number of unconsumed runes at the cursor.
func (s *Scanner) Rest() int {
	return len(s.buf) - s.point
}

// Empty reports whether no unconsumed input remains.
func (s *Scanner) Empty() bool {
	return s.Rest() == 0
}

// At returns the rune at offset i past the cursor. The caller is
// responsible for bounds checking against Rest.
func (s *Scanner) At(i int) rune {
	return s.buf[s.point+i]
}

// Find returns the offset of the first occurrence of ch at or past the
// cursor, or -1 if ch is not buffered.
func (s *Scanner) Find(ch rune) int {
	for i := s.point; i < len(s.buf); i++ {
		if s.buf[i] == ch {
			return i - s.point
		}
	}
	return -1
}

// Slice returns the runes in [i, j) past the cursor without consuming
// them.
func (s *Scanner) Slice(i, j int) string {
	return string(s.buf[s.point+i : s.point+j])
}

// Chop consumes count runes and returns them, then discards a further slop
// runes. It fails with a TransientError when fewer than count+slop runes
// are buffered.
func (s *Scanner) Chop(count, slop int) (string, error) {
	if s.Rest() < count+slop {
		return "", transient("truncated chop")
	}
	text := string(s.buf[s.point : s.point+count])
	s.point += count + slop
	return text, nil
}

// ChopAll consumes and returns everything past the cursor.
func (s *Scanner) ChopAll() string {
	text := string(s.buf[s.point:])
	s.point = len(s.buf)
	return text
}

// Retreat rewinds the cursor to the last accept point, putting every rune
// consumed since then back into play.
func (s *Scanner) Retreat() {
	s.point = 0
}

// Acquire takes the compaction lock. While held, Accept leaves consumed
// runes in place so an enclosing construct can still Retreat over them.
// Locks nest.
func (s *Scanner) Acquire() {
	s.lock++
}

// Release drops one level of the compaction lock.
func (s *Scanner) Release() {
	if s.lock > 0 {
		s.lock--
	}
}

// Accept commits everything behind the cursor, discarding it from the
// buffer, and returns the number of newlines discarded. Under the
// compaction lock it commits nothing and returns 0.
func (s *Scanner) Accept() int {
	if s.lock > 0 {
		return 0
	}
	lines := 0
	for i := 0; i < s.point; i++ {
		if s.buf[i] == '\n' {
			lines++
		}
	}
	s.buf = append(s.buf[:0], s.buf[s.point:]...)
	s.point = 0
	return lines
}

// String renders the buffer with the cursor position, for diagnostics.
func (s *Scanner) String() string {
	return fmt.Sprintf("%q.%q", string(s.buf[:s.point]), string(s.buf[s.point:]))
}

// quoteState tracks string-literal context while walking the buffer.
// Inside a quote, a backslash escapes the following rune.
type quoteState struct {
	quote     string
	backslash bool
}

// FindQuote reports the quote token beginning at offset i: a single or
// triple quote, or the empty string when i does not start one. A triple
// quote is atomic. With end < 0 the buffer end is an open boundary, and an
// ambiguous pair of quotes there is a TransientError; with end >= 0 the
// span is final and the pair resolves to open-plus-close.
func (s *Scanner) FindQuote(i, end int) (string, error) {
	limit := s.Rest()
	if end >= 0 && end < limit {
		limit = end
	}
	if i >= limit {
		return "", nil
	}
	q := s.At(i)
	if q != '\'' && q != '"' {
		return "", nil
	}
	if i+2 < limit && s.At(i+1) == q && s.At(i+2) == q {
		return strings.Repeat(string(q), 3), nil
	}
	if end < 0 && i+1 < limit && s.At(i+1) == q && i+2 >= limit {
		// Two quotes at the edge of the buffer could yet become a
		// triple quote.
		return "", transient("quote")
	}
	return string(q), nil
}

// step advances the quote machinery over the rune at offset i, returning
// the number of runes the construct there occupies and whether it is part
// of a string literal (quote characters included).
func (s *Scanner) step(i, end int, st *quoteState) (width int, quoted bool, err error) {
	c := s.At(i)
	if st.backslash {
		st.backslash = false
		return 1, true, nil
	}
	if st.quote != "" {
		if c == '\\' {
			st.backslash = true
			return 1, true, nil
		}
		if c == rune(st.quote[0]) {
			if len(st.quote) == 1 {
				st.quote = ""
				return 1, true, nil
			}
			limit := s.Rest()
			if end >= 0 && end < limit {
				limit = end
			}
			for k := 1; k < 3; k++ {
				if i+k >= limit {
					if end < 0 {
						// The close run may complete in the
						// next chunk.
						return 0, false, transient("string")
					}
					return 1, true, nil
				}
				if s.At(i+k) != c {
					return 1, true, nil
				}
			}
			st.quote = ""
			return 3, true, nil
		}
		return 1, true, nil
	}
	if c == '\'' || c == '"' {
		q, err := s.FindQuote(i, end)
		if err != nil {
			return 0, false, err
		}
		st.quote = q
		return len(q), true, nil
	}
	return 1, false, nil
}

// ScanUntil finds the first unquoted occurrence of any rune in targets,
// starting at offset start. With end < 0 the scan runs to the end of the
// buffer and a miss is a TransientError; with end >= 0 the scan stops
// there and a miss is a ParseError when mandatory, otherwise a
// TransientError. The returned offset is relative to the cursor.
func (s *Scanner) ScanUntil(targets string, start, end int, mandatory bool) (int, error) {
	limit := s.Rest()
	if end >= 0 && end < limit {
		limit = end
	}
	var st quoteState
	i := start
	for i < limit {
		width, quoted, err := s.step(i, end, &st)
		if err != nil {
			return 0, err
		}
		if !quoted && strings.ContainsRune(targets, s.At(i)) {
			return i, nil
		}
		i += width
	}
	if end >= 0 && mandatory {
		return 0, Parsef("expecting %q", targets)
	}
	return 0, transient(fmt.Sprintf("expecting %q", targets))
}

// ScanBalanced finds the exit rune matching an already-consumed enter
// rune, honoring nesting and string literals. An unquoted enter or exit
// immediately following the escape rune is not counted; pass 0 for no
// escape. The returned offset is that of the matching exit, relative to
// the cursor.
func (s *Scanner) ScanBalanced(enter, exit rune, start, end int, escape rune) (int, error) {
	limit := s.Rest()
	if end >= 0 && end < limit {
		limit = end
	}
	var st quoteState
	depth := 0
	skip := false
	i := start
	for i < limit {
		width, quoted, err := s.step(i, end, &st)
		if err != nil {
			return 0, err
		}
		if !quoted {
			c := s.At(i)
			switch {
			case skip:
				skip = false
			case escape != 0 && c == escape:
				skip = true
			case c == enter:
				depth++
			case c == exit:
				if depth == 0 {
					return i, nil
				}
				depth--
			}
		} else if skip {
			skip = false
		}
		i += width
	}
	if end >= 0 {
		return 0, Parsef("unbalanced %q", string(exit))
	}
	return 0, transient(fmt.Sprintf("expecting %q", string(exit)))
}

// ScanStringEnd finds the close of a string literal whose opening quote
// token has already been passed, honoring backslash escapes. It returns
// the offset one past the closing quote run, or a TransientError when the
// buffer ends first.
func (s *Scanner) ScanStringEnd(start int, quote string) (int, error) {
	st := quoteState{quote: quote}
	i := start
	for i < s.Rest() {
		width, _, err := s.step(i, -1, &st)
		if err != nil {
			return 0, err
		}
		i += width
		if st.quote == "" {
			return i, nil
		}
	}
	return 0, transient("string")
}

// IsWordStart reports whether r can begin an identifier.
func IsWordStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

// IsWordChar reports whether r can continue an identifier.
func IsWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// ScanWord consumes identifier runes beginning at offset start and
// returns the offset one past the last of them. Reaching the end of the
// buffer is a TransientError: a longer identifier may yet arrive.
func (s *Scanner) ScanWord(start int) (int, error) {
	i := start
	for {
		if i >= s.Rest() {
			return 0, transient("word")
		}
		c := s.At(i)
		if i == start {
			if !IsWordStart(c) {
				return 0, Parsef("expecting identifier, found %q", string(c))
			}
		} else if !IsWordChar(c) {
			return i, nil
		}
		i++
	}
}

// ScanPhrase scans a word followed by any run of call and index suffixes,
// as in name(args)[key](more). String literals inside the suffixes are
// honored. Returns the offset one past the phrase.
func (s *Scanner) ScanPhrase(start int) (int, error) {
	i, err := s.ScanWord(start)
	if err != nil {
		return 0, err
	}
	for {
		if i >= s.Rest() {
			return 0, transient("phrase")
		}
		var exit rune
		switch s.At(i) {
		case '(':
			exit = ')'
		case '[':
			exit = ']'
		default:
			return i, nil
		}
		z, err := s.ScanBalanced(s.At(i), exit, i+1, -1, 0)
		if err != nil {
			return 0, err
		}
		i = z + 1
	}
}

// ScanSimpleExpression scans a phrase followed by any chain of dotted
// phrases, as in name.attr(args)[key].other. A trailing dot with no
// identifier after it is left unconsumed. Returns the offset one past the
// expression.
func (s *Scanner) ScanSimpleExpression(start int) (int, error) {
	i, err := s.ScanPhrase(start)
	if err != nil {
		return 0, err
	}
	for {
		if i >= s.Rest() {
			return 0, transient("expression")
		}
		if s.At(i) != '.' {
			return i, nil
		}
		if i+1 >= s.Rest() {
			return 0, transient("expression")
		}
		if !IsWordStart(s.At(i + 1)) {
			return i, nil
		}
		next, err := s.ScanPhrase(i + 1)
		if err != nil {
			return 0, err
		}
		i = next
	}
}
