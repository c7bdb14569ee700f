package scanner

import (
	"testing"
)

func TestFeedChopAccept(t *testing.T) {
	s := New()
	s.Feed("hello\nworld")
	if got := s.Rest(); got != 11 {
		t.Fatalf("Rest() = %d, want 11", got)
	}
	text, err := s.Chop(5, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello" {
		t.Fatalf("Chop() = %q, want %q", text, "hello")
	}
	if lines := s.Accept(); lines != 1 {
		t.Fatalf("Accept() = %d newlines, want 1", lines)
	}
	if got := s.ChopAll(); got != "world" {
		t.Fatalf("ChopAll() = %q, want %q", got, "world")
	}
	if !s.Empty() {
		t.Fatal("expected empty scanner")
	}
}

func TestChopShortBufferIsTransient(t *testing.T) {
	s := New()
	s.Feed("ab")
	if _, err := s.Chop(3, 0); !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestRetreatRestoresConsumedInput(t *testing.T) {
	s := New()
	s.Feed("abcdef")
	if _, err := s.Chop(4, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Retreat()
	if got := s.ChopAll(); got != "abcdef" {
		t.Fatalf("after Retreat, ChopAll() = %q, want %q", got, "abcdef")
	}
}

func TestAcceptUnderLockIsNoop(t *testing.T) {
	s := New()
	s.Feed("one\ntwo\n")
	if _, err := s.Chop(4, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Acquire()
	if lines := s.Accept(); lines != 0 {
		t.Fatalf("Accept() under lock = %d, want 0", lines)
	}
	s.Release()
	s.Retreat()
	if got := s.Rest(); got != 8 {
		t.Fatalf("Rest() after locked accept = %d, want 8", got)
	}
	if _, err := s.Chop(4, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines := s.Accept(); lines != 1 {
		t.Fatalf("Accept() after release = %d, want 1", lines)
	}
}

func TestFindQuote(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single", `"abc"`, `"`},
		{"single apostrophe", `'abc'`, `'`},
		{"triple", `"""abc"""`, `"""`},
		{"triple apostrophe", `'''abc'''`, `'''`},
		{"not a quote", `abc`, ""},
		{"pair then more", `""x`, `"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.Feed(tt.input)
			got, err := s.FindQuote(0, -1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("FindQuote() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindQuotePairAtBoundaryIsTransient(t *testing.T) {
	s := New()
	s.Feed(`""`)
	if _, err := s.FindQuote(0, -1); !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	// A hard bound settles the ambiguity: open plus close.
	got, err := s.FindQuote(0, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `"` {
		t.Fatalf("FindQuote() = %q, want %q", got, `"`)
	}
}

func TestScanUntil(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		targets string
		want    int
	}{
		{"plain", `abc?def`, "?", 3},
		{"skips quoted", `"a?b" ? x`, "?", 6},
		{"skips apostrophes", `'?'?`, "?", 3},
		{"skips triple quoted", `"""a?b"""?`, "?", 9},
		{"backslash in quotes", `"a\"?" ? x`, "?", 7},
		{"first of several", `a!b:c`, "!:", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.Feed(tt.input)
			got, err := s.ScanUntil(tt.targets, 0, -1, false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ScanUntil() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScanUntilMisses(t *testing.T) {
	s := New()
	s.Feed("abc")
	if _, err := s.ScanUntil("?", 0, -1, false); !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if _, err := s.ScanUntil("?", 0, 3, true); err == nil || IsTransient(err) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestScanBalanced(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		escape rune
		want   int
	}{
		{"flat", `abc)`, 0, 3},
		{"nested", `f(g(x)))`, 0, 7},
		{"quoted exit", `"a)b")`, 0, 5},
		{"escaped delimiters", `\(x)`, '\\', 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.Feed(tt.input)
			got, err := s.ScanBalanced('(', ')', 0, -1, tt.escape)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ScanBalanced() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScanBalancedRunsOffBuffer(t *testing.T) {
	s := New()
	s.Feed("f(g(x)")
	if _, err := s.ScanBalanced('(', ')', 2, -1, 0); !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestScanWord(t *testing.T) {
	s := New()
	s.Feed("alpha_2 rest")
	got, err := s.ScanWord(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Fatalf("ScanWord() = %d, want 7", got)
	}
}

func TestScanWordAtBufferEndIsTransient(t *testing.T) {
	s := New()
	s.Feed("alpha")
	if _, err := s.ScanWord(0); !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestScanPhrase(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"bare word", "name ", 4},
		{"call", "f(a, b) ", 7},
		{"index", "xs[0] ", 5},
		{"chained", "f(a)(b)[c] ", 10},
		{"quoted args", `f("a b(") `, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.Feed(tt.input)
			got, err := s.ScanPhrase(0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ScanPhrase() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScanSimpleExpression(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"dotted", "a.b.c ", 5},
		{"calls and indexes", "obj.meth(x)[0].attr ", 19},
		{"trailing dot excluded", "name. rest", 4},
		{"trailing dot at punctuation", "name.. ", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.Feed(tt.input)
			got, err := s.ScanSimpleExpression(0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ScanSimpleExpression() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScanSimpleExpressionResumes(t *testing.T) {
	s := New()
	s.Feed("obj.meth(")
	if _, err := s.ScanSimpleExpression(0); !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	s.Feed("x) ")
	got, err := s.ScanSimpleExpression(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 11 {
		t.Fatalf("ScanSimpleExpression() = %d, want 11", got)
	}
}
