package token

import (
	"testing"

	"nickandperla.net/emt/internal/scanner"
)

func scan(t *testing.T, input string) Token {
	t.Helper()
	s := scanner.New()
	s.Feed(input)
	tok, err := Next(s, '@')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func scanErr(t *testing.T, input string) error {
	t.Helper()
	s := scanner.New()
	s.Feed(input)
	_, err := Next(s, '@')
	if err == nil {
		t.Fatalf("expected error scanning %q", input)
	}
	return err
}

func TestLiteralText(t *testing.T) {
	tok := scan(t, "plain text @x")
	text, ok := tok.(*Text)
	if !ok {
		t.Fatalf("got %T, want *Text", tok)
	}
	if text.Text != "plain text " {
		t.Fatalf("Text = %q, want %q", text.Text, "plain text ")
	}
}

func TestPrefixDoubling(t *testing.T) {
	tok := scan(t, "@@rest")
	lit, ok := tok.(*Literal)
	if !ok {
		t.Fatalf("got %T, want *Literal", tok)
	}
	if lit.Char != '@' {
		t.Fatalf("Char = %q, want '@'", lit.Char)
	}
}

func TestLiteralClosers(t *testing.T) {
	for _, input := range []string{"@)", "@]", "@}"} {
		tok := scan(t, input)
		lit, ok := tok.(*Literal)
		if !ok {
			t.Fatalf("%q: got %T, want *Literal", input, tok)
		}
		if lit.Char != rune(input[1]) {
			t.Fatalf("%q: Char = %q", input, lit.Char)
		}
	}
}

func TestWhitespaceContinuation(t *testing.T) {
	s := scanner.New()
	s.Feed("@\nrest")
	tok, err := Next(s, '@')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tok.(*Whitespace); !ok {
		t.Fatalf("got %T, want *Whitespace", tok)
	}
	if got := s.ChopAll(); got != "rest" {
		t.Fatalf("remaining = %q, want %q", got, "rest")
	}
}

func TestComment(t *testing.T) {
	s := scanner.New()
	s.Feed("@# anything at all\nnext")
	tok, err := Next(s, '@')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tok.(*Comment); !ok {
		t.Fatalf("got %T, want *Comment", tok)
	}
	if got := s.ChopAll(); got != "next" {
		t.Fatalf("remaining = %q, want %q", got, "next")
	}
}

func TestCommentWithoutNewlineIsTransient(t *testing.T) {
	err := scanErr(t, "@# unfinished")
	if !scanner.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestContextDirectives(t *testing.T) {
	tok := scan(t, "@?fresh name\n")
	name, ok := tok.(*ContextName)
	if !ok {
		t.Fatalf("got %T, want *ContextName", tok)
	}
	if name.Name != "fresh name" {
		t.Fatalf("Name = %q", name.Name)
	}

	tok = scan(t, "@!42\n")
	line, ok := tok.(*ContextLine)
	if !ok {
		t.Fatalf("got %T, want *ContextLine", tok)
	}
	if line.Line != 42 {
		t.Fatalf("Line = %d, want 42", line.Line)
	}

	if err := scanErr(t, "@!not a number\n"); scanner.IsTransient(err) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestSignificator(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		expr  string
	}{
		{"with value", "@%version 3\n", "version", "3"},
		{"bare key", "@%draft\n", "draft", ""},
		{"spaced value", "@%title  \"A Title\"\n", "title", `"A Title"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := scan(t, tt.input)
			sig, ok := tok.(*Significator)
			if !ok {
				t.Fatalf("got %T, want *Significator", tok)
			}
			if sig.Key != tt.key || sig.Expr != tt.expr {
				t.Fatalf("got %q/%q, want %q/%q", sig.Key, sig.Expr, tt.key, tt.expr)
			}
		})
	}
	if err := scanErr(t, "@%9bad value\n"); scanner.IsTransient(err) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestExpression(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		test   string
		then   string
		els    string
		except string
	}{
		{"plain", "@(x)", "x", "", "", ""},
		{"conditional", "@(x ? y)", "x ", " y", "", ""},
		{"full", "@(x?y!z)", "x", "y", "z", ""},
		{"deprecated colon", "@(x?y:z)", "x", "y", "z", ""},
		{"except", "@(x$fallback)", "x", "", "", "fallback"},
		{"quoted delimiters", `@("a?b" ? "yes" ! "no")`, `"a?b" `, ` "yes" `, ` "no"`, ""},
		{"colon in then when bang present", `@(x ? {"a": 1} ! y)`, "x ", ` {"a": 1} `, " y", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := scan(t, tt.input)
			e, ok := tok.(*Expression)
			if !ok {
				t.Fatalf("got %T, want *Expression", tok)
			}
			if e.Test != tt.test {
				t.Fatalf("Test = %q, want %q", e.Test, tt.test)
			}
			if e.Then != tt.then {
				t.Fatalf("Then = %q, want %q", e.Then, tt.then)
			}
			if e.Else != tt.els {
				t.Fatalf("Else = %q, want %q", e.Else, tt.els)
			}
			if e.Except != tt.except {
				t.Fatalf("Except = %q, want %q", e.Except, tt.except)
			}
		})
	}
}

func TestExpressionUnterminatedIsTransient(t *testing.T) {
	err := scanErr(t, "@(f(x)")
	if !scanner.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestRepr(t *testing.T) {
	tok := scan(t, "@`x + 1`")
	r, ok := tok.(*Repr)
	if !ok {
		t.Fatalf("got %T, want *Repr", tok)
	}
	if r.Code != "x + 1" {
		t.Fatalf("Code = %q", r.Code)
	}
}

func TestInPlace(t *testing.T) {
	s := scanner.New()
	s.Feed("@:width:100:tail")
	tok, err := Next(s, '@')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, ok := tok.(*InPlace)
	if !ok {
		t.Fatalf("got %T, want *InPlace", tok)
	}
	if p.Code != "width" {
		t.Fatalf("Code = %q", p.Code)
	}
	if got := s.ChopAll(); got != "tail" {
		t.Fatalf("remaining = %q, want %q", got, "tail")
	}
}

func TestStringLit(t *testing.T) {
	tok := scan(t, `@"hi\n"`)
	lit, ok := tok.(*StringLit)
	if !ok {
		t.Fatalf("got %T, want *StringLit", tok)
	}
	if lit.Raw != `"hi\n"` {
		t.Fatalf("Raw = %q", lit.Raw)
	}

	tok = scan(t, `@'''a "b" c''' `)
	lit, ok = tok.(*StringLit)
	if !ok {
		t.Fatalf("got %T, want *StringLit", tok)
	}
	if lit.Raw != `'''a "b" c'''` {
		t.Fatalf("Raw = %q", lit.Raw)
	}
}

func TestStatement(t *testing.T) {
	tok := scan(t, "@{ x = 1 }")
	st, ok := tok.(*Statement)
	if !ok {
		t.Fatalf("got %T, want *Statement", tok)
	}
	if st.Code != "x = 1" {
		t.Fatalf("Code = %q", st.Code)
	}
}

func TestStatementReflow(t *testing.T) {
	tok := scan(t, "@{\n    x = 1\n    y = 2\n}")
	st, ok := tok.(*Statement)
	if !ok {
		t.Fatalf("got %T, want *Statement", tok)
	}
	if st.Code != "\nx = 1\ny = 2\n" {
		t.Fatalf("Code = %q", st.Code)
	}
}

func TestSimpleExpression(t *testing.T) {
	s := scanner.New()
	s.Feed("@user.name(1)[0] tail\n")
	tok, err := Next(s, '@')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	simple, ok := tok.(*Simple)
	if !ok {
		t.Fatalf("got %T, want *Simple", tok)
	}
	if simple.Code != "user.name(1)[0]" {
		t.Fatalf("Code = %q", simple.Code)
	}
	if got := s.ChopAll(); got != " tail\n" {
		t.Fatalf("remaining = %q", got)
	}
}

func TestEscapes(t *testing.T) {
	tests := []struct {
		input string
		want  rune
	}{
		{`@\0`, 0x00},
		{`@\a`, 0x07},
		{`@\b`, 0x08},
		{`@\e`, 0x1b},
		{`@\f`, 0x0c},
		{`@\h`, 0x7f},
		{`@\n`, 0x0a},
		{`@\r`, 0x0d},
		{`@\s`, 0x20},
		{`@\t`, 0x09},
		{`@\v`, 0x0b},
		{`@\z`, 0x04},
		{`@\d065`, 'A'},
		{`@\o101`, 'A'},
		{`@\q1001`, 'A'},
		{`@\x41`, 'A'},
		{`@\xFF`, 0xff},
		{`@\^I`, 0x09},
		{`@\^@`, 0x00},
		{`@\^?`, 0x7f},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := scan(t, tt.input)
			esc, ok := tok.(*Escape)
			if !ok {
				t.Fatalf("got %T, want *Escape", tok)
			}
			if esc.Value != tt.want {
				t.Fatalf("Value = %#x, want %#x", esc.Value, tt.want)
			}
		})
	}
}

func TestEscapeErrors(t *testing.T) {
	for _, input := range []string{`@\d999`, `@\o777`, `@\dxyz`, `@\^a`, `@\u`} {
		t.Run(input, func(t *testing.T) {
			err := scanErr(t, input)
			if scanner.IsTransient(err) {
				t.Fatalf("expected parse error, got %v", err)
			}
		})
	}
}

func TestEscapeTruncatedIsTransient(t *testing.T) {
	for _, input := range []string{`@\`, `@\d0`, `@\x4`} {
		t.Run(input, func(t *testing.T) {
			err := scanErr(t, input)
			if !scanner.IsTransient(err) {
				t.Fatalf("expected transient error, got %v", err)
			}
		})
	}
}

func TestControlLeaf(t *testing.T) {
	tok := scan(t, "@[break]")
	c, ok := tok.(*Control)
	if !ok {
		t.Fatalf("got %T, want *Control", tok)
	}
	if c.Kind != KindBreak || c.Args != "" || c.Children != nil {
		t.Fatalf("got %+v", c)
	}
}

func TestControlBlock(t *testing.T) {
	tok := scan(t, "@[if x]yes@[else]no@[end if]")
	c, ok := tok.(*Control)
	if !ok {
		t.Fatalf("got %T, want *Control", tok)
	}
	if c.Kind != KindIf || c.Args != "x" {
		t.Fatalf("got kind %q args %q", c.Kind, c.Args)
	}
	if len(c.Children) != 3 {
		t.Fatalf("got %d children, want 3", len(c.Children))
	}
	if _, ok := c.Children[0].(*Text); !ok {
		t.Fatalf("child 0 is %T", c.Children[0])
	}
	mid, ok := c.Children[1].(*Control)
	if !ok || mid.Kind != KindElse {
		t.Fatalf("child 1 is %T %+v", c.Children[1], c.Children[1])
	}
}

func TestControlNesting(t *testing.T) {
	tok := scan(t, "@[for x in xs]@[if x]y@[end if]@[end for]")
	c, ok := tok.(*Control)
	if !ok {
		t.Fatalf("got %T, want *Control", tok)
	}
	if len(c.Children) != 1 {
		t.Fatalf("got %d children, want 1", len(c.Children))
	}
	inner, ok := c.Children[0].(*Control)
	if !ok || inner.Kind != KindIf {
		t.Fatalf("inner is %T", c.Children[0])
	}
	if len(inner.Children) != 1 {
		t.Fatalf("inner has %d children, want 1", len(inner.Children))
	}
}

func TestControlErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown kind", "@[unless x]y@[end unless]"},
		{"mismatched end", "@[if x]y@[end for]"},
		{"bare end", "@[if x]y@[end]"},
		{"if without condition", "@[if]y@[end if]"},
		{"try with argument", "@[try x]y@[end try]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := scanErr(t, tt.input)
			if scanner.IsTransient(err) {
				t.Fatalf("expected parse error, got %v", err)
			}
		})
	}
}

func TestControlUnterminatedIsTransient(t *testing.T) {
	err := scanErr(t, "@[if x]body with no end")
	if !scanner.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestUnknownMarkup(t *testing.T) {
	err := scanErr(t, "@&")
	if scanner.IsTransient(err) {
		t.Fatalf("expected parse error, got %v", err)
	}
}
