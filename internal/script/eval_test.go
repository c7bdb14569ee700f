package script

import (
	"errors"
	"strings"
	"testing"
)

func testEnv() *Env {
	return NewEnv(NewNamespace(), &strings.Builder{})
}

func evalString(t *testing.T, env *Env, code string) Value {
	t.Helper()
	v, err := NewHost().Evaluate(code, env)
	if err != nil {
		t.Fatalf("unexpected error evaluating %q: %v", code, err)
	}
	return v
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"1", "1"},
		{"-3", "-3"},
		{"2.5", "2.5"},
		{"1e3", "1000.0"},
		{`"hi"`, "hi"},
		{`'a\nb'`, "a\nb"},
		{`"""multi
line"""`, "multi\nline"},
		{"None", "None"},
		{"True", "True"},
		{"False", "False"},
		{"[1, 2, 3]", "[1, 2, 3]"},
		{`{"a": 1}`, "{'a': 1}"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			v := evalString(t, testEnv(), tt.code)
			if v.String() != tt.want {
				t.Fatalf("got %q, want %q", v.String(), tt.want)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"1 + 2 * 3", "7"},
		{"(1 + 2) * 3", "9"},
		{"7 / 2", "3.5"},
		{"7 // 2", "3"},
		{"-7 // 2", "-4"},
		{"7 % 3", "1"},
		{"-7 % 3", "2"},
		{"2.0 + 1", "3.0"},
		{`"a" + "b"`, "ab"},
		{`"ab" * 3`, "ababab"},
		{"[1] + [2]", "[1, 2]"},
		{"[0] * 2", "[0, 0]"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			v := evalString(t, testEnv(), tt.code)
			if v.String() != tt.want {
				t.Fatalf("got %q, want %q", v.String(), tt.want)
			}
		})
	}
}

func TestComparisonsAndLogic(t *testing.T) {
	tests := []struct {
		code string
		want Value
	}{
		{"1 < 2", True},
		{"2 <= 1", False},
		{"1 < 2 < 3", True},
		{"1 < 3 < 2", False},
		{`"a" < "b"`, True},
		{"1 == 1.0", True},
		{`"x" != "y"`, True},
		{`"b" in "abc"`, True},
		{"2 in [1, 2]", True},
		{"3 not in [1, 2]", True},
		{`"a" in {"a": 1}`, True},
		{"not 0", True},
		{"1 and 2", Int(2)},
		{"0 or 5", Int(5)},
		{`"" or "x"`, Str("x")},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			v := evalString(t, testEnv(), tt.code)
			if !v.Equals(tt.want) {
				t.Fatalf("got %s, want %s", v.Repr(), tt.want.Repr())
			}
		})
	}
}

func TestShortCircuit(t *testing.T) {
	env := testEnv()
	// The right side would raise NameError if evaluated.
	v := evalString(t, env, "0 and missing")
	if !v.Equals(Int(0)) {
		t.Fatalf("got %s", v.Repr())
	}
	v = evalString(t, env, "1 or missing")
	if !v.Equals(Int(1)) {
		t.Fatalf("got %s", v.Repr())
	}
}

func TestIndexingAndSlicing(t *testing.T) {
	env := testEnv()
	env.Globals.Set("xs", NewList(Int(10), Int(20), Int(30)))
	env.Globals.Set("s", Str("hello"))
	env.Globals.Set("d", NewDict())
	d := env.Globals.Get("d").(*Dict)
	d.Set(Str("k"), Int(9))

	tests := []struct {
		code string
		want string
	}{
		{"xs[0]", "10"},
		{"xs[-1]", "30"},
		{"s[1]", "e"},
		{"s[-1]", "o"},
		{`d["k"]`, "9"},
		{"xs[1:]", "[20, 30]"},
		{"xs[:2]", "[10, 20]"},
		{"xs[1:2]", "[20]"},
		{"s[1:4]", "ell"},
		{"xs[5:]", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			v := evalString(t, env, tt.code)
			if v.String() != tt.want {
				t.Fatalf("got %q, want %q", v.String(), tt.want)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		code  string
		class *Class
	}{
		{"missing", NameError},
		{"1 / 0", ZeroDivisionError},
		{"7 // 0", ZeroDivisionError},
		{`"a" + 1`, TypeError},
		{"[1][5]", IndexError},
		{`{"a": 1}["b"]`, KeyError},
		{`int("nope")`, ValueError},
		{"None.attr", AttributeError},
		{"1(2)", TypeError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := NewHost().Evaluate(tt.code, testEnv())
			var se *Error
			if !errors.As(err, &se) {
				t.Fatalf("expected script error, got %v", err)
			}
			if !se.Class.Is(tt.class) {
				t.Fatalf("got class %s, want %s", se.Class.Name, tt.class.Name)
			}
			if !se.Class.Is(ErrorClass) {
				t.Fatal("every builtin error class descends from Error")
			}
		})
	}
}

func TestSyntaxErrors(t *testing.T) {
	for _, code := range []string{"1 +", "(1", `"unterminated`, "1 @ 2", "= 3"} {
		t.Run(code, func(t *testing.T) {
			_, err := NewHost().Evaluate(code, testEnv())
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected syntax error, got %v", err)
			}
		})
	}
}

func TestStatements(t *testing.T) {
	env := testEnv()
	h := NewHost()
	err := h.Execute("x = 2; y = x * 3\nz = y + 1", env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := env.Globals.Get("z"); !v.Equals(Int(7)) {
		t.Fatalf("z = %s, want 7", v.Repr())
	}

	err = h.Execute("x += 5", env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := env.Globals.Get("x"); !v.Equals(Int(7)) {
		t.Fatalf("x = %s, want 7", v.Repr())
	}
}

func TestIndexAssignment(t *testing.T) {
	env := testEnv()
	env.Globals.Set("xs", NewList(Int(1), Int(2)))
	env.Globals.Set("d", NewDict())
	h := NewHost()
	if err := h.Execute(`xs[1] = 9; d["k"] = "v"`, env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := evalString(t, env, "xs[1]"); !v.Equals(Int(9)) {
		t.Fatalf("xs[1] = %s", v.Repr())
	}
	if v := evalString(t, env, `d["k"]`); !v.Equals(Str("v")) {
		t.Fatalf("d[k] = %s", v.Repr())
	}
}

func TestLocalsShadowGlobals(t *testing.T) {
	env := testEnv()
	env.Globals.Set("x", Int(1))
	local := env.With(map[string]Value{"x": Int(2)})
	if v := evalString(t, local, "x"); !v.Equals(Int(2)) {
		t.Fatalf("local x = %s", v.Repr())
	}
	if err := NewHost().Execute("x = 5", local); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := env.Globals.Get("x"); !v.Equals(Int(1)) {
		t.Fatalf("global x = %s after local assignment", v.Repr())
	}
}

func TestGlobalsShadowBuiltins(t *testing.T) {
	env := testEnv()
	env.Globals.Set("len", Int(3))
	if v := evalString(t, env, "len"); !v.Equals(Int(3)) {
		t.Fatalf("got %s", v.Repr())
	}
}

func TestBuiltins(t *testing.T) {
	env := testEnv()
	tests := []struct {
		code string
		want string
	}{
		{`len("abc")`, "3"},
		{"len([1, 2])", "2"},
		{"str(12)", "12"},
		{"repr('a')", "'a'"},
		{`int("42")`, "42"},
		{"int(3.9)", "3"},
		{`float("1.5")`, "1.5"},
		{"bool([])", "False"},
		{"type(1)", "int"},
		{"range(3)", "[0, 1, 2]"},
		{"range(1, 4)", "[1, 2, 3]"},
		{"range(6, 0, -2)", "[6, 4, 2]"},
		{"abs(-4)", "4"},
		{"min([3, 1, 2])", "1"},
		{"max(3, 1, 2)", "3"},
		{"sum([1, 2, 3])", "6"},
		{`sorted(["b", "a"])`, "['a', 'b']"},
		{"list()", "[]"},
		{`list("abc")`, "['a', 'b', 'c']"},
		{`enumerate(["x", "y"])`, "[[0, 'x'], [1, 'y']]"},
		{"chr(65)", "A"},
		{`ord("A")`, "65"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			v := evalString(t, env, tt.code)
			if v.String() != tt.want {
				t.Fatalf("got %q, want %q", v.String(), tt.want)
			}
		})
	}
}

func TestPrintWritesToEnvOutput(t *testing.T) {
	var out strings.Builder
	env := NewEnv(NewNamespace(), &out)
	if _, err := NewHost().Evaluate(`print("a", 1)`, env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "a 1\n" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestMethods(t *testing.T) {
	env := testEnv()
	tests := []struct {
		code string
		want string
	}{
		{`"aBc".upper()`, "ABC"},
		{`"  x  ".strip()`, "x"},
		{`"a,b".split(",")`, "['a', 'b']"},
		{`"a b  c".split()`, "['a', 'b', 'c']"},
		{`"-".join(["a", "b"])`, "a-b"},
		{`"aaa".replace("a", "b")`, "bbb"},
		{`"abc".startswith("ab")`, "True"},
		{`"abc".find("c")`, "2"},
		{`{"a": 1, "b": 2}.keys()`, "['a', 'b']"},
		{`{"a": 1}.get("b", 0)`, "0"},
		{`{"a": 1}.items()`, "[['a', 1]]"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			v := evalString(t, env, tt.code)
			if v.String() != tt.want {
				t.Fatalf("got %q, want %q", v.String(), tt.want)
			}
		})
	}
}

func TestListMutation(t *testing.T) {
	env := testEnv()
	env.Globals.Set("xs", NewList(Int(2), Int(1)))
	h := NewHost()
	if err := h.Execute("xs.append(3); xs.sort()", env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := evalString(t, env, "xs"); v.String() != "[1, 2, 3]" {
		t.Fatalf("xs = %s", v.String())
	}
	v := evalString(t, env, "xs.pop()")
	if !v.Equals(Int(3)) {
		t.Fatalf("pop() = %s", v.Repr())
	}
	if v := evalString(t, env, "len(xs)"); !v.Equals(Int(2)) {
		t.Fatalf("len = %s", v.Repr())
	}
}

func TestErrorClassConstruction(t *testing.T) {
	env := testEnv()
	v := evalString(t, env, `ValueError("bad input")`)
	e, ok := v.(*Error)
	if !ok {
		t.Fatalf("got %T, want *Error", v)
	}
	if e.Class != ValueError || e.Message != "bad input" {
		t.Fatalf("got %+v", e)
	}
	if !e.Class.Is(ErrorClass) {
		t.Fatal("ValueError must descend from Error")
	}
}

func TestModuleAttributes(t *testing.T) {
	env := testEnv()
	m := NewModule("box")
	m.SetAttr("width", Int(80))
	env.Globals.Set("box", m)
	if v := evalString(t, env, "box.width"); !v.Equals(Int(80)) {
		t.Fatalf("got %s", v.Repr())
	}
	_, err := NewHost().Evaluate("box.height", env)
	var se *Error
	if !errors.As(err, &se) || !se.Class.Is(AttributeError) {
		t.Fatalf("expected AttributeError, got %v", err)
	}
}

func TestDictPreservesInsertionOrder(t *testing.T) {
	env := testEnv()
	v := evalString(t, env, `{"z": 1, "a": 2, "m": 3}`)
	if v.String() != "{'z': 1, 'a': 2, 'm': 3}" {
		t.Fatalf("got %q", v.String())
	}
}

func TestEmptyCodeEvaluatesToNone(t *testing.T) {
	v := evalString(t, testEnv(), "   ")
	if v != None {
		t.Fatalf("got %s, want None", v.Repr())
	}
}

func TestIterate(t *testing.T) {
	items, err := Iterate(Str("ab"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || !items[0].Equals(Str("a")) {
		t.Fatalf("got %v", items)
	}
	if _, err := Iterate(Int(3)); err == nil {
		t.Fatal("expected error iterating int")
	}
}
