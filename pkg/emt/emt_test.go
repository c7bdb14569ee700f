package emt

import (
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestEngineExpand(t *testing.T) {
	eng, err := New(WithGlobals(map[string]any{"name": "world"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer eng.Close()

	out, err := eng.Expand("Hello @name.upper()!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello WORLD!" {
		t.Errorf("got %q", out)
	}
}

func TestEngineProcessString(t *testing.T) {
	var buf strings.Builder
	eng, err := New(WithOutput(&buf), WithPrefix('$'))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer eng.Close()

	if err := eng.ProcessString("$(1 + 1) @unchanged", "test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.String(); got != "2 @unchanged" {
		t.Errorf("got %q", got)
	}
}

func TestEngineBufferedOutput(t *testing.T) {
	var buf strings.Builder
	eng, err := New(WithOutput(&buf), WithBufferedOutput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := eng.ProcessString("held until close", "test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("output escaped the buffer: %q", buf.String())
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := buf.String(); got != "held until close" {
		t.Errorf("got %q", got)
	}
}

func TestEngineEvaluate(t *testing.T) {
	eng, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer eng.Close()

	v, err := eng.Evaluate("2 + 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != int64(4) {
		t.Errorf("got %#v", v)
	}
}

func TestEngineSignificators(t *testing.T) {
	eng, err := New(WithOutput(io.Discard))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer eng.Close()

	err = eng.ProcessString("@%version 3\n@%author 'me'\ntext\n", "doc.em")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"version": int64(3), "author": "me"}
	if got := eng.Significators(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestEngineSetGlobal(t *testing.T) {
	eng, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer eng.Close()

	if err := eng.SetGlobal("items", []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := eng.Expand("@len(items)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "2" {
		t.Errorf("got %q", out)
	}
}

func TestEngineGlobalConversionError(t *testing.T) {
	if _, err := New(WithGlobal("x", struct{}{})); err == nil {
		t.Error("expected error for unconvertible global")
	}
}

func TestEnginePseudonymCollision(t *testing.T) {
	if _, err := New(WithGlobal("emt", 1)); err == nil {
		t.Error("expected error for pseudonym collision")
	}
	if _, err := New(WithGlobal("em", 1), WithPseudonym("em")); err == nil {
		t.Error("expected error for custom pseudonym collision")
	}
}

func TestEngineScanOnly(t *testing.T) {
	var buf strings.Builder
	eng, err := New(WithOutput(&buf), WithScanOnly())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer eng.Close()

	if err := eng.ProcessString("@undefined @(also.undefined)", "test"); err != nil {
		t.Fatalf("scan of valid markup should not evaluate: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("scan-only produced output: %q", buf.String())
	}
	if err := eng.ProcessString("@(1 +", "test"); err == nil {
		t.Error("expected syntax error from scan")
	}
}

func TestEngineDocument(t *testing.T) {
	var buf strings.Builder
	eng, err := New(WithOutput(&buf))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer eng.Close()

	doc := eng.OpenDocument("<stdin>")
	if err := doc.Feed("@{x = "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := doc.Feed("10}@x\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := doc.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if got := buf.String(); got != "10\n" {
		t.Errorf("got %q", got)
	}
}
