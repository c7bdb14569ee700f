package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nickandperla.net/emt/pkg/emt"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr strings.Builder
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestProcessStdin(t *testing.T) {
	code, out, errOut := runCLI(t, "Hello @(1 + 1)!\n")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "Hello 2!\n" {
		t.Errorf("got %q", out)
	}
}

func TestProcessFile(t *testing.T) {
	doc := writeDoc(t, "doc.em", "@{x = 'file'}from @x\n")
	code, out, errOut := runCLI(t, "", doc)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "from file\n" {
		t.Errorf("got %q", out)
	}
}

func TestVersionFlag(t *testing.T) {
	code, out, _ := runCLI(t, "", "-version")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if out != "emt "+emt.Version+"\n" {
		t.Errorf("got %q", out)
	}
}

func TestHelpMarkup(t *testing.T) {
	code, out, _ := runCLI(t, "", "-help-markup")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(out, "markup reference") || !strings.Contains(out, "@[for") {
		t.Errorf("unexpected reference text: %q", out[:min(len(out), 80)])
	}
}

func TestPrefixFlag(t *testing.T) {
	code, out, errOut := runCLI(t, "$(1 + 1) @x\n", "-p", "$")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "2 @x\n" {
		t.Errorf("got %q", out)
	}

	code, _, errOut = runCLI(t, "", "-p", "ab")
	if code != 1 || !strings.Contains(errOut, "single character") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
}

func TestPreprocessingOrder(t *testing.T) {
	code, out, errOut := runCLI(t, "@x\n", "-D", "x=10", "-E", "x = x * 2")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "20\n" {
		t.Errorf("got %q", out)
	}
}

func TestPreprocessingFileFlag(t *testing.T) {
	setup := writeDoc(t, "setup.emx", "greeting = 'hi'\ncount = 2")
	code, out, errOut := runCLI(t, "@greeting @count\n", "-F", setup)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "hi 2\n" {
		t.Errorf("got %q", out)
	}
}

func TestArgvBinding(t *testing.T) {
	code, out, errOut := runCLI(t, "@argv\n", "-", "alpha", "beta")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "['-', 'alpha', 'beta']\n" {
		t.Errorf("got %q", out)
	}
}

func TestOutputFileAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	code, _, errOut := runCLI(t, "one\n", "-o", path)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	code, _, errOut = runCLI(t, "two\n", "-a", path)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("got %q", data)
	}
}

func TestBufferedOutputRemovedOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	code, _, errOut := runCLI(t, "partial @undefined rest\n", "-o", path, "-b")
	if code != 1 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected output file to be removed, stat err = %v", err)
	}
}

func TestBufferedRequiresOutput(t *testing.T) {
	code, _, errOut := runCLI(t, "", "-b")
	if code != 1 || !strings.Contains(errOut, "-b requires") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
}

func TestErrorReporting(t *testing.T) {
	code, _, errOut := runCLI(t, "@missing\n")
	if code != 1 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(errOut, "<stdin>:1:") {
		t.Errorf("expected context decoration, got %q", errOut)
	}

	code, _, errOut = runCLI(t, "@missing\n", "-r")
	if code != 1 {
		t.Fatalf("exit %d", code)
	}
	if strings.Contains(errOut, "<stdin>:1:") {
		t.Errorf("expected raw error, got %q", errOut)
	}
}

func TestKeepGoingExitsClean(t *testing.T) {
	code, _, errOut := runCLI(t, "@missing\n", "-k")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(errOut, "missing") {
		t.Errorf("error not reported: %q", errOut)
	}
}

func TestCheckMode(t *testing.T) {
	code, out, _ := runCLI(t, "ok @(1 + 2) @[if x]y@[end if]\n", "-check")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if out != "" {
		t.Errorf("check mode produced output: %q", out)
	}

	code, _, errOut := runCLI(t, "@(1 +", "-check")
	if code != 1 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(errOut, "unexpected end of input") {
		t.Errorf("got %q", errOut)
	}
}

func TestSigScan(t *testing.T) {
	code, out, errOut := runCLI(t, "@%version 3\n@%author 'me'\nbody text\n", "-sigs")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "author: me\nversion: 3\n" {
		t.Errorf("got %q", out)
	}
}

func TestSigScanCache(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "doc.em")
	if err := os.WriteFile(doc, []byte("@%version 3\nbody\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db := filepath.Join(dir, "sigs.db")

	code, out1, errOut := runCLI(t, "", "-sigs", "-sigdb", db, doc)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if _, err := os.Stat(db); err != nil {
		t.Fatalf("cache not created: %v", err)
	}

	// Second run hits the cache and prints the same lines
	code, out2, errOut := runCLI(t, "", "-sigs", "-sigdb", db, doc)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out1 != out2 || out1 != "version: 3\n" {
		t.Errorf("out1 %q, out2 %q", out1, out2)
	}
}

func TestBinaryChunks(t *testing.T) {
	doc := writeDoc(t, "doc.bin", "X@(1 + 1)Y")
	code, out, errOut := runCLI(t, "", "-binary", "-chunk", "4", doc)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "X2Y" {
		t.Errorf("got %q", out)
	}
}

func TestInteractiveAfterDocument(t *testing.T) {
	doc := writeDoc(t, "doc.em", "doc:@(1 + 1)\n")
	code, out, errOut := runCLI(t, "@(2 + 3)\n", "-i", doc)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "doc:2\n5\n" {
		t.Errorf("got %q", out)
	}
}

func TestInteractiveKeepGoing(t *testing.T) {
	doc := writeDoc(t, "doc.em", "start\n")
	code, out, errOut := runCLI(t, "@bogus\n@(1 + 1)\n", "-i", "-k", doc)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "start\n2\n" {
		t.Errorf("got %q", out)
	}
	if !strings.Contains(errOut, "bogus") {
		t.Errorf("error not reported: %q", errOut)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	toml := filepath.Join(dir, "emt.toml")
	config := "[template]\nprefix = \"$\"\n\n[template.define]\nx = \"7\"\n"
	if err := os.WriteFile(toml, []byte(config), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	code, out, errOut := runCLI(t, "$x and @x\n", "-c", toml)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "7 and @x\n" {
		t.Errorf("got %q", out)
	}
}

func TestFlagConflicts(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"check and sigs", []string{"-check", "-sigs"}},
		{"interactive binary", []string{"-i", "-binary"}},
		{"zero chunk", []string{"-chunk", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, "", tt.args...); code != 1 {
				t.Errorf("exit %d", code)
			}
		})
	}
}

func TestFlattenFlag(t *testing.T) {
	code, out, errOut := runCLI(t, "@version\n", "-f")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != emt.Version+"\n" {
		t.Errorf("got %q", out)
	}
}
