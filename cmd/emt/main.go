// Command emt is the emt template processor CLI.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/tliron/commonlog"

	"nickandperla.net/emt/internal/manifest"
	"nickandperla.net/emt/internal/sigdb"
	"nickandperla.net/emt/pkg/emt"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("emt")

// preprocessOp is one -D, -E or -F occurrence, kept in command-line
// order so definitions and executions interleave the way they were
// written.
type preprocessOp struct {
	kind rune
	arg  string
}

type opFlag struct {
	kind rune
	ops  *[]preprocessOp
}

func (f opFlag) String() string { return "" }

func (f opFlag) Set(value string) error {
	*f.ops = append(*f.ops, preprocessOp{kind: f.kind, arg: value})
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("emt", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		outputPath  = flags.String("o", "", "write processed output to `file`")
		appendPath  = flags.String("a", "", "append processed output to `file`")
		buffered    = flags.Bool("b", false, "buffer output, removing the -o/-a file on error")
		prefixFlag  = flags.String("p", "", "markup prefix `char` (default @)")
		flatten     = flags.Bool("f", false, "flatten the pseudomodule into the globals")
		interactive = flags.Bool("i", false, "read further template lines from stdin after the document")
		keepGoing   = flags.Bool("k", false, "errors are not fatal: report, reset and continue")
		rawErrors   = flags.Bool("r", false, "report raw errors without context decoration")
		checkOnly   = flags.Bool("check", false, "classify markup without executing anything")
		sigScan     = flags.Bool("sigs", false, "collect significators, discarding expanded output")
		sigdbFlag   = flags.String("sigdb", "", "SQLite significator cache `path` used by -sigs")
		binaryMode  = flags.Bool("binary", false, "process the input as binary chunks")
		chunkSize   = flags.Int("chunk", 8192, "binary chunk size in `bytes`")
		configFlag  = flags.String("c", "", "emt.toml config `file` (default: search upward from the working directory)")
		verbose     = flags.Bool("v", false, "verbose logging")
		version     = flags.Bool("version", false, "print version and exit")
		helpMarkup  = flags.Bool("help-markup", false, "print the markup reference and exit")
	)
	var ops []preprocessOp
	flags.Var(opFlag{'D', &ops}, "D", "define a global as `name=expr` before processing (repeatable)")
	flags.Var(opFlag{'E', &ops}, "E", "execute `statements` before processing (repeatable)")
	flags.Var(opFlag{'F', &ops}, "F", "execute a `file` of statements before processing (repeatable)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *version {
		fmt.Fprintf(stdout, "emt %s\n", emt.Version)
		return 0
	}
	if *helpMarkup {
		fmt.Fprint(stdout, markupReference)
		return 0
	}

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	// Locate project configuration
	var man *manifest.Manifest
	var err error
	if *configFlag != "" {
		man, err = manifest.LoadFile(*configFlag)
	} else {
		var cwd string
		if cwd, err = os.Getwd(); err == nil {
			man, err = manifest.FindAndLoad(cwd)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if man != nil {
		log.Infof("using configuration in %s", man.Dir)
	}

	// Flags win over manifest values
	prefix := rune(emt.DefaultPrefix)
	pseudonym := ""
	flattenAll := *flatten
	outFile, appendMode := *outputPath, false
	if outFile == "" && *appendPath != "" {
		outFile, appendMode = *appendPath, true
	}
	bufferOut := *buffered
	sigdbPath := *sigdbFlag
	if man != nil {
		prefix, _ = man.PrefixRune()
		pseudonym = man.Template.Pseudonym
		flattenAll = flattenAll || man.Template.Flatten
		if outFile == "" {
			outFile, appendMode = man.OutputPath(), man.Output.Append
		}
		bufferOut = bufferOut || man.Output.Buffered
		if sigdbPath == "" {
			sigdbPath = man.DatabasePath()
		}
	}
	if *prefixFlag != "" {
		if utf8.RuneCountInString(*prefixFlag) != 1 {
			fmt.Fprintf(stderr, "Error: prefix must be a single character, got %q\n", *prefixFlag)
			return 1
		}
		prefix, _ = utf8.DecodeRuneInString(*prefixFlag)
	}

	if *checkOnly && *sigScan {
		fmt.Fprintln(stderr, "Error: -check and -sigs are mutually exclusive")
		return 1
	}
	if *binaryMode && *interactive {
		fmt.Fprintln(stderr, "Error: -i cannot be combined with -binary")
		return 1
	}
	if bufferOut && outFile == "" {
		fmt.Fprintln(stderr, "Error: -b requires -o or -a")
		return 1
	}
	if *chunkSize <= 0 {
		fmt.Fprintln(stderr, "Error: -chunk must be positive")
		return 1
	}

	// The document and its arguments
	docPath := "-"
	rest := flags.Args()
	if len(rest) > 0 {
		docPath, rest = rest[0], rest[1:]
	}
	docName := docPath
	if docPath == "-" {
		docName = "<stdin>"
	}

	// Output sink
	var sink io.Writer = stdout
	var outF *os.File
	switch {
	case *sigScan || *checkOnly:
		sink = io.Discard
	case outFile != "":
		mode := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if appendMode {
			mode = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		outF, err = os.OpenFile(outFile, mode, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer outF.Close()
		sink = outF
	}

	eopts := []emt.Option{
		emt.WithOutput(sink),
		emt.WithPrefix(prefix),
		emt.WithGlobal("argv", append([]string{docPath}, rest...)),
	}
	if pseudonym != "" {
		eopts = append(eopts, emt.WithPseudonym(pseudonym))
	}
	if flattenAll {
		eopts = append(eopts, emt.WithFlatten())
	}
	if *checkOnly {
		eopts = append(eopts, emt.WithScanOnly())
	}
	if bufferOut && outF != nil {
		eopts = append(eopts, emt.WithBufferedOutput())
	}

	eng, err := emt.New(eopts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if man != nil && len(man.Template.Define) > 0 {
		names := make([]string, 0, len(man.Template.Define))
		for name := range man.Template.Define {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := eng.Define(name + "=" + man.Template.Define[name]); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				eng.Close()
				return 1
			}
		}
	}
	for _, op := range ops {
		switch op.kind {
		case 'D':
			err = eng.Define(op.arg)
		case 'E':
			err = eng.Execute(op.arg)
		case 'F':
			err = eng.ExecuteFile(op.arg)
		}
		if err != nil {
			reportError(stderr, err, *rawErrors)
			eng.Close()
			return 1
		}
	}

	if *verbose {
		for _, event := range emt.Events() {
			eng.AddHook(event, func(event string, data map[string]any) {
				log.Debugf("%s: %v", event, data)
			})
		}
	}

	if *sigScan {
		code := runSigScan(eng, docPath, docName, sigdbPath, stdin, stdout, stderr, *rawErrors)
		if cerr := eng.Close(); cerr != nil && code == 0 {
			fmt.Fprintf(stderr, "Error: %v\n", cerr)
			code = 1
		}
		return code
	}

	log.Infof("processing %s", docName)
	var procErr error
	switch {
	case *binaryMode:
		var r io.Reader = stdin
		if docPath != "-" {
			f, oerr := os.Open(docPath)
			if oerr != nil {
				fmt.Fprintf(stderr, "Error: %v\n", oerr)
				eng.Close()
				return 1
			}
			defer f.Close()
			r = f
		}
		procErr = eng.ProcessBinary(r, docName, *chunkSize)
	case docPath == "-":
		procErr = eng.ProcessReader(stdin, docName)
	default:
		procErr = eng.ProcessFile(docPath)
	}
	log.Infof("finished %s", docName)
	if procErr != nil {
		reportError(stderr, procErr, *rawErrors)
	}

	if *interactive && (procErr == nil || *keepGoing) {
		ierr := interact(eng, stdin, stdout, stderr, *keepGoing, *rawErrors)
		if ierr != nil && procErr == nil {
			procErr = ierr
		}
	}

	closeErr := eng.Close()
	if closeErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", closeErr)
	}

	failed := closeErr != nil || (procErr != nil && !*keepGoing)
	if failed && bufferOut && outF != nil {
		outF.Close()
		os.Remove(outFile)
	}
	if failed {
		return 1
	}
	return 0
}

// runSigScan collects significators from the document, consulting the
// cache first when one is configured.
func runSigScan(eng *emt.Engine, docPath, docName, dbPath string, stdin io.Reader, stdout, stderr io.Writer, raw bool) int {
	var db *sigdb.DB
	var mtime int64
	useCache := dbPath != "" && docPath != "-"
	if useCache {
		info, err := os.Stat(docPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		mtime = info.ModTime().Unix()
		db, err = sigdb.Open(dbPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer db.Close()

		cached, err := db.Lookup(docPath, mtime)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if cached != nil {
			log.Infof("significator cache hit for %s", docPath)
			printSignificators(stdout, cached)
			return 0
		}
	}

	var err error
	if docPath == "-" {
		err = eng.ProcessReader(stdin, docName)
	} else {
		err = eng.ProcessFile(docPath)
	}
	if err != nil {
		reportError(stderr, err, raw)
		return 1
	}

	sigs := eng.Significators()
	strs := make(map[string]string, len(sigs))
	for key, v := range sigs {
		strs[key] = fmt.Sprintf("%v", v)
	}
	printSignificators(stdout, strs)

	if useCache {
		if err := db.Store(docPath, mtime, strs); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		log.Infof("cached %d significators for %s", len(strs), docPath)
	}
	return 0
}

func printSignificators(w io.Writer, sigs map[string]string) {
	keys := make([]string, 0, len(sigs))
	for key := range sigs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "%s: %s\n", key, sigs[key])
	}
}

// reportError prints a processing error; with raw set, the context
// decoration is stripped back off.
func reportError(w io.Writer, err error, raw bool) {
	if raw {
		var perr *emt.Error
		if errors.As(err, &perr) {
			err = perr.Err
		}
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
