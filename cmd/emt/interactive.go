package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"nickandperla.net/emt/pkg/emt"
)

// interact reads template lines from stdin one at a time, expanding
// markup as soon as it is complete. A prompt is shown only when stdin
// is a terminal; held multi-line markup switches to the continuation
// prompt.
func interact(eng *emt.Engine, stdin io.Reader, stdout, stderr io.Writer, keepGoing, raw bool) error {
	doc := eng.OpenDocument("<interactive>")
	prompt := false
	if f, ok := stdin.(*os.File); ok {
		prompt = term.IsTerminal(int(f.Fd()))
	}

	reader := bufio.NewReader(stdin)
	for {
		if prompt {
			if doc.Pending() {
				fmt.Fprint(stdout, "... ")
			} else {
				fmt.Fprint(stdout, ">>> ")
			}
		}

		line, rerr := reader.ReadString('\n')
		if line != "" {
			if err := doc.Feed(line); err != nil {
				reportError(stderr, err, raw)
				if !keepGoing {
					doc.Finish()
					return err
				}
				doc.Reset()
			}
		}
		if rerr != nil {
			if prompt {
				fmt.Fprintln(stdout)
			}
			if ferr := doc.Finish(); ferr != nil {
				reportError(stderr, ferr, raw)
				if !keepGoing {
					return ferr
				}
			}
			if rerr != io.EOF {
				return rerr
			}
			return nil
		}
	}
}
