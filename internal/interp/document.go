// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package interp

import (
	"nickandperla.net/emt/internal/scanner"
)

// Document is an incremental processing session. Text may arrive in
// pieces; markup that is incomplete at the end of one piece is held
// until the next piece supplies the rest. The interactive command loop
// feeds one line at a time.
type Document struct {
	in   *Interp
	sc   *scanner.Scanner
	ctx  *Context
	done bool
}

// OpenDocument starts an incremental session under the given context
// name. The caller must end the session with Finish.
func (in *Interp) OpenDocument(name string) *Document {
	d := &Document{
		in:  in,
		sc:  scanner.New(),
		ctx: NewContext(name, UnitLines),
	}
	in.pushContext(d.ctx)
	return d
}

// Feed appends text to the session and expands whatever complete markup
// it enables. Incomplete trailing markup is retained for later pieces.
func (d *Document) Feed(text string) error {
	if err := d.in.check(); err != nil {
		return err
	}
	if d.done {
		return scanner.Parsef("document %s is finished", d.ctx.Name)
	}
	d.sc.Feed(text)
	return d.in.parseBuffer(d.sc, d.ctx, nil, false)
}

// Pending reports whether incomplete markup is being held for more
// input.
func (d *Document) Pending() bool {
	return !d.sc.Empty()
}

// Reset discards any partially scanned markup, keeping the session and
// its line count. The command loop uses it to recover after an error.
func (d *Document) Reset() {
	d.sc = scanner.New()
	d.ctx.paused = false
}

// Finish signals end of input, forcing held markup to resolve or fail,
// and closes the session.
func (d *Document) Finish() error {
	if d.done {
		return nil
	}
	d.done = true
	var err error
	if cerr := d.in.check(); cerr != nil {
		err = cerr
	} else {
		err = d.in.parseBuffer(d.sc, d.ctx, nil, true)
	}
	if perr := d.in.popContext(); err == nil {
		err = perr
	}
	return err
}
