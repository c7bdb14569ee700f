package stream

import (
	"bytes"
	"fmt"
	"io"
)

// FilterError reports a malformed filter specification.
type FilterError struct {
	Msg string
}

func (e *FilterError) Error() string {
	return e.Msg
}

// Filter is one link in an output filter chain. Writes pass through the
// link to whatever it is attached to; Flush forces buffered content
// downstream and Close shuts the rest of the chain down.
type Filter interface {
	io.Writer
	Attach(next io.Writer)
	Flush() error
	Close() error
}

// link provides the downstream plumbing shared by all filters.
type link struct {
	next io.Writer
}

func (l *link) Attach(next io.Writer) {
	l.next = next
}

func (l *link) write(p []byte) (int, error) {
	if l.next == nil {
		return len(p), nil
	}
	return l.next.Write(p)
}

func (l *link) flushNext() error {
	if f, ok := l.next.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (l *link) closeNext() error {
	if f, ok := l.next.(Filter); ok {
		return f.Close()
	}
	return l.flushNext()
}

// nullFilter discards everything written to it.
type nullFilter struct {
	link
}

// NewNull returns a filter that swallows all writes.
func NewNull() Filter {
	return &nullFilter{}
}

func (f *nullFilter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (f *nullFilter) Flush() error {
	return f.flushNext()
}

func (f *nullFilter) Close() error {
	return f.closeNext()
}

// funcFilter transforms each write with a caller-supplied function.
type funcFilter struct {
	link
	fn func(string) string
}

// NewFunc returns a filter that maps every written chunk through fn.
func NewFunc(fn func(string) string) Filter {
	return &funcFilter{fn: fn}
}

func (f *funcFilter) Write(p []byte) (int, error) {
	if _, err := f.write([]byte(f.fn(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *funcFilter) Flush() error {
	return f.flushNext()
}

func (f *funcFilter) Close() error {
	return f.closeNext()
}

// tableFilter translates every byte through a 256-entry table.
type tableFilter struct {
	link
	table [256]byte
}

// NewTable returns a byte-translation filter. The table must be exactly
// 256 bytes, mapping each input byte to its replacement.
func NewTable(table string) (Filter, error) {
	if len(table) != 256 {
		return nil, &FilterError{Msg: fmt.Sprintf("translation table must be 256 bytes, got %d", len(table))}
	}
	f := &tableFilter{}
	copy(f.table[:], table)
	return f, nil
}

func (f *tableFilter) Write(p []byte) (int, error) {
	out := make([]byte, len(p))
	for i, b := range p {
		out[i] = f.table[b]
	}
	if _, err := f.write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *tableFilter) Flush() error {
	return f.flushNext()
}

func (f *tableFilter) Close() error {
	return f.closeNext()
}

// bufferedFilter holds writes until flushed or closed.
type bufferedFilter struct {
	link
	buf bytes.Buffer
}

// NewBuffered returns a filter that accumulates output and releases it
// only on flush or close.
func NewBuffered() Filter {
	return &bufferedFilter{}
}

func (f *bufferedFilter) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *bufferedFilter) Flush() error {
	if f.buf.Len() > 0 {
		if _, err := f.write(f.buf.Bytes()); err != nil {
			return err
		}
		f.buf.Reset()
	}
	return f.flushNext()
}

func (f *bufferedFilter) Close() error {
	if err := f.Flush(); err != nil {
		return err
	}
	return f.closeNext()
}

// lineBufferedFilter releases output one complete line at a time.
type lineBufferedFilter struct {
	link
	buf bytes.Buffer
}

// NewLineBuffered returns a filter that forwards only whole lines,
// holding any trailing partial line until flush or close.
func NewLineBuffered() Filter {
	return &lineBufferedFilter{}
}

func (f *lineBufferedFilter) Write(p []byte) (int, error) {
	f.buf.Write(p)
	data := f.buf.Bytes()
	last := bytes.LastIndexByte(data, '\n')
	if last < 0 {
		return len(p), nil
	}
	if _, err := f.write(data[:last+1]); err != nil {
		return 0, err
	}
	rest := append([]byte(nil), data[last+1:]...)
	f.buf.Reset()
	f.buf.Write(rest)
	return len(p), nil
}

func (f *lineBufferedFilter) Flush() error {
	if f.buf.Len() > 0 {
		if _, err := f.write(f.buf.Bytes()); err != nil {
			return err
		}
		f.buf.Reset()
	}
	return f.flushNext()
}

func (f *lineBufferedFilter) Close() error {
	if err := f.Flush(); err != nil {
		return err
	}
	return f.closeNext()
}

// sizeBufferedFilter releases output in fixed-size chunks.
type sizeBufferedFilter struct {
	link
	size int
	buf  bytes.Buffer
}

// NewSizeBuffered returns a filter that forwards output in chunks of
// size bytes, holding any remainder until flush or close.
func NewSizeBuffered(size int) (Filter, error) {
	if size <= 0 {
		return nil, &FilterError{Msg: fmt.Sprintf("chunk size must be positive, got %d", size)}
	}
	return &sizeBufferedFilter{size: size}, nil
}

func (f *sizeBufferedFilter) Write(p []byte) (int, error) {
	f.buf.Write(p)
	for f.buf.Len() >= f.size {
		if _, err := f.write(f.buf.Next(f.size)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (f *sizeBufferedFilter) Flush() error {
	if f.buf.Len() > 0 {
		if _, err := f.write(f.buf.Bytes()); err != nil {
			return err
		}
		f.buf.Reset()
	}
	return f.flushNext()
}

func (f *sizeBufferedFilter) Close() error {
	if err := f.Flush(); err != nil {
		return err
	}
	return f.closeNext()
}

// maximalFilter holds everything until the chain closes; explicit
// flushes are ignored so the buffer survives until the very end.
type maximalFilter struct {
	link
	buf bytes.Buffer
}

// NewMaximal returns a filter that buffers all output until close.
func NewMaximal() Filter {
	return &maximalFilter{}
}

func (f *maximalFilter) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *maximalFilter) Flush() error {
	return nil
}

func (f *maximalFilter) Close() error {
	if f.buf.Len() > 0 {
		if _, err := f.write(f.buf.Bytes()); err != nil {
			return err
		}
		f.buf.Reset()
	}
	return f.closeNext()
}
