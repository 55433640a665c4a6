// Package readers provides streaming content filters used while assembling
// module content.
package readers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrClosed is returned by every read attempted after Close.
var ErrClosed = errors.New("read from closed reader")

// StreamError reports a failure of the underlying content source, or a read
// attempted on a closed filter.
type StreamError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return fmt.Sprintf("comment filter %s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StreamError) Unwrap() error {
	return e.Err
}

type quoteState int

const (
	noQuote quoteState = iota
	inSingleQuote
	inDoubleQuote
)

// CommentFilter strips /* block */ and // line comments from a byte stream,
// leaving single and double quoted regions untouched.
//
// It is not a JavaScript tokenizer: comment markers inside regular
// expression literals are treated as comments. It does the job for CSS and
// JSON content.
//
// Known limitations, kept on purpose:
//   - a block comment that is never terminated swallows the rest of the
//     stream without an error;
//   - escape detection looks back a single byte, so a quote preceded by an
//     escaped backslash ("\\") is taken as escaped.
//
// A CommentFilter is not safe for concurrent use.
type CommentFilter struct {
	src    *bufio.Reader
	under  io.Reader
	closed bool
	state  quoteState
	prev   int
	cur    int
}

// NewCommentFilter wraps r.
func NewCommentFilter(r io.Reader) *CommentFilter {
	return &CommentFilter{
		src:   bufio.NewReader(r),
		under: r,
		cur:   ' ',
	}
}

const eof = -1

func (f *CommentFilter) next() (int, error) {
	b, err := f.src.ReadByte()
	if err == io.EOF {
		return eof, nil
	}
	if err != nil {
		return eof, &StreamError{Op: "read", Err: err}
	}
	return int(b), nil
}

func (f *CommentFilter) peek() (int, error) {
	b, err := f.src.Peek(1)
	if err == io.EOF || (err == nil && len(b) == 0) {
		return eof, nil
	}
	if err != nil {
		return eof, &StreamError{Op: "read", Err: err}
	}
	return int(b[0]), nil
}

// ReadByte pulls the next unfiltered byte. It returns io.EOF at the end of
// the source.
func (f *CommentFilter) ReadByte() (byte, error) {
	ch, err := f.pull()
	if err != nil {
		return 0, err
	}
	if ch == eof {
		return 0, io.EOF
	}
	return byte(ch), nil
}

func (f *CommentFilter) pull() (int, error) {
	if f.closed {
		return eof, &StreamError{Op: "read", Err: ErrClosed}
	}
	for {
		f.prev = f.cur
		ch, err := f.next()
		if err != nil {
			return eof, err
		}
		f.cur = ch
		if ch == eof {
			return eof, nil
		}

		switch f.state {
		case inSingleQuote:
			if ch == '\'' && f.prev != '\\' {
				f.state = noQuote
			}
			return ch, nil
		case inDoubleQuote:
			if ch == '"' && f.prev != '\\' {
				f.state = noQuote
			}
			return ch, nil
		}

		switch ch {
		case '"':
			f.state = inDoubleQuote
			return ch, nil
		case '\'':
			f.state = inSingleQuote
			return ch, nil
		case '/':
		default:
			return ch, nil
		}

		lookahead, err := f.peek()
		if err != nil {
			return eof, err
		}
		switch lookahead {
		case '*':
			if _, err := f.next(); err != nil {
				return eof, err
			}
			if err := f.skipBlock(); err != nil {
				return eof, err
			}
			continue
		case '/':
			if _, err := f.next(); err != nil {
				return eof, err
			}
			return f.skipLine()
		}
		return ch, nil
	}
}

// skipBlock discards input through the closing "*/" or the end of the
// source.
func (f *CommentFilter) skipBlock() error {
	for {
		ch, err := f.next()
		if err != nil {
			return err
		}
		f.cur = ch
		if ch == eof {
			return nil
		}
		if ch != '*' {
			continue
		}
		ch, err = f.peek()
		if err != nil {
			return err
		}
		if ch == '/' {
			if _, err := f.next(); err != nil {
				return err
			}
			f.cur = '/'
			return nil
		}
	}
}

// skipLine discards input up to a line terminator and returns the
// terminator, or eof.
func (f *CommentFilter) skipLine() (int, error) {
	for {
		ch, err := f.next()
		if err != nil {
			return eof, err
		}
		f.cur = ch
		if ch == '\n' || ch == '\r' || ch == eof {
			return ch, nil
		}
	}
}

// Read fills p with filtered bytes. It returns io.EOF only when no byte
// could be placed.
func (f *CommentFilter) Read(p []byte) (int, error) {
	if f.closed {
		return 0, &StreamError{Op: "read", Err: ErrClosed}
	}
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	for n < len(p) {
		ch, err := f.pull()
		if err != nil {
			return n, err
		}
		if ch == eof {
			break
		}
		p[n] = byte(ch)
		n++
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Close marks the filter closed and closes the underlying source if it is
// an io.Closer. Only the first call reaches the source.
func (f *CommentFilter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if c, ok := f.under.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// StripComments runs s through a CommentFilter.
func StripComments(s string) (string, error) {
	f := NewCommentFilter(strings.NewReader(s))
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
