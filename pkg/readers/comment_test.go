package readers

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestCommentFilter_Strip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "block comment",
			input: "a /* c */ b",
			want:  "a  b",
		},
		{
			name:  "line comment keeps newline",
			input: "a // c\nb",
			want:  "a \nb",
		},
		{
			name:  "line comment ended by carriage return",
			input: "a // c\r\nb",
			want:  "a \r\nb",
		},
		{
			name:  "line comment at end of input",
			input: "a // trailing",
			want:  "a ",
		},
		{
			name:  "double quoted url",
			input: `"http://x"`,
			want:  `"http://x"`,
		},
		{
			name:  "single quoted block marker",
			input: `url('/*not a comment*/')`,
			want:  `url('/*not a comment*/')`,
		},
		{
			name:  "escaped quote stays in string",
			input: `"a\"/*x*/" /*y*/z`,
			want:  `"a\"/*x*/" z`,
		},
		{
			name:  "multi-line block comment",
			input: "a/*\n * doc\n */b",
			want:  "ab",
		},
		{
			name:  "star inside block comment",
			input: "a/* ** * */b",
			want:  "ab",
		},
		{
			name:  "unterminated block comment is absorbed",
			input: "keep /* never closed\nmore",
			want:  "keep ",
		},
		{
			name:  "lone slash passes through",
			input: "a / b",
			want:  "a / b",
		},
		{
			name:  "trailing slash",
			input: "a/",
			want:  "a/",
		},
		{
			name:  "escaped backslash before quote is misread",
			input: `"a\\" /*x*/ "b"`,
			want:  `"a\\" /*x*/ "b"`,
		},
		{
			name:  "utf-8 passes through",
			input: "/* ü */.größe { content: \"ß\" }",
			want:  ".größe { content: \"ß\" }",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StripComments(tt.input)
			if err != nil {
				t.Fatalf("StripComments() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("StripComments(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCommentFilter_ReadByte(t *testing.T) {
	f := NewCommentFilter(strings.NewReader("x//c\ny"))

	var got []byte
	for {
		b, err := f.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadByte() error = %v", err)
		}
		got = append(got, b)
	}
	if string(got) != "x\ny" {
		t.Errorf("ReadByte sequence = %q, want %q", got, "x\ny")
	}
}

func TestCommentFilter_SmallBuffers(t *testing.T) {
	input := "body { color: red; } /* theme */\n// note\n.a { b: 'c//d' }"
	want := "body { color: red; } \n\n.a { b: 'c//d' }"

	f := NewCommentFilter(iotest.OneByteReader(strings.NewReader(input)))
	got, err := io.ReadAll(iotest.OneByteReader(f))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCommentFilter_ReadEmptyBuffer(t *testing.T) {
	f := NewCommentFilter(strings.NewReader("abc"))
	n, err := f.Read(nil)
	if n != 0 || err != nil {
		t.Errorf("Read(nil) = %d, %v; want 0, nil", n, err)
	}
}

func TestCommentFilter_EOF(t *testing.T) {
	f := NewCommentFilter(strings.NewReader("ab"))
	buf := make([]byte, 8)

	n, err := f.Read(buf)
	if n != 2 || err != nil {
		t.Fatalf("first Read = %d, %v; want 2, nil", n, err)
	}
	for i := 0; i < 2; i++ {
		n, err = f.Read(buf)
		if n != 0 || err != io.EOF {
			t.Errorf("Read after end = %d, %v; want 0, io.EOF", n, err)
		}
	}
}

type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

func TestCommentFilter_Close(t *testing.T) {
	src := &countingCloser{Reader: strings.NewReader("abc")}
	f := NewCommentFilter(src)

	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if src.closes != 1 {
		t.Errorf("underlying Close called %d times, want 1", src.closes)
	}

	buf := make([]byte, 4)
	for i := 0; i < 3; i++ {
		_, err := f.Read(buf)
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Read #%d after Close error = %v, want ErrClosed", i+1, err)
		}
		var streamErr *StreamError
		if !errors.As(err, &streamErr) {
			t.Errorf("Read #%d after Close error type = %T, want *StreamError", i+1, err)
		}
	}
	if _, err := f.ReadByte(); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadByte after Close error = %v, want ErrClosed", err)
	}
}

func TestCommentFilter_SourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	f := NewCommentFilter(iotest.ErrReader(boom))

	_, err := f.Read(make([]byte, 4))
	if !errors.Is(err, boom) {
		t.Fatalf("Read() error = %v, want %v", err, boom)
	}
	var streamErr *StreamError
	if !errors.As(err, &streamErr) || streamErr.Op != "read" {
		t.Errorf("Read() error = %#v, want *StreamError with Op read", err)
	}
}
