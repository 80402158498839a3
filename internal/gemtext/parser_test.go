package gemtext

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "heading and paragraph",
			input: "# Title\nHello world.\n",
			want:  "<h1>Title</h1>\nHello world.\n",
		},
		{
			name:  "list closed at end of input",
			input: "* a\n* b\n",
			want:  "<ul>\n<li>a</li>\n<li>b</li>\n</ul>\n",
		},
		{
			name:  "list closed by plain line",
			input: "* a\nplain\n",
			want:  "<ul>\n<li>a</li>\n</ul>\nplain\n",
		},
		{
			name:  "link with and without text",
			input: "=> https://x Example\n=> https://y\n",
			want:  "<a href=\"https://x\">Example</a>\n<a href=\"https://y\"></a>\n",
		},
		{
			name:  "preformat passthrough",
			input: "```\n# not a heading\n```\n",
			want:  "<pre>\n# not a heading\n</pre>\n",
		},
		{
			name:  "heading levels",
			input: "## Two\n### Three\n",
			want:  "<h2>Two</h2>\n<h3>Three</h3>\n",
		},
		{
			name:  "heading without space uses token length",
			input: "####x\n",
			want:  "<h5></h5>\n",
		},
		{
			name:  "heading level is unbounded",
			input: "####### deep\n",
			want:  "<h7>deep</h7>\n",
		},
		{
			name:  "quote",
			input: ">  quoted   text\n",
			want:  "<blockquote>quoted   text</blockquote>\n",
		},
		{
			name:  "quote without space is plain",
			input: ">quoted\n",
			want:  ">quoted\n",
		},
		{
			name:  "link text keeps inner whitespace",
			input: "=>\tgemini://capsule/  A   B  \n",
			want:  "<a href=\"gemini://capsule/\">A   B</a>\n",
		},
		{
			name:  "bare link marker",
			input: "=>\n",
			want:  "<a href=\"\"></a>\n",
		},
		{
			name:  "bold-like token is not a list item",
			input: "**bold**\n",
			want:  "**bold**\n",
		},
		{
			name:  "list followed by heading",
			input: "* one\n# Next\n",
			want:  "<ul>\n<li>one</li>\n</ul>\n<h1>Next</h1>\n",
		},
		{
			name:  "list closed by blank line",
			input: "* one\n\n* two\n",
			want:  "<ul>\n<li>one</li>\n</ul>\n\n<ul>\n<li>two</li>\n</ul>\n",
		},
		{
			name:  "list closed before preformat opens",
			input: "* one\n```\ncode\n```\n",
			want:  "<ul>\n<li>one</li>\n</ul>\n<pre>\ncode\n</pre>\n",
		},
		{
			name:  "preformat keeps original whitespace",
			input: "```\n    indented\t\n* not a list\n```\n",
			want:  "<pre>\n    indented\t\n* not a list\n</pre>\n",
		},
		{
			name:  "fence alt text is dropped",
			input: "``` go\nx := 1\n```\n",
			want:  "<pre>\nx := 1\n</pre>\n",
		},
		{
			name:  "fence token must match exactly",
			input: "```go\n",
			want:  "```go\n",
		},
		{
			name:  "unterminated preformat is left open",
			input: "```\nline\n",
			want:  "<pre>\nline\n",
		},
		{
			name:  "plain lines keep surrounding whitespace",
			input: "  indented text  \n",
			want:  "  indented text  \n",
		},
		{
			name:  "empty and whitespace lines pass through",
			input: "\n \t\n",
			want:  "\n \t\n",
		},
		{
			name:  "last line without newline",
			input: "# Title",
			want:  "<h1>Title</h1>\n",
		},
		{
			name:  "carriage return stays on passthrough",
			input: "text\r\n# Head\r\n",
			want:  "text\r\n<h1>Head</h1>\n",
		},
		{
			name:  "no html escaping",
			input: "> a < b & c\n",
			want:  "<blockquote>a < b & c</blockquote>\n",
		},
		{
			name:  "leading whitespace before prefix",
			input: "   * item\n",
			want:  "<ul>\n<li>item</li>\n</ul>\n",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertString(tt.input)
			if err != nil {
				t.Fatalf("ConvertString() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ConvertString(%q)\ngot:  %q\nwant: %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConvert_Deterministic(t *testing.T) {
	input := "# T\n* a\n* b\n```\n=> raw\n```\n=> /x y\n> q\n"

	first, err := ConvertString(input)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		got, err := ConvertString(input)
		if err != nil {
			t.Fatal(err)
		}
		if got != first {
			t.Fatalf("run %d produced different output:\n%q\n%q", i, got, first)
		}
	}
}

func TestConvert_BlockBalance(t *testing.T) {
	input := strings.Join([]string{
		"* a", "text", "* b", "* c", "```", "* inside", "```",
		"* d", "```", "x", "```", "* e",
	}, "\n")

	got, err := ConvertString(input)
	if err != nil {
		t.Fatal(err)
	}

	if open, closed := strings.Count(got, "<ul>"), strings.Count(got, "</ul>"); open != closed {
		t.Errorf("unbalanced lists: %d <ul>, %d </ul>\n%s", open, closed, got)
	}
	if open, closed := strings.Count(got, "<pre>"), strings.Count(got, "</pre>"); open != 2 || closed != 2 {
		t.Errorf("expected 2 <pre> and 2 </pre>, got %d and %d\n%s", open, closed, got)
	}
	if strings.Contains(got, "<li>inside</li>") {
		t.Error("list item inside preformat block should pass through")
	}
}

func TestConvert_LongLine(t *testing.T) {
	long := strings.Repeat("x", 200*1024)

	got, err := ConvertString("> " + long + "\n")
	if err != nil {
		t.Fatal(err)
	}
	if want := "<blockquote>" + long + "</blockquote>\n"; got != want {
		t.Errorf("long line not converted intact (len got %d, want %d)", len(got), len(want))
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestConvert_ReadError(t *testing.T) {
	readErr := errors.New("disk gone")

	err := Convert(failingReader{err: readErr}, io.Discard)
	if !errors.Is(err, readErr) {
		t.Fatalf("Convert() error = %v, want %v", err, readErr)
	}
}

func TestConvert_WriteError(t *testing.T) {
	writeErr := errors.New("no space left")

	err := Convert(strings.NewReader("# Title\n"), failingWriter{err: writeErr})
	if !errors.Is(err, writeErr) {
		t.Fatalf("Convert() error = %v, want %v", err, writeErr)
	}
}

func TestConvert_StreamsToWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := Convert(strings.NewReader("* a\n"), &buf); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "<ul>\n<li>a</li>\n</ul>\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
