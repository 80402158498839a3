package gemtext

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// whitespace is the set of bytes trimmed from lines and used to split tokens
const whitespace = " \n\r\t\f\v"

// Line prefixes recognised at block level
const (
	prefixHeading   = '#'
	prefixQuote     = ">"
	prefixLink      = "=>"
	prefixListItem  = "*"
	prefixPreformat = "```"
)

// converter holds the block context of a single conversion
type converter struct {
	out         *bufio.Writer
	inList      bool
	inPreformat bool
}

// Convert reads Gemtext from r and writes the HTML fragment to w.
//
// Conversion is line oriented. Lines inside a preformatted block and lines
// that carry no recognised prefix are copied unchanged. An unterminated
// preformatted block is left open at end of input; an open list is closed.
func Convert(r io.Reader, w io.Writer) error {
	c := &converter{out: bufio.NewWriter(w)}
	in := bufio.NewReader(r)

	for {
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read gemtext: %w", err)
		}
		if line == "" && err != nil {
			break
		}

		c.convertLine(strings.TrimSuffix(line, "\n"))

		if err != nil {
			break
		}
	}

	if c.inList {
		c.inList = false
		c.emit("</ul>")
	}

	if err := c.out.Flush(); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// ConvertString is a convenience wrapper around Convert for in-memory input
func ConvertString(src string) (string, error) {
	var b strings.Builder
	if err := Convert(strings.NewReader(src), &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (c *converter) convertLine(line string) {
	prefix, rest := splitLine(line)

	if c.inPreformat && prefix != prefixPreformat {
		c.emit(line)
		return
	}

	if c.inList && prefix != prefixListItem {
		c.emit("</ul>")
		c.inList = false
	}

	switch {
	case prefix != "" && prefix[0] == prefixHeading:
		level := strconv.Itoa(len(prefix))
		c.emit("<h" + level + ">" + rest + "</h" + level + ">")

	case prefix == prefixQuote:
		c.emit("<blockquote>" + rest + "</blockquote>")

	case prefix == prefixLink:
		href, text := firstToken(rest)
		text = strings.Trim(text, whitespace)
		c.emit(`<a href="` + href + `">` + text + "</a>")

	case prefix == prefixListItem:
		if !c.inList {
			c.inList = true
			c.emit("<ul>")
		}
		c.emit("<li>" + rest + "</li>")

	case prefix == prefixPreformat:
		if c.inPreformat {
			c.emit("</pre>")
		} else {
			c.emit("<pre>")
		}
		c.inPreformat = !c.inPreformat

	default:
		c.emit(line)
	}
}

// emit writes s followed by a newline. Write errors are sticky in the
// bufio.Writer and surface on Flush.
func (c *converter) emit(s string) {
	_, _ = c.out.WriteString(s)
	_ = c.out.WriteByte('\n')
}

// splitLine returns the first whitespace-delimited token of the trimmed line
// and the remainder with leading whitespace removed.
func splitLine(line string) (prefix, rest string) {
	trimmed := strings.Trim(line, whitespace)
	prefix, rest = firstToken(trimmed)
	return prefix, strings.TrimLeft(rest, whitespace)
}

// firstToken splits s at the first whitespace byte after skipping leading
// whitespace. The remainder keeps its leading whitespace.
func firstToken(s string) (token, remainder string) {
	s = strings.TrimLeft(s, whitespace)
	if i := strings.IndexAny(s, whitespace); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}
