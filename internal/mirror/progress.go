package mirror

import (
	"fmt"
	"io"
	"sync"
)

// Progress writes one line per completed action. Concurrent callers are
// serialized so lines never interleave. A nil *Progress discards
// everything.
type Progress struct {
	mu sync.Mutex
	w  io.Writer
}

// NewProgress returns a sink writing to w
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

// Printf formats a single line and writes it with a trailing newline.
func (p *Progress) Printf(format string, args ...any) {
	if p == nil {
		return
	}
	line := fmt.Sprintf(format, args...) + "\n"

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.w, line)
}

func (p *Progress) createdDir(path string) {
	p.Printf("created directory %s", path)
}

func (p *Progress) existingDir(path string) {
	p.Printf("directory %s already exists, skipping", path)
}

func (p *Progress) parsed(in, out string) {
	p.Printf("parsed %s -> %s", in, out)
}

func (p *Progress) copied(in, out string) {
	p.Printf("copied %s -> %s", in, out)
}

func (p *Progress) skipped(out string) {
	p.Printf("%s already exists, skipping", out)
}
