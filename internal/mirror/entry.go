package mirror

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// Kind classifies what an entry's input path refers to
type Kind int

const (
	KindOther Kind = iota
	KindDirectory
	KindRegular
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindRegular:
		return "regular"
	default:
		return "other"
	}
}

// Entry is one unit of mirror work: an input path and the output path it
// is mirrored to.
type Entry struct {
	Input  string // absolute path in the input tree
	Output string // absolute path in the output tree
}

// NewEntry creates an entry from an input and output path pair
func NewEntry(input, output string) Entry {
	return Entry{Input: input, Output: output}
}

// Child returns the entry for the child called name
func (e Entry) Child(name string) Entry {
	return Entry{
		Input:  filepath.Join(e.Input, name),
		Output: filepath.Join(e.Output, name),
	}
}

// Kind stats the input path, following symlinks, and classifies it.
func (e Entry) Kind(fsys afero.Fs) (Kind, error) {
	info, err := fsys.Stat(e.Input)
	if err != nil {
		return KindOther, err
	}
	return kindOf(info.Mode()), nil
}

func kindOf(mode fs.FileMode) Kind {
	switch {
	case mode.IsDir():
		return KindDirectory
	case mode.IsRegular():
		return KindRegular
	default:
		return KindOther
	}
}

// Stats counts the outcome of every entry processed by a run
type Stats struct {
	DirsCreated  int64
	DirsExisting int64
	Parsed       int64
	Copied       int64
	Skipped      int64
	Ignored      int64
	Failed       int64
}

// EntryError records a filesystem failure confined to a single entry
type EntryError struct {
	Op   string
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// ErrInvalidSeed is returned by Run when the seed input cannot be used
var ErrInvalidSeed = errors.New("invalid seed")
