package catalog

import (
	"errors"
	"fmt"
)

var ErrMalformedIndexLine = errors.New("malformed index line")
var ErrMissingDirectory = errors.New("missing or unreadable directory")
var ErrDuplicateSpecies = errors.New("several index files name the same species")

// MalformedLineError describes an index line that was skipped.
type MalformedLineError struct {
	File string
	// 1-based physical line number
	Line int
	Text string
	Err  error
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed index line %s:%d %q: %s", e.File, e.Line, e.Text, e.Err)
}

func (e *MalformedLineError) Unwrap() []error {
	return []error{ErrMalformedIndexLine, e.Err}
}

// DirectoryError is returned when an input folder is absent, is not a directory or cannot be listed.
type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory %s: %s", e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() []error {
	return []error{ErrMissingDirectory, e.Err}
}
