package writer

import (
	"errors"
	"fmt"
)

var ErrCorruptOutputFile = errors.New("output file is shorter than the committed checkpoint offset")
var ErrInvalidState = errors.New("writer is in invalid state for the operation")

// CorruptOutputFileError reports an output file that lost committed bytes since the checkpoint was taken.
type CorruptOutputFileError struct {
	Path   string
	Size   int64
	Offset int64
}

func (e *CorruptOutputFileError) Error() string {
	return fmt.Sprintf("output file %s has %d bytes but checkpoint committed offset %d", e.Path, e.Size, e.Offset)
}

func (e *CorruptOutputFileError) Unwrap() error {
	return ErrCorruptOutputFile
}
