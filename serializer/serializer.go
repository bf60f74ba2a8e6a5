package serializer

import (
	"errors"
	"fmt"
	"io"

	"github.com/opengs/speciesexport/record"
	"github.com/opengs/speciesexport/sequence"
)

var ErrUnknownFormat = errors.New("unknown output format")

// Serializer encodes records into an output file.
// Begin is called once after a fresh file is created and End once before it is finally closed. Resumed files skip Begin.
type Serializer interface {
	Begin(w io.Writer) error
	// Writes one record. Identifiers for the output are taken from `ids`
	Write(w io.Writer, rec *record.Record, ids *sequence.Allocator) error
	End(w io.Writer) error
	// Default output file extension including the dot
	Extension() string
}

// Formats lists names accepted by [New].
var Formats = []string{"jsonl", "tsv"}

// New returns the serializer registered under `format`.
func New(format string) (Serializer, error) {
	switch format {
	case "jsonl":
		return &JSONL{}, nil
	case "tsv":
		return &TSV{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}
