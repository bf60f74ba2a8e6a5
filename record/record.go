package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Participant of the interaction together with its organism.
type Participant struct {
	Interactor string `json:"id"`
	TaxID      int64  `json:"taxid"`
}

// Record is one interaction evidence item read from an input file.
type Record struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`

	// Classification inherited from the source file
	Negative bool `json:"-"`
	// Input file the record was decoded from
	Source string `json:"-"`
	// 1-based line inside the source file
	Line int `json:"-"`
	// Original encoded record as it appeared in the input
	Raw json.RawMessage `json:"-"`
}

// HasOrganism reports whether at least one participant belongs to organism `taxID`.
func (r *Record) HasOrganism(taxID int64) bool {
	for _, p := range r.Participants {
		if p.TaxID == taxID {
			return true
		}
	}
	return false
}

// Iterator is a forward-only record sequence.
type Iterator interface {
	// Reports whether Next will return a record. May read ahead from the underlying source.
	HasNext(ctx context.Context) (bool, error)
	// Returns the next record or [io.EOF] when the sequence is exhausted.
	Next(ctx context.Context) (*Record, error)
}

var ErrSourceTooShort = errors.New("record source holds fewer records than requested to skip")

// Skip consumes exactly `n` records from the iterator. Used to replay a chunk up to the last committed record.
func Skip(ctx context.Context, it Iterator, n int64) error {
	for i := int64(0); i < n; i++ {
		if _, err := it.Next(ctx); err != nil {
			if err == io.EOF {
				return fmt.Errorf("%w: skipped %d of %d", ErrSourceTooShort, i, n)
			}
			return errors.Join(errors.New("failed to skip committed record"), err)
		}
	}
	return nil
}
