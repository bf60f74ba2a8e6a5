package sequence

import "errors"

var ErrNegativeValue = errors.New("sequence value can not be negative")

// Allocator issues strictly increasing identifiers for exported records.
// The last issued value is part of the checkpoint so that a resumed run continues where the committed output ends.
type Allocator struct {
	last int64
}

// Creates allocator that continues after `last`. Zero means nothing was issued yet.
func New(last int64) (*Allocator, error) {
	if last < 0 {
		return nil, ErrNegativeValue
	}
	return &Allocator{last: last}, nil
}

// Next issues the next identifier.
func (a *Allocator) Next() int64 {
	a.last++
	return a.last
}

// Last returns the most recently issued identifier (0 if none).
func (a *Allocator) Last() int64 {
	return a.last
}
